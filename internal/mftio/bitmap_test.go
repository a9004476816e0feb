package mftio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPopCountByte(t *testing.T) {
	assert.Equal(t, 0, PopCountByte(0x00))
	assert.Equal(t, 8, PopCountByte(0xFF))
	assert.Equal(t, 4, PopCountByte(0x0F))
	assert.Equal(t, 1, PopCountByte(0x01))
}

func TestBitmapWriteChunkAccumulatesValidRecords(t *testing.T) {
	bm := NewBitmap(64)
	n := bm.WriteChunk(0, []byte{0xFF, 0x0F})
	assert.EqualValues(t, 12, n)
	assert.EqualValues(t, 12, bm.ValidRecords())

	n2 := bm.WriteChunk(2, []byte{0x01})
	assert.EqualValues(t, 1, n2)
	assert.EqualValues(t, 13, bm.ValidRecords())
}

func TestBitmapIsAllocated(t *testing.T) {
	bm := NewBitmap(16)
	bm.WriteChunk(0, []byte{0b00000101})
	assert.True(t, bm.IsAllocated(0))
	assert.False(t, bm.IsAllocated(1))
	assert.True(t, bm.IsAllocated(2))
	assert.False(t, bm.IsAllocated(3))
}

func TestBitmapSkipRangeAllAllocated(t *testing.T) {
	bm := NewBitmap(16)
	bm.WriteChunk(0, []byte{0xFF})
	begin, end := bm.SkipRange(0, 8)
	assert.EqualValues(t, 0, begin)
	assert.EqualValues(t, 0, end)
}

func TestBitmapSkipRangeLeadingAndTrailingZero(t *testing.T) {
	bm := NewBitmap(16)
	// bits: 0 0 0 1 1 0 0 0 (FRS 3 and 4 allocated)
	bm.WriteChunk(0, []byte{0b00011000})
	begin, end := bm.SkipRange(0, 8)
	assert.EqualValues(t, 3, begin)
	assert.EqualValues(t, 3, end)
}

func TestBitmapSkipRangeEntirelyUnallocated(t *testing.T) {
	bm := NewBitmap(16)
	bm.WriteChunk(0, []byte{0x00})
	begin, end := bm.SkipRange(0, 8)
	assert.EqualValues(t, 8, begin)
	assert.EqualValues(t, 0, end)
}
