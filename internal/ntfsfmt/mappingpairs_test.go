package ntfsfmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSignedLE(t *testing.T) {
	assert.EqualValues(t, 0x10, decodeSignedLE([]byte{0x10}))
	assert.EqualValues(t, -1, decodeSignedLE([]byte{0xFF}))
	assert.EqualValues(t, -2, decodeSignedLE([]byte{0xFE, 0xFF}))
	assert.EqualValues(t, 0x1234, decodeSignedLE([]byte{0x34, 0x12}))
	assert.EqualValues(t, 0, decodeSignedLE(nil))
}

func TestDecodeMappingPairsSingleRun(t *testing.T) {
	// 0x31 -> vcn_len=1, lcn_len=3; vcn delta=0x10; lcn delta = 0x001234 (3 bytes LE).
	mp := []byte{0x31, 0x10, 0x34, 0x12, 0x00, 0x00}
	runs, err := DecodeMappingPairs(mp, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.EqualValues(t, 0, runs[0].VCN)
	assert.EqualValues(t, 0x10, runs[0].ClusterCount)
	assert.EqualValues(t, 0x1234, runs[0].LCN)
	assert.False(t, runs[0].SparseLCN)
}

func TestDecodeMappingPairsSparseRun(t *testing.T) {
	// lcn_len = 0 marks a sparse ("hole") run: 0x01 -> vcn_len=1, lcn_len=0.
	mp := []byte{0x01, 0x05, 0x00}
	runs, err := DecodeMappingPairs(mp, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.EqualValues(t, 10, runs[0].VCN)
	assert.EqualValues(t, 5, runs[0].ClusterCount)
	assert.True(t, runs[0].SparseLCN)
}

func TestDecodeMappingPairsMultipleRunsAccumulateLCN(t *testing.T) {
	// Run 1: vcn_len=1 (0x05), lcn_len=1 (0x64) -> lcn=0x64.
	// Run 2: vcn_len=1 (0x03), lcn_len=1 (0xFE = -2) -> lcn=0x64-2=0x62.
	mp := []byte{0x11, 0x05, 0x64, 0x11, 0x03, 0xFE, 0x00}
	runs, err := DecodeMappingPairs(mp, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.EqualValues(t, 0x64, runs[0].LCN)
	assert.EqualValues(t, 5, runs[1].VCN)
	assert.EqualValues(t, 0x62, runs[1].LCN)
}

func TestDecodeMappingPairsTruncated(t *testing.T) {
	_, err := DecodeMappingPairs([]byte{0x31, 0x10}, 0)
	assert.ErrorIs(t, err, ErrTruncated)
}
