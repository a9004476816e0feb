package mftio

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volscan/volscan/internal/device"
)

// writeSyntheticVolume writes a boot sector plus a data region filled with
// a recognizable byte pattern, so Reader.Run's handler can assert it saw
// the expected bytes at the expected chunk offsets.
func writeSyntheticVolume(t *testing.T, clusterBytes int, dataLCN int64, dataClusters int64) (path string, bytesPerCluster int64) {
	t.Helper()
	bytesPerCluster = int64(clusterBytes)
	total := dataLCN*bytesPerCluster + dataClusters*bytesPerCluster
	buf := make([]byte, total)

	copy(buf[3:11], "NTFS    ")
	binary.LittleEndian.PutUint16(buf[11:13], 512)
	buf[13] = byte(clusterBytes / 512)
	binary.LittleEndian.PutUint64(buf[44:52], total/512)
	binary.LittleEndian.PutUint64(buf[52:60], 0)
	binary.LittleEndian.PutUint64(buf[60:68], 0)
	buf[68] = 0xF6 // -10 -> 1024-byte FRS

	for i := int64(0); i < dataClusters*bytesPerCluster; i++ {
		buf[dataLCN*bytesPerCluster+i] = byte(i)
	}

	dir := t.TempDir()
	path = filepath.Join(dir, "vol.img")
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path, bytesPerCluster
}

func TestReaderRunDispatchesDataChunks(t *testing.T) {
	path, bpc := writeSyntheticVolume(t, 4096, 10, 4)
	vol, err := device.Open(path)
	require.NoError(t, err)
	defer vol.Close()

	r := NewReader(vol, nil)

	plan := Plan{Data: []Chunk{{Kind: ChunkData, VCN: 0, ClusterCount: 4, LCN: 10}}}
	bm := NewBitmap(64)
	// Mark all FRS slots in range as allocated so nothing is skipped.
	allOnes := make([]byte, 8)
	for i := range allOnes {
		allOnes[i] = 0xFF
	}
	bm.WriteChunk(0, allOnes)

	const frsPerCluster = 4 // 4096 / 1024
	var mu sync.Mutex
	var sawBytes int
	err = r.Run(context.Background(), plan, bm, frsPerCluster, func(ctx context.Context, chunk Chunk, buf []byte) error {
		mu.Lock()
		defer mu.Unlock()
		sawBytes = len(buf)
		assert.Equal(t, byte(0), buf[0])
		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, bpc*4, sawBytes)
}

func TestReaderRunSkipsFullyUnallocatedChunk(t *testing.T) {
	path, _ := writeSyntheticVolume(t, 4096, 10, 4)
	vol, err := device.Open(path)
	require.NoError(t, err)
	defer vol.Close()

	r := NewReader(vol, nil)
	plan := Plan{Data: []Chunk{{Kind: ChunkData, VCN: 0, ClusterCount: 4, LCN: 10}}}
	bm := NewBitmap(64) // left all-zero: nothing allocated

	called := false
	err = r.Run(context.Background(), plan, bm, 4, func(ctx context.Context, chunk Chunk, buf []byte) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestReaderRunBitmapStagePopulatesBitmap(t *testing.T) {
	path, _ := writeSyntheticVolume(t, 4096, 10, 4)
	vol, err := device.Open(path)
	require.NoError(t, err)
	defer vol.Close()

	r := NewReader(vol, nil)
	plan := Plan{Bitmap: []Chunk{{Kind: ChunkBitmap, VCN: 0, ClusterCount: 1, LCN: 0}}}
	bm := NewBitmap(int64(vol.Geometry.BytesPerCluster) * 8)

	err = r.Run(context.Background(), plan, bm, 4, nil)
	require.NoError(t, err)
	assert.NotZero(t, bm.ValidRecords())
}
