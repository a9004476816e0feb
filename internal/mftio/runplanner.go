// Package mftio implements the Run Planner, Bitmap Stage, and Block Reader
// of spec.md §4.1–4.3: turning a volume's $MFT::$BITMAP and $MFT::$DATA
// retrieval pointers into chunk lists, reading them through internal/device
// and internal/iocp, and computing per-chunk skip ranges from the bitmap
// population before data chunks are dispatched to the record parser.
package mftio

import (
	"github.com/volscan/volscan/internal/device"
	"github.com/volscan/volscan/internal/ntfsfmt"
)

// DefaultReadBlockSize is the maximum size, in bytes, of one chunk
// (original_source/io/mft_reader_constants.hpp: kDefaultReadBlockSize =
// 1<<20).
const DefaultReadBlockSize = 1 << 20

// DefaultConcurrencyWidth is the default number of in-flight chunks per
// stage (spec.md §4.1's W; mft_reader_constants.hpp: kIoConcurrencyLevel =
// 2).
const DefaultConcurrencyWidth = 2

// ChunkKind distinguishes a bitmap chunk from a data chunk.
type ChunkKind int

const (
	ChunkBitmap ChunkKind = iota
	ChunkData
)

// Chunk describes one cluster-aligned read (spec.md §4.2's "(vcn,
// cluster_count, lcn) per chunk"). SkipBegin/SkipEnd are computed by the
// Bitmap Stage once the last bitmap chunk has been read (spec.md §4.3) and
// are zero until then.
type Chunk struct {
	Kind         ChunkKind
	VCN          int64
	ClusterCount int64
	LCN          int64
	SkipBegin    int64
	SkipEnd      int64
}

// ByteOffset returns the device byte offset of this chunk's first cluster.
func (c Chunk) ByteOffset(bytesPerCluster int64) int64 { return c.LCN * bytesPerCluster }

// ByteLength returns the chunk's length in bytes.
func (c Chunk) ByteLength(bytesPerCluster int64) int64 { return c.ClusterCount * bytesPerCluster }

// Plan is the Run Planner's output: two ordered chunk lists, bitmap first.
type Plan struct {
	Bitmap []Chunk
	Data   []Chunk
}

// BuildPlan splits the $MFT::$BITMAP and $MFT::$DATA retrieval pointers
// into chunks of at most maxClusters clusters each (spec.md §4.2 step 4).
// maxClusters is computed by the caller from DefaultReadBlockSize and the
// volume's cluster size.
func BuildPlan(bitmapRuns, dataRuns []ntfsfmt.Run, maxClusters int64) Plan {
	return Plan{
		Bitmap: splitRuns(bitmapRuns, maxClusters, ChunkBitmap),
		Data:   splitRuns(dataRuns, maxClusters, ChunkData),
	}
}

func splitRuns(runs []ntfsfmt.Run, maxClusters int64, kind ChunkKind) []Chunk {
	var chunks []Chunk
	if maxClusters <= 0 {
		maxClusters = 1
	}
	for _, r := range runs {
		if r.SparseLCN {
			// A sparse run has no backing clusters to read; the bitmap
			// stage and parser never see it.
			continue
		}
		remaining := r.ClusterCount
		vcn := r.VCN
		lcn := r.LCN
		for remaining > 0 {
			n := remaining
			if n > maxClusters {
				n = maxClusters
			}
			chunks = append(chunks, Chunk{Kind: kind, VCN: vcn, ClusterCount: n, LCN: lcn})
			vcn += n
			lcn += n
			remaining -= n
		}
	}
	return chunks
}

// MaxClustersPerChunk returns how many clusters fit in one
// DefaultReadBlockSize-sized read, given a cluster size.
func MaxClustersPerChunk(bytesPerCluster int64) int64 {
	if bytesPerCluster <= 0 {
		return 1
	}
	n := int64(DefaultReadBlockSize) / bytesPerCluster
	if n < 1 {
		n = 1
	}
	return n
}

// Geometry is re-exported for callers that only need device geometry
// without importing internal/device directly.
type Geometry = device.Geometry
