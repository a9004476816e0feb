package index

// packedSize48 is a 48-bit unsigned value packed into a uint64, matching
// original_source/core/packed_file_size.hpp's file_size_type: supports up
// to 256 TiB (spec.md §3 "Size info").
type packedSize48 uint64

const size48Mask = uint64(1)<<48 - 1

func newPackedSize48(v int64) packedSize48 {
	if v < 0 {
		v = 0
	}
	return packedSize48(uint64(v) & size48Mask)
}

func (p packedSize48) int64() int64 { return int64(uint64(p) & size48Mask) }

// SizeInfo is the decoded (length, allocated, bulkiness, treesize) tuple
// carried per-stream (spec.md §3 "Size info", §4.5, §4.6's get_sizes).
type SizeInfo struct {
	length     packedSize48
	allocated  packedSize48
	bulkiness  packedSize48
	treesize   uint32
}

// Length is the stream's logical data size.
func (s SizeInfo) Length() int64 { return s.length.int64() }

// Allocated is the stream's on-disk allocated size.
func (s SizeInfo) Allocated() int64 { return s.allocated.int64() }

// Bulkiness is the rolled-up "big things" metric (spec.md §4.5).
func (s SizeInfo) Bulkiness() int64 { return s.bulkiness.int64() }

// Treesize is the rolled-up descendant stream count (spec.md §3 invariant:
// "S.treesize == 1 + Σ(treesize of each child's primary stream)").
func (s SizeInfo) Treesize() uint32 { return s.treesize }

// NewSizeInfo constructs a SizeInfo from plain int64/uint32 values,
// clamping negative inputs to zero.
func NewSizeInfo(length, allocated, bulkiness int64, treesize uint32) SizeInfo {
	return SizeInfo{
		length:    newPackedSize48(length),
		allocated: newPackedSize48(allocated),
		bulkiness: newPackedSize48(bulkiness),
		treesize:  treesize,
	}
}

// Add returns the element-wise sum of two SizeInfos, saturating each
// 48-bit field at its maximum rather than overflowing.
func (s SizeInfo) Add(o SizeInfo) SizeInfo {
	return NewSizeInfo(
		saturatingAdd48(s.length.int64(), o.length.int64()),
		saturatingAdd48(s.allocated.int64(), o.allocated.int64()),
		saturatingAdd48(s.bulkiness.int64(), o.bulkiness.int64()),
		s.treesize+o.treesize,
	)
}

func saturatingAdd48(a, b int64) int64 {
	sum := a + b
	const max48 = int64(size48Mask)
	if sum > max48 || sum < 0 {
		return max48
	}
	return sum
}
