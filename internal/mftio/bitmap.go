package mftio

// nibblePopCount mirrors original_source/io/mft_reader_constants.hpp's
// kNibblePopCount table: the number of set bits in each possible 4-bit
// value, used to popcount the MFT bitmap a byte at a time without a
// per-bit loop.
var nibblePopCount = [16]uint8{0, 1, 1, 2, 1, 2, 2, 3, 1, 2, 2, 3, 2, 3, 3, 4}

// PopCountByte returns the number of set bits in b.
func PopCountByte(b byte) int {
	return int(nibblePopCount[b&0x0F]) + int(nibblePopCount[b>>4])
}

// Bitmap is the in-memory MFT allocation bitmap: one bit per FRS slot, 1
// meaning "in use" (spec.md §4.3).
type Bitmap struct {
	bits       []byte
	validCount int64
}

// NewBitmap allocates a bitmap sized for totalFRS slots.
func NewBitmap(totalFRS int64) *Bitmap {
	return &Bitmap{bits: make([]byte, (totalFRS+7)/8)}
}

// WriteChunk copies a completed bitmap chunk's bytes into place and returns
// the number of set bits it contained, accumulating into ValidRecords.
// byteOffset is the chunk's position within the bitmap, in bytes (i.e.
// VCN*bytesPerCluster relative to the bitmap attribute's start).
func (b *Bitmap) WriteChunk(byteOffset int64, data []byte) int64 {
	end := byteOffset + int64(len(data))
	if end > int64(len(b.bits)) {
		end = int64(len(b.bits))
	}
	n := end - byteOffset
	if n <= 0 {
		return 0
	}
	copy(b.bits[byteOffset:end], data[:n])

	var set int64
	for _, x := range data[:n] {
		set += int64(PopCountByte(x))
	}
	b.validCount += set
	return set
}

// ValidRecords is the running population count (spec.md §4.3 step 1's
// valid_records accumulator).
func (b *Bitmap) ValidRecords() int64 { return b.validCount }

// IsAllocated reports whether FRS slot i is marked in-use.
func (b *Bitmap) IsAllocated(i int64) bool {
	byteIdx := i / 8
	if byteIdx < 0 || byteIdx >= int64(len(b.bits)) {
		return false
	}
	return b.bits[byteIdx]&(1<<uint(i%8)) != 0
}

// SkipRange scans the bitmap for the FRS range [firstFRS, firstFRS+count)
// covered by a data chunk and returns (skipBegin, skipEnd): the count of
// leading and trailing FRS slots that are entirely unallocated, per
// spec.md §4.3 step 2 ("never overlapping with skip_begin... never skip
// more clusters than it contains" — here expressed in FRS-slot units,
// which the caller keeps as-is on the Chunk and converts to a byte count
// using the FRS size).
func (b *Bitmap) SkipRange(firstFRS, count int64) (skipBegin, skipEnd int64) {
	for skipBegin < count && !b.IsAllocated(firstFRS+skipBegin) {
		skipBegin++
	}
	if skipBegin == count {
		return count, 0
	}
	for skipEnd < count-skipBegin && !b.IsAllocated(firstFRS+count-1-skipEnd) {
		skipEnd++
	}
	return skipBegin, skipEnd
}
