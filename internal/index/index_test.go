package index

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/volscan/volscan/internal/ntfsfmt"
)

// encodeOneRun builds a single mapping-pairs run (a 2-byte VCN delta, a
// 2-byte LCN delta, zero-terminated), matching
// ntfsfmt.DecodeMappingPairs's "low nibble VCN-delta length, high nibble
// LCN-delta length" encoding (spec.md §6).
func encodeOneRun(vcnDelta, lcnDelta int64) []byte {
	vb := uint16(vcnDelta)
	lb := uint16(lcnDelta)
	return []byte{0x22, byte(vb), byte(vb >> 8), byte(lb), byte(lb >> 8), 0x00}
}

// putNonResidentAttr writes one non-resident ATTRIBUTE_RECORD_HEADER at
// offset, with its name and mapping pairs, matching the field layout
// ntfsfmt.ParseAttributeHeader decodes.
func putNonResidentAttr(buf []byte, offset int, attrType uint32, attrName []byte, mappingPairs []byte, lowestVCN, highestVCN, allocatedSize, dataSize, initializedSize int64) int {
	const headerLen = 64
	nameOffset := headerLen
	mpOffset := headerLen + len(attrName)
	totalLen := mpOffset + len(mappingPairs)
	if pad := totalLen % 8; pad != 0 {
		totalLen += 8 - pad
	}

	binary.LittleEndian.PutUint32(buf[offset:], attrType)
	binary.LittleEndian.PutUint32(buf[offset+4:], uint32(totalLen))
	buf[offset+8] = 1 // non-resident
	buf[offset+9] = byte(len(attrName) / 2)
	binary.LittleEndian.PutUint16(buf[offset+10:], uint16(nameOffset))
	binary.LittleEndian.PutUint16(buf[offset+12:], 0) // flags
	binary.LittleEndian.PutUint16(buf[offset+14:], 0) // attribute ID
	binary.LittleEndian.PutUint64(buf[offset+16:], uint64(lowestVCN))
	binary.LittleEndian.PutUint64(buf[offset+24:], uint64(highestVCN))
	binary.LittleEndian.PutUint16(buf[offset+32:], uint16(mpOffset))
	binary.LittleEndian.PutUint16(buf[offset+34:], 0) // compression unit
	binary.LittleEndian.PutUint64(buf[offset+40:], uint64(allocatedSize))
	binary.LittleEndian.PutUint64(buf[offset+48:], uint64(dataSize))
	binary.LittleEndian.PutUint64(buf[offset+56:], uint64(initializedSize))
	copy(buf[offset+nameOffset:], attrName)
	copy(buf[offset+mpOffset:], mappingPairs)
	return offset + totalLen
}

func putRecordHeader(buf []byte, flags uint16, firstAttrOffset uint16) {
	copy(buf[0:4], "FILE")
	binary.LittleEndian.PutUint16(buf[16:18], 1) // sequence number
	binary.LittleEndian.PutUint16(buf[18:20], 1) // hard link count
	binary.LittleEndian.PutUint16(buf[20:22], firstAttrOffset)
	binary.LittleEndian.PutUint16(buf[22:24], flags)
	binary.LittleEndian.PutUint64(buf[32:40], 0) // base FRS: this is a base record
}

func finishRecord(buf []byte, offset, recordSize int) {
	binary.LittleEndian.PutUint32(buf[offset:], ntfsfmt.AttrEndMarker)
	offset += 4
	binary.LittleEndian.PutUint32(buf[24:28], uint32(offset))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(recordSize))
}

// buildMFTSelfRecord is FRS 0: $MFT's own record, carrying the non-resident
// $DATA and $BITMAP mapping pairs the Run Planner needs (spec.md §4.2's
// "Read FRS 0 directly; its $DATA and $BITMAP attributes give the run
// lists for the rest of the MFT"). dataRun covers 16 clusters at LCN 2
// (the 16 FRS slots of this minimal volume); bitmapRun covers the single
// cluster at LCN 1 holding their allocation bits.
func buildMFTSelfRecord(recordSize int) []byte {
	buf := make([]byte, recordSize)
	putRecordHeader(buf, ntfsfmt.FRHInUse, 56)

	offset := 56
	offset = putResidentAttr(buf, offset, ntfsfmt.AttrStandardInformation, nil, standardInformationValue(0))
	offset = putResidentAttr(buf, offset, ntfsfmt.AttrFileName, nil, fileNameValue(5, 0x01, "$MFT"))
	offset = putNonResidentAttr(buf, offset, ntfsfmt.AttrData, nil, encodeOneRun(16, 2), 0, 15, 8192, 8192, 8192)
	offset = putNonResidentAttr(buf, offset, ntfsfmt.AttrBitmap, nil, encodeOneRun(1, 1), 0, 0, 512, 2, 2)
	finishRecord(buf, offset, recordSize)
	return buf
}

// buildRootRecord is FRS 5, the volume root: a directory whose own
// $FILE_NAME names itself as its own parent (spec.md §9's cyclic
// self-loop), with a resident $INDEX_ROOT named "$I30" collapsing into the
// directory's primary pseudo-stream (spec.md §3).
func buildRootRecord(recordSize int) []byte {
	buf := make([]byte, recordSize)
	putRecordHeader(buf, ntfsfmt.FRHInUse|ntfsfmt.FRHDirectory, 56)

	offset := 56
	offset = putResidentAttr(buf, offset, ntfsfmt.AttrStandardInformation, nil, standardInformationValue(0x10))
	offset = putResidentAttr(buf, offset, ntfsfmt.AttrFileName, nil, fileNameValue(5, 0x01, "."))
	offset = putResidentAttr(buf, offset, ntfsfmt.AttrIndexRoot, utf16LE("$I30"), []byte{0, 0, 0, 0})
	finishRecord(buf, offset, recordSize)
	return buf
}

// writeMinimalVolume assembles a synthetic whole-volume image covering
// spec.md §8 Scenario 1 ("Minimal volume... only FRSes 0-15"): cluster 0 is
// the boot sector, cluster 1 the MFT bitmap, clusters 2-17 hold FRS 0-15
// (FRS 0 = $MFT, FRS 5 = root, the other 14 are plain files parented at
// root), with 512-byte sectors/clusters/FRS records throughout.
func writeMinimalVolume(t *testing.T) string {
	t.Helper()
	const (
		bytesPerCluster = 512
		bytesPerFRS     = 512
		totalClusters   = 18
	)
	img := make([]byte, totalClusters*bytesPerCluster)

	boot := img[0:bytesPerCluster]
	copy(boot[3:11], "NTFS    ")
	binary.LittleEndian.PutUint16(boot[11:13], 512)
	boot[13] = 1 // sectors per cluster -> 512-byte clusters
	binary.LittleEndian.PutUint64(boot[44:52], totalClusters)
	binary.LittleEndian.PutUint64(boot[52:60], 2) // MFTStartLCN
	binary.LittleEndian.PutUint64(boot[60:68], 1) // MFTMirrorStartLCN (unused by the scan)
	boot[68] = 0xF7                               // -9 -> 512-byte FRS

	bitmap := img[1*bytesPerCluster : 2*bytesPerCluster]
	bitmap[0] = 0xFF
	bitmap[1] = 0xFF // FRS 0-15 allocated

	frsAt := func(frs int) []byte {
		start := (2 + frs) * bytesPerFRS
		return img[start : start+bytesPerFRS]
	}

	copy(frsAt(0), buildMFTSelfRecord(bytesPerFRS))
	copy(frsAt(5), buildRootRecord(bytesPerFRS))
	for frs := 1; frs <= 15; frs++ {
		if frs == 5 {
			continue
		}
		rec := buildFileRecord(t, bytesPerFRS, ntfsfmt.FRHInUse, 0,
			[]ntfsfmt.FileNameAttribute{fn(5, 0x01, fmt.Sprintf("sys%d", frs))},
			[]byte("x"))
		copy(frsAt(frs), rec)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "volume.img")
	if err := os.WriteFile(path, img, 0o644); err != nil {
		t.Fatalf("writing synthetic volume: %v", err)
	}
	return path
}

func TestScanMinimalVolumeProducesSixteenRecordTree(t *testing.T) {
	path := writeMinimalVolume(t)
	ix := New(`C:`)

	if err := ix.Scan(context.Background(), path); err != nil {
		t.Fatalf("Scan() = %v, want nil", err)
	}

	if got := ix.ExpectedRecords(); got < 16 {
		t.Errorf("ExpectedRecords() = %d, want >= 16", got)
	}

	rootIdx, ok := ix.store.RecordIndexForFRS(RootFRS)
	if !ok {
		t.Fatalf("root record (FRS 5) not found after scan")
	}
	primaryIdx, ok := ix.store.FindStream(rootIdx, 0, nil)
	if !ok {
		t.Fatalf("root has no primary stream after scan")
	}
	if got := ix.store.Streams[primaryIdx].Size.Treesize(); got != 16 {
		t.Errorf("root treesize = %d, want 16", got)
	}

	rootKey := MakeKey(rootIdx, Unspecified, Unspecified, 0)
	path16, ok := ix.GetPath(rootKey)
	if !ok {
		t.Fatalf("GetPath(root key) = false, want true")
	}
	if path16 != `C:\` {
		t.Errorf("GetPath(root key) = %q, want %q", path16, `C:\`)
	}
}

func TestScanCancellationStopsWithoutError(t *testing.T) {
	path := writeMinimalVolume(t)
	ix := New(`C:`)
	ix.Cancel()

	if err := ix.Scan(context.Background(), path); err != nil {
		t.Fatalf("Scan() after Cancel() = %v, want nil (cancellation is not an error)", err)
	}

	select {
	case <-ix.FinishedEvent():
	default:
		t.Errorf("FinishedEvent() channel not closed after Scan returned")
	}
	if ix.RecordsSoFar() > ix.ExpectedRecords() {
		t.Errorf("RecordsSoFar() = %d > ExpectedRecords() = %d", ix.RecordsSoFar(), ix.ExpectedRecords())
	}
}
