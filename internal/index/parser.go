package index

import (
	"sync"

	"github.com/volscan/volscan/internal/applog"
	"github.com/volscan/volscan/internal/metrics"
	"github.com/volscan/volscan/internal/ntfsfmt"
)

// streamI30 is the name NTFS gives a directory's index attribute; all
// three of its possible attribute types (spec.md §4.4) collapse into one
// synthetic, name-less, type_id==0 pseudo-stream per record.
const streamI30 = "$I30"

// wofCompressedDataStreamName is the alternate-data-stream name the
// Windows Overlay Filter uses for its compressed backing data (spec.md
// §4.5 "Compression reparse point merge").
const wofCompressedDataStreamName = "WofCompressedData"

// Parser decodes FILE records from raw MFT chunk buffers into a Store,
// implementing spec.md §4.4. Parsing mutates the shared Store, so
// ParseChunk and RecordsSoFarAtomic take the mutex below themselves:
// concurrent ParseChunk calls on one Parser run one at a time, as the
// original serializes parse completions on the Index's reentrant mutex.
type Parser struct {
	Store *Store

	BytesPerFRS     int64
	BytesPerCluster int64

	// MFT zone extents in LCN units; non-resident runs intersecting this
	// range are subtracted from ReservedClusters (spec.md §4.4's "for any
	// run that intersects the MFT zone, subtract the intersection from
	// reserved_clusters"). Scan always sets these equal (a zero-width
	// zone), so the subtraction never actually fires — spec.md §11's "MFT
	// zone quirk": the intersection term is suppressed by construction,
	// not computed and then discarded.
	MFTZoneStartLCN int64
	MFTZoneEndLCN   int64

	ReservedClusters int64
	RecordsSoFar     int64

	// Metrics, if non-nil, is observed for every chunk and record this
	// Parser processes (spec.md §7's records-parsed/corrupt/bytes-read
	// counters). Nil is a valid zero value: metrics collection is
	// optional.
	Metrics *metrics.Metrics

	mu sync.Mutex
}

// RecordsSoFarAtomic returns RecordsSoFar under the parser's lock, for
// progress reporting from a goroutine other than the one calling
// ParseChunk (spec.md §6 "records_so_far()").
func (p *Parser) RecordsSoFarAtomic() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.RecordsSoFar
}

// ParseChunk decodes every candidate FRS slot in buf, a buffer of N
// FRS-sized records starting at chunkFirstFRS (spec.md §4.4's top-level
// contract). A corrupt record is logged at Warn, counted in Metrics when
// set, and skipped; a slot whose record is not in use is skipped without a
// log line. Scanning continues either way (spec.md §7 "corrupt-record...
// the single record is skipped; scan continues").
func (p *Parser) ParseChunk(chunkFirstFRS uint64, buf []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Metrics != nil {
		p.Metrics.BytesRead.Add(float64(len(buf)))
	}

	n := int64(len(buf)) / p.BytesPerFRS
	for i := int64(0); i < n; i++ {
		frs := chunkFirstFRS + uint64(i)
		rec := buf[i*p.BytesPerFRS : (i+1)*p.BytesPerFRS]
		p.parseOneRecord(frs, rec)
		p.RecordsSoFar++
	}
}

// recordCorrupt logs and counts one corrupt-record event (spec.md §7:
// "corrupt-record events are logged at Warn with the offending FRS and
// continue the scan"; spec.md's corrupt-record edge case names magic
// mismatch, fixup mismatch, and attribute overrun as its three causes).
func (p *Parser) recordCorrupt(frs uint64, reason string) {
	applog.WithFields(applog.Fields{"frs": frs, "reason": reason}).Warn("index: corrupt record, skipping")
	if p.Metrics != nil {
		p.Metrics.RecordsCorrupt.Inc()
	}
}

func (p *Parser) parseOneRecord(frs uint64, rec []byte) {
	h, err := ntfsfmt.ParseRecordHeader(rec)
	if err != nil {
		p.recordCorrupt(frs, "bad magic")
		return
	}
	if err := ntfsfmt.ApplyFixup(rec, int(h.BytesAllocated)); err != nil {
		p.recordCorrupt(frs, "fixup mismatch")
		return
	}
	if !h.InUse() {
		return
	}

	baseFRS := h.BaseFRS()
	if baseFRS == 0 {
		baseFRS = frs
	}
	recordIdx := p.Store.EnsureRecord(baseFRS)

	corrupt := false
	offset := int(h.FirstAttributeOffset)
	for offset >= 0 && offset+4 <= len(rec) {
		attr, err := ntfsfmt.ParseAttributeHeader(rec[offset:])
		if err != nil {
			p.recordCorrupt(frs, "attribute overruns record")
			corrupt = true
			break
		}
		if attr.Type == ntfsfmt.AttrEndMarker {
			break
		}
		if attr.Length == 0 {
			p.recordCorrupt(frs, "attribute overruns record")
			corrupt = true
			break // malformed: would loop forever
		}
		p.parseAttribute(recordIdx, h, attr)
		offset += int(attr.Length)
	}

	if !corrupt && p.Metrics != nil {
		p.Metrics.RecordsParsed.Inc()
	}
}

func (p *Parser) parseAttribute(recordIdx uint32, h *ntfsfmt.RecordHeader, attr *ntfsfmt.AttributeHeader) {
	switch {
	case attr.Type == ntfsfmt.AttrStandardInformation && !attr.NonResident:
		p.parseStandardInformation(recordIdx, h, attr)
	case attr.Type == ntfsfmt.AttrFileName && !attr.NonResident:
		p.parseFileName(recordIdx, attr)
	case attr.NonResident:
		p.accountNonResident(attr)
		if attr.LowestVCN == 0 {
			p.classifyStream(recordIdx, attr)
		}
	default:
		if attr.LowestVCN == 0 {
			p.classifyStream(recordIdx, attr)
		}
	}
}

func (p *Parser) parseStandardInformation(recordIdx uint32, h *ntfsfmt.RecordHeader, attr *ntfsfmt.AttributeHeader) {
	val, err := attr.ResidentValue()
	if err != nil {
		return
	}
	si, err := ntfsfmt.ParseStandardInformation(val)
	if err != nil {
		return
	}
	std := StandardInfoFromNTFS(si)
	if h.IsDirectory() {
		std.SetDirectory()
	}
	p.Store.Records[recordIdx].Std = std
}

func (p *Parser) parseFileName(recordIdx uint32, attr *ntfsfmt.AttributeHeader) {
	val, err := attr.ResidentValue()
	if err != nil {
		return
	}
	fn, err := ntfsfmt.ParseFileNameAttribute(val)
	if err != nil {
		return
	}
	if fn.Namespace == ntfsfmt.NamespaceDOS {
		return // DOS-short name: ignored (spec.md §3, §4.4, §6)
	}

	nameBytes := encodeNameBytes(fn.Name, fn.NameIsASCII)
	nameIdx := p.Store.AppendName(recordIdx, fn.ParentFRS(), nameBytes, fn.NameIsASCII)

	parentIdx := p.Store.EnsureRecord(fn.ParentFRS())
	p.Store.AppendChild(parentIdx, recordIdx, nameIdx)
}

// encodeNameBytes re-encodes a decoded name back into the ascii-directional
// storage scheme (spec.md §3, §9): ASCII names as raw bytes, non-ASCII
// names as UTF-16LE code units.
func encodeNameBytes(name string, ascii bool) []byte {
	if ascii {
		return []byte(name)
	}
	runes := []rune(name)
	out := make([]byte, 0, len(runes)*2)
	for _, r := range runes {
		if r > 0xFFFF {
			// Outside the BMP: encode as a UTF-16 surrogate pair.
			r -= 0x10000
			hi := uint16(0xD800 + (r >> 10))
			lo := uint16(0xDC00 + (r & 0x3FF))
			out = append(out, byte(hi), byte(hi>>8), byte(lo), byte(lo>>8))
			continue
		}
		u := uint16(r)
		out = append(out, byte(u), byte(u>>8))
	}
	return out
}

func (p *Parser) accountNonResident(attr *ntfsfmt.AttributeHeader) {
	mp, err := attr.MappingPairs()
	if err != nil {
		return
	}
	runs, err := ntfsfmt.DecodeMappingPairs(mp, attr.LowestVCN)
	if err != nil {
		return
	}
	for _, r := range runs {
		if r.SparseLCN {
			continue
		}
		intersect := intersectLCNRange(r.LCN, r.LCN+r.ClusterCount, p.MFTZoneStartLCN, p.MFTZoneEndLCN)
		if intersect <= 0 {
			continue
		}
		// MFTZoneStartLCN/MFTZoneEndLCN are pinned equal by Scan (spec.md
		// §11 "MFT zone quirk"), so intersect is always 0 in practice;
		// the floor below is a defensive backstop, not a load-bearing
		// path, in case a future caller ever supplies a real zone range.
		p.ReservedClusters -= intersect
		if p.ReservedClusters < 0 {
			p.ReservedClusters = 0
		}
	}
}

func intersectLCNRange(aStart, aEnd, bStart, bEnd int64) int64 {
	lo := aStart
	if bStart > lo {
		lo = bStart
	}
	hi := aEnd
	if bEnd < hi {
		hi = bEnd
	}
	if hi > lo {
		return hi - lo
	}
	return 0
}

func (p *Parser) classifyStream(recordIdx uint32, attr *ntfsfmt.AttributeHeader) {
	name, err := attr.Name()
	if err != nil {
		return
	}

	isI30 := false
	switch attr.Type {
	case ntfsfmt.AttrBitmap, ntfsfmt.AttrIndexRoot, ntfsfmt.AttrIndexAllocation:
		if name == streamI30 {
			isI30 = true
		}
	}

	var length, allocated int64
	var sparse bool
	if attr.NonResident {
		sparse = attr.IsSparse()
		length = attr.DataSize
		allocated = attr.AllocatedSize
		if attr.IsCompressed() {
			allocated = attr.CompressedSize
		}
		// $BadClus / FRS 8's $Bad::$DATA: a documented approximation
		// carried forward from the original implementation (spec.md §4.4,
		// §9 Open Questions: "acknowledged in comments as still wrong").
		if attr.Type == ntfsfmt.AttrData && name == "$Bad" && p.Store.Records[recordIdx].FRS == 8 {
			length = attr.InitializedSize
		}
	} else {
		val, _ := attr.ResidentValue()
		length = int64(len(val))
		allocated = length
	}

	var streamName string
	var typeIDEffective uint8
	switch {
	case isI30:
		// A directory's $I30 index collapses into its primary pseudo-stream.
		streamName = ""
		typeIDEffective = 0
	case attr.Type == ntfsfmt.AttrData && name == "":
		// A file's unnamed $DATA is its primary stream (spec.md §3: "The
		// primary $DATA stream (if present) has an empty name and
		// type_id == 0"), sharing type_id 0 with the directory case above
		// so callers can locate "the" primary stream uniformly.
		streamName = ""
		typeIDEffective = 0
	default:
		streamName = name
		typeIDEffective = streamTypeID(attr.Type)
	}

	nameBytes, ascii := []byte(streamName), isASCIIString(streamName)
	if existing, ok := p.Store.FindStream(recordIdx, typeIDEffective, nameBytes); ok {
		st := &p.Store.Streams[existing]
		st.Size = st.Size.Add(NewSizeInfo(length, allocated, 0, 0))
		if sparse {
			st.IsSparse = true
		}
		return
	}

	encoded := encodeNameBytes(streamName, ascii)
	offset := uint32(len(p.Store.NameBuf))
	p.Store.NameBuf = append(p.Store.NameBuf, encoded...)
	p.Store.AppendStream(recordIdx, StreamInfo{
		NameOffset: offset,
		NameLength: uint16(len(encoded)),
		IsASCII:    ascii,
		TypeID:     typeIDEffective,
		IsSparse:   sparse,
		Size:       NewSizeInfo(length, allocated, 0, 0),
	})
}

// streamTypeID compacts an NTFS attribute type code (e.g. 0x80 for $DATA)
// into the small integer the bit-packed StreamInfo carries, preserving
// distinctness across the attribute types this parser classifies.
func streamTypeID(attrType uint32) uint8 {
	return uint8(attrType >> 4)
}

func isASCIIString(s string) bool {
	for _, r := range s {
		if r > 0x7F {
			return false
		}
	}
	return true
}
