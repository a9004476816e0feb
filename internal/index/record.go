package index

// Sentinel marks the end of an intrusive singly-linked list built from
// slice indices (spec.md §9 "Intrusive lists via indices... Sentinel is
// all-ones").
const Sentinel = ^uint32(0)

// LinkInfo is one hard-link name (spec.md §3 "Name (hard link)"): a
// (parent_frs, name bytes, ascii?) tuple, with Next chaining to the
// record's previous name (names are grown head-first, spec.md §4.4
// "Merging hardlinks").
type LinkInfo struct {
	ParentFRS  uint64
	NameOffset uint32
	NameLength uint16
	IsASCII    bool
	Next       uint32
}

// StreamInfo is one named data stream or attribute of interest (spec.md §3
// "Stream"), grounded on original_source/core/ntfs_record_types.hpp's
// StreamInfo : SizeInfo layout (is_sparse:1,
// is_allocated_size_accounted_for_in_main_stream:1, type_name_id:6).
// TypeID 0 denotes the record's primary stream: the directory's collapsed
// $I30 pseudo-stream, or a file's unnamed $DATA stream (spec.md §3: "The
// primary $DATA stream (if present) has an empty name and type_id == 0").
type StreamInfo struct {
	NameOffset                          uint32
	NameLength                          uint16
	IsASCII                             bool
	TypeID                              uint8
	IsSparse                            bool
	AllocatedAccountedInMainStream bool
	Size                                 SizeInfo
	Next                                 uint32
}

// ChildInfo is one (child_frs, name_index_within_child) entry in a
// directory's child list (spec.md §3 "Child link"). NameIndexWithinChild
// holds the global index into Store.Names of the specific LinkInfo this
// child link was created from; callers needing the per-record local
// ordinal spec.md's Key.name_info field expects (a 0-based position within
// the child record's own name chain, sized to fit 10 bits) resolve it with
// Store.LocalNameOrdinal, since that ordinal is only meaningful once
// population has finished and the chain order is final.
type ChildInfo struct {
	ChildRecordIndex     uint32
	NameIndexWithinChild uint32
	Next                 uint32
}

// Record is one logical file (spec.md §3 "Record").
type Record struct {
	FRS          uint64
	Std          StandardInfo
	NameCount    uint16
	StreamCount  uint16
	FirstName    uint32
	FirstStream  uint32
	FirstChild   uint32
}

// Store is the append-only collection of Records/Names/Streams/Children
// plus the shared ascii-directional name buffer (spec.md §3's Lifecycle:
// "Records, names, streams, and child links are append-only during
// population; they are never relocated or removed").
type Store struct {
	Records  []Record
	Names    []LinkInfo
	Streams  []StreamInfo
	Children []ChildInfo
	NameBuf  []byte

	frsToRecord []uint32 // sparse vector: frsToRecord[frs] = record index, or Sentinel
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Reserve pre-sizes the Records slice to n entries, per spec.md §4.3 step 1
// ("Calls index.reserve(valid_records) so subsequent parsing does not
// reallocate").
func (s *Store) Reserve(n int) {
	if cap(s.Records) < n {
		grown := make([]Record, len(s.Records), n)
		copy(grown, s.Records)
		s.Records = grown
	}
}

// RecordIndexForFRS returns the dense record index for frs, and whether one
// exists.
func (s *Store) RecordIndexForFRS(frs uint64) (uint32, bool) {
	if frs >= uint64(len(s.frsToRecord)) {
		return 0, false
	}
	idx := s.frsToRecord[frs]
	return idx, idx != Sentinel
}

// EnsureRecord returns the dense record index for frs, creating a new,
// zero-valued Record (with FRS set) if one does not already exist. This is
// the single path by which new FRS numbers become indexable, keeping the
// frs->record_index table "strictly bijective over allocated FRSes" per
// spec.md §8.
func (s *Store) EnsureRecord(frs uint64) uint32 {
	if idx, ok := s.RecordIndexForFRS(frs); ok {
		return idx
	}
	if frs >= uint64(len(s.frsToRecord)) {
		grown := make([]uint32, frs+1)
		for i := range grown {
			grown[i] = Sentinel
		}
		copy(grown, s.frsToRecord)
		s.frsToRecord = grown
	}
	idx := uint32(len(s.Records))
	s.Records = append(s.Records, Record{
		FRS:         frs,
		FirstName:   Sentinel,
		FirstStream: Sentinel,
		FirstChild:  Sentinel,
	})
	s.frsToRecord[frs] = idx
	return idx
}

// AppendName writes name's bytes into the shared ascii-directional buffer
// and pushes a new LinkInfo onto the head of the record's name list,
// returning the new name's index (spec.md §4.4 "Merging hardlinks": "the
// old head LinkInfo onto the shared name-info vector and replaces the
// record's embedded head").
func (s *Store) AppendName(recordIdx uint32, parentFRS uint64, nameBytes []byte, ascii bool) uint32 {
	offset := uint32(len(s.NameBuf))
	s.NameBuf = append(s.NameBuf, nameBytes...)

	newIdx := uint32(len(s.Names))
	rec := &s.Records[recordIdx]
	s.Names = append(s.Names, LinkInfo{
		ParentFRS:  parentFRS,
		NameOffset: offset,
		NameLength: uint16(len(nameBytes)),
		IsASCII:    ascii,
		Next:       rec.FirstName,
	})
	rec.FirstName = newIdx
	rec.NameCount++
	return newIdx
}

// NameBytes returns the raw stored bytes of a name (ASCII bytes, or
// UTF-16LE bytes if !IsASCII — spec.md §3/§9's "ascii-directional" shared
// buffer).
func (s *Store) NameBytes(l LinkInfo) []byte {
	return s.NameBuf[l.NameOffset : l.NameOffset+uint32(l.NameLength)]
}

// StreamNameBytes returns the raw stored bytes of a stream's name.
func (s *Store) StreamNameBytes(st StreamInfo) []byte {
	return s.NameBuf[st.NameOffset : st.NameOffset+uint32(st.NameLength)]
}

// AppendStream pushes a new StreamInfo onto the head of a record's stream
// list.
func (s *Store) AppendStream(recordIdx uint32, st StreamInfo) uint32 {
	rec := &s.Records[recordIdx]
	st.Next = rec.FirstStream
	newIdx := uint32(len(s.Streams))
	s.Streams = append(s.Streams, st)
	rec.FirstStream = newIdx
	rec.StreamCount++
	return newIdx
}

// AppendChild pushes a new ChildInfo onto the head of a parent record's
// child list (spec.md §3 "Child link").
func (s *Store) AppendChild(parentIdx, childRecordIdx, nameIndexWithinChild uint32) uint32 {
	rec := &s.Records[parentIdx]
	newIdx := uint32(len(s.Children))
	s.Children = append(s.Children, ChildInfo{
		ChildRecordIndex:     childRecordIdx,
		NameIndexWithinChild: nameIndexWithinChild,
		Next:                 rec.FirstChild,
	})
	rec.FirstChild = newIdx
	return newIdx
}

// FindStream locates an existing stream on a record with the given
// (typeID, name) pair, returning its index, for spec.md §4.4's "if a
// stream with the same (type_id, name) already exists on this record,
// merge lengths into it; otherwise, allocate a new StreamInfo".
func (s *Store) FindStream(recordIdx uint32, typeID uint8, name []byte) (uint32, bool) {
	for i := s.Records[recordIdx].FirstStream; i != Sentinel; i = s.Streams[i].Next {
		st := s.Streams[i]
		if st.TypeID != typeID {
			continue
		}
		if bytesEqual(s.StreamNameBytes(st), name) {
			return i, true
		}
	}
	return 0, false
}

// LocalNameOrdinal walks recordIdx's name chain from the head, returning
// the 0-based position at which globalNameIdx occurs. Used to resolve a
// ChildInfo's stored global Names index (or any LinkInfo reference) into
// the per-record-local ordinal that Key.NameInfo expects.
func (s *Store) LocalNameOrdinal(recordIdx, globalNameIdx uint32) (uint32, bool) {
	var ordinal uint32
	for i := s.Records[recordIdx].FirstName; i != Sentinel; i = s.Names[i].Next {
		if i == globalNameIdx {
			return ordinal, true
		}
		ordinal++
	}
	return 0, false
}

// LocalStreamOrdinal is LocalNameOrdinal's analogue for a record's stream
// chain.
func (s *Store) LocalStreamOrdinal(recordIdx, globalStreamIdx uint32) (uint32, bool) {
	var ordinal uint32
	for i := s.Records[recordIdx].FirstStream; i != Sentinel; i = s.Streams[i].Next {
		if i == globalStreamIdx {
			return ordinal, true
		}
		ordinal++
	}
	return 0, false
}

// NameAtOrdinal returns the global Names index at local position ordinal
// within recordIdx's name chain.
func (s *Store) NameAtOrdinal(recordIdx, ordinal uint32) (uint32, bool) {
	var i uint32 = s.Records[recordIdx].FirstName
	for n := uint32(0); i != Sentinel; n++ {
		if n == ordinal {
			return i, true
		}
		i = s.Names[i].Next
	}
	return 0, false
}

// StreamAtOrdinal is NameAtOrdinal's analogue for streams.
func (s *Store) StreamAtOrdinal(recordIdx, ordinal uint32) (uint32, bool) {
	var i uint32 = s.Records[recordIdx].FirstStream
	for n := uint32(0); i != Sentinel; n++ {
		if n == ordinal {
			return i, true
		}
		i = s.Streams[i].Next
	}
	return 0, false
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
