// Package index is the in-memory file index of spec.md §3/§4.4–§4.7: the
// bit-packed Key, the append-only Record/LinkInfo/StreamInfo/ChildInfo
// arrays, the Record Parser that populates them from mftio chunks, the
// Preprocessor that rolls up per-directory aggregates, and the path
// renderer and Matcher that together form the Query Engine's substrate.
package index

// Key is the 64-bit bit-packed (record_index, name_info, stream_info,
// sort_index) tuple of spec.md §3, identifying one (file, hardlink,
// stream) tuple — the unit of a search result.
//
// Field widths follow spec.md's Key definition literally: 22 bits of
// record index, 10 bits of name-info index (spec.md: "up to 1023 names"),
// 13 bits of stream-info index (spec.md: "up to 4107 streams"), 9 bits of
// sort index. All-ones in any field means "unspecified at this level";
// Equal ignores the sort_index field, matching spec.md's "Equality ignores
// the sort_index" rule. A 22-bit record-index cap undersizes the "tens of
// millions of records" volumes spec.md §2 otherwise describes; this is
// taken verbatim from spec.md's explicit bit layout rather than silently
// widened.
type Key uint64

const (
	recordIndexBits = 22
	nameInfoBits    = 10
	streamInfoBits  = 13
	sortIndexBits   = 9

	recordIndexShift = 0
	nameInfoShift     = recordIndexShift + recordIndexBits
	streamInfoShift   = nameInfoShift + nameInfoBits
	sortIndexShift    = streamInfoShift + streamInfoBits

	recordIndexMask = uint64(1)<<recordIndexBits - 1
	nameInfoMask    = uint64(1)<<nameInfoBits - 1
	streamInfoMask  = uint64(1)<<streamInfoBits - 1
	sortIndexMask   = uint64(1)<<sortIndexBits - 1
)

// Unspecified is the all-ones sentinel value for any individual Key field.
const Unspecified = ^uint32(0)

// MakeKey packs a (recordIndex, nameInfo, streamInfo, sortIndex) tuple.
// Each argument uses Unspecified (all-ones, truncated to the field's width)
// to mean "wildcard at this level".
func MakeKey(recordIndex, nameInfo, streamInfo, sortIndex uint32) Key {
	r := uint64(recordIndex) & recordIndexMask
	n := uint64(nameInfo) & nameInfoMask
	s := uint64(streamInfo) & streamInfoMask
	o := uint64(sortIndex) & sortIndexMask
	return Key(r<<recordIndexShift | n<<nameInfoShift | s<<streamInfoShift | o<<sortIndexShift)
}

// RecordIndex extracts the 22-bit record-index field.
func (k Key) RecordIndex() uint32 { return uint32(uint64(k)>>recordIndexShift) & uint32(recordIndexMask) }

// NameInfo extracts the 10-bit name-info field.
func (k Key) NameInfo() uint32 { return uint32(uint64(k)>>nameInfoShift) & uint32(nameInfoMask) }

// StreamInfo extracts the 13-bit stream-info field.
func (k Key) StreamInfo() uint32 { return uint32(uint64(k)>>streamInfoShift) & uint32(streamInfoMask) }

// SortIndex extracts the 9-bit sort-index field.
func (k Key) SortIndex() uint32 { return uint32(uint64(k)>>sortIndexShift) & uint32(sortIndexMask) }

// WithSortIndex returns a copy of k with a different sort index, leaving
// the identifying fields untouched — used when materializing sortable
// search results without disturbing Equal-relevant identity.
func (k Key) WithSortIndex(sortIndex uint32) Key {
	return MakeKey(k.RecordIndex(), k.NameInfo(), k.StreamInfo(), sortIndex)
}

// Equal compares two keys ignoring their sort_index fields (spec.md §3:
// "Equality ignores the sort_index").
func (k Key) Equal(other Key) bool {
	const identityMask = recordIndexMask | nameInfoMask<<nameInfoShift | streamInfoMask<<streamInfoShift
	return uint64(k)&identityMask == uint64(other)&identityMask
}

// recordIndexMax/nameInfoMax/streamInfoMax are the largest representable
// field values, i.e. the all-ones sentinel within each field's width.
const (
	recordIndexMax = uint32(recordIndexMask)
	nameInfoMax    = uint32(nameInfoMask)
	streamInfoMax  = uint32(streamInfoMask)
)
