package index

import (
	"strings"
	"unicode"

	"github.com/volscan/volscan/internal/ntfsfmt"
)

// RootFRS is the well-known FRS number of the volume's root directory
// (spec.md §3: "the root (FRS 5)").
const RootFRS = 5

// dataStreamTypeID is streamTypeID(ntfsfmt.AttrData): the compacted type_id
// a named alternate $DATA stream carries. It is distinct from the
// type_id==0 primary-stream sentinel (record.go's StreamInfo doc comment).
const dataStreamTypeID = uint8(ntfsfmt.AttrData >> 4)

// attrTypeNames maps a compacted StreamInfo.TypeID back to the canonical
// NTFS attribute type name used in a rendered path's stream suffix (spec.md
// §4.6 "Path rendering": "...":"<attribute-type-name>"). All of these
// attribute type codes are multiples of 0x10, so TypeID<<4 recovers the
// original code exactly (streamTypeID's compaction is lossless here).
var attrTypeNames = map[uint8]string{
	uint8(ntfsfmt.AttrStandardInformation >> 4): "$STANDARD_INFORMATION",
	uint8(ntfsfmt.AttrAttributeList >> 4):       "$ATTRIBUTE_LIST",
	uint8(ntfsfmt.AttrFileName >> 4):            "$FILE_NAME",
	uint8(ntfsfmt.AttrObjectID >> 4):            "$OBJECT_ID",
	uint8(ntfsfmt.AttrSecurityDescriptor >> 4):  "$SECURITY_DESCRIPTOR",
	uint8(ntfsfmt.AttrVolumeName >> 4):          "$VOLUME_NAME",
	uint8(ntfsfmt.AttrVolumeInformation >> 4):   "$VOLUME_INFORMATION",
	dataStreamTypeID:                            "$DATA",
	uint8(ntfsfmt.AttrIndexRoot >> 4):           "$INDEX_ROOT",
	uint8(ntfsfmt.AttrIndexAllocation >> 4):     "$INDEX_ALLOCATION",
	uint8(ntfsfmt.AttrBitmap >> 4):              "$BITMAP",
	uint8(ntfsfmt.AttrReparsePoint >> 4):        "$REPARSE_POINT",
	uint8(ntfsfmt.AttrEAInformation >> 4):       "$EA_INFORMATION",
	uint8(ntfsfmt.AttrEA >> 4):                  "$EA",
	uint8(ntfsfmt.AttrPropertySet >> 4):         "$PROPERTY_SET",
	uint8(ntfsfmt.AttrLoggedUtilityStream >> 4): "$LOGGED_UTILITY_STREAM",
}

// GetPath renders the full path a key identifies, grounded on spec.md §4.6's
// ParentIterator contract: "yields, in root-last order, the path
// components: the name at the key's name_info level, a separator,
// successive parents' first-name (name index 0)". rootPath is prefixed
// unchanged (e.g. "C:") and is never itself decoded or re-cased.
//
// Climbing stops the moment a LinkInfo's ParentFRS is RootFRS — per spec.md
// "Root directory's own name is suppressed when matching paths" and the
// boundary behavior "get_path on root (FRS 5) returns the root-path string
// with no stream suffix" — rather than resolving and then discarding the
// root record's own (self-referential) name, which would otherwise loop
// forever (spec.md §9 "Cyclic structures": FRS 5 is its own parent).
func (s *Store) GetPath(key Key, rootPath string) (string, bool) {
	recordIdx := key.RecordIndex()
	if int(recordIdx) >= len(s.Records) {
		return "", false
	}
	rec := &s.Records[recordIdx]

	var sb strings.Builder
	if rec.FRS == RootFRS {
		sb.WriteString(rootPath)
	} else {
		tokens, asciiFlags, ok := s.renderPathTokens(recordIdx, key.NameInfo())
		if !ok {
			return "", false
		}
		sb.WriteString(rootPath)
		if !strings.HasSuffix(rootPath, `\`) {
			sb.WriteString(`\`)
		}
		for i := len(tokens) - 1; i >= 0; i-- {
			sb.WriteString(decodeToken(tokens[i], asciiFlags[i]))
			if i > 0 {
				sb.WriteString(`\`)
			}
		}
	}

	suffix := s.streamSuffix(recordIdx, key.StreamInfo())
	if suffix == "" && rec.Std.IsDirectory() {
		sb.WriteString(`\`)
	}
	sb.WriteString(suffix)

	return sb.String(), true
}

// renderPathTokens walks recordIdx's named link at nameOrdinal and then its
// ancestors' first (ordinal-0) names, root-last, stopping at RootFRS or at
// the first unresolvable ancestor (an orphaned record, rendered as far as
// it can be).
func (s *Store) renderPathTokens(recordIdx, nameOrdinal uint32) (tokens [][]byte, asciiFlags []bool, ok bool) {
	nameGlobalIdx, found := s.NameAtOrdinal(recordIdx, nameOrdinal)
	if !found {
		return nil, nil, false
	}

	li := s.Names[nameGlobalIdx]
	tokens = append(tokens, s.NameBytes(li))
	asciiFlags = append(asciiFlags, li.IsASCII)

	parentFRS := li.ParentFRS
	for parentFRS != RootFRS {
		parentIdx, found := s.RecordIndexForFRS(parentFRS)
		if !found {
			break
		}
		parentNameIdx, found := s.NameAtOrdinal(parentIdx, 0)
		if !found {
			break
		}
		pli := s.Names[parentNameIdx]
		tokens = append(tokens, s.NameBytes(pli))
		asciiFlags = append(asciiFlags, pli.IsASCII)
		parentFRS = pli.ParentFRS
	}
	return tokens, asciiFlags, true
}

// streamSuffix renders the trailing ":name", ":name:$ATTR_TYPE", or
// "::$ATTR_TYPE" a key's stream_info field contributes (spec.md §4.6). An
// unspecified stream_info, or one resolving to the record's primary stream
// (type_id 0), contributes no suffix at all — the plain file or directory
// path.
func (s *Store) streamSuffix(recordIdx uint32, streamOrdinal uint32) string {
	if streamOrdinal == streamInfoMax {
		return ""
	}
	streamGlobalIdx, ok := s.StreamAtOrdinal(recordIdx, streamOrdinal)
	if !ok {
		return ""
	}
	st := s.Streams[streamGlobalIdx]
	if st.TypeID == 0 {
		return ""
	}

	name := decodeToken(s.StreamNameBytes(st), st.IsASCII)
	if st.TypeID == dataStreamTypeID {
		return ":" + name
	}

	typeName := attrTypeNames[st.TypeID]
	if typeName == "" {
		typeName = "$UNKNOWN_ATTRIBUTE"
	}
	if name == "" {
		return "::" + typeName
	}
	return ":" + name + ":" + typeName
}

// decodeToken turns a stored ascii-directional name buffer slice back into
// a displayable string (spec.md §9 "Shared string buffer with mixed
// encodings").
func decodeToken(b []byte, ascii bool) string {
	if ascii {
		return string(b)
	}
	return ntfsfmt.DecodeUTF16LE(b)
}

// CompareNameInsensitive case-insensitively orders two ascii-directional
// name buffers, dispatching across all four combinations of their storage
// encodings (spec.md §9's mixed-encoding comparator: "ASCII×ASCII,
// ASCII×UTF-16, UTF-16×ASCII, UTF-16×UTF-16"). It returns a value <0, 0, or
// >0 as a strings.Compare-style ordering.
func CompareNameInsensitive(a []byte, aASCII bool, b []byte, bASCII bool) int {
	switch {
	case aASCII && bASCII:
		return compareRunes(foldASCIIRunes(a), foldASCIIRunes(b))
	case aASCII && !bASCII:
		return compareRunes(foldASCIIRunes(a), foldUTF16Runes(b))
	case !aASCII && bASCII:
		return compareRunes(foldUTF16Runes(a), foldASCIIRunes(b))
	default:
		return compareRunes(foldUTF16Runes(a), foldUTF16Runes(b))
	}
}

func foldASCIIRunes(b []byte) []rune {
	out := make([]rune, len(b))
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = rune(c)
	}
	return out
}

func foldUTF16Runes(b []byte) []rune {
	decoded := []rune(ntfsfmt.DecodeUTF16LE(b))
	out := make([]rune, len(decoded))
	for i, r := range decoded {
		out[i] = unicode.ToLower(r)
	}
	return out
}

func compareRunes(a, b []rune) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
