package ntfsfmt

// Run is one decoded mapping-pairs entry: cluster_count clusters starting
// at an LCN, covering [VCN, VCN+ClusterCount) of the attribute. SparseLCN
// is true for a run with no LCN delta applied (a "hole", i.e. a sparse
// region with no backing clusters).
type Run struct {
	VCN          int64
	ClusterCount int64
	LCN          int64
	SparseLCN    bool
}

// DecodeMappingPairs decodes the RLE-encoded VCN/LCN run list of a
// non-resident attribute (spec.md §6: "first byte's low nibble is VCN-delta
// length, high nibble is LCN-delta length (signed), followed by that many
// bytes little-endian; zero byte terminates").
func DecodeMappingPairs(mp []byte, startVCN int64) ([]Run, error) {
	var runs []Run
	vcn := startVCN
	lcn := int64(0)
	pos := 0
	for pos < len(mp) {
		header := mp[pos]
		if header == 0 {
			break
		}
		pos++
		vcnLen := int(header & 0x0F)
		lcnLen := int(header>>4) & 0x0F
		if pos+vcnLen > len(mp) {
			return nil, ErrTruncated
		}
		vcnDelta := decodeSignedLE(mp[pos : pos+vcnLen])
		pos += vcnLen

		sparse := lcnLen == 0
		var lcnDelta int64
		if !sparse {
			if pos+lcnLen > len(mp) {
				return nil, ErrTruncated
			}
			lcnDelta = decodeSignedLE(mp[pos : pos+lcnLen])
			pos += lcnLen
		}

		clusterCount := vcnDelta
		if !sparse {
			lcn += lcnDelta
		}
		runs = append(runs, Run{VCN: vcn, ClusterCount: clusterCount, LCN: lcn, SparseLCN: sparse})
		vcn += clusterCount
	}
	return runs, nil
}

// decodeSignedLE decodes a little-endian two's-complement integer of
// arbitrary byte length (NTFS mapping-pairs deltas are stored in the
// smallest number of bytes that fit, sign-extended from the top bit of the
// last byte).
func decodeSignedLE(b []byte) int64 {
	if len(b) == 0 {
		return 0
	}
	var v int64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | int64(b[i])
	}
	// Sign-extend from the most significant bit of the encoded value.
	signBit := int64(1) << uint(len(b)*8-1)
	if v&signBit != 0 {
		v -= signBit << 1
	}
	return v
}
