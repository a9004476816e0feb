package ntfsfmt

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// RecordHeader is the decoded MULTI_SECTOR_HEADER + FILE_RECORD_SEGMENT_HEADER
// pair at the start of every MFT record.
type RecordHeader struct {
	UpdateSequenceOffset uint16
	UpdateSequenceCount  uint16
	LogFileSequence      uint64
	SequenceNumber       uint16
	HardLinkCount        uint16
	FirstAttributeOffset uint16
	Flags                uint16
	BytesInUse           uint32
	BytesAllocated       uint32
	BaseFileRecordSegment uint64 // low 48 bits FRS, high 16 bits sequence number
	NextAttributeID      uint16
	MFTRecordNumber      uint32 // not decoded by ParseRecordHeader; always 0
}

// InUse reports whether FRH_IN_USE is set.
func (h *RecordHeader) InUse() bool { return h.Flags&FRHInUse != 0 }

// IsDirectory reports whether FRH_DIRECTORY is set.
func (h *RecordHeader) IsDirectory() bool { return h.Flags&FRHDirectory != 0 }

// BaseFRS extracts the 48-bit base FRS number from BaseFileRecordSegment;
// zero means "this record is itself a base record".
func (h *RecordHeader) BaseFRS() uint64 { return h.BaseFileRecordSegment & 0x0000FFFFFFFFFFFF }

// ParseRecordHeader decodes the header of a FILE record in place, without
// applying the multi-sector fixup — callers must call ApplyFixup first on
// the raw buffer that was read off disk.
func ParseRecordHeader(buf []byte) (*RecordHeader, error) {
	c := NewCursor(buf)
	magic, err := c.Next(4)
	if err != nil {
		return nil, err
	}
	if string(magic) != "FILE" {
		return nil, ErrBadMagic
	}

	h := &RecordHeader{}
	if h.UpdateSequenceOffset, err = c.NextUint16(); err != nil {
		return nil, err
	}
	if h.UpdateSequenceCount, err = c.NextUint16(); err != nil {
		return nil, err
	}
	if h.LogFileSequence, err = c.NextUint64(); err != nil {
		return nil, err
	}
	if h.SequenceNumber, err = c.NextUint16(); err != nil {
		return nil, err
	}
	if h.HardLinkCount, err = c.NextUint16(); err != nil {
		return nil, err
	}
	if h.FirstAttributeOffset, err = c.NextUint16(); err != nil {
		return nil, err
	}
	if h.Flags, err = c.NextUint16(); err != nil {
		return nil, err
	}
	if h.BytesInUse, err = c.NextUint32(); err != nil {
		return nil, err
	}
	if h.BytesAllocated, err = c.NextUint32(); err != nil {
		return nil, err
	}
	if h.BaseFileRecordSegment, err = c.NextUint64(); err != nil {
		return nil, err
	}
	if h.NextAttributeID, err = c.NextUint16(); err != nil {
		return nil, err
	}
	return h, nil
}

// ApplyFixup performs the NTFS multi-sector transfer fixup in place: the
// last two bytes of every SectorSize-byte sector are replaced with the
// corresponding entry from the update sequence array, after verifying the
// stored trailer bytes matched the update sequence number. recordSize is
// the allocated size of the record (BytesAllocated); buf must be at least
// that long.
func ApplyFixup(buf []byte, recordSize int) error {
	if len(buf) < recordSize {
		return ErrTruncated
	}
	c := NewCursor(buf)
	c.SetOffset(4)
	usaOffset, err := c.NextUint16()
	if err != nil {
		return err
	}
	usaCount, err := c.NextUint16()
	if err != nil {
		return err
	}
	if usaCount == 0 {
		return nil
	}

	usaBytes, err := NewCursor(buf).BytesAt(int(usaOffset), int(usaCount)*2)
	if err != nil {
		return err
	}
	updateSeqNumber := binary.LittleEndian.Uint16(usaBytes[0:2])
	entries := usaBytes[2:]

	numSectors := int(usaCount) - 1
	for i := 0; i < numSectors; i++ {
		sectorEnd := (i+1)*SectorSize - 2
		if sectorEnd+2 > len(buf) {
			return ErrTruncated
		}
		stored := binary.LittleEndian.Uint16(buf[sectorEnd : sectorEnd+2])
		if stored != updateSeqNumber {
			return ErrFixupMismatch
		}
		if i*2+2 > len(entries) {
			return ErrTruncated
		}
		copy(buf[sectorEnd:sectorEnd+2], entries[i*2:i*2+2])
	}
	return nil
}

// BytesAt returns n bytes at an absolute offset without disturbing the
// cursor's sequential position.
func (c *Cursor) BytesAt(offset, n int) ([]byte, error) {
	if offset < 0 || n < 0 || offset+n > len(c.buf) {
		return nil, ErrTruncated
	}
	return c.buf[offset : offset+n], nil
}

// AttributeHeader is the decoded common prefix of ATTRIBUTE_RECORD_HEADER,
// valid for both resident and non-resident attributes.
type AttributeHeader struct {
	Type           uint32
	Length         uint32
	NonResident    bool
	NameLength     uint8
	NameOffset     uint16
	Flags          uint16
	AttributeID    uint16

	// Resident fields.
	ResidentValueLength uint32
	ResidentValueOffset uint16

	// Non-resident fields.
	LowestVCN           int64
	HighestVCN          int64
	MappingPairsOffset  uint16
	CompressionUnit     uint16
	AllocatedSize       int64
	DataSize            int64
	InitializedSize     int64
	CompressedSize      int64 // only valid if CompressionUnit != 0

	raw []byte // the attribute record's own bytes, for Name()/MappingPairs() access
}

// IsSparse reports the 0x8000 sparse flag.
func (a *AttributeHeader) IsSparse() bool { return a.Flags&AttrFlagSparse != 0 }

// IsCompressed reports whether a non-zero compression unit marks this
// stream as compressed.
func (a *AttributeHeader) IsCompressed() bool { return a.NonResident && a.CompressionUnit != 0 }

// Name returns the attribute's name (e.g. an alternate data stream's name,
// or "$I30") decoded as UTF-16LE, or "" if unnamed.
func (a *AttributeHeader) Name() (string, error) {
	if a.NameLength == 0 {
		return "", nil
	}
	b, err := (&Cursor{buf: a.raw}).BytesAt(int(a.NameOffset), int(a.NameLength)*2)
	if err != nil {
		return "", err
	}
	return decodeUTF16LE(b), nil
}

// MappingPairs returns the raw mapping-pairs byte stream of a non-resident
// attribute.
func (a *AttributeHeader) MappingPairs() ([]byte, error) {
	if !a.NonResident {
		return nil, errors.New("ntfsfmt: attribute is resident")
	}
	return (&Cursor{buf: a.raw}).BytesAt(int(a.MappingPairsOffset), len(a.raw)-int(a.MappingPairsOffset))
}

// ResidentValue returns the resident value bytes.
func (a *AttributeHeader) ResidentValue() ([]byte, error) {
	if a.NonResident {
		return nil, errors.New("ntfsfmt: attribute is non-resident")
	}
	return (&Cursor{buf: a.raw}).BytesAt(int(a.ResidentValueOffset), int(a.ResidentValueLength))
}

// ParseAttributeHeader decodes one ATTRIBUTE_RECORD_HEADER starting at
// offset 0 of attr (callers slice the record buffer to the attribute's
// start first). When Type == AttrEndMarker it returns a header with only
// Type set and a nil error.
func ParseAttributeHeader(attr []byte) (*AttributeHeader, error) {
	c := NewCursor(attr)
	typ, err := c.NextUint32()
	if err != nil {
		return nil, err
	}
	if typ == AttrEndMarker {
		return &AttributeHeader{Type: typ}, nil
	}

	a := &AttributeHeader{Type: typ, raw: attr}
	if a.Length, err = c.NextUint32(); err != nil {
		return nil, err
	}
	nr, err := c.NextUint8()
	if err != nil {
		return nil, err
	}
	a.NonResident = nr != 0
	if a.NameLength, err = c.NextUint8(); err != nil {
		return nil, err
	}
	if a.NameOffset, err = c.NextUint16(); err != nil {
		return nil, err
	}
	if a.Flags, err = c.NextUint16(); err != nil {
		return nil, err
	}
	if a.AttributeID, err = c.NextUint16(); err != nil {
		return nil, err
	}

	if !a.NonResident {
		if a.ResidentValueLength, err = c.NextUint32(); err != nil {
			return nil, err
		}
		if a.ResidentValueOffset, err = c.NextUint16(); err != nil {
			return nil, err
		}
		return a, nil
	}

	if a.LowestVCN, err = c.NextInt64(); err != nil {
		return nil, err
	}
	if a.HighestVCN, err = c.NextInt64(); err != nil {
		return nil, err
	}
	if a.MappingPairsOffset, err = c.NextUint16(); err != nil {
		return nil, err
	}
	if a.CompressionUnit, err = c.NextUint16(); err != nil {
		return nil, err
	}
	c.SetOffset(c.Offset() + 4) // 4 reserved bytes
	allocSize, err := c.NextUint64()
	if err != nil {
		return nil, err
	}
	a.AllocatedSize = int64(allocSize)
	dataSize, err := c.NextUint64()
	if err != nil {
		return nil, err
	}
	a.DataSize = int64(dataSize)
	initSize, err := c.NextUint64()
	if err != nil {
		return nil, err
	}
	a.InitializedSize = int64(initSize)
	if a.CompressionUnit != 0 {
		compSize, err := c.NextUint64()
		if err != nil {
			return nil, err
		}
		a.CompressedSize = int64(compSize)
	}
	return a, nil
}

// StandardInformation is the decoded resident value of $STANDARD_INFORMATION.
type StandardInformation struct {
	CreationTime       uint64
	LastModifiedTime   uint64
	LastMFTChangeTime  uint64
	LastAccessTime     uint64
	FileAttributes     uint32
}

// ParseStandardInformation decodes a $STANDARD_INFORMATION resident value.
func ParseStandardInformation(val []byte) (*StandardInformation, error) {
	c := NewCursor(val)
	si := &StandardInformation{}
	var err error
	if si.CreationTime, err = c.NextUint64(); err != nil {
		return nil, err
	}
	if si.LastModifiedTime, err = c.NextUint64(); err != nil {
		return nil, err
	}
	if si.LastMFTChangeTime, err = c.NextUint64(); err != nil {
		return nil, err
	}
	if si.LastAccessTime, err = c.NextUint64(); err != nil {
		return nil, err
	}
	if si.FileAttributes, err = c.NextUint32(); err != nil {
		return nil, err
	}
	return si, nil
}

// FileNameAttribute is the decoded resident value of $FILE_NAME.
type FileNameAttribute struct {
	ParentDirectory uint64 // low 48 bits FRS, high 16 bits sequence number
	AllocatedSize   int64
	RealSize        int64
	Flags           uint32
	Namespace       uint8
	Name            string
	NameIsASCII     bool
}

// ParentFRS extracts the 48-bit parent FRS number.
func (f *FileNameAttribute) ParentFRS() uint64 { return f.ParentDirectory & 0x0000FFFFFFFFFFFF }

// ParseFileNameAttribute decodes a $FILE_NAME resident value.
func ParseFileNameAttribute(val []byte) (*FileNameAttribute, error) {
	c := NewCursor(val)
	f := &FileNameAttribute{}
	var err error
	if f.ParentDirectory, err = c.NextUint64(); err != nil {
		return nil, err
	}
	c.SetOffset(c.Offset() + 32) // creation, modification, MFT-change and access times, unused here
	allocSize, err := c.NextUint64()
	if err != nil {
		return nil, err
	}
	f.AllocatedSize = int64(allocSize)
	realSize, err := c.NextUint64()
	if err != nil {
		return nil, err
	}
	f.RealSize = int64(realSize)
	if f.Flags, err = c.NextUint32(); err != nil {
		return nil, err
	}
	c.SetOffset(c.Offset() + 4) // reparse tag / EA size union, unused here
	nameLen, err := c.NextUint8()
	if err != nil {
		return nil, err
	}
	if f.Namespace, err = c.NextUint8(); err != nil {
		return nil, err
	}
	nameBytes, err := c.Next(int(nameLen) * 2)
	if err != nil {
		return nil, err
	}
	f.Name, f.NameIsASCII = decodeUTF16LEAsciiDirectional(nameBytes)
	return f, nil
}

// decodeUTF16LE decodes a little-endian UTF-16 byte slice to a Go string,
// for attribute/stream names where code points outside the BMP are not a
// practical concern.
func decodeUTF16LE(b []byte) string {
	s, _ := decodeUTF16LEAsciiDirectional(b)
	return s
}

// DecodeUTF16LE is decodeUTF16LE exported for callers (internal/index's path
// renderer) that need to turn a stored ascii-directional name buffer's
// non-ASCII half back into a displayable string.
func DecodeUTF16LE(b []byte) string {
	return decodeUTF16LE(b)
}

// decodeUTF16LEAsciiDirectional decodes UTF-16LE bytes and additionally
// reports whether every code unit fit in 7-bit ASCII, mirroring the
// ascii-directional storage scheme used by the in-memory name buffer
// (internal/index).
func decodeUTF16LEAsciiDirectional(b []byte) (string, bool) {
	n := len(b) / 2
	runes := make([]uint16, n)
	ascii := true
	for i := 0; i < n; i++ {
		u := binary.LittleEndian.Uint16(b[i*2:])
		runes[i] = u
		if u > 0x7F {
			ascii = false
		}
	}
	return string(utf16Decode(runes)), ascii
}

func utf16Decode(s []uint16) []rune {
	out := make([]rune, 0, len(s))
	for i := 0; i < len(s); i++ {
		r := rune(s[i])
		if r >= 0xD800 && r <= 0xDBFF && i+1 < len(s) {
			r2 := rune(s[i+1])
			if r2 >= 0xDC00 && r2 <= 0xDFFF {
				out = append(out, ((r-0xD800)<<10|(r2-0xDC00))+0x10000)
				i++
				continue
			}
		}
		out = append(out, r)
	}
	return out
}
