// Package ntfsfmt decodes the on-disk NTFS structures volscan needs to read
// the Master File Table directly off a raw block device: the boot sector
// (for volume geometry), FILE_RECORD_SEGMENT_HEADER and its multi-sector
// fixup, ATTRIBUTE_RECORD_HEADER, STANDARD_INFORMATION, FILENAME_INFORMATION,
// and non-resident mapping pairs.
//
// Every Parse method here follows the cursor-based decode idiom: a small
// reader type tracks an offset into a byte slice and exposes typed accessors,
// the same shape used for binary on-disk formats throughout this codebase's
// lineage. There is no reflection and no external binary-decoding library —
// NTFS's bitfields and little-endian packed structures are decoded by hand.
package ntfsfmt

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrBadMagic is returned when a purported FILE record does not start with
// the 4-byte "FILE" signature.
var ErrBadMagic = errors.New("ntfsfmt: bad FILE record magic")

// ErrFixupMismatch is returned when a sector's stored update-sequence bytes
// do not match the corresponding entry in the record's update-sequence array.
var ErrFixupMismatch = errors.New("ntfsfmt: multi-sector fixup mismatch")

// ErrTruncated is returned when a structure runs past the end of the buffer
// supplied to it.
var ErrTruncated = errors.New("ntfsfmt: truncated record")

// SectorSize is the fixed sector size multi-sector fixups operate on. NTFS
// defines this independently of the volume's bytes-per-sector; every
// implementation in practice uses 512.
const SectorSize = 512

// Attribute type codes, in the order they appear in a FILE record.
const (
	AttrStandardInformation uint32 = 0x10
	AttrAttributeList       uint32 = 0x20
	AttrFileName            uint32 = 0x30
	AttrObjectID            uint32 = 0x40
	AttrSecurityDescriptor  uint32 = 0x50
	AttrVolumeName          uint32 = 0x60
	AttrVolumeInformation   uint32 = 0x70
	AttrData                uint32 = 0x80
	AttrIndexRoot           uint32 = 0x90
	AttrIndexAllocation     uint32 = 0xA0
	AttrBitmap              uint32 = 0xB0
	AttrReparsePoint        uint32 = 0xC0
	AttrEAInformation       uint32 = 0xD0
	AttrEA                  uint32 = 0xE0
	AttrPropertySet         uint32 = 0xF0
	AttrLoggedUtilityStream uint32 = 0x100
	AttrEndMarker           uint32 = 0xFFFFFFFF
)

// FILE_RECORD_SEGMENT_HEADER flags.
const (
	FRHInUse     uint16 = 0x0001
	FRHDirectory uint16 = 0x0002
)

// FILENAME_INFORMATION namespace values.
const (
	NamespacePosix        uint8 = 0x00
	NamespaceWin32        uint8 = 0x01
	NamespaceDOS          uint8 = 0x02
	NamespaceWin32AndDOS  uint8 = 0x03
)

// ATTRIBUTE_RECORD_HEADER flags bit.
const AttrFlagSparse uint16 = 0x8000

// File attribute bits persisted on $STANDARD_INFORMATION / $FILE_NAME.
const (
	FileAttributeReadonly          uint32 = 0x00000001
	FileAttributeHidden            uint32 = 0x00000002
	FileAttributeSystem            uint32 = 0x00000004
	FileAttributeDirectory         uint32 = 0x00000010
	FileAttributeArchive           uint32 = 0x00000020
	FileAttributeDevice            uint32 = 0x00000040
	FileAttributeNormal            uint32 = 0x00000080
	FileAttributeTemporary         uint32 = 0x00000100
	FileAttributeSparseFile        uint32 = 0x00000200
	FileAttributeReparsePoint      uint32 = 0x00000400
	FileAttributeCompressed        uint32 = 0x00000800
	FileAttributeOffline           uint32 = 0x00001000
	FileAttributeNotContentIndexed uint32 = 0x00002000
	FileAttributeEncrypted         uint32 = 0x00004000
	FileAttributeIntegrityStream   uint32 = 0x00008000
	FileAttributeVirtual           uint32 = 0x00010000
	FileAttributeNoScrubData       uint32 = 0x00020000
	FileAttributeEA                uint32 = 0x00040000
	FileAttributePinned            uint32 = 0x00080000
	FileAttributeUnpinned          uint32 = 0x00100000
	FileAttributeRecallOnDataAccess uint32 = 0x00400000
	// FileAttributeOrphaned is a synthetic bit set by volscan (not by NTFS)
	// to mark records reachable by FRS lookup but absent from the MFT bitmap.
	FileAttributeOrphaned uint32 = 0x40000000
)

// Cursor is a bounds-checked read cursor over a byte slice, in the style of
// a hand-rolled binary-format parse buffer: callers advance it as they
// consume fixed-width fields.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor wraps buf for sequential decoding starting at offset 0.
func NewCursor(buf []byte) *Cursor { return &Cursor{buf: buf} }

// Offset returns the current read position.
func (c *Cursor) Offset() int { return c.pos }

// SetOffset repositions the cursor. It does not validate bounds until the
// next read.
func (c *Cursor) SetOffset(off int) { c.pos = off }

// Len returns the number of unread bytes.
func (c *Cursor) Len() int { return len(c.buf) - c.pos }

// Bytes returns n unread bytes without advancing the cursor.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.buf) {
		return nil, ErrTruncated
	}
	return c.buf[c.pos : c.pos+n], nil
}

// Next returns n bytes and advances the cursor past them.
func (c *Cursor) Next(n int) ([]byte, error) {
	b, err := c.Bytes(n)
	if err != nil {
		return nil, err
	}
	c.pos += n
	return b, nil
}

// NextUint8 reads and advances past one byte.
func (c *Cursor) NextUint8() (uint8, error) {
	b, err := c.Next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// NextUint16 reads and advances past a little-endian uint16.
func (c *Cursor) NextUint16() (uint16, error) {
	b, err := c.Next(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// NextUint32 reads and advances past a little-endian uint32.
func (c *Cursor) NextUint32() (uint32, error) {
	b, err := c.Next(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// NextUint64 reads and advances past a little-endian uint64.
func (c *Cursor) NextUint64() (uint64, error) {
	b, err := c.Next(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// NextInt64 reads a little-endian int64.
func (c *Cursor) NextInt64() (int64, error) {
	v, err := c.NextUint64()
	return int64(v), err
}

// Unread rewinds the cursor by n bytes; used when a lookahead decode needs
// to back out.
func (c *Cursor) Unread(n int) {
	c.pos -= n
	if c.pos < 0 {
		c.pos = 0
	}
}
