package ntfsfmt

import (
	"github.com/pkg/errors"
)

// ErrNotNTFS is returned when the boot sector's OEM ID is not "NTFS    ".
var ErrNotNTFS = errors.New("ntfsfmt: not an NTFS volume")

// BootSector holds the fields of the NTFS boot sector needed to compute
// volume geometry: bytes per sector/cluster, the MFT's starting LCN, and the
// size of one FILE record (clusters-per-FRS is signed: positive means
// "this many clusters", negative means "2^-n bytes").
type BootSector struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	MFTStartLCN       int64
	MFTMirrorStartLCN int64
	ClustersPerFRS    int8
	ClustersPerIndex  int8
	TotalSectors      int64
	VolumeSerial      uint64
}

// ParseBootSector decodes a 512-byte (or larger) NTFS boot sector.
func ParseBootSector(buf []byte) (*BootSector, error) {
	c := NewCursor(buf)
	if c.Len() < 512 {
		return nil, ErrTruncated
	}

	// Bytes 0-2: jump instruction, ignored.
	c.SetOffset(3)
	oem, err := c.Next(8)
	if err != nil {
		return nil, err
	}
	if string(oem) != "NTFS    " {
		return nil, ErrNotNTFS
	}

	bs := &BootSector{}
	if bs.BytesPerSector, err = c.NextUint16(); err != nil {
		return nil, err
	}
	spc, err := c.NextUint8()
	if err != nil {
		return nil, err
	}
	bs.SectorsPerCluster = spc

	// Reserved sectors (2), unused (3), unused (2), media descriptor (1),
	// unused (2) = 10 bytes of fields this decoder does not need.
	c.SetOffset(c.Offset() + 2 + 3 + 2 + 1 + 2)
	// Sectors per track (2), heads (2), hidden sectors (4), unused (4).
	c.SetOffset(c.Offset() + 2 + 2 + 4 + 4)
	// Unused (4), signature/unused (4).
	c.SetOffset(c.Offset() + 4 + 4)

	total, err := c.NextUint64()
	if err != nil {
		return nil, err
	}
	bs.TotalSectors = int64(total)

	mftLCN, err := c.NextUint64()
	if err != nil {
		return nil, err
	}
	bs.MFTStartLCN = int64(mftLCN)

	mftMirrLCN, err := c.NextUint64()
	if err != nil {
		return nil, err
	}
	bs.MFTMirrorStartLCN = int64(mftMirrLCN)

	cpfrs, err := c.NextUint8()
	if err != nil {
		return nil, err
	}
	bs.ClustersPerFRS = int8(cpfrs)
	// 3 bytes padding after the signed clusters-per-FRS byte.
	c.SetOffset(c.Offset() + 3)

	cpidx, err := c.NextUint8()
	if err != nil {
		return nil, err
	}
	bs.ClustersPerIndex = int8(cpidx)
	c.SetOffset(c.Offset() + 3)

	serial, err := c.NextUint64()
	if err != nil {
		return nil, err
	}
	bs.VolumeSerial = serial

	return bs, nil
}

// BytesPerCluster returns BytesPerSector * SectorsPerCluster.
func (b *BootSector) BytesPerCluster() int64 {
	return int64(b.BytesPerSector) * int64(b.SectorsPerCluster)
}

// BytesPerFRS returns the size in bytes of one MFT record, resolving the
// signed clusters-per-FRS encoding.
func (b *BootSector) BytesPerFRS() int64 {
	if b.ClustersPerFRS >= 0 {
		return int64(b.ClustersPerFRS) * b.BytesPerCluster()
	}
	return int64(1) << uint(-b.ClustersPerFRS)
}
