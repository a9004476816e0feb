// Package device provides raw access to a block device: opening it with
// O_DIRECT so reads bypass the page cache, issuing cache hints
// (readahead/don't-need) appropriate for a one-pass sequential scan, and
// reading the NTFS boot sector to derive volume geometry. This is the
// volscan analogue of the teacher's local-filesystem backend, adapted from
// per-file-descriptor page-cache management to whole-device sequential
// scanning.
package device

import (
	"context"
	"os"

	"github.com/pkg/errors"

	"github.com/volscan/volscan/internal/ntfsfmt"
)

// ErrNotBlockDevice is returned when the path given to Open is not a block
// (or, for testing against a volume image, regular) device.
var ErrNotBlockDevice = errors.New("device: not a block device or volume image")

// Volume is an opened raw device together with its NTFS geometry.
type Volume struct {
	f        *os.File
	path     string
	Geometry Geometry
}

// Geometry holds the subset of NTFS volume parameters the indexer needs,
// derived from the boot sector (spec.md §4.2, §6).
type Geometry struct {
	BytesPerSector    int64
	BytesPerCluster   int64
	BytesPerFRS       int64
	MFTStartLCN       int64
	MFTMirrorStartLCN int64
	TotalClusters     int64
}

// Open opens path (a raw block device or a regular file standing in for
// one, e.g. in tests) for direct, unbuffered, sequential reads, and parses
// its NTFS boot sector to populate Geometry.
//
// Open refuses volumes whose cluster size is smaller than the FRS size:
// spec.md §4.2 requires reads to be cluster-aligned, which the Run Planner
// cannot guarantee otherwise.
func Open(path string) (*Volume, error) {
	f, err := directIOOpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "device: open %s", path)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "device: stat %s", path)
	}
	if m := fi.Mode(); !m.IsRegular() && m&os.ModeDevice == 0 {
		f.Close()
		return nil, errors.Wrap(ErrNotBlockDevice, path)
	}

	boot := make([]byte, 512)
	if _, err := f.ReadAt(boot, 0); err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "device: read boot sector of %s", path)
	}
	bs, err := ntfsfmt.ParseBootSector(boot)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "device: parse boot sector of %s", path)
	}

	geom := Geometry{
		BytesPerSector:    int64(bs.BytesPerSector),
		BytesPerCluster:   bs.BytesPerCluster(),
		BytesPerFRS:       bs.BytesPerFRS(),
		MFTStartLCN:       bs.MFTStartLCN,
		MFTMirrorStartLCN: bs.MFTMirrorStartLCN,
		TotalClusters:     bs.TotalSectors / int64(bs.SectorsPerCluster),
	}
	if geom.BytesPerCluster < geom.BytesPerFRS {
		f.Close()
		return nil, errors.Errorf("device: unsupported volume layout: cluster size %d < FRS size %d", geom.BytesPerCluster, geom.BytesPerFRS)
	}

	return &Volume{f: f, path: path, Geometry: geom}, nil
}

// Path returns the path the volume was opened from.
func (v *Volume) Path() string { return v.path }

// ReadAt issues an aligned read at a byte offset, honoring ctx cancellation
// by racing the blocking syscall against ctx.Done() is not attempted here
// (O_DIRECT reads are not separately cancellable on Linux); callers should
// check ctx before issuing a read and treat ctx.Err() at chunk boundaries as
// the cancellation point, matching spec.md §5's "workers block only on
// dequeue/mutex" model where cancellation is observed between operations,
// not mid-syscall.
func (v *Volume) ReadAt(ctx context.Context, buf []byte, offset int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := v.f.ReadAt(buf, offset)
	if err != nil {
		return n, errors.Wrapf(err, "device: read %d bytes at offset %d", len(buf), offset)
	}
	return n, nil
}

// AdviseSequential hints the kernel that forthcoming reads over [offset,
// offset+length) are sequential, doubling the readahead window.
func (v *Volume) AdviseSequential(offset, length int64) error {
	return fadviseSequential(int(v.f.Fd()), offset, length)
}

// AdviseDontNeed releases cached pages for a region already consumed; a
// single forward MFT scan never revisits a cluster range, so pages can be
// dropped immediately after the Record Parser has consumed them.
func (v *Volume) AdviseDontNeed(offset, length int64) error {
	return fadviseDontNeed(int(v.f.Fd()), offset, length)
}

// Close releases the underlying file descriptor. Safe to call once at the
// end of the Preprocessor pass (spec.md §4.5: "Preprocessing closes the raw
// volume handle when done").
func (v *Volume) Close() error {
	return v.f.Close()
}
