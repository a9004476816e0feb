//go:build linux

package device

// Adapted from the teacher's backend/local/fadvise_unix.go. The teacher's
// fadvise type amortized FADV_DONTNEED calls behind a background worker
// goroutine and a sliding window, tuned for a single file being streamed to
// a remote backend; a whole-volume MFT scan instead advises in large,
// cluster-aligned, chunk-sized spans issued directly by the Block Reader
// (internal/mftio) as each chunk completes, so no window/worker bookkeeping
// is needed here — just the two syscalls.

import "golang.org/x/sys/unix"

func fadviseSequential(fd int, offset, length int64) error {
	return unix.Fadvise(fd, offset, length, unix.FADV_SEQUENTIAL)
}

func fadviseDontNeed(fd int, offset, length int64) error {
	return unix.Fadvise(fd, offset, length, unix.FADV_DONTNEED)
}
