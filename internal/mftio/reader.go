package mftio

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/volscan/volscan/internal/device"
	"github.com/volscan/volscan/internal/iocp"
)

// ErrCancelled is returned from Reader.Run when ctx was cancelled before the
// scan completed; spec.md §7 classifies this as "not an error" at the
// Index-finish-code level — callers translate it rather than surfacing it
// raw.
var ErrCancelled = errors.New("mftio: scan cancelled")

// DataChunkHandler is called once per data chunk that holds at least one
// allocated FRS slot, after its SkipBegin/SkipEnd (counts of leading and
// trailing unallocated FRS slots) have been set from the bitmap, with the
// raw bytes of FRS slots [chunk.VCN*frsPerCluster+SkipBegin,
// (chunk.VCN+chunk.ClusterCount)*frsPerCluster-SkipEnd).
// Implementations (internal/index's Record Parser) must not retain buf
// beyond the call: Reader recycles it via sync.Pool afterwards.
type DataChunkHandler func(ctx context.Context, chunk Chunk, buf []byte) error

// Reader drives the two-phase pipeline of spec.md §4.1–4.3: bitmap chunks
// first (to size the index and compute skip ranges), then data chunks,
// with every chunk read dispatched as an internal/iocp.Pool task so both
// stages go through the same priority-aware worker pool spec.md §4.1
// describes, rather than a bitmap-stage/data-stage-local semaphore.
//
// The teacher's recycling allocator (original_source/io/mft_reader.hpp's
// ReadOperation::operator new/delete, a free list guarded by a recursive
// mutex) is realized here as a sync.Pool, matching how Go programs recycle
// fixed-size buffers idiomatically instead of hand-rolling a free list.
type Reader struct {
	vol        *device.Volume
	pool       *iocp.Pool
	foreground bool

	bufPool sync.Pool
}

// NewReader creates a Reader over an opened volume, using pool for
// concurrency. If pool is nil, Reader creates its own sized to
// DefaultConcurrencyWidth (spec.md §4.1's W), the in-flight-chunks-per-
// stage level the original used; callers serving several volumes at once
// typically pass a single shared pool (sized via iocp.DefaultWidth())
// instead, so reads across volumes are drained through one priority-aware
// worker set rather than one per Reader.
func NewReader(vol *device.Volume, pool *iocp.Pool) *Reader {
	if pool == nil {
		pool = iocp.New(DefaultConcurrencyWidth)
	}
	bytesPerCluster := vol.Geometry.BytesPerCluster
	maxClusters := MaxClustersPerChunk(bytesPerCluster)
	chunkBytes := int(maxClusters * bytesPerCluster)
	r := &Reader{vol: vol, pool: pool}
	r.bufPool.New = func() interface{} {
		return make([]byte, chunkBytes)
	}
	return r
}

// SetForeground marks this Reader's chunk reads as foreground priority
// (spec.md §4.1: the volume currently being interactively queried in a
// multi-volume `serve` process is drained ahead of background scans
// sharing the same pool). Readers default to background priority.
func (r *Reader) SetForeground(foreground bool) {
	r.foreground = foreground
}

// Run reads the bitmap chunks (populating bm), then the data chunks
// (invoking handle for each, after skip-range annotation). Both stages
// submit their chunk reads to r.pool and run its workers for the
// duration of the call, so chunk concurrency is governed by the pool's
// width and foreground/background priority rather than a local semaphore.
// It returns when every chunk in plan has been read and handled, or ctx is
// cancelled.
func (r *Reader) Run(ctx context.Context, plan Plan, bm *Bitmap, bitmapFRSPerCluster int64, handle DataChunkHandler) error {
	poolCtx, stopPool := context.WithCancel(ctx)
	poolDone := make(chan error, 1)
	go func() { poolDone <- r.pool.Run(poolCtx) }()
	defer func() {
		stopPool()
		<-poolDone
	}()

	if err := r.runBitmapStage(ctx, plan.Bitmap, bm); err != nil {
		return err
	}
	return r.runDataStage(ctx, plan.Data, bm, bitmapFRSPerCluster, handle)
}

// submitAndWait submits one task per item to r.pool and blocks until every
// submitted task has finished (not merely been accepted), returning the
// first error either Submit or a task itself produced.
func submitAndWait(ctx context.Context, pool *iocp.Pool, foreground bool, n int, submit func(i int) iocp.Task) error {
	// A failed task stops the pool's workers, so further Submit calls are
	// unblocked by cancelling their context once the first error is seen.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	record := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		cancel()
	}

	for i := 0; i < n; i++ {
		task := submit(i)
		wg.Add(1)
		wrapped := func(taskCtx context.Context) error {
			defer wg.Done()
			err := task(taskCtx)
			record(err)
			return err
		}
		if err := pool.Submit(ctx, wrapped, foreground); err != nil {
			wg.Done()
			record(err)
			break
		}
	}
	wg.Wait()
	return firstErr
}

func (r *Reader) runBitmapStage(ctx context.Context, chunks []Chunk, bm *Bitmap) error {
	var mu sync.Mutex
	return submitAndWait(ctx, r.pool, r.foreground, len(chunks), func(i int) iocp.Task {
		chunk := chunks[i]
		return func(taskCtx context.Context) error {
			buf := r.bufPool.Get().([]byte)
			defer r.bufPool.Put(buf)

			n := int(chunk.ByteLength(r.vol.Geometry.BytesPerCluster))
			if n > len(buf) {
				n = len(buf)
			}
			if _, err := r.vol.ReadAt(taskCtx, buf[:n], chunk.ByteOffset(r.vol.Geometry.BytesPerCluster)); err != nil {
				return errors.Wrap(err, "mftio: bitmap chunk read")
			}
			mu.Lock()
			bm.WriteChunk(chunk.VCN*r.vol.Geometry.BytesPerCluster, buf[:n])
			mu.Unlock()
			return nil
		}
	})
}

func (r *Reader) runDataStage(ctx context.Context, chunks []Chunk, bm *Bitmap, frsPerCluster int64, handle DataChunkHandler) error {
	return submitAndWait(ctx, r.pool, r.foreground, len(chunks), func(i int) iocp.Task {
		chunk := chunks[i]
		return func(taskCtx context.Context) error {
			return r.readDataChunk(taskCtx, chunk, bm, frsPerCluster, handle)
		}
	})
}

func (r *Reader) readDataChunk(ctx context.Context, chunk Chunk, bm *Bitmap, frsPerCluster int64, handle DataChunkHandler) error {
	firstFRS := chunk.VCN * frsPerCluster
	count := chunk.ClusterCount * frsPerCluster
	skipBegin, skipEnd := bm.SkipRange(firstFRS, count)
	if skipBegin+skipEnd >= count {
		// Entirely unallocated: never dispatched to the parser (spec.md
		// §8: "A chunk entirely within all-unallocated bits produces zero
		// records and is never dispatched to the parser").
		return nil
	}
	chunk.SkipBegin, chunk.SkipEnd = skipBegin, skipEnd

	buf := r.bufPool.Get().([]byte)
	defer r.bufPool.Put(buf)

	fullLen := int(chunk.ByteLength(r.vol.Geometry.BytesPerCluster))
	if fullLen > len(buf) {
		fullLen = len(buf)
	}
	if _, err := r.vol.ReadAt(ctx, buf[:fullLen], chunk.ByteOffset(r.vol.Geometry.BytesPerCluster)); err != nil {
		return errors.Wrap(err, "mftio: data chunk read")
	}

	skipBeginBytes := int(skipBegin * r.vol.Geometry.BytesPerFRS)
	skipEndBytes := int(skipEnd * r.vol.Geometry.BytesPerFRS)
	usable := buf[skipBeginBytes : fullLen-skipEndBytes]

	if err := handle(ctx, chunk, usable); err != nil {
		return err
	}
	return r.vol.AdviseDontNeed(chunk.ByteOffset(r.vol.Geometry.BytesPerCluster), int64(fullLen))
}
