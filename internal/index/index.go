package index

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/volscan/volscan/internal/applog"
	"github.com/volscan/volscan/internal/device"
	"github.com/volscan/volscan/internal/iocp"
	"github.com/volscan/volscan/internal/metrics"
	"github.com/volscan/volscan/internal/mftio"
	"github.com/volscan/volscan/internal/ntfsfmt"
)

// Index is the top-level object spec.md §6 calls out as the "Index query
// surface": it owns the raw volume handle, drives the Run Planner/Bitmap
// Stage/Block Reader/Record Parser pipeline of spec.md §4.1–4.4, then the
// Preprocessor of §4.5, and afterwards answers GetStdInfo/GetSizes/GetPath/
// Matches/FilePointers queries against the resulting Store.
type Index struct {
	// ID distinguishes this Index among several served concurrently (spec.md
	// §4.7 SearchResult.index_id), so internal/search and internal/api can
	// resolve a cross-volume result back to the Index it came from.
	ID uuid.UUID

	RootPath string

	// Metrics, if set before Scan is called, is observed by the Record
	// Parser for records-parsed/corrupt and bytes-read counters (spec.md
	// §7). Nil leaves a Scan unmetered.
	Metrics *metrics.Metrics

	store *Store

	mu       sync.RWMutex // guards finished/finishErr/scanning query-safety; Store itself is append-only post-scan
	finished chan struct{}
	finishErr error

	cancelled int32

	expectedRecords  int64
	recordsSoFar     int64
	preprocessedSoFar int64

	speedMu      sync.Mutex
	speedBytes   int64
	speedStarted time.Time
}

// New creates an unscanned Index that will render paths with rootPath as
// the volume prefix (e.g. "C:").
func New(rootPath string) *Index {
	return &Index{
		ID:       uuid.New(),
		RootPath: rootPath,
		store:    NewStore(),
		finished: make(chan struct{}),
	}
}

// FinishedEvent returns a channel closed once Scan has returned, matching
// spec.md §6's "finished_event() → waitable handle — signalled iff
// population is complete".
func (ix *Index) FinishedEvent() <-chan struct{} { return ix.finished }

// Cancel requests cancellation of an in-progress Scan (spec.md §6
// "cancel()"). It is safe to call before, during, or after a Scan.
func (ix *Index) Cancel() { atomic.StoreInt32(&ix.cancelled, 1) }

// Cancelled reports whether Cancel has been called.
func (ix *Index) Cancelled() bool { return atomic.LoadInt32(&ix.cancelled) != 0 }

// RecordsSoFar is the number of MFT records the Record Parser has decoded
// so far (spec.md §6).
func (ix *Index) RecordsSoFar() int64 { return atomic.LoadInt64(&ix.recordsSoFar) }

// ExpectedRecords is the Bitmap Stage's population count, the upper bound
// RecordsSoFar approaches (spec.md §6, §4.3's valid_records).
func (ix *Index) ExpectedRecords() int64 { return atomic.LoadInt64(&ix.expectedRecords) }

// PreprocessedSoFar is the number of records the Preprocessor has rolled up
// so far (spec.md §6).
func (ix *Index) PreprocessedSoFar() int64 { return atomic.LoadInt64(&ix.preprocessedSoFar) }

// Speed reports the cumulative (bytes, elapsed) pair since Scan started,
// for callers computing a throughput/ETA: every byte read so far and the
// time since Scan began. It is a whole-scan average, not a rolling average
// over recent reads.
func (ix *Index) Speed() (bytes int64, elapsed time.Duration) {
	ix.speedMu.Lock()
	defer ix.speedMu.Unlock()
	if ix.speedStarted.IsZero() {
		return 0, 0
	}
	return ix.speedBytes, time.Since(ix.speedStarted)
}

func (ix *Index) addSpeedBytes(n int64) {
	ix.speedMu.Lock()
	ix.speedBytes += n
	ix.speedMu.Unlock()
}

// Scan opens devicePath, reads the $MFT's own run list from FRS 0, plans
// and executes the bitmap-then-data chunk pipeline, parses every record
// into the Store, then runs the Preprocessor rollup from root. It returns
// when the whole pipeline has completed, ctx is cancelled, or an
// unsupported-volume/io-error occurs (spec.md §7).
func (ix *Index) Scan(ctx context.Context, devicePath string) (err error) {
	defer func() {
		ix.mu.Lock()
		ix.finishErr = err
		ix.mu.Unlock()
		close(ix.finished)
	}()

	ix.speedMu.Lock()
	ix.speedStarted = time.Now()
	ix.speedMu.Unlock()

	vol, err := device.Open(devicePath)
	if err != nil {
		return errors.Wrap(err, "index: unsupported volume") // spec.md §7 unsupported-volume
	}
	defer vol.Close()

	selfBitmapRuns, selfDataRuns, err := readMFTSelfRuns(ctx, vol)
	if err != nil {
		return errors.Wrap(err, "index: reading $MFT's own run list")
	}

	geom := vol.Geometry
	frsPerCluster := geom.BytesPerCluster / geom.BytesPerFRS
	maxClusters := mftio.MaxClustersPerChunk(geom.BytesPerCluster)
	plan := mftio.BuildPlan(selfBitmapRuns, selfDataRuns, maxClusters)

	totalDataClusters := int64(0)
	for _, r := range selfDataRuns {
		if !r.SparseLCN {
			totalDataClusters += r.ClusterCount
		}
	}
	// Upper-bound reservation: the exact "reserve once the bitmap count is
	// known" contract (spec.md §4.3 step 1) needs a mid-pipeline hook the
	// Block Reader doesn't expose; reserving for every FRS slot the $MFT
	// could ever hold is a documented, safe overestimate (DESIGN.md).
	ix.store.Reserve(int(totalDataClusters * frsPerCluster))
	atomic.StoreInt64(&ix.expectedRecords, totalDataClusters*frsPerCluster)

	reservedClusters := computeReservedClusters(geom, totalDataClusters)

	parser := &Parser{
		Store:           ix.store,
		BytesPerFRS:     geom.BytesPerFRS,
		BytesPerCluster: geom.BytesPerCluster,
		// The MFT zone is pinned to zero width (MFTZoneEndLCN ==
		// MFTZoneStartLCN) rather than spanning the reserved region, so
		// accountNonResident's intersection against it is always zero and
		// ReservedClusters keeps tracking reservedClusters untouched
		// (spec.md §11 "MFT zone quirk").
		MFTZoneStartLCN:  geom.MFTStartLCN,
		MFTZoneEndLCN:    geom.MFTStartLCN,
		ReservedClusters: reservedClusters,
		Metrics:          ix.Metrics,
	}

	bm := mftio.NewBitmap(totalDataClusters * frsPerCluster)
	pool := iocp.New(0)
	reader := mftio.NewReader(vol, pool)

	handle := func(ctx context.Context, chunk mftio.Chunk, buf []byte) error {
		if ix.Cancelled() {
			return mftio.ErrCancelled
		}
		firstFRS := chunk.VCN*frsPerCluster + chunk.SkipBegin
		parser.ParseChunk(uint64(firstFRS), buf)
		atomic.StoreInt64(&ix.recordsSoFar, parser.RecordsSoFarAtomic())
		ix.addSpeedBytes(int64(len(buf)))
		return nil
	}

	runErr := reader.Run(ctx, plan, bm, frsPerCluster, handle)
	atomic.StoreInt64(&ix.expectedRecords, bm.ValidRecords())
	if runErr != nil {
		if errors.Cause(runErr) == mftio.ErrCancelled || ctx.Err() != nil {
			applog.Warnf("index: scan cancelled after %d records", ix.RecordsSoFar())
			return nil // spec.md §7: cancelled is not an error
		}
		return errors.Wrap(runErr, "index: io-error")
	}

	rootIdx, ok := ix.store.RecordIndexForFRS(RootFRS)
	if !ok {
		return errors.New("index: root FRS 5 not found after scan")
	}
	pp := &Preprocessor{
		Store:            ix.store,
		ReservedClusters: parser.ReservedClusters,
		BytesPerCluster:  geom.BytesPerCluster,
	}
	pp.Run(rootIdx)
	atomic.StoreInt64(&ix.preprocessedSoFar, int64(len(ix.store.Records)))

	return nil
}

// readMFTSelfRuns decodes FRS 0's $DATA and $BITMAP non-resident mapping
// pairs: the run lists the Run Planner needs before it can plan anything
// else (spec.md §4.2 step "Read FRS 0 ($MFT) directly... its $DATA and
// $BITMAP attributes give the run lists for the rest of the MFT").
func readMFTSelfRuns(ctx context.Context, vol *device.Volume) (bitmapRuns, dataRuns []ntfsfmt.Run, err error) {
	recordSize := vol.Geometry.BytesPerFRS
	offset := vol.Geometry.MFTStartLCN * vol.Geometry.BytesPerCluster

	buf := make([]byte, recordSize)
	if _, err := vol.ReadAt(ctx, buf, offset); err != nil {
		return nil, nil, errors.Wrap(err, "index: reading FRS 0")
	}

	h, err := ntfsfmt.ParseRecordHeader(buf)
	if err != nil {
		return nil, nil, errors.Wrap(err, "index: parsing FRS 0 header")
	}
	if err := ntfsfmt.ApplyFixup(buf, int(recordSize)); err != nil {
		return nil, nil, errors.Wrap(err, "index: FRS 0 fixup")
	}

	fileOffset := int(h.FirstAttributeOffset)
	for fileOffset >= 0 && fileOffset+4 <= len(buf) {
		attr, err := ntfsfmt.ParseAttributeHeader(buf[fileOffset:])
		if err != nil || attr.Type == ntfsfmt.AttrEndMarker {
			break
		}
		if attr.Length == 0 {
			break
		}
		if attr.NonResident {
			name, _ := attr.Name()
			if name == "" {
				mp, err := attr.MappingPairs()
				if err == nil {
					runs, err := ntfsfmt.DecodeMappingPairs(mp, attr.LowestVCN)
					if err == nil {
						switch attr.Type {
						case ntfsfmt.AttrData:
							dataRuns = append(dataRuns, runs...)
						case ntfsfmt.AttrBitmap:
							bitmapRuns = append(bitmapRuns, runs...)
						}
					}
				}
			}
		}
		fileOffset += int(attr.Length)
	}
	if len(dataRuns) == 0 {
		return nil, nil, errors.New("index: $MFT::$DATA not found in FRS 0")
	}
	return bitmapRuns, dataRuns, nil
}

// computeReservedClusters approximates the classic NTFS MFT-zone
// reservation (DESIGN.md: ntfsfmt.BootSector carries no explicit
// reservation field to read back): one eighth of the volume, shrinking as
// $MFT's own data extent grows into it, floored at zero. Scan pins the
// Record Parser's MFT zone to zero width (spec.md §11 "MFT zone quirk"),
// so this figure passes through to Preprocessor.ReservedClusters
// unmodified rather than being further reduced per-run.
func computeReservedClusters(geom device.Geometry, mftDataClusters int64) int64 {
	zone := geom.TotalClusters / 8
	reserved := zone - mftDataClusters
	if reserved < 0 {
		return 0
	}
	return reserved
}

// WaitFinished blocks until Scan has completed or ctx is done, returning
// Scan's finish error (nil for a clean or cancelled scan), so a caller can
// await FinishedEvent without hand-rolling a select.
func (ix *Index) WaitFinished(ctx context.Context) error {
	select {
	case <-ix.finished:
		ix.mu.RLock()
		defer ix.mu.RUnlock()
		return ix.finishErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetStdInfo returns the $STANDARD_INFORMATION snapshot for a key's record
// (spec.md §4.6).
func (ix *Index) GetStdInfo(key Key) (StandardInfo, bool) {
	recordIdx := key.RecordIndex()
	if int(recordIdx) >= len(ix.store.Records) {
		return StandardInfo{}, false
	}
	return ix.store.Records[recordIdx].Std, true
}

// GetSizes returns the rolled-up SizeInfo for a key's stream (spec.md
// §4.6's get_sizes), falling back to the record's primary stream when the
// key's stream_info field is unspecified.
func (ix *Index) GetSizes(key Key) (SizeInfo, bool) {
	recordIdx := key.RecordIndex()
	if int(recordIdx) >= len(ix.store.Records) {
		return SizeInfo{}, false
	}
	streamOrdinal := key.StreamInfo()
	var streamGlobalIdx uint32
	var ok bool
	if streamOrdinal == streamInfoMax {
		streamGlobalIdx, ok = ix.store.FindStream(recordIdx, 0, nil)
	} else {
		streamGlobalIdx, ok = ix.store.StreamAtOrdinal(recordIdx, streamOrdinal)
	}
	if !ok {
		return SizeInfo{}, false
	}
	return ix.store.Streams[streamGlobalIdx].Size, true
}

// GetPath renders a key's full path, prefixed with ix.RootPath (spec.md
// §4.6).
func (ix *Index) GetPath(key Key) (string, bool) {
	return ix.store.GetPath(key, ix.RootPath)
}

// GetName returns the bare name a key's name_info field resolves to,
// without the path rendering GetPath performs — internal/search's sort-by-
// name column uses this instead of reducing a full path back to a base
// name.
func (ix *Index) GetName(key Key) (string, bool) {
	recordIdx := key.RecordIndex()
	if int(recordIdx) >= len(ix.store.Records) {
		return "", false
	}
	n := key.NameInfo()
	if n == nameInfoMax {
		return "", false
	}
	nameGlobalIdx, ok := ix.store.NameAtOrdinal(recordIdx, n)
	if !ok {
		return "", false
	}
	li := ix.store.Names[nameGlobalIdx]
	return decodeToken(ix.store.NameBytes(li), li.IsASCII), true
}

// Matches runs a Query Engine traversal over the index, rendering paths
// prefixed with ix.RootPath (spec.md §4.6).
func (ix *Index) Matches(visitor MatchVisitor, matchPaths, matchStreams, matchAttributes bool) {
	ix.store.MatchesFrom(ix.RootPath, visitor, matchPaths, matchStreams, matchAttributes)
}

// FilePointer identifies one concrete (record, hardlink name, stream) the
// way spec.md §8's round-trip invariant does: "the last name component
// equals the name reachable via file_pointers(K).link".
type FilePointer struct {
	Record uint32
	Link   uint32 // global Names index, Sentinel if key.NameInfo() is Unspecified
	Stream uint32 // global Streams index, Sentinel if key.StreamInfo() is Unspecified
}

// FilePointers resolves a key's record/name/stream fields into their
// concrete store positions, failing only when a specified (non-Unspecified)
// field cannot be resolved (spec.md §4.6).
func (ix *Index) FilePointers(key Key) (FilePointer, bool) {
	recordIdx := key.RecordIndex()
	if int(recordIdx) >= len(ix.store.Records) {
		return FilePointer{}, false
	}
	fp := FilePointer{Record: recordIdx, Link: Sentinel, Stream: Sentinel}

	if n := key.NameInfo(); n != nameInfoMax {
		idx, ok := ix.store.NameAtOrdinal(recordIdx, n)
		if !ok {
			return FilePointer{}, false
		}
		fp.Link = idx
	}
	if s := key.StreamInfo(); s != streamInfoMax {
		idx, ok := ix.store.StreamAtOrdinal(recordIdx, s)
		if !ok {
			return FilePointer{}, false
		}
		fp.Stream = idx
	}
	return fp, true
}
