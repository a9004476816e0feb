package index

import (
	"github.com/aalpar/deheap"

	"github.com/volscan/volscan/internal/ntfsfmt"
)

// DefaultBulkinessThreshold is the fraction of a directory's total
// allocated size a child must reach to count toward bulkiness (spec.md
// §4.5, exposed as a tunable per spec.md §9 Open Questions: "The 1%-of-
// parent bulkiness threshold is a heuristic; expose it as a tunable").
const DefaultBulkinessThreshold = 0.01

// Preprocessor performs the single depth-first post-order walk of
// spec.md §4.5, rolling up per-subtree (length, allocated, bulkiness,
// treesize) from FRS 5 (root).
type Preprocessor struct {
	Store               *Store
	BulkinessThreshold   float64 // fraction of parent total; 0 selects DefaultBulkinessThreshold
	ReservedClusters     int64
	BytesPerCluster      int64

	memo map[uint32]SizeInfo
}

// Run executes the rollup starting from rootRecordIdx (spec.md's FRS 5),
// then folds ReservedClusters*BytesPerCluster into the root's allocated
// size (spec.md §4.5: "At depth 0, add reserved_clusters × cluster_size to
// the root's allocated").
func (p *Preprocessor) Run(rootRecordIdx uint32) SizeInfo {
	if p.BulkinessThreshold <= 0 {
		p.BulkinessThreshold = DefaultBulkinessThreshold
	}
	p.memo = make(map[uint32]SizeInfo)

	total := p.rollup(rootRecordIdx, Sentinel)

	if idx, ok := p.primaryStreamIndex(rootRecordIdx); ok {
		st := &p.Store.Streams[idx]
		extra := p.ReservedClusters * p.BytesPerCluster
		st.Size = st.Size.Add(NewSizeInfo(0, extra, 0, 0))
		total = NewSizeInfo(st.Size.Length(), st.Size.Allocated(), st.Size.Bulkiness(), total.Treesize())
		p.memo[rootRecordIdx] = total
	}
	return total
}

// rollup computes (and memoizes) the rolled-up SizeInfo of recordIdx,
// recursing into children when recordIdx is a directory. parentIdx is used
// only to filter the root's self-loop child edge (spec.md §9: "Preprocessing
// explicitly filters child == parent to avoid infinite recursion").
func (p *Preprocessor) rollup(recordIdx uint32, parentIdx uint32) SizeInfo {
	if v, ok := p.memo[recordIdx]; ok {
		return v
	}
	// Cycle guard: a record can only be its own child via the root
	// self-loop, already filtered at the call site, but memoizing a
	// zero-value placeholder up front protects against any other
	// unexpected cycle in malformed input.
	p.memo[recordIdx] = SizeInfo{}

	p.mergeCompressionReparsePoint(recordIdx)

	rec := &p.Store.Records[recordIdx]
	var childrenAgg SizeInfo
	if rec.Std.IsDirectory() {
		childrenAgg = p.rollupChildren(recordIdx)
	}

	total := NewSizeInfo(0, 0, 0, 1).Add(childrenAgg)

	if idx, ok := p.primaryStreamIndex(recordIdx); ok {
		st := &p.Store.Streams[idx]
		st.Size = st.Size.Add(NewSizeInfo(childrenAgg.Length(), childrenAgg.Allocated(), 0, 0))
		st.Size = NewSizeInfo(st.Size.Length(), st.Size.Allocated(), childrenAgg.Bulkiness(), total.Treesize())
		total = st.Size
	} else {
		own := p.sumOwnStreams(recordIdx)
		total = NewSizeInfo(own.Length()+childrenAgg.Length(), own.Allocated()+childrenAgg.Allocated(), childrenAgg.Bulkiness(), total.Treesize())
	}

	p.memo[recordIdx] = total
	return total
}

func (p *Preprocessor) rollupChildren(recordIdx uint32) SizeInfo {
	rec := &p.Store.Records[recordIdx]

	var agg SizeInfo
	var bulkCandidates []int64
	seen := make(map[uint32]bool)
	for ci := rec.FirstChild; ci != Sentinel; ci = p.Store.Children[ci].Next {
		c := p.Store.Children[ci]
		if c.ChildRecordIndex == recordIdx {
			continue // root's self-loop (spec.md §9)
		}
		if seen[c.ChildRecordIndex] {
			continue // same child linked twice under one parent: count once (spec.md §8)
		}
		seen[c.ChildRecordIndex] = true

		childTotal := p.rollup(c.ChildRecordIndex, recordIdx)
		childRec := &p.Store.Records[c.ChildRecordIndex]
		n := int64(childRec.NameCount)
		if n == 0 {
			n = 1
		}
		i := int64(0)
		if ord, ok := p.Store.LocalNameOrdinal(c.ChildRecordIndex, c.NameIndexWithinChild); ok {
			i = int64(ord)
		}

		fracLen := fractionalShare(childTotal.Length(), i, n)
		fracAlloc := fractionalShare(childTotal.Allocated(), i, n)
		agg = agg.Add(NewSizeInfo(fracLen, fracAlloc, 0, childTotal.Treesize()))
		bulkCandidates = append(bulkCandidates, fracAlloc)
	}

	bulk := computeBulkiness(bulkCandidates, agg.Allocated(), p.BulkinessThreshold)
	return NewSizeInfo(agg.Length(), agg.Allocated(), bulk, agg.Treesize())
}

// fractionalShare computes value*(i+1)/n - value*i/n, the even,
// integer-exact split of value across n hardlink names (spec.md §4.5
// "Hardlink accounting"): summing this over i=0..n-1 equals value exactly,
// which plain (value/n) truncating division does not guarantee.
func fractionalShare(value, i, n int64) int64 {
	if n <= 0 {
		return value
	}
	return value*(i+1)/n - value*i/n
}

// computeBulkiness resolves spec.md §4.5's bulkiness heuristic: a child
// contributes to a directory's bulkiness only if its own allocated size is
// >= thresholdPct of the directory's total allocated size.
//
// DESIGN.md records a deliberate divergence from the original C++
// implementation here: the original's pop_heap loop subtracts large
// contributors from a sum seeded at the full total (leaving small
// contributors' sum), which contradicts both this prose and spec.md
// Scenario 6 ("a directory with 1 child of 10 GB and 10,000 children of
// 100 bytes... bulkiness ≈ 10 GB"). This implementation instead seeds at
// zero and sums contributors at or above the threshold, stopping at the
// first below-threshold pop since a max-heap pops in descending order.
func computeBulkiness(candidates []int64, totalAllocated int64, thresholdPct float64) int64 {
	if len(candidates) == 0 || totalAllocated <= 0 {
		return 0
	}
	threshold := int64(float64(totalAllocated) * thresholdPct)

	h := &int64MaxHeap{}
	for _, v := range candidates {
		deheap.Push(h, v)
	}

	var bulk int64
	for h.Len() > 0 {
		top := deheap.PopMax(h).(int64)
		if top < threshold {
			break
		}
		bulk += top
	}
	return bulk
}

// int64MaxHeap adapts a plain []int64 to deheap.Interface (sort.Interface +
// Push/Pop), grounding spec.md §4.5's "collect children's bulkiness values
// into a heap keyed on allocated size" on the min-max heap used elsewhere
// in the example pack for exactly this shape of problem.
type int64MaxHeap []int64

func (h int64MaxHeap) Len() int            { return len(h) }
func (h int64MaxHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h int64MaxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *int64MaxHeap) Push(x interface{}) { *h = append(*h, x.(int64)) }
func (h *int64MaxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// mergeCompressionReparsePoint implements spec.md §4.5's "Compression
// reparse point merge": when a record has both a default $DATA stream and
// a named $DATA stream called "WofCompressedData", the latter's allocated
// bytes move onto the default stream and the latter is flagged so it is
// never double-counted again.
func (p *Preprocessor) mergeCompressionReparsePoint(recordIdx uint32) {
	defaultIdx, hasDefault := p.Store.FindStream(recordIdx, 0, nil)
	wofIdx, hasWof := p.Store.FindStream(recordIdx, streamTypeID(ntfsfmt.AttrData), []byte(wofCompressedDataStreamName))
	if !hasDefault || !hasWof {
		return
	}
	wof := &p.Store.Streams[wofIdx]
	if wof.AllocatedAccountedInMainStream {
		return // already merged (rollup can revisit a record's streams only once per call, but guard anyway)
	}
	def := &p.Store.Streams[defaultIdx]
	def.Size = def.Size.Add(NewSizeInfo(0, wof.Size.Allocated(), 0, 0))
	wof.Size = NewSizeInfo(wof.Size.Length(), 0, 0, 0)
	wof.AllocatedAccountedInMainStream = true
}

// primaryStreamIndex returns the index of the record's representative
// stream: the collapsed $I30 pseudo-stream for a directory, or the unnamed
// $DATA stream for a file — both share type_id 0 (spec.md §3), so one
// lookup covers both. Returns false if neither exists (e.g. a record with
// only alternate streams).
func (p *Preprocessor) primaryStreamIndex(recordIdx uint32) (uint32, bool) {
	return p.Store.FindStream(recordIdx, 0, nil)
}

// sumOwnStreams sums a record's own (pre-rollup) stream sizes, used as a
// fallback total when the record has no identifiable primary stream.
func (p *Preprocessor) sumOwnStreams(recordIdx uint32) SizeInfo {
	rec := &p.Store.Records[recordIdx]
	var sum SizeInfo
	for i := rec.FirstStream; i != Sentinel; i = p.Store.Streams[i].Next {
		sum = sum.Add(p.Store.Streams[i].Size)
	}
	return sum
}
