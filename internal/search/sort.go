package search

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/volscan/volscan/internal/index"
)

// Column selects the field Sort orders Results by (spec.md §4.7: "Results
// may be sorted by any of: name, full path, file type string, size,
// size-on-disk, created/modified/accessed time, descendant count, or an
// attribute bitmask").
type Column int

const (
	ByName Column = iota
	ByPath
	ByType
	BySize
	BySizeOnDisk
	ByCreated
	ByModified
	ByAccessed
	ByDescendantCount
	ByAttributes
)

// Variant selects among the size-column sub-modes and the depth pre-
// comparator (spec.md §4.7: "An optional 'deeper first' variation... and
// 'space saved' / 'sort by bulkiness' variations select between
// length-allocated and allocated vs bulkiness").
type Variant struct {
	DeeperFirst bool
	SpaceSaved  bool // BySize/BySizeOnDisk: compare length-allocated instead of the raw field
	Bulkiness   bool // BySize/BySizeOnDisk: compare rolled-up bulkiness instead
}

// Sorter remembers the last (column, variant) it sorted by, so that a
// repeated identical sort request toggles reverse order instead of being a
// no-op (spec.md §4.7: "A repeated sort on the same column+variation
// toggles reverse").
type Sorter struct {
	hasSorted   bool
	lastColumn  Column
	lastVariant Variant
	reverse     bool
}

// sortKey is a Result's precomputed, cheaply-comparable sort field,
// extracted once per Result up front so the comparator itself never calls
// back into an Index (spec.md §5 "Suspension": sort only touches the Index
// mutex while resolving fields, never while comparing).
type sortKey struct {
	result Result
	depth  int
	str    string
	num    int64
}

// Sort orders results in place by column/variant, toggling s.reverse if
// this call repeats the immediately preceding (column, variant). It reports
// progress while resolving each result's sort field and is cancellable via
// ctx, matching spec.md §4.7's "Sort operations are cancellable and report
// progress to a progress sink."
func (s *Sorter) Sort(ctx context.Context, results []Result, indexes map[uuid.UUID]*index.Index, column Column, variant Variant, progress ProgressFunc) error {
	if s.hasSorted && s.lastColumn == column && s.lastVariant == variant {
		s.reverse = !s.reverse
	} else {
		s.reverse = false
	}
	s.hasSorted = true
	s.lastColumn = column
	s.lastVariant = variant

	keys := make([]sortKey, len(results))
	for i, r := range results {
		if i%1024 == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if progress != nil {
				progress(int64(i))
			}
		}
		ix := indexes[r.IndexID]
		keys[i] = extractSortKey(r, ix, column, variant)
	}
	if progress != nil {
		progress(int64(len(results)))
	}

	reverse := s.reverse
	less := func(a, b sortKey) bool {
		if variant.DeeperFirst && a.depth != b.depth {
			return a.depth > b.depth
		}
		if a.num != b.num {
			return a.num < b.num
		}
		return a.str < b.str
	}

	sort.SliceStable(keys, func(i, j int) bool {
		if reverse {
			return less(keys[j], keys[i])
		}
		return less(keys[i], keys[j])
	})

	for i, k := range keys {
		results[i] = k.result
	}
	return nil
}

func extractSortKey(r Result, ix *index.Index, column Column, variant Variant) sortKey {
	k := sortKey{result: r, depth: r.Depth}
	if ix == nil {
		return k
	}

	switch column {
	case ByName:
		k.str, _ = ix.GetName(r.Key)
	case ByPath:
		k.str, _ = ix.GetPath(r.Key)
	case ByType:
		k.str = fileTypeString(ix, r.Key)
	case BySize, BySizeOnDisk:
		k.num = sizeSortValue(ix, r.Key, column, variant)
	case ByCreated:
		std, _ := ix.GetStdInfo(r.Key)
		k.num = int64(std.CreationTime)
	case ByModified:
		std, _ := ix.GetStdInfo(r.Key)
		k.num = int64(std.LastModifiedTime)
	case ByAccessed:
		std, _ := ix.GetStdInfo(r.Key)
		k.num = int64(std.LastAccessTime)
	case ByDescendantCount:
		sizes, _ := ix.GetSizes(r.Key)
		k.num = int64(sizes.Treesize())
	case ByAttributes:
		std, _ := ix.GetStdInfo(r.Key)
		k.num = int64(std.Attributes())
	}
	return k
}

func sizeSortValue(ix *index.Index, key index.Key, column Column, variant Variant) int64 {
	sizes, ok := ix.GetSizes(key)
	if !ok {
		return 0
	}
	if variant.Bulkiness {
		return sizes.Bulkiness()
	}
	if variant.SpaceSaved {
		return sizes.Length() - sizes.Allocated()
	}
	if column == BySizeOnDisk {
		return sizes.Allocated()
	}
	return sizes.Length()
}

// fileTypeString renders spec.md §4.7's "file type string" sort field:
// "Directory" for directories, else an uppercased extension label, falling
// back to "File" for extensionless names.
func fileTypeString(ix *index.Index, key index.Key) string {
	std, ok := ix.GetStdInfo(key)
	if ok && std.IsDirectory() {
		return "Directory"
	}
	name, _ := ix.GetName(key)
	ext := filepath.Ext(name)
	if ext == "" {
		return "File"
	}
	return strings.ToUpper(strings.TrimPrefix(ext, ".")) + " File"
}
