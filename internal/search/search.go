package search

import (
	"context"

	"github.com/google/uuid"

	"github.com/volscan/volscan/internal/index"
)

// ProgressFunc receives the running count of tuples visited so far,
// for a caller reporting scan progress to a UI or RPC stream (spec.md
// §4.7's "report progress to a progress sink").
type ProgressFunc func(visited int64)

// Search runs pat over every index in indexes, collecting one Result per
// matching (file, name, stream) tuple Matches produces (spec.md §4.7's
// "full-volume pattern traversal"). matchPaths/matchStreams/matchAttributes
// are forwarded to index.Index.Matches unchanged. Cancellation via ctx is
// cooperative: once ctx is done, Search stops descending into further
// directories and returns ctx.Err() with whatever results were already
// collected, consistent with spec.md §7's "cancelled — not an error; a
// partial result set is usable".
func Search(ctx context.Context, indexes map[uuid.UUID]*index.Index, pat *Pattern, matchPaths, matchStreams, matchAttributes bool, progress ProgressFunc) ([]Result, error) {
	var results []Result
	var visited int64
	var cancelled bool

	for id, ix := range indexes {
		id := id
		ix.Matches(func(text []byte, isASCII bool, key index.Key, depth int) int {
			visited++
			if progress != nil && visited%1024 == 0 {
				progress(visited)
			}
			if cancelled {
				return 0
			}
			select {
			case <-ctx.Done():
				cancelled = true
				return 0
			default:
			}

			if pat.Match(text, isASCII) {
				results = append(results, Result{IndexID: id, Key: key, Depth: depth})
			}
			return 1
		}, matchPaths, matchStreams, matchAttributes)

		if cancelled {
			break
		}
	}

	if progress != nil {
		progress(visited)
	}
	if cancelled {
		return results, ctx.Err()
	}
	return results, nil
}
