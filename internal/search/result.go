package search

import (
	"github.com/google/uuid"

	"github.com/volscan/volscan/internal/index"
)

// Result is spec.md §4.7's SearchResult: "index_id identifies the source
// Index among those searched and depth is the directory depth used for
// depth-weighted sorting".
type Result struct {
	IndexID uuid.UUID
	Key     index.Key
	Depth   int
}
