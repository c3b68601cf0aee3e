package engine

import (
	"fmt"

	"github.com/amaydixit11/jsoncrdt/internal/search"
)

// Reindex rebuilds idx from the engine's current document: it flattens
// Value() into dotted-path leaves (internal/search.Flatten) and
// replaces idx's contents with them. Call this after any Apply/Join
// that should be reflected in search results — the index tracks the
// document passively, it is never updated as a side effect of Apply
// or Join.
func (e *Engine) Reindex(idx *SearchIndex) error {
	value, err := e.Value()
	if err != nil {
		return err
	}
	leaves, kinds := search.Flatten(value)
	if err := idx.Reindex(leaves, kinds); err != nil {
		return fmt.Errorf("engine: reindex: %w", err)
	}
	return nil
}

// Search runs a full-text query against idx, returning the matching
// dotted paths. idx must have been populated via Reindex (or
// IndexLeaf/DeleteLeaf calls against the same document) beforehand.
func Search(idx *SearchIndex, query string, opts SearchOptions) ([]SearchResult, error) {
	return idx.Search(query, opts)
}
