// Package search provides full-text search over a document's string
// leaves, using Bleve. It indexes against pkg/engine's Value()
// projection: each indexed document is one dotted path
// through the JSON tree paired with the string found there, not an
// application-defined "entry" — a generic JSON CRDT has no such
// concept.
package search

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/blevesearch/bleve/v2"
)

// Index wraps a Bleve index over a document's leaf paths.
type Index struct {
	index bleve.Index
	path  string
}

// Document is one indexed leaf: the dotted path leading to it (e.g.
// "users.alice.bio"), its string content, and the leaf's shape as
// recorded by Flatten ("string", "multivalue", or a Go type name),
// usable for filtering.
type Document struct {
	Path    string `json:"path"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

// NewIndex creates or opens a Bleve index under dataDir.
func NewIndex(dataDir string) (*Index, error) {
	indexPath := filepath.Join(dataDir, "search.bleve")

	idx, err := bleve.Open(indexPath)
	if err == bleve.ErrorIndexPathDoesNotExist {
		mapping := bleve.NewIndexMapping()

		docMapping := bleve.NewDocumentMapping()

		contentField := bleve.NewTextFieldMapping()
		contentField.Analyzer = "standard"
		docMapping.AddFieldMappingsAt("content", contentField)

		kindField := bleve.NewTextFieldMapping()
		kindField.Analyzer = "keyword"
		docMapping.AddFieldMappingsAt("kind", kindField)

		mapping.AddDocumentMapping("leaf", docMapping)

		idx, err = bleve.New(indexPath, mapping)
		if err != nil {
			return nil, fmt.Errorf("search: create index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("search: open index: %w", err)
	}

	return &Index{index: idx, path: indexPath}, nil
}

// NewMemoryIndex creates an in-memory, non-persisted index — useful
// for tests and for callers who only want search over the live
// in-process document.
func NewMemoryIndex() (*Index, error) {
	mapping := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, err
	}
	return &Index{index: idx}, nil
}

// IndexLeaf adds or updates the entry for path.
func (i *Index) IndexLeaf(path, kind, content string) error {
	doc := Document{Path: path, Kind: kind, Content: content}
	return i.index.Index(path, doc)
}

// DeleteLeaf removes path's entry from the index.
func (i *Index) DeleteLeaf(path string) error {
	return i.index.Delete(path)
}

// Reindex clears and rebuilds the index from leaves, a flattened
// path->string-leaf view of a document (see Flatten in project.go).
// This is the simplest way to keep the index in sync with a document
// that changes via arbitrary CRDT joins rather than discrete edits.
func (i *Index) Reindex(leaves map[string]string, kinds map[string]string) error {
	batch := i.index.NewBatch()
	count, err := i.index.DocCount()
	if err != nil {
		return fmt.Errorf("search: count documents: %w", err)
	}
	if count > 0 {
		req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
		req.Size = int(count)
		res, err := i.index.Search(req)
		if err != nil {
			return fmt.Errorf("search: list documents: %w", err)
		}
		for _, hit := range res.Hits {
			if _, ok := leaves[hit.ID]; !ok {
				batch.Delete(hit.ID)
			}
		}
	}
	for path, content := range leaves {
		doc := Document{Path: path, Kind: kinds[path], Content: content}
		if err := batch.Index(path, doc); err != nil {
			return fmt.Errorf("search: batch index %q: %w", path, err)
		}
	}
	return i.index.Batch(batch)
}

// SearchOptions configures a search query.
type SearchOptions struct {
	Kind  string // restrict to leaves of this shape (see Flatten), if set
	Limit int    // max results; default 50
}

// SearchResult is one search hit.
type SearchResult struct {
	Path  string
	Score float64
}

// Search performs a full-text search over indexed leaf content.
func (i *Index) Search(query string, opts SearchOptions) ([]SearchResult, error) {
	contentQuery := bleve.NewMatchQuery(query)
	contentQuery.SetField("content")

	var q bleve.Query = contentQuery
	if opts.Kind != "" {
		kindQuery := bleve.NewMatchQuery(opts.Kind)
		kindQuery.SetField("kind")
		q = bleve.NewConjunctionQuery(contentQuery, kindQuery)
	}

	searchReq := bleve.NewSearchRequest(q)
	searchReq.Size = opts.Limit
	if searchReq.Size <= 0 {
		searchReq.Size = 50
	}

	searchRes, err := i.index.Search(searchReq)
	if err != nil {
		return nil, fmt.Errorf("search: query failed: %w", err)
	}

	results := make([]SearchResult, 0, len(searchRes.Hits))
	for _, hit := range searchRes.Hits {
		results = append(results, SearchResult{Path: hit.ID, Score: hit.Score})
	}
	return results, nil
}

// Close closes the index.
func (i *Index) Close() error {
	return i.index.Close()
}

// Delete closes the index and removes it from disk.
func (i *Index) Delete() error {
	i.index.Close()
	if i.path != "" {
		return os.RemoveAll(i.path)
	}
	return nil
}
