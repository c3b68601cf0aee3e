package search

import "testing"

func TestIndexAndSearch(t *testing.T) {
	idx, err := NewMemoryIndex()
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	defer idx.Close()

	if err := idx.IndexLeaf("users.alice.bio", "string", "loves hiking and coffee"); err != nil {
		t.Fatalf("index leaf: %v", err)
	}
	if err := idx.IndexLeaf("users.bob.bio", "string", "enjoys reading sci-fi"); err != nil {
		t.Fatalf("index leaf: %v", err)
	}

	results, err := idx.Search("hiking", SearchOptions{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "users.alice.bio" {
		t.Fatalf("expected exactly users.alice.bio, got %+v", results)
	}
}

func TestDeleteLeaf(t *testing.T) {
	idx, err := NewMemoryIndex()
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	defer idx.Close()

	idx.IndexLeaf("title", "string", "hello world")
	if err := idx.DeleteLeaf("title"); err != nil {
		t.Fatalf("delete leaf: %v", err)
	}

	results, err := idx.Search("hello", SearchOptions{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results after delete, got %+v", results)
	}
}

func TestFlatten(t *testing.T) {
	value := map[string]any{
		"title": "hello world",
		"tags":  []any{"a", "b"},
		"meta": map[string]any{
			"count": float64(3),
		},
	}

	leaves, kinds := Flatten(value)

	if leaves["title"] != "hello world" {
		t.Errorf("expected title leaf, got %+v", leaves)
	}
	if kinds["title"] != "string" {
		t.Errorf("expected string kind for title, got %q", kinds["title"])
	}
	if leaves["tags[0]"] != "a" || leaves["tags[1]"] != "b" {
		t.Errorf("expected flattened tags, got %+v", leaves)
	}
	if leaves["meta.count"] != "3" {
		t.Errorf("expected meta.count leaf, got %+v", leaves)
	}
}

func TestReindex(t *testing.T) {
	idx, err := NewMemoryIndex()
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	defer idx.Close()

	leaves := map[string]string{"title": "converging replicas"}
	kinds := map[string]string{"title": "string"}
	if err := idx.Reindex(leaves, kinds); err != nil {
		t.Fatalf("reindex: %v", err)
	}

	results, err := idx.Search("converging", SearchOptions{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}
