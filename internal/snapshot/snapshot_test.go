package snapshot

import (
	"errors"
	"testing"

	"github.com/amaydixit11/jsoncrdt/internal/crdt"
)

func TestSaveAndLoad(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	state := crdt.NewState("replica-1", crdt.KindMVReg)
	dot := state.CC.Next("replica-1")
	state.Store.(*crdt.DotFun).Entries[dot] = "hello"

	if err := store.Save(state, 1000); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load("replica-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	val, err := crdt.Value(loaded)
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	if val != "hello" {
		t.Errorf("expected %q, got %v", "hello", val)
	}
}

func TestLoadMissing(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	_, err = store.Load("nonexistent")
	var notFound *ErrNotFound
	if !errors.As(err, &notFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveOverwrites(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	state := crdt.NewState("replica-1", crdt.KindMVReg)
	if err := store.Save(state, 1); err != nil {
		t.Fatalf("save 1: %v", err)
	}

	dot := state.CC.Next("replica-1")
	state.Store.(*crdt.DotFun).Entries[dot] = "updated"
	if err := store.Save(state, 2); err != nil {
		t.Fatalf("save 2: %v", err)
	}

	ids, err := store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected 1 replica, got %d", len(ids))
	}

	loaded, err := store.Load("replica-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	val, _ := crdt.Value(loaded)
	if val != "updated" {
		t.Errorf("expected %q, got %v", "updated", val)
	}
}

func TestDelete(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	state := crdt.NewState("replica-1", crdt.KindMVReg)
	if err := store.Save(state, 1); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete("replica-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := store.Load("replica-1"); err == nil {
		t.Error("expected error loading deleted snapshot")
	}
}
