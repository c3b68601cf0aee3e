package engine_test

import (
	"testing"

	"github.com/amaydixit11/jsoncrdt/pkg/engine"
)

func TestApplyWriteRegister(t *testing.T) {
	e, err := engine.New(engine.Config{ReplicaID: "r1"})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	if _, err := e.Apply(engine.AtKey("title", engine.KindRegister,
		engine.WriteRegister("hello world"))); err != nil {
		t.Fatalf("apply: %v", err)
	}

	value, err := e.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	m, ok := value.(map[string]any)
	if !ok {
		t.Fatalf("expected map root, got %T", value)
	}
	if m["title"] != "hello world" {
		t.Errorf("expected title %q, got %+v", "hello world", m["title"])
	}
}

func TestApplyNestedMapAndArray(t *testing.T) {
	e, err := engine.New(engine.Config{ReplicaID: "r1"})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	_, err = e.Apply(engine.AtKey("profile", engine.KindMap,
		engine.AtKey("bio", engine.KindRegister, engine.WriteRegister("hiker"))))
	if err != nil {
		t.Fatalf("apply nested map: %v", err)
	}

	pos, err := engine.Between(engine.Position{}, engine.Position{})
	if err != nil {
		t.Fatalf("between: %v", err)
	}
	_, err = e.Apply(engine.AtKey("tags", engine.KindArray,
		engine.InsertElement("tag-1", pos, engine.WriteRegister("go"))))
	if err != nil {
		t.Fatalf("apply array insert: %v", err)
	}

	value, err := e.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	m := value.(map[string]any)
	profile, ok := m["profile"].(map[string]any)
	if !ok || profile["bio"] != "hiker" {
		t.Errorf("expected nested profile.bio=hiker, got %+v", m["profile"])
	}
	tags, ok := m["tags"].([]any)
	if !ok || len(tags) != 1 || tags[0] != "go" {
		t.Errorf("expected tags=[go], got %+v", m["tags"])
	}
}

func TestJoinConverges(t *testing.T) {
	a, _ := engine.New(engine.Config{ReplicaID: "a"})
	b, _ := engine.New(engine.Config{ReplicaID: "b"})

	deltaA, err := a.Apply(engine.AtKey("title", engine.KindRegister, engine.WriteRegister("from a")))
	if err != nil {
		t.Fatalf("apply on a: %v", err)
	}
	deltaB, err := b.Apply(engine.AtKey("subtitle", engine.KindRegister, engine.WriteRegister("from b")))
	if err != nil {
		t.Fatalf("apply on b: %v", err)
	}

	if err := a.Join(deltaB); err != nil {
		t.Fatalf("join b into a: %v", err)
	}
	if err := b.Join(deltaA); err != nil {
		t.Fatalf("join a into b: %v", err)
	}

	valueA, _ := a.Value()
	valueB, _ := b.Value()
	mA := valueA.(map[string]any)
	mB := valueB.(map[string]any)

	if mA["title"] != "from a" || mA["subtitle"] != "from b" {
		t.Errorf("a did not converge, got %+v", mA)
	}
	if mB["title"] != "from a" || mB["subtitle"] != "from b" {
		t.Errorf("b did not converge, got %+v", mB)
	}
}

func TestDeltaSinceShipsOnlyNewDots(t *testing.T) {
	e, _ := engine.New(engine.Config{ReplicaID: "r1"})

	if _, err := e.Apply(engine.AtKey("a", engine.KindRegister, engine.WriteRegister("1"))); err != nil {
		t.Fatalf("apply: %v", err)
	}
	base := e.Snapshot()

	if _, err := e.Apply(engine.AtKey("b", engine.KindRegister, engine.WriteRegister("2"))); err != nil {
		t.Fatalf("apply: %v", err)
	}

	delta := e.DeltaSince(base)

	replica, _ := engine.New(engine.Config{ReplicaID: "r2"})
	if err := replica.Join(base); err != nil {
		t.Fatalf("join base: %v", err)
	}
	if err := replica.Join(delta); err != nil {
		t.Fatalf("join delta: %v", err)
	}

	value, _ := replica.Value()
	m := value.(map[string]any)
	if m["a"] != "1" || m["b"] != "2" {
		t.Errorf("expected a=1 b=2 after base+delta, got %+v", m)
	}
}

func TestDeleteKeyRemovesValue(t *testing.T) {
	e, _ := engine.New(engine.Config{ReplicaID: "r1"})

	if _, err := e.Apply(engine.AtKey("title", engine.KindRegister, engine.WriteRegister("hello"))); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := e.Apply(engine.DeleteKey("title")); err != nil {
		t.Fatalf("delete key: %v", err)
	}

	value, _ := e.Value()
	m := value.(map[string]any)
	if _, exists := m["title"]; exists {
		t.Errorf("expected title removed, got %+v", m)
	}
}

func TestTypeMismatchConvertsToPublicError(t *testing.T) {
	e, _ := engine.New(engine.Config{ReplicaID: "r1"})

	if _, err := e.Apply(engine.AtKey("tags", engine.KindArray,
		engine.InsertElement("t1", engine.Position{1}, engine.WriteRegister("a")))); err != nil {
		t.Fatalf("apply: %v", err)
	}

	_, err := e.Apply(engine.AtKey("tags", engine.KindMap, engine.WriteRegister("oops")))
	if err == nil {
		t.Fatal("expected a type mismatch error")
	}
	var mismatch *engine.ErrTypeMismatch
	if !asErrTypeMismatch(err, &mismatch) {
		t.Fatalf("expected *engine.ErrTypeMismatch, got %T: %v", err, err)
	}
}

func asErrTypeMismatch(err error, target **engine.ErrTypeMismatch) bool {
	if e, ok := err.(*engine.ErrTypeMismatch); ok {
		*target = e
		return true
	}
	return false
}

func TestSelectWalksDottedPath(t *testing.T) {
	e, _ := engine.New(engine.Config{ReplicaID: "r1"})

	_, err := e.Apply(engine.AtKey("profile", engine.KindMap,
		engine.AtKey("bio", engine.KindRegister, engine.WriteRegister("hiker"))))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	value, err := e.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}

	bio, err := engine.Select(value, "profile.bio")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if bio != "hiker" {
		t.Errorf("expected hiker, got %v", bio)
	}

	if _, err := engine.Select(value, "profile.missing"); err == nil {
		t.Error("expected ErrPathNotFound for missing key")
	}
}

func TestReplicaIDGeneratedWhenEmpty(t *testing.T) {
	e1, _ := engine.New(engine.Config{})
	e2, _ := engine.New(engine.Config{})
	if e1.ReplicaID() == "" {
		t.Error("expected a generated replica id")
	}
	if e1.ReplicaID() == e2.ReplicaID() {
		t.Error("expected distinct generated replica ids")
	}
}
