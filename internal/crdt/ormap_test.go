package crdt

import (
	"reflect"
	"testing"
)

func writeOp(value any) func(State) (State, error) {
	return func(s State) (State, error) { return Write(s, value) }
}

func TestORMapApplyAndRead(t *testing.T) {
	state := NewState("r1", KindORMap)

	delta, err := ApplyToKey(state, "k", KindMVReg, writeOp("v0"))
	if err != nil {
		t.Fatal(err)
	}
	state, err = Join(state, delta)
	if err != nil {
		t.Fatal(err)
	}

	got, err := MapValue(state)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, map[string]any{"k": "v0"}) {
		t.Fatalf("MapValue() = %v, want {k: v0}", got)
	}
}

func TestORMapRemoveKeyVanishesFromValue(t *testing.T) {
	state := NewState("r1", KindORMap)
	d1, _ := ApplyToKey(state, "k", KindMVReg, writeOp("v0"))
	state, _ = Join(state, d1)

	d2, err := RemoveKey(state, "k")
	if err != nil {
		t.Fatal(err)
	}
	state, err = Join(state, d2)
	if err != nil {
		t.Fatal(err)
	}

	got, err := MapValue(state)
	if err != nil {
		t.Fatal(err)
	}
	if _, present := got["k"]; present {
		t.Errorf("MapValue() = %v, key \"k\" should be absent after RemoveKey", got)
	}
}

// TestORMapAddWins checks add-wins semantics: ORMap starting
// {k->"v0"}. Concurrently r1 writes k->"v1", r2 removes k. Result
// must be {k -> {"v1"}}: the concurrent write's dot is never known to
// the remove's causal context, so it survives (add-wins).
func TestORMapAddWins(t *testing.T) {
	base := NewState("r0", KindORMap)
	d0, _ := ApplyToKey(base, "k", KindMVReg, writeOp("v0"))
	base, _ = Join(base, d0)

	// r1 and r2 each start as their own independent replica synced to
	// base, then diverge concurrently.
	r1, err := Join(NewState("r1", KindORMap), base)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := Join(NewState("r2", KindORMap), base)
	if err != nil {
		t.Fatal(err)
	}

	writeDelta, err := ApplyToKey(r1, "k", KindMVReg, writeOp("v1"))
	if err != nil {
		t.Fatal(err)
	}
	removeDelta, err := RemoveKey(r2, "k")
	if err != nil {
		t.Fatal(err)
	}

	merged, err := Join(base, writeDelta)
	if err != nil {
		t.Fatal(err)
	}
	merged, err = Join(merged, removeDelta)
	if err != nil {
		t.Fatal(err)
	}

	got, err := MapValue(merged)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got["k"], "v1") {
		t.Fatalf("MapValue()[\"k\"] = %#v, want \"v1\" (add-wins)", got["k"])
	}
}

func TestORMapNestedChild(t *testing.T) {
	state := NewState("r1", KindORMap)

	nestedOp := func(inner State) (State, error) {
		return ApplyToKey(inner, "inner", KindMVReg, writeOp(42))
	}
	delta, err := ApplyToKey(state, "outer", KindORMap, nestedOp)
	if err != nil {
		t.Fatal(err)
	}
	state, err = Join(state, delta)
	if err != nil {
		t.Fatal(err)
	}

	got, err := MapValue(state)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"outer": map[string]any{"inner": 42}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("MapValue() = %#v, want %#v", got, want)
	}
}

func TestORMapTypeMismatch(t *testing.T) {
	state := NewState("r1", KindORMap)
	d, _ := ApplyToKey(state, "k", KindMVReg, writeOp("v"))
	state, _ = Join(state, d)

	// Trying to treat "k" (an MVReg) as a nested ORMap is a structural
	// mismatch.
	_, err := ApplyToKey(state, "k", KindORMap, func(s State) (State, error) {
		return ApplyToKey(s, "x", KindMVReg, writeOp("y"))
	})
	if err == nil {
		t.Fatal("expected a type-mismatch error")
	}
	if _, ok := err.(*ErrTypeMismatch); !ok {
		t.Errorf("expected *ErrTypeMismatch, got %T: %v", err, err)
	}
}
