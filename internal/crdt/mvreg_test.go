package crdt

import (
	"reflect"
	"testing"
)

func TestMVRegWriteReadRoundtrip(t *testing.T) {
	state := NewState("r1", KindMVReg)

	delta, err := Write(state, "hello")
	if err != nil {
		t.Fatal(err)
	}
	state, err = Join(state, delta)
	if err != nil {
		t.Fatal(err)
	}

	values, err := Read(state)
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != 1 || values[0] != "hello" {
		t.Fatalf("Read() = %v, want [\"hello\"]", values)
	}
}

func TestMVRegSecondWriteTombstonesFirst(t *testing.T) {
	state := NewState("r1", KindMVReg)

	d1, _ := Write(state, "v1")
	state, _ = Join(state, d1)
	d2, _ := Write(state, "v2")
	state, _ = Join(state, d2)

	values, err := Read(state)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(values, []any{"v2"}) {
		t.Fatalf("Read() = %v, want [\"v2\"]", values)
	}
}

func TestMVRegConcurrentWritesSurviveAsMultiValue(t *testing.T) {
	r1 := NewState("r1", KindMVReg)
	d1, _ := Write(r1, "from-r1")

	r2 := NewState("r2", KindMVReg)
	d2, _ := Write(r2, "from-r2")

	merged, err := Join(d1, d2)
	if err != nil {
		t.Fatal(err)
	}
	values, err := Read(merged)
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != 2 {
		t.Fatalf("expected both concurrent writes to survive, got %v", values)
	}

	v, err := Value(merged)
	if err != nil {
		t.Fatal(err)
	}
	mv, ok := v.(MultiValue)
	if !ok || len(mv) != 2 {
		t.Fatalf("Value() = %#v, want a 2-element MultiValue", v)
	}
}

func TestMVRegClear(t *testing.T) {
	state := NewState("r1", KindMVReg)
	d1, _ := Write(state, "v1")
	state, _ = Join(state, d1)

	clearDelta, err := Clear(state)
	if err != nil {
		t.Fatal(err)
	}
	state, err = Join(state, clearDelta)
	if err != nil {
		t.Fatal(err)
	}

	values, err := Read(state)
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != 0 {
		t.Fatalf("Read() after Clear = %v, want empty", values)
	}
}

func TestMVRegJoinIsIdempotent(t *testing.T) {
	state := NewState("r1", KindMVReg)
	d, _ := Write(state, "v")

	once, err := Join(state, d)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := Join(once, d)
	if err != nil {
		t.Fatal(err)
	}

	onceVal, _ := Value(once)
	twiceVal, _ := Value(twice)
	if !reflect.DeepEqual(onceVal, twiceVal) {
		t.Errorf("Join(state, d) applied twice diverged: %v vs %v", onceVal, twiceVal)
	}
}
