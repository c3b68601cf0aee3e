package crdt

import "testing"

func TestCausalContextNextIsContiguous(t *testing.T) {
	cc := NewCausalContext()
	d1 := cc.Next("r1")
	d2 := cc.Next("r1")
	d3 := cc.Next("r1")

	if d1.Seq != 1 || d2.Seq != 2 || d3.Seq != 3 {
		t.Fatalf("expected contiguous sequence 1,2,3; got %d,%d,%d", d1.Seq, d2.Seq, d3.Seq)
	}
	for _, d := range []Dot{d1, d2, d3} {
		if !cc.Contains(d) {
			t.Errorf("Contains(%v) = false, want true after Next", d)
		}
	}
}

func TestCausalContextIndependentReplicas(t *testing.T) {
	cc := NewCausalContext()
	a1 := cc.Next("a")
	b1 := cc.Next("b")
	a2 := cc.Next("a")

	if a1.Seq != 1 || a2.Seq != 2 || b1.Seq != 1 {
		t.Fatalf("per-replica sequences not independent: a1=%d a2=%d b1=%d", a1.Seq, a2.Seq, b1.Seq)
	}
}

func TestCausalContextAddCompactsCloud(t *testing.T) {
	cc := NewCausalContext()
	// Add dots out of order: seq 2 before seq 1. Neither is contiguous
	// with the vector (which starts at 0) until 1 arrives.
	cc.Add(Dot{ReplicaID: "r1", Seq: 2})
	if !cc.Contains(Dot{"r1", 2}) {
		t.Fatal("Contains should be true for a dot recorded via the cloud")
	}
	if cc.Contains(Dot{"r1", 1}) {
		t.Fatal("Contains should be false for a never-added dot")
	}

	cc.Add(Dot{ReplicaID: "r1", Seq: 1})
	// Now 1 and 2 are both known; the vector should have compacted
	// them, i.e. Next should allocate 3.
	d := cc.Next("r1")
	if d.Seq != 3 {
		t.Errorf("Next after compaction = %d, want 3", d.Seq)
	}
}

func TestCausalContextJoinUnionsKnowledge(t *testing.T) {
	a := NewCausalContext()
	a.Add(Dot{"r1", 1})
	a.Add(Dot{"r1", 2})

	b := NewCausalContext()
	b.Add(Dot{"r2", 1})
	b.Add(Dot{"r1", 3})

	a.Join(b)

	for _, d := range []Dot{{"r1", 1}, {"r1", 2}, {"r1", 3}, {"r2", 1}} {
		if !a.Contains(d) {
			t.Errorf("after Join, Contains(%v) = false, want true", d)
		}
	}
	// r1's dots 1-3 are contiguous and should have compacted into the
	// vector, so the next allocation is 4.
	if d := a.Next("r1"); d.Seq != 4 {
		t.Errorf("Next after Join = %d, want 4", d.Seq)
	}
}

func TestCausalContextSince(t *testing.T) {
	base := NewCausalContext()
	base.Add(Dot{"r1", 1})

	current := base.Clone()
	current.Add(Dot{"r1", 2})
	current.Add(Dot{"r2", 1})

	got := current.Since(base)
	want := map[Dot]bool{{"r1", 2}: true, {"r2", 1}: true}
	if len(got) != len(want) {
		t.Fatalf("Since returned %d dots, want %d", len(got), len(want))
	}
	for _, d := range got {
		if !want[d] {
			t.Errorf("Since returned unexpected dot %v", d)
		}
	}
}

func TestCausalContextIsEmpty(t *testing.T) {
	cc := NewCausalContext()
	if !cc.IsEmpty() {
		t.Error("fresh CausalContext should be empty")
	}
	cc.Next("r1")
	if cc.IsEmpty() {
		t.Error("CausalContext should not be empty after Next")
	}
}

func TestCausalContextCloneIsIndependent(t *testing.T) {
	a := NewCausalContext()
	a.Next("r1")

	clone := a.Clone()
	clone.Next("r1")

	if a.Contains(Dot{"r1", 2}) {
		t.Error("mutating a clone must not affect the original")
	}
}
