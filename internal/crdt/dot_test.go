package crdt

import "testing"

func TestDotString(t *testing.T) {
	d := Dot{ReplicaID: "r1", Seq: 7}
	if got, want := d.String(), "r1:7"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestDotLess(t *testing.T) {
	cases := []struct {
		a, b Dot
		want bool
	}{
		{Dot{"r1", 1}, Dot{"r1", 2}, true},
		{Dot{"r1", 2}, Dot{"r1", 1}, false},
		{Dot{"r1", 1}, Dot{"r1", 1}, false},
		{Dot{"r1", 5}, Dot{"r2", 1}, true},
		{Dot{"r2", 1}, Dot{"r1", 5}, false},
	}
	for _, c := range cases {
		if got := c.a.Less(c.b); got != c.want {
			t.Errorf("%v.Less(%v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}
