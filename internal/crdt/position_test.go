package crdt

import (
	"math/rand"
	"testing"
	"time"
)

func TestPositionCompare(t *testing.T) {
	cases := []struct {
		p, q Position
		want int
	}{
		{Position{100}, Position{200}, -1},
		{Position{200}, Position{100}, 1},
		{Position{100}, Position{100}, 0},
		{Position{100}, Position{100, 1}, -1}, // missing trailing digit treated as 0
		{Position{100, 1}, Position{100}, 1},
	}
	for _, c := range cases {
		if got := c.p.Compare(c.q); got != c.want {
			t.Errorf("%v.Compare(%v) = %d, want %d", c.p, c.q, got, c.want)
		}
	}
}

func TestBetweenRejectsNonIncreasing(t *testing.T) {
	if _, err := Between(Position{200}, Position{100}); err == nil {
		t.Fatal("expected an error for p >= q")
	}
	if _, err := Between(Position{100}, Position{100}); err == nil {
		t.Fatal("expected an error for p == q")
	}
}

func TestBetweenSatisfiesDensity(t *testing.T) {
	cases := []struct{ p, q Position }{
		{Position{100}, Position{200}},
		{Position{100}, Position{101}},
		{Position{100}, Position{100, 50}},
		{Position{}, Position{1}},
		{Position{0}, Position{1}},
	}
	for _, c := range cases {
		r, err := Between(c.p, c.q)
		if err != nil {
			t.Fatalf("Between(%v, %v) error: %v", c.p, c.q, err)
		}
		if !c.p.Less(r) || !r.Less(c.q) {
			t.Errorf("Between(%v, %v) = %v, want p < r < q", c.p, c.q, r)
		}
	}
}

// TestBetweenRepeatedBisection exercises position density by
// repeatedly inserting strictly between the two
// nearest neighbors, simulating a long run of same-spot insertions
// that must never collide or require renumbering.
func TestBetweenRepeatedBisection(t *testing.T) {
	seed := time.Now().UnixNano()
	rng := rand.New(rand.NewSource(seed))
	t.Logf("seed: %d", seed)

	positions := []Position{{0}, {1000}}
	for i := 0; i < 200; i++ {
		idx := rng.Intn(len(positions) - 1)
		p, q := positions[idx], positions[idx+1]
		r, err := Between(p, q)
		if err != nil {
			t.Fatalf("iteration %d: Between(%v, %v) error: %v", i, p, q, err)
		}
		if !p.Less(r) || !r.Less(q) {
			t.Fatalf("iteration %d: Between(%v, %v) = %v violates density", i, p, q, r)
		}
		positions = append(positions[:idx+1], append([]Position{r}, positions[idx+1:]...)...)
	}

	for i := 1; i < len(positions); i++ {
		if !positions[i-1].Less(positions[i]) {
			t.Fatalf("positions not strictly increasing at index %d: %v >= %v", i, positions[i-1], positions[i])
		}
	}
}
