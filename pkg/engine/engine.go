// Package engine is the public API for the replicated JSON document
// engine.
//
// This is the only package external applications should import —
// internal/crdt's join algebra is an implementation detail. A
// document is a tree of MVReg/ORMap/ORArray nodes; callers build
// Operators bottom-up with WriteRegister/InsertElement/etc and
// AtKey/AtElement, then Apply them to an Engine, and ship the
// resulting Delta to peers over whatever transport they choose. Apply,
// Join and DeltaSince never touch the network; features.go separately
// re-exports an optional libp2p SyncService and the other host-side
// packages.
//
// Example usage:
//
//	e, err := engine.New(engine.Config{ReplicaID: "laptop-1"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_, err = e.Apply(engine.AtKey("title", engine.KindRegister,
//	    engine.WriteRegister("hello world")))
package engine

import (
	"fmt"
	"sync"

	"github.com/amaydixit11/jsoncrdt/internal/crdt"
)

// Kind names the CRDT operating at a given tree node: a scalar
// register, an object, or an ordered array.
type Kind = crdt.Kind

const (
	KindRegister Kind = crdt.KindMVReg
	KindMap      Kind = crdt.KindORMap
	KindArray    Kind = crdt.KindORArray
)

// State is a document's full replicated state, or a delta carved out
// of one — the engine treats the two as interchangeable, and so does
// this package: a Delta returned by Apply/DeltaSince is itself a
// valid State to Join. Exported as a type alias rather than a
// from-scratch wrapper struct because the (Store, CausalContext) pair
// already *is* the public vocabulary this domain needs; there is no
// simpler "friendlier" shape to convert it into.
type State = crdt.State

// Delta is State under the name callers reach for when thinking about
// "the bytes I need to send a peer" rather than "the document".
type Delta = crdt.State

// Position is an ORArray element's sort key.
type Position = crdt.Position

// Between returns a position strictly between p and q; see
// crdt.Between for the density guarantee.
func Between(p, q Position) (Position, error) {
	return crdt.Between(p, q)
}

// MultiValue is the public read-shape of a register currently holding
// more than one concurrently-written value.
type MultiValue = crdt.MultiValue

// Element is one entry of an ORArray's ordered read view.
type Element = crdt.Element

// Operator is a pure function from a State to the delta one operation
// produces — a "(args…, state) → delta" function. Built with
// WriteRegister, InsertElement, AtKey, and friends below, then run
// through Engine.Apply.
type Operator func(State) (State, error)

// Config configures a new Engine.
type Config struct {
	// ReplicaID identifies this engine's replica for dot allocation.
	// Must be unique among replicas that will ever exchange deltas
	// with each other (the dot-freshness requirement). If
	// empty, New generates one.
	ReplicaID string

	// RootKind is the CRDT kind of the document's root node. Defaults
	// to KindMap — a JSON object is the natural document root.
	RootKind Kind
}

// Engine holds one replica's live document state and serializes
// concurrent access to it. All operators are pure; Engine just owns
// the mutable State they fold into.
type Engine struct {
	mu    sync.Mutex
	state State
}

// New returns an Engine with an empty document of cfg.RootKind.
func New(cfg Config) (*Engine, error) {
	replicaID := cfg.ReplicaID
	if replicaID == "" {
		replicaID = generateReplicaID()
	}
	rootKind := cfg.RootKind
	if rootKind == "" {
		rootKind = KindMap
	}
	return &Engine{state: crdt.NewState(replicaID, rootKind)}, nil
}

// ReplicaID returns this engine's replica identifier.
func (e *Engine) ReplicaID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.ReplicaID
}

// Apply runs op against the engine's current state, joins the
// resulting delta into that state, and returns the delta — the
// payload a host ships to peers ("host applies them by
// join").
func (e *Engine) Apply(op Operator) (Delta, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delta, err := op(e.state)
	if err != nil {
		return State{}, err
	}
	merged, err := crdt.Join(e.state, delta)
	if err != nil {
		return State{}, convertError(err)
	}
	e.state = merged
	return delta, nil
}

// Join merges a delta received from a peer into the engine's state.
func (e *Engine) Join(delta Delta) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	merged, err := crdt.Join(e.state, delta)
	if err != nil {
		return convertError(err)
	}
	e.state = merged
	return nil
}

// Value returns the current document as a plain JSON-like tree: maps
// from KindMap nodes, slices from KindArray nodes, bare or MultiValue
// reads from KindRegister nodes.
func (e *Engine) Value() (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	value, err := crdt.Value(e.state)
	return value, convertError(err)
}

// Snapshot returns the engine's full current state, suitable for use
// as the base argument to a later DeltaSince call, or for joining
// directly into a freshly-constructed peer engine during initial
// sync.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// DeltaSince returns the portion of the engine's current state not
// yet known to base — the change-packaging function
// describes, for shipping only what a peer hasn't already observed.
func (e *Engine) DeltaSince(base State) Delta {
	e.mu.Lock()
	defer e.mu.Unlock()
	return crdt.DeltaSince(base, e.state)
}

// generateReplicaID produces a default replica identifier,
// "replica-N", from a process-wide counter when the caller doesn't
// supply one. Ids are distinct within one process only: every process
// starts again at replica-1, so engines that exchange deltas across
// processes need Config.ReplicaID set explicitly.
func generateReplicaID() string {
	return fmt.Sprintf("replica-%d", replicaCounter.next())
}

var replicaCounter counter

type counter struct {
	mu sync.Mutex
	n  uint64
}

func (c *counter) next() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.n
}
