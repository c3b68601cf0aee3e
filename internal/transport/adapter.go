package transport

import (
	"github.com/amaydixit11/jsoncrdt/internal/crdt"
)

// Engine is the subset of pkg/engine.Engine's surface this package
// needs. It is declared as an interface here, rather than importing
// pkg/engine directly, so the dependency runs the way the rest of the
// domain stack does: pkg/engine imports internal/transport (to expose
// it through NewSyncService), and not the reverse.
type Engine interface {
	Snapshot() crdt.State
	Join(delta crdt.State) error
	DeltaSince(base crdt.State) crdt.State
}

// EngineAdapter adapts an Engine into the StateProvider this
// package's sync protocol needs.
type EngineAdapter struct {
	engine Engine
}

// NewEngineAdapter wraps engine as a StateProvider.
func NewEngineAdapter(engine Engine) *EngineAdapter {
	return &EngineAdapter{engine: engine}
}

// State returns the replica's current full state.
func (a *EngineAdapter) State() crdt.State {
	return a.engine.Snapshot()
}

// Join merges a peer's state into the replica.
func (a *EngineAdapter) Join(state crdt.State) error {
	return a.engine.Join(state)
}

// StateHash hashes the replica's current state for cheap divergence
// detection between two peers.
func (a *EngineAdapter) StateHash() []byte {
	return ComputeStateHash(a.engine.Snapshot())
}
