package crdt

// State is a (DotStore, CausalContext) pair: a CRDT's full state or a
// delta produced by an operator. ReplicaID is bound at
// construction and used only for allocating fresh dots locally — a
// delta received from a peer carries its issuer's dots already baked
// in and never allocates further.
type State struct {
	ReplicaID string
	Kind      Kind
	Store     DotStore
	CC        *CausalContext
}

// NewState returns an empty State of the given root kind, bound to
// replicaID. replicaID must be unique among the States that share the
// same stream of replicated updates (dot freshness).
func NewState(replicaID string, kind Kind) State {
	var store DotStore
	switch kind {
	case KindMVReg:
		store = NewDotFun()
	default:
		store = NewDotMap(kind)
	}
	return State{
		ReplicaID: replicaID,
		Kind:      kind,
		Store:     store,
		CC:        NewCausalContext(),
	}
}

// Join merges delta into a fresh copy of state and returns it. It
// never mutates state or delta; commutative, associative, and
// idempotent given matching root kinds.
func Join(state, delta State) (State, error) {
	if state.Kind != "" && delta.Kind != "" && state.Kind != delta.Kind {
		return State{}, &ErrTypeMismatch{Expected: string(state.Kind), Got: string(delta.Kind)}
	}
	kind := state.Kind
	if kind == "" {
		kind = delta.Kind
	}

	mergedStore, err := joinDotStore(state.Store, state.CC, delta.Store, delta.CC)
	if err != nil {
		return State{}, err
	}
	if mergedStore == nil {
		mergedStore = emptyStoreFor(kind)
	}

	mergedCC := state.CC.Clone()
	mergedCC.Join(delta.CC)

	replicaID := state.ReplicaID
	if replicaID == "" {
		replicaID = delta.ReplicaID
	}

	return State{
		ReplicaID: replicaID,
		Kind:      kind,
		Store:     mergedStore,
		CC:        mergedCC,
	}, nil
}

// emptyStoreFor returns the canonical empty dot-store for kind, used
// when a join produces no surviving dots at all.
func emptyStoreFor(kind Kind) DotStore {
	if kind == KindMVReg {
		return NewDotFun()
	}
	return NewDotMap(kind)
}

// DeltaSince returns the portion of current not yet known to base: a
// State whose CC is current.CC \ base.CC (rebuilt dot by dot with Add,
// so a run starting at sequence 1 folds into the vector and the other
// dots sit in the cloud) and whose Store carries only the payloads for
// those dots. This is the "change packaging" function.
func DeltaSince(base, current State) State {
	wanted := make(map[Dot]struct{})
	for _, d := range current.CC.Since(base.CC) {
		wanted[d] = struct{}{}
	}

	deltaCC := NewCausalContext()
	for d := range wanted {
		deltaCC.Add(d)
	}

	return State{
		ReplicaID: current.ReplicaID,
		Kind:      current.Kind,
		Store:     filterStore(current.Store, wanted),
		CC:        deltaCC,
	}
}

// filterStore returns a copy of s containing only dots in wanted,
// dispatching across the three dot-store variants.
func filterStore(s DotStore, wanted map[Dot]struct{}) DotStore {
	switch v := s.(type) {
	case nil:
		return nil
	case *DotFun:
		out := NewDotFun()
		for d, val := range v.Entries {
			if _, ok := wanted[d]; ok {
				out.Entries[d] = val
			}
		}
		return out
	case *DotFunMap:
		out := NewDotFunMap()
		for k, f := range v.Entries {
			filtered := filterStore(f, wanted).(*DotFun)
			if !filtered.isEmpty() {
				out.Entries[k] = filtered
			}
		}
		return out
	case *DotMap:
		out := NewDotMap(v.Type)
		for k, child := range v.Entries {
			filtered := filterStore(child, wanted)
			if !storeIsEmpty(filtered) {
				out.Entries[k] = filtered
			}
		}
		return out
	default:
		return nil
	}
}
