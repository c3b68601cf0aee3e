package crdt

// asDotMap type-asserts s as a *DotMap tagged with expectedKind,
// treating a nil/absent store as an empty map of that kind. Any other
// concrete variant, or a DotMap tagged with a different kind, is a
// mismatch.
func asDotMap(s DotStore, expectedKind Kind) (*DotMap, error) {
	switch v := s.(type) {
	case nil:
		return NewDotMap(expectedKind), nil
	case *DotMap:
		if v.Type != "" && expectedKind != "" && v.Type != expectedKind {
			return nil, &ErrTypeMismatch{Expected: string(expectedKind), Got: string(v.Type)}
		}
		return v, nil
	default:
		return nil, &ErrTypeMismatch{Expected: string(expectedKind) + " (DotMap)", Got: structName(s)}
	}
}

// ApplyToKey obtains the current child state for key (or an empty
// child of childKind if key is absent), applies op to it, and lifts
// the resulting delta into a DotMap-shaped delta keyed by key. op
// allocates its fresh dots from state's own causal context
// — the whole replica shares one causal context, so a dot minted for
// one key's sub-CRDT can never collide with one minted for another.
func ApplyToKey(state State, key string, childKind Kind, op func(State) (State, error)) (State, error) {
	om, err := asDotMap(state.Store, KindORMap)
	if err != nil {
		return State{}, err
	}

	childStore := om.Entries[key]
	childState := State{
		ReplicaID: state.ReplicaID,
		Kind:      childKind,
		Store:     childStore,
		CC:        state.CC,
	}

	childDelta, err := op(childState)
	if err != nil {
		return State{}, err
	}

	deltaStore := NewDotMap(KindORMap)
	if !storeIsEmpty(childDelta.Store) {
		deltaStore.Entries[key] = childDelta.Store
	}

	return State{ReplicaID: state.ReplicaID, Kind: KindORMap, Store: deltaStore, CC: childDelta.CC}, nil
}

// RemoveKey produces a delta with no child for key but whose causal
// context covers every dot this replica currently observes under key.
// Joining this delta tombstones key everywhere — except wherever a
// concurrent write introduced a fresh dot this delta's context
// doesn't contain, which is how add-wins arises.
func RemoveKey(state State, key string) (State, error) {
	om, err := asDotMap(state.Store, KindORMap)
	if err != nil {
		return State{}, err
	}

	deltaCC := NewCausalContext()
	for _, d := range storeDots(om.Entries[key]) {
		deltaCC.Add(d)
	}

	return State{ReplicaID: state.ReplicaID, Kind: KindORMap, Store: NewDotMap(KindORMap), CC: deltaCC}, nil
}

// MapValue returns, for each non-empty key, the value() of its child
// CRDT. Keys whose child is empty (live data fully
// observed-removed, or a tombstone placeholder retained for the
// known-vs-never-observed distinction — see joinDotMap) read as
// absent, matching "an empty child is equivalent to absence".
func MapValue(state State) (map[string]any, error) {
	om, err := asDotMap(state.Store, KindORMap)
	if err != nil {
		return nil, err
	}
	return valueOfORMap(om)
}
