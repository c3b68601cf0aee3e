package crdt

// asDotFun type-asserts s as a *DotFun, treating a nil/absent store as
// an empty one. Any other concrete variant is a structural mismatch.
func asDotFun(s DotStore) (*DotFun, error) {
	switch v := s.(type) {
	case nil:
		return NewDotFun(), nil
	case *DotFun:
		return v, nil
	default:
		return nil, &ErrTypeMismatch{Expected: "DotFun", Got: structName(s)}
	}
}

// Write allocates a fresh dot from a copy of state's causal context
// (state itself is left unchanged; the dot enters its context when the
// delta is joined) and returns a delta whose DotFun is
// {dot -> value} and whose causal context contains that dot plus
// every dot currently in the register, so joining the delta
// tombstones every value this write observed and replaces it.
// Concurrent writes from different replicas each carry only
// their own dot in the delta's store, so both survive a join — the
// multi-value behavior a register must exhibit.
func Write(state State, value any) (State, error) {
	reg, err := asDotFun(state.Store)
	if err != nil {
		return State{}, err
	}

	dot := state.CC.Clone().Next(state.ReplicaID)

	deltaStore := NewDotFun()
	deltaStore.Entries[dot] = value

	deltaCC := NewCausalContext()
	deltaCC.Add(dot)
	for _, d := range reg.Dots() {
		deltaCC.Add(d)
	}

	return State{ReplicaID: state.ReplicaID, Kind: KindMVReg, Store: deltaStore, CC: deltaCC}, nil
}

// Read returns the set of values currently held by the register. More
// than one value means concurrent writers raced and neither has yet
// observed the other (multi-value semantics).
func Read(state State) ([]any, error) {
	reg, err := asDotFun(state.Store)
	if err != nil {
		return nil, err
	}
	values := make([]any, 0, len(reg.Entries))
	for _, v := range reg.Entries {
		values = append(values, v)
	}
	return values, nil
}

// Clear produces a delta that observed-removes every value currently
// in the register: an empty DotFun with a causal context covering all
// of the register's current dots.
func Clear(state State) (State, error) {
	reg, err := asDotFun(state.Store)
	if err != nil {
		return State{}, err
	}
	deltaCC := NewCausalContext()
	for _, d := range reg.Dots() {
		deltaCC.Add(d)
	}
	return State{ReplicaID: state.ReplicaID, Kind: KindMVReg, Store: NewDotFun(), CC: deltaCC}, nil
}
