package crdt

import "sort"

// Element is one entry of an ORArray's ordered view: its uid, the
// minimal position currently held by its FIRST register (the sort
// key — see arrayElements), and the current read of its SECOND
// register (a bare value, a MultiValue, or nil).
type Element struct {
	UID      string
	Position Position
	Value    any
}

// asDotFunMap type-asserts s as a *DotFunMap, treating a nil/absent
// store as empty. Never dereferences a missing child — constructing
// an empty one instead avoids a known class of reference-CRDT bugs
// where a missing child is conflated with an empty one.
func asDotFunMap(s DotStore) (*DotFunMap, error) {
	switch v := s.(type) {
	case nil:
		return NewDotFunMap(), nil
	case *DotFunMap:
		return v, nil
	default:
		return nil, &ErrTypeMismatch{Expected: "DotFunMap", Got: structName(s)}
	}
}

const (
	slotFirst  = "FIRST"
	slotSecond = "SECOND"
)

// InsertValue creates a new element at uid: it writes position into
// the FIRST register and applies writeOp to the SECOND register,
// combining both into one delta. uid reuse after a prior
// delete is permitted — the fresh dots InsertValue allocates are
// never mistaken for the deleted element's dots, since dots are never
// reissued.
func InsertValue(state State, uid string, writeOp func(State) (State, error), position Position) (State, error) {
	om, err := asDotMap(state.Store, KindORArray)
	if err != nil {
		return State{}, err
	}
	dfm, err := asDotFunMap(om.Entries[uid])
	if err != nil {
		return State{}, err
	}

	posDelta, err := Write(State{ReplicaID: state.ReplicaID, Kind: KindMVReg, Store: dfm.Entries[slotFirst], CC: state.CC}, position)
	if err != nil {
		return State{}, err
	}
	// The value write allocates from a context that already holds the
	// position write's dot, so the two slots never share a dot.
	valCC := state.CC.Clone()
	valCC.Join(posDelta.CC)
	valDelta, err := writeOp(State{ReplicaID: state.ReplicaID, Kind: KindMVReg, Store: dfm.Entries[slotSecond], CC: valCC})
	if err != nil {
		return State{}, err
	}

	return liftElementDelta(state, uid, posDelta, valDelta), nil
}

// Move writes newPosition into the existing element's FIRST register.
// It requires uid to be known — present in the local DotMap, whether
// currently live or tombstoned — and fails with ErrMissingElement only
// if uid has never been observed at all. Move never touches SECOND,
// which is what lets a concurrent position-move and value-write
// commute instead of one clobbering the other.
func Move(state State, uid string, newPosition Position) (State, error) {
	om, err := asDotMap(state.Store, KindORArray)
	if err != nil {
		return State{}, err
	}
	childStore, known := om.Entries[uid]
	if !known {
		return State{}, &ErrMissingElement{UID: uid}
	}
	dfm, err := asDotFunMap(childStore)
	if err != nil {
		return State{}, err
	}

	posDelta, err := Write(State{ReplicaID: state.ReplicaID, Kind: KindMVReg, Store: dfm.Entries[slotFirst], CC: state.CC}, newPosition)
	if err != nil {
		return State{}, err
	}

	deltaChild := NewDotFunMap()
	deltaChild.Entries[slotFirst] = posDelta.Store.(*DotFun)

	deltaStore := NewDotMap(KindORArray)
	deltaStore.Entries[uid] = deltaChild

	return State{ReplicaID: state.ReplicaID, Kind: KindORArray, Store: deltaStore, CC: posDelta.CC}, nil
}

// ApplyToValue applies op to uid's SECOND register. It does not
// implicitly create the element — an absent uid (never observed)
// fails with ErrMissingElement, matching Move's policy, so a host
// that wants implicit creation composes InsertValue itself.
func ApplyToValue(state State, uid string, op func(State) (State, error)) (State, error) {
	om, err := asDotMap(state.Store, KindORArray)
	if err != nil {
		return State{}, err
	}
	childStore, known := om.Entries[uid]
	if !known {
		return State{}, &ErrMissingElement{UID: uid}
	}
	dfm, err := asDotFunMap(childStore)
	if err != nil {
		return State{}, err
	}

	valDelta, err := op(State{ReplicaID: state.ReplicaID, Kind: KindMVReg, Store: dfm.Entries[slotSecond], CC: state.CC})
	if err != nil {
		return State{}, err
	}

	deltaChild := NewDotFunMap()
	deltaChild.Entries[slotSecond] = valDelta.Store.(*DotFun)

	deltaStore := NewDotMap(KindORArray)
	deltaStore.Entries[uid] = deltaChild

	return State{ReplicaID: state.ReplicaID, Kind: KindORArray, Store: deltaStore, CC: valDelta.CC}, nil
}

// Delete observed-removes uid's FIRST (position) register: its delta
// carries every dot currently held by that element's FIRST slot, not
// SECOND's. Existence in the ordered view is defined entirely by
// having a live position (arrayElements skips any uid whose FIRST is
// empty), so tombstoning FIRST alone is sufficient to remove the
// element from Value() — and leaving SECOND's dots untouched is what
// lets move-wins-over-delete hold: a concurrent
// Move's fresh FIRST dot is never known to this delete's causal
// context, so the moved position survives regardless, and the old
// value dots were never contested in the first place. Fails with
// ErrMissingElement if uid has never been observed.
func Delete(state State, uid string) (State, error) {
	om, err := asDotMap(state.Store, KindORArray)
	if err != nil {
		return State{}, err
	}
	childStore, known := om.Entries[uid]
	if !known {
		return State{}, &ErrMissingElement{UID: uid}
	}
	dfm, err := asDotFunMap(childStore)
	if err != nil {
		return State{}, err
	}

	deltaCC := NewCausalContext()
	for _, d := range dfm.Entries[slotFirst].Dots() {
		deltaCC.Add(d)
	}

	return State{ReplicaID: state.ReplicaID, Kind: KindORArray, Store: NewDotMap(KindORArray), CC: deltaCC}, nil
}

// liftElementDelta combines a FIRST-slot delta and a SECOND-slot
// delta (each itself a State over a DotFun) into one ORArray-shaped
// delta keyed by uid, unioning their causal contexts.
func liftElementDelta(state State, uid string, posDelta, valDelta State) State {
	deltaChild := NewDotFunMap()
	deltaChild.Entries[slotFirst] = posDelta.Store.(*DotFun)
	deltaChild.Entries[slotSecond] = valDelta.Store.(*DotFun)

	deltaCC := NewCausalContext()
	for _, d := range posDelta.CC.Dots() {
		deltaCC.Add(d)
	}
	for _, d := range valDelta.CC.Dots() {
		deltaCC.Add(d)
	}

	deltaStore := NewDotMap(KindORArray)
	deltaStore.Entries[uid] = deltaChild

	return State{ReplicaID: state.ReplicaID, Kind: KindORArray, Store: deltaStore, CC: deltaCC}
}

// ArrayValue returns the ORArray's ordered elements, keyed by
// (minimal position, uid): a pure function of
// the joined state, independent of which replica computes it and
// independent of apply order.
func ArrayValue(state State) ([]Element, error) {
	om, err := asDotMap(state.Store, KindORArray)
	if err != nil {
		return nil, err
	}
	return arrayElements(om)
}

// valueOfORArray is the JSON-facing projection of an ORArray: the
// ordered sequence of element values, dropping uid/position (callers
// wanting those use ArrayValue directly).
func valueOfORArray(dm *DotMap) (any, error) {
	elements, err := arrayElements(dm)
	if err != nil {
		return nil, err
	}
	values := make([]any, len(elements))
	for i, e := range elements {
		values[i] = e.Value
	}
	return values, nil
}

func arrayElements(om *DotMap) ([]Element, error) {
	elements := make([]Element, 0, len(om.Entries))
	for uid, child := range om.Entries {
		dfm, err := asDotFunMap(child)
		if err != nil {
			return nil, err
		}
		posReg := dfm.Entries[slotFirst]
		if posReg.isEmpty() {
			continue // no live position: not part of the ordered sequence
		}
		minPos, err := minPosition(posReg)
		if err != nil {
			return nil, err
		}
		elements = append(elements, Element{
			UID:      uid,
			Position: minPos,
			Value:    readRegister(dfm.Entries[slotSecond]),
		})
	}

	sort.Slice(elements, func(i, j int) bool {
		if c := elements[i].Position.Compare(elements[j].Position); c != 0 {
			return c < 0
		}
		return elements[i].UID < elements[j].UID
	})
	return elements, nil
}

// minPosition picks the lexicographically smallest position among a
// FIRST register's currently live dots — the deterministic tie-break
// is required so concurrent same-position inserts or moves
// converge to one replica-independent order.
func minPosition(f *DotFun) (Position, error) {
	var min Position
	found := false
	for _, v := range f.Entries {
		pos, ok := v.(Position)
		if !ok {
			return nil, &ErrInvalidPosition{Reason: "FIRST register payload is not a Position"}
		}
		if !found || pos.Less(min) {
			min = pos
			found = true
		}
	}
	if !found {
		return nil, &ErrInvalidPosition{Reason: "empty FIRST register"}
	}
	return min, nil
}
