package engine

import "github.com/amaydixit11/jsoncrdt/internal/crdt"

// WriteRegister returns an Operator that overwrites the MVReg at the
// targeted tree node with value, tombstoning any concurrently-visible
// prior writes.
func WriteRegister(value any) Operator {
	return func(state State) (State, error) {
		delta, err := crdt.Write(state, value)
		return delta, convertError(err)
	}
}

// ClearRegister returns an Operator that removes every value currently
// visible at the targeted MVReg, leaving it empty without writing a
// replacement.
func ClearRegister() Operator {
	return func(state State) (State, error) {
		delta, err := crdt.Clear(state)
		return delta, convertError(err)
	}
}

// AtKey returns an Operator that descends into the ORMap child at key
// — creating it as childKind if this is the first write to ever reach
// it — and runs op against that child's state.
func AtKey(key string, childKind Kind, op Operator) Operator {
	return func(state State) (State, error) {
		delta, err := crdt.ApplyToKey(state, key, childKind, op)
		return delta, convertError(err)
	}
}

// DeleteKey returns an Operator that removes key from the targeted
// ORMap, tombstoning every dot observed under it (the
// observed-remove semantics).
func DeleteKey(key string) Operator {
	return func(state State) (State, error) {
		delta, err := crdt.RemoveKey(state, key)
		return delta, convertError(err)
	}
}

// InsertElement returns an Operator that inserts a new ORArray element
// identified by uid at position, initialized by running value against
// an empty state. Reusing a uid after a prior delete is
// permitted: the fresh dots this allocates are never mistaken for the
// deleted element's, since dots are never reissued.
func InsertElement(uid string, position Position, value Operator) Operator {
	return func(state State) (State, error) {
		delta, err := crdt.InsertValue(state, uid, value, position)
		return delta, convertError(err)
	}
}

// AtElement returns an Operator that runs op against the state of the
// existing ORArray element uid, leaving its position unchanged.
func AtElement(uid string, op Operator) Operator {
	return func(state State) (State, error) {
		delta, err := crdt.ApplyToValue(state, uid, op)
		return delta, convertError(err)
	}
}

// MoveElement returns an Operator that reassigns uid's position
// without touching its value — a move concurrent with an update to the
// same element commutes (move and update commute).
func MoveElement(uid string, newPosition Position) Operator {
	return func(state State) (State, error) {
		delta, err := crdt.Move(state, uid, newPosition)
		return delta, convertError(err)
	}
}

// DeleteElement returns an Operator that removes uid from the targeted
// ORArray. A concurrent move of the same uid wins over the delete:
// the element survives at its moved position.
func DeleteElement(uid string) Operator {
	return func(state State) (State, error) {
		delta, err := crdt.Delete(state, uid)
		return delta, convertError(err)
	}
}
