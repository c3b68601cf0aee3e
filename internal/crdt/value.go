package crdt

// MultiValue is the public read-shape of a register (MVReg, or an
// ORArray element's SECOND slot) that currently holds more than
// one concurrently-written value. A single surviving value reads as
// a bare value, not a MultiValue — see readRegister.
type MultiValue []any

// readRegister returns the JSON-facing read of a DotFun: the bare
// value if exactly one survives, a MultiValue if several concurrent
// writes survive, or nil if the register is empty/cleared.
func readRegister(f *DotFun) any {
	if f.isEmpty() {
		return nil
	}
	values := make([]any, 0, len(f.Entries))
	for _, v := range f.Entries {
		values = append(values, v)
	}
	if len(values) == 1 {
		return values[0]
	}
	return MultiValue(values)
}

// Value projects state's store into a plain JSON-like tree,
// dispatching on the root store's variant (and a DotMap's typename);
// state.Kind is not consulted.
func Value(state State) (any, error) {
	return valueOfStore(state.Store)
}

// valueOfStore dispatches Value() across the dot-store variants,
// producing a plain JSON-like tree: objects
// from ORMap, sequences from ORArray, bare/multi values from MVReg.
func valueOfStore(s DotStore) (any, error) {
	switch v := s.(type) {
	case nil:
		return nil, nil
	case *DotFun:
		return readRegister(v), nil
	case *DotMap:
		switch v.Type {
		case KindORMap:
			return valueOfORMap(v)
		case KindORArray:
			return valueOfORArray(v)
		default:
			return nil, &ErrTypeMismatch{Expected: "ormap or orarray", Got: string(v.Type)}
		}
	default:
		return nil, &ErrTypeMismatch{Expected: "DotFun or DotMap", Got: structName(s)}
	}
}

// valueOfORMap builds the object view of an ORMap's DotMap: for each
// key whose child is non-empty, that child's own Value().
func valueOfORMap(dm *DotMap) (map[string]any, error) {
	result := make(map[string]any)
	for key, child := range dm.Entries {
		if storeIsEmpty(child) {
			continue
		}
		v, err := valueOfStore(child)
		if err != nil {
			return nil, err
		}
		result[key] = v
	}
	return result, nil
}
