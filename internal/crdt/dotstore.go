package crdt

// Kind names the CRDT operating on a DotMap's children: "mvreg",
// "ormap", or "orarray". It is the typename tag every DotMap carries.
type Kind string

const (
	KindMVReg   Kind = "mvreg"
	KindORMap   Kind = "ormap"
	KindORArray Kind = "orarray"
)

// DotStore is the sealed tagged-sum type of the three dot-store
// variants: DotFun, DotFunMap, and DotMap. Dispatch on the concrete
// type (a type switch) replaces dynamic-class polymorphism, per
// there are exactly three variants and they never grow.
type DotStore interface {
	isEmpty() bool
	dotStoreMarker()
}

// DotFun maps a dot to its opaque payload. It is MVReg's state shape,
// and the shape of each slot (FIRST/SECOND) inside a DotFunMap.
type DotFun struct {
	Entries map[Dot]any
}

func NewDotFun() *DotFun {
	return &DotFun{Entries: make(map[Dot]any)}
}

func (f *DotFun) isEmpty() bool     { return f == nil || len(f.Entries) == 0 }
func (*DotFun) dotStoreMarker()     {}

// Dots returns the set of dots this DotFun currently carries payloads
// for (i.e. excluding any the context has tombstoned).
func (f *DotFun) Dots() []Dot {
	if f == nil {
		return nil
	}
	result := make([]Dot, 0, len(f.Entries))
	for d := range f.Entries {
		result = append(result, d)
	}
	return result
}

// DotFunMap maps a string key to a DotFun — "registers keyed by dot",
// used for ORArray's per-element two-slot structure ({FIRST, SECOND}),
// each slot behaving as an independent MVReg.
type DotFunMap struct {
	Entries map[string]*DotFun
}

func NewDotFunMap() *DotFunMap {
	return &DotFunMap{Entries: make(map[string]*DotFun)}
}

func (m *DotFunMap) isEmpty() bool {
	if m == nil {
		return true
	}
	for _, f := range m.Entries {
		if !f.isEmpty() {
			return false
		}
	}
	return true
}
func (*DotFunMap) dotStoreMarker() {}

// Dots returns every dot present anywhere under this DotFunMap.
func (m *DotFunMap) Dots() []Dot {
	if m == nil {
		return nil
	}
	var result []Dot
	for _, f := range m.Entries {
		result = append(result, f.Dots()...)
	}
	return result
}

// DotMap maps an application key to a nested DotStore, tagged with
// the CRDT typename that operates on it ("ormap" or "orarray"). Used
// as ORMap's top-level state, and as ORArray's top-level state
// (key = element uid, child = a two-slot DotFunMap).
type DotMap struct {
	Type    Kind
	Entries map[string]DotStore
}

func NewDotMap(kind Kind) *DotMap {
	return &DotMap{Type: kind, Entries: make(map[string]DotStore)}
}

func (m *DotMap) isEmpty() bool { return m == nil || len(m.Entries) == 0 }
func (*DotMap) dotStoreMarker() {}

// Dots returns every dot present anywhere under this DotMap.
func (m *DotMap) Dots() []Dot {
	if m == nil {
		return nil
	}
	var result []Dot
	for _, child := range m.Entries {
		result = append(result, storeDots(child)...)
	}
	return result
}

// storeDots dispatches Dots() across the tagged-sum variants,
// tolerating a nil store (the representation of an absent/empty
// child).
func storeDots(s DotStore) []Dot {
	switch v := s.(type) {
	case nil:
		return nil
	case *DotFun:
		return v.Dots()
	case *DotFunMap:
		return v.Dots()
	case *DotMap:
		return v.Dots()
	default:
		return nil
	}
}

func storeIsEmpty(s DotStore) bool {
	if s == nil {
		return true
	}
	return s.isEmpty()
}

// joinDotFun implements the core "dot-store join" rule: a
// dot survives iff it is present on both sides, or present on one
// side and not known to the other side's causal context. A dot known
// to a peer's CC but absent from that peer's store has been
// observed-and-removed by that peer.
func joinDotFun(a, b *DotFun, ccA, ccB *CausalContext) *DotFun {
	result := NewDotFun()
	if a == nil {
		a = NewDotFun()
	}
	if b == nil {
		b = NewDotFun()
	}
	for d, v := range a.Entries {
		if bv, inB := b.Entries[d]; inB {
			result.Entries[d] = bv
			continue
		}
		if !ccB.Contains(d) {
			result.Entries[d] = v
		}
	}
	for d, v := range b.Entries {
		if _, already := result.Entries[d]; already {
			continue
		}
		if !ccA.Contains(d) {
			result.Entries[d] = v
		}
	}
	return result
}

// joinDotFunMap applies the dot-store join rule per outer key: each
// key's inner DotFun is merged with joinDotFun against the same
// surrounding causal contexts. Keys are never dropped here merely for
// ending up empty — see joinDotMap's comment on why emptiness and key
// removal are kept separate.
func joinDotFunMap(a, b *DotFunMap, ccA, ccB *CausalContext) *DotFunMap {
	result := NewDotFunMap()
	if a == nil {
		a = NewDotFunMap()
	}
	if b == nil {
		b = NewDotFunMap()
	}
	keys := make(map[string]struct{}, len(a.Entries)+len(b.Entries))
	for k := range a.Entries {
		keys[k] = struct{}{}
	}
	for k := range b.Entries {
		keys[k] = struct{}{}
	}
	for k := range keys {
		result.Entries[k] = joinDotFun(a.Entries[k], b.Entries[k], ccA, ccB)
	}
	return result
}

// joinDotMap unions keys; for each shared key, children are joined
// recursively by dispatching on the child's dot-store variant. The
// two DotMaps' typenames must agree (or one side may be an empty
// placeholder with no typename yet).
//
// A key whose merged child ends up empty is kept, not dropped:
// "an empty child is equivalent to absence" is a statement
// about Value() output, not about whether the DotMap forgets the key.
// Tombstone-compaction (physically removing keys once their dots are
// subsumed) is explicitly out of scope, and retaining the key is
// exactly what lets ORArray's move/delete distinguish "never
// observed" from "observed, now tombstoned" without a separate index.
func joinDotMap(a, b *DotMap, ccA, ccB *CausalContext) (*DotMap, error) {
	if a == nil {
		a = &DotMap{}
	}
	if b == nil {
		b = &DotMap{}
	}
	kind := a.Type
	if kind == "" {
		kind = b.Type
	}
	if a.Type != "" && b.Type != "" && a.Type != b.Type {
		return nil, &ErrTypeMismatch{Expected: string(a.Type), Got: string(b.Type)}
	}
	result := NewDotMap(kind)
	keys := make(map[string]struct{}, len(a.Entries)+len(b.Entries))
	for k := range a.Entries {
		keys[k] = struct{}{}
	}
	for k := range b.Entries {
		keys[k] = struct{}{}
	}
	for k := range keys {
		merged, err := joinDotStore(a.Entries[k], ccA, b.Entries[k], ccB)
		if err != nil {
			return nil, err
		}
		result.Entries[k] = merged
	}
	return result, nil
}

// joinDotStore is the generic join dispatch: it inspects the concrete
// type of whichever of a, b is non-nil (absent sides are treated as
// empty) and routes to the matching variant's join function. Two
// non-nil sides of differing concrete variant is a structural
// mismatch and is fatal.
func joinDotStore(a DotStore, ccA *CausalContext, b DotStore, ccB *CausalContext) (DotStore, error) {
	switch av := a.(type) {
	case nil:
		switch bv := b.(type) {
		case nil:
			return nil, nil
		case *DotFun:
			return joinDotFun(nil, bv, ccA, ccB), nil
		case *DotFunMap:
			return joinDotFunMap(nil, bv, ccA, ccB), nil
		case *DotMap:
			return joinDotMap(nil, bv, ccA, ccB)
		default:
			return nil, &ErrTypeMismatch{Expected: "dot-store", Got: "unknown"}
		}
	case *DotFun:
		switch bv := b.(type) {
		case nil:
			return joinDotFun(av, nil, ccA, ccB), nil
		case *DotFun:
			return joinDotFun(av, bv, ccA, ccB), nil
		default:
			return nil, &ErrTypeMismatch{Expected: "DotFun", Got: structName(b)}
		}
	case *DotFunMap:
		switch bv := b.(type) {
		case nil:
			return joinDotFunMap(av, nil, ccA, ccB), nil
		case *DotFunMap:
			return joinDotFunMap(av, bv, ccA, ccB), nil
		default:
			return nil, &ErrTypeMismatch{Expected: "DotFunMap", Got: structName(b)}
		}
	case *DotMap:
		switch bv := b.(type) {
		case nil:
			return joinDotMap(av, nil, ccA, ccB)
		case *DotMap:
			return joinDotMap(av, bv, ccA, ccB)
		default:
			return nil, &ErrTypeMismatch{Expected: "DotMap", Got: structName(b)}
		}
	default:
		return nil, &ErrTypeMismatch{Expected: "dot-store", Got: "unknown"}
	}
}

func structName(s DotStore) string {
	switch s.(type) {
	case nil:
		return "<nil>"
	case *DotFun:
		return "DotFun"
	case *DotFunMap:
		return "DotFunMap"
	case *DotMap:
		return "DotMap"
	default:
		return "unknown"
	}
}
