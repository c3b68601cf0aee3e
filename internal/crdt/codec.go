package crdt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MarshalText renders a Dot as "replicaID\x1fseq" so it can serve as a
// JSON object key (encoding/json marshals/unmarshals map keys whose
// type implements encoding.TextMarshaler/TextUnmarshaler). The unit
// separator is used instead of a printable delimiter like ':' because
// a replica id is caller-supplied and must not be assumed free of it.
func (d Dot) MarshalText() ([]byte, error) {
	return []byte(d.ReplicaID + "\x1f" + strconv.FormatUint(d.Seq, 10)), nil
}

// UnmarshalText parses the format produced by MarshalText.
func (d *Dot) UnmarshalText(text []byte) error {
	s := string(text)
	i := strings.LastIndexByte(s, '\x1f')
	if i < 0 {
		return fmt.Errorf("crdt: malformed dot %q", s)
	}
	seq, err := strconv.ParseUint(s[i+1:], 10, 64)
	if err != nil {
		return fmt.Errorf("crdt: malformed dot sequence in %q: %w", s, err)
	}
	d.ReplicaID = s[:i]
	d.Seq = seq
	return nil
}

// MarshalJSON encodes a causal context as its flat dot set. The
// vector/cloud split is a storage optimization internal to this
// package; a receiver rebuilds an equivalent (if differently
// partitioned) context by Add-ing every dot, and Contains is
// unaffected by which partition a dot happens to live in.
func (c *CausalContext) MarshalJSON() ([]byte, error) {
	dots := c.Dots()
	if dots == nil {
		dots = []Dot{}
	}
	return json.Marshal(dots)
}

// UnmarshalJSON rebuilds a causal context from the flat dot set
// produced by MarshalJSON.
func (c *CausalContext) UnmarshalJSON(data []byte) error {
	var dots []Dot
	if err := json.Unmarshal(data, &dots); err != nil {
		return err
	}
	*c = *NewCausalContext()
	for _, d := range dots {
		c.Add(d)
	}
	return nil
}

// valueKindTag names the concrete Go type a DotFun payload needs
// restored to on decode. Most payloads are arbitrary application JSON
// and decode fine into `any`, but Position (ORArray's FIRST-slot
// payload) must come back as a Position, not a generic []interface{}
// of float64 — minPosition type-asserts it.
type valueKindTag string

const (
	valueKindJSON     valueKindTag = "json"
	valueKindPosition valueKindTag = "position"
)

// wireValue is the tagged envelope a DotFun entry's payload travels in.
type wireValue struct {
	Kind valueKindTag    `json:"kind"`
	Data json.RawMessage `json:"data"`
}

func encodeValue(v any) (wireValue, error) {
	if pos, ok := v.(Position); ok {
		data, err := json.Marshal([]int(pos))
		return wireValue{Kind: valueKindPosition, Data: data}, err
	}
	data, err := json.Marshal(v)
	return wireValue{Kind: valueKindJSON, Data: data}, err
}

func decodeValue(w wireValue) (any, error) {
	switch w.Kind {
	case valueKindPosition:
		var ints []int
		if err := json.Unmarshal(w.Data, &ints); err != nil {
			return nil, err
		}
		return Position(ints), nil
	default:
		var v any
		if err := json.Unmarshal(w.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

// wireDotFun is DotFun's wire shape: a flat list rather than a JSON
// object, since Dot (the map key) isn't a plain string and encodes via
// MarshalText into one containing \x1f, which is legal in a JSON
// object key but needlessly obscure — a list of explicit entries reads
// better in a persisted snapshot or wire capture.
type wireDotFun struct {
	Dot   Dot       `json:"dot"`
	Value wireValue `json:"value"`
}

// MarshalJSON tags each entry's payload with its concrete type so
// UnmarshalJSON can restore a Position rather than losing it to
// generic []interface{} decoding.
func (f *DotFun) MarshalJSON() ([]byte, error) {
	entries := make([]wireDotFun, 0, len(f.Entries))
	for d, v := range f.Entries {
		encoded, err := encodeValue(v)
		if err != nil {
			return nil, err
		}
		entries = append(entries, wireDotFun{Dot: d, Value: encoded})
	}
	return json.Marshal(entries)
}

// UnmarshalJSON is MarshalJSON's inverse.
func (f *DotFun) UnmarshalJSON(data []byte) error {
	var entries []wireDotFun
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	f.Entries = make(map[Dot]any, len(entries))
	for _, e := range entries {
		v, err := decodeValue(e.Value)
		if err != nil {
			return err
		}
		f.Entries[e.Dot] = v
	}
	return nil
}

// storeKindTag names a DotStore's concrete variant on the wire, since
// json.Unmarshal cannot allocate a concrete type for an interface
// field on its own.
type storeKindTag string

const (
	storeKindNil    storeKindTag = ""
	storeKindFun    storeKindTag = "fun"
	storeKindFunMap storeKindTag = "funmap"
	storeKindMap    storeKindTag = "map"
)

// wireStore is the tagged envelope a DotStore is wrapped in wherever
// it appears as an interface-typed field (DotMap.Entries' values, and
// State.Store at the root).
type wireStore struct {
	Kind storeKindTag    `json:"kind,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

func encodeStore(s DotStore) (wireStore, error) {
	switch v := s.(type) {
	case nil:
		return wireStore{Kind: storeKindNil}, nil
	case *DotFun:
		data, err := json.Marshal(v)
		return wireStore{Kind: storeKindFun, Data: data}, err
	case *DotFunMap:
		data, err := json.Marshal(v)
		return wireStore{Kind: storeKindFunMap, Data: data}, err
	case *DotMap:
		data, err := json.Marshal(v)
		return wireStore{Kind: storeKindMap, Data: data}, err
	default:
		return wireStore{}, &ErrTypeMismatch{Expected: "dot-store", Got: "unknown"}
	}
}

func decodeStore(w wireStore) (DotStore, error) {
	switch w.Kind {
	case storeKindNil:
		return nil, nil
	case storeKindFun:
		var f DotFun
		if err := json.Unmarshal(w.Data, &f); err != nil {
			return nil, err
		}
		return &f, nil
	case storeKindFunMap:
		var m DotFunMap
		if err := json.Unmarshal(w.Data, &m); err != nil {
			return nil, err
		}
		return &m, nil
	case storeKindMap:
		var m DotMap
		if err := json.Unmarshal(w.Data, &m); err != nil {
			return nil, err
		}
		return &m, nil
	default:
		return nil, &ErrTypeMismatch{Expected: "dot-store", Got: string(w.Kind)}
	}
}

// wireDotMap is DotMap's wire shape: its children need the storeKindTag
// envelope since DotMap.Entries holds the DotStore interface.
type wireDotMap struct {
	Type    Kind                 `json:"type"`
	Entries map[string]wireStore `json:"entries"`
}

// MarshalJSON tags each child with its concrete dot-store variant.
func (m *DotMap) MarshalJSON() ([]byte, error) {
	w := wireDotMap{Type: m.Type, Entries: make(map[string]wireStore, len(m.Entries))}
	for k, child := range m.Entries {
		encoded, err := encodeStore(child)
		if err != nil {
			return nil, err
		}
		w.Entries[k] = encoded
	}
	return json.Marshal(w)
}

// UnmarshalJSON reconstructs each child's concrete dot-store type from
// its tag.
func (m *DotMap) UnmarshalJSON(data []byte) error {
	var w wireDotMap
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.Type = w.Type
	m.Entries = make(map[string]DotStore, len(w.Entries))
	for k, wv := range w.Entries {
		child, err := decodeStore(wv)
		if err != nil {
			return err
		}
		m.Entries[k] = child
	}
	return nil
}

// wireState is State's wire shape (its Store field holds the
// interface-typed DotStore root, same problem as DotMap's children).
type wireState struct {
	ReplicaID string         `json:"replicaId"`
	Kind      Kind           `json:"kind"`
	Store     wireStore      `json:"store"`
	CC        *CausalContext `json:"cc"`
}

// MarshalJSON lets a State (or a Delta, the same type) cross a
// transport or persistence boundary as plain JSON — this leaves
// serialization of the change-packaging output entirely to the host;
// this is this module's choice of host-level wire format, not a core
// engine guarantee.
func (s State) MarshalJSON() ([]byte, error) {
	encoded, err := encodeStore(s.Store)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireState{
		ReplicaID: s.ReplicaID,
		Kind:      s.Kind,
		Store:     encoded,
		CC:        s.CC,
	})
}

// UnmarshalJSON is MarshalJSON's inverse.
func (s *State) UnmarshalJSON(data []byte) error {
	var w wireState
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	store, err := decodeStore(w.Store)
	if err != nil {
		return err
	}
	s.ReplicaID = w.ReplicaID
	s.Kind = w.Kind
	s.Store = store
	if w.CC != nil {
		s.CC = w.CC
	} else {
		s.CC = NewCausalContext()
	}
	return nil
}
