package search

import (
	"fmt"

	"github.com/amaydixit11/jsoncrdt/internal/crdt"
)

// Flatten walks a document value (as produced by pkg/engine.Engine's
// Value) into dotted paths mapped to their string content, plus a
// parallel map of each leaf's shape for SearchOptions.Kind filtering:
// "string", "multivalue", or for any other scalar its Go type name as
// printed by %T (e.g. "float64", "bool"). Maps and arrays are walked,
// not recorded. Only leaves that stringify meaningfully are indexed —
// nil, empty strings and empty containers are skipped.
func Flatten(value any) (leaves map[string]string, kinds map[string]string) {
	leaves = make(map[string]string)
	kinds = make(map[string]string)
	flattenInto(value, "", leaves, kinds)
	return leaves, kinds
}

func flattenInto(value any, path string, leaves, kinds map[string]string) {
	switch v := value.(type) {
	case nil:
		return
	case map[string]any:
		for key, child := range v {
			flattenInto(child, joinPath(path, key), leaves, kinds)
		}
	case []any:
		for i, child := range v {
			flattenInto(child, fmt.Sprintf("%s[%d]", path, i), leaves, kinds)
		}
	case crdt.MultiValue:
		if path == "" || len(v) == 0 {
			return
		}
		leaves[path] = fmt.Sprintf("%v", []any(v))
		kinds[path] = "multivalue"
	case string:
		if v == "" || path == "" {
			return
		}
		leaves[path] = v
		kinds[path] = "string"
	default:
		if path == "" {
			return
		}
		s := fmt.Sprintf("%v", v)
		if s == "" {
			return
		}
		leaves[path] = s
		kinds[path] = fmt.Sprintf("%T", v)
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
