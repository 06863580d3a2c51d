// internal/store/tree.go
package store

import (
	"encoding/json"
	"strings"
)

// splitPath validates and splits "lobbies/AB12CD/game" into segments.
func splitPath(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, ErrInvalidPath
	}
	segs := strings.Split(trimmed, "/")
	for _, s := range segs {
		if s == "" {
			return nil, ErrInvalidPath
		}
	}
	return segs, nil
}

// toPlain round-trips a value through JSON so the tree only ever holds
// generic types (map[string]any, []any, string, float64, bool, nil).
// Writers hand us typed structs; watchers get what they would get off the
// wire.
func toPlain(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// prune collapses empty maps to nil, recursively. The backend this mirrors
// deletes any map that loses its last key, so an empty bids map and an
// absent bids map are indistinguishable to readers.
func prune(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	for k, child := range m {
		if pc := prune(child); pc == nil {
			delete(m, k)
		} else {
			m[k] = pc
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// lookup walks the tree to the node at segs, nil if any hop is absent.
func lookup(root map[string]any, segs []string) any {
	var cur any = root
	for _, seg := range segs {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[seg]
		if !ok {
			return nil
		}
	}
	return cur
}

// assign writes value at segs, creating intermediate maps. A nil value
// deletes the node. Empty intermediate maps left behind by a delete are
// collapsed by the caller via prune.
func assign(root map[string]any, segs []string, value any) {
	parent := root
	for _, seg := range segs[:len(segs)-1] {
		child, ok := parent[seg].(map[string]any)
		if !ok {
			if value == nil {
				return // deleting under an absent branch is a no-op
			}
			child = map[string]any{}
			parent[seg] = child
		}
		parent = child
	}
	last := segs[len(segs)-1]
	if value == nil {
		delete(parent, last)
	} else {
		parent[last] = value
	}
}

// overlaps reports whether a change at changed is visible to a watcher of
// watched: true when either path is a prefix of the other.
func overlaps(watched, changed []string) bool {
	n := len(watched)
	if len(changed) < n {
		n = len(changed)
	}
	for i := 0; i < n; i++ {
		if watched[i] != changed[i] {
			return false
		}
	}
	return true
}

// copyValue deep-copies a plain-typed subtree so watchers can't reach into
// the live tree.
func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = copyValue(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = copyValue(child)
		}
		return out
	default:
		return v
	}
}
