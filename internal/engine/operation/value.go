package operation

import (
	"encoding/json"
	"fmt"
	"math"
)

// NodeData is the property bag of a node. It always carries "id" and
// "type"; all other entries are node properties.
type NodeData map[string]any

// ID returns the node id.
func (n NodeData) ID() string {
	id, _ := n["id"].(string)
	return id
}

// Type returns the node type name.
func (n NodeData) Type() string {
	t, _ := n["type"].(string)
	return t
}

// Clone returns a deep copy of the node data.
func (n NodeData) Clone() NodeData {
	if n == nil {
		return nil
	}
	return NodeData(cloneMap(n))
}

// Clone returns a deep copy of a JSON-like value. []string values are
// converted to []any so that array diffs can operate on them uniformly.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case NodeData:
		return cloneMap(t)
	case []any:
		c := make([]any, len(t))
		for i, e := range t {
			c[i] = Clone(e)
		}
		return c
	case []string:
		return stringsToAny(t)
	case Path:
		return stringsToAny(t)
	default:
		return v
	}
}

func stringsToAny(s []string) []any {
	c := make([]any, len(s))
	for i, e := range s {
		c[i] = e
	}
	return c
}

// ToPath converts a stored path value ([]any of strings, []string or Path).
func ToPath(v any) (Path, bool) {
	switch t := v.(type) {
	case Path:
		return t.Clone(), true
	case []string:
		return Path(t).Clone(), true
	case []any:
		p := make(Path, len(t))
		for i, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			p[i] = s
		}
		return p, true
	default:
		return nil, false
	}
}

// ToStrings converts a stored id list ([]any of strings or []string).
func ToStrings(v any) []string {
	p, ok := ToPath(v)
	if !ok {
		return nil
	}
	return []string(p)
}

func cloneMap(m map[string]any) map[string]any {
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = Clone(v)
	}
	return c
}

// ToInt converts a JSON-like number to an int.
func ToInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	case float32:
		if float32(math.Trunc(float64(n))) != n {
			return 0, false
		}
		return int(n), true
	case float64:
		if math.Trunc(n) != n {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}

// GetIn resolves keys inside a JSON-like value.
func GetIn(v any, keys []string) (any, error) {
	cur := v
	for i, key := range keys {
		switch t := cur.(type) {
		case map[string]any:
			next, ok := t[key]
			if !ok {
				return nil, fmt.Errorf("no key %q at depth %d", key, i)
			}
			cur = next
		case NodeData:
			next, ok := t[key]
			if !ok {
				return nil, fmt.Errorf("no key %q at depth %d", key, i)
			}
			cur = next
		case []any:
			idx, ok := index(key)
			if !ok || idx >= len(t) {
				return nil, fmt.Errorf("index %q out of range at depth %d", key, i)
			}
			cur = t[idx]
		default:
			return nil, fmt.Errorf("cannot descend into %T at depth %d", cur, i)
		}
	}
	return cur, nil
}

// SetIn stores value at keys inside root, in place. Intermediate values
// must already exist. A nil value removes a map entry.
func SetIn(root map[string]any, keys []string, value any) error {
	if len(keys) == 0 {
		return fmt.Errorf("empty key path")
	}
	parent, err := GetIn(root, keys[:len(keys)-1])
	if err != nil {
		return err
	}
	last := keys[len(keys)-1]
	switch t := parent.(type) {
	case map[string]any:
		if value == nil {
			delete(t, last)
		} else {
			t[last] = value
		}
	case NodeData:
		if value == nil {
			delete(t, last)
		} else {
			t[last] = value
		}
	case []any:
		idx, ok := index(last)
		if !ok || idx >= len(t) {
			return fmt.Errorf("index %q out of range", last)
		}
		t[idx] = value
	default:
		return fmt.Errorf("cannot set %q inside %T", last, parent)
	}
	return nil
}
