package operation

import (
	"strconv"
	"strings"
)

// Path addresses a node or a value nested inside a node.
// The first element is the node id, the second a property name, and any
// further elements are map keys or array indices.
type Path []string

// NewPath builds a path from its segments.
func NewPath(segments ...string) Path {
	return Path(segments)
}

// ParsePath splits a dotted path such as "p1.content".
func ParsePath(s string) Path {
	if s == "" {
		return nil
	}
	return Path(strings.Split(s, "."))
}

// NodeID returns the node id the path starts at.
func (p Path) NodeID() string {
	if len(p) == 0 {
		return ""
	}
	return p[0]
}

// Property returns the top-level property name, or "" for node paths.
func (p Path) Property() string {
	if len(p) < 2 {
		return ""
	}
	return p[1]
}

// IsNode reports whether the path addresses a whole node.
func (p Path) IsNode() bool {
	return len(p) == 1
}

// Keys returns the segments below the node id.
func (p Path) Keys() []string {
	if len(p) < 2 {
		return nil
	}
	return p[1:]
}

// Equal reports whether two paths are identical.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the path.
func (p Path) Clone() Path {
	if p == nil {
		return nil
	}
	c := make(Path, len(p))
	copy(c, p)
	return c
}

// String renders the path in dotted form.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// index parses a segment as an array index.
func index(seg string) (int, bool) {
	i, err := strconv.Atoi(seg)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}
