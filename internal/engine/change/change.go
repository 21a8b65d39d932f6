// Package change groups operations into named, invertible units.
//
// A Change is the unit of undo/redo and of network transmission. Applying
// a Change and then its inverse leaves a document exactly as it was.
package change

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/docengine/internal/engine/docerr"
	"github.com/dshills/docengine/internal/engine/operation"
)

// Selection is a cursor or range inside a property, optionally within a
// container. The zero value is the null selection.
type Selection struct {
	Path        operation.Path `json:"path,omitempty"`
	Start       int            `json:"start"`
	End         int            `json:"end"`
	ContainerID string         `json:"containerId,omitempty"`
}

// NullSelection is the empty selection.
var NullSelection = Selection{}

// Caret returns a collapsed selection at offset in path.
func Caret(path operation.Path, offset int, containerID string) Selection {
	return Selection{Path: path.Clone(), Start: offset, End: offset, ContainerID: containerID}
}

// IsNull reports whether the selection is empty.
func (s Selection) IsNull() bool {
	return len(s.Path) == 0
}

// IsCollapsed reports whether the selection is a caret.
func (s Selection) IsCollapsed() bool {
	return s.Start == s.End
}

// Change is an ordered batch of operations forming one undo/redo unit.
type Change struct {
	ID        string                `json:"id"`
	Ops       []operation.Operation `json:"ops"`
	Info      map[string]any        `json:"info,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
	Before    Selection             `json:"before"`
	After     Selection             `json:"after"`
}

// New creates a change from ops.
func New(ops []operation.Operation, info map[string]any) *Change {
	c := &Change{
		ID:        uuid.NewString(),
		Ops:       make([]operation.Operation, len(ops)),
		Info:      cloneInfo(info),
		Timestamp: time.Now(),
	}
	for i, op := range ops {
		c.Ops[i] = op.Clone()
	}
	return c
}

// WithSelections sets the selection before and after and returns c.
func (c *Change) WithSelections(before, after Selection) *Change {
	c.Before = before
	c.After = after
	return c
}

// IsEmpty reports whether the change carries no operations.
func (c *Change) IsEmpty() bool {
	return len(c.Ops) == 0
}

// Description returns the "title" info entry, if any.
func (c *Change) Description() string {
	if c.Info == nil {
		return ""
	}
	if s, ok := c.Info["title"].(string); ok {
		return s
	}
	return ""
}

// Invert returns a change that undoes c: inverse operations in reverse
// order with the selections swapped.
func (c *Change) Invert() (*Change, error) {
	ops, err := operation.InvertAll(c.Ops)
	if err != nil {
		return nil, fmt.Errorf("invert change %s: %w", c.ID, err)
	}
	info := cloneInfo(c.Info)
	if info == nil {
		info = make(map[string]any, 1)
	}
	info["inverts"] = c.ID
	return &Change{
		ID:        uuid.NewString(),
		Ops:       ops,
		Info:      info,
		Timestamp: time.Now(),
		Before:    c.After,
		After:     c.Before,
	}, nil
}

// Reapply returns a copy of c with a fresh id and timestamp, used when an
// undone change is applied again.
func (c *Change) Reapply() *Change {
	r := c.Clone()
	r.ID = uuid.NewString()
	r.Timestamp = time.Now()
	if r.Info == nil {
		r.Info = make(map[string]any, 1)
	}
	r.Info["redoes"] = c.ID
	return r
}

// ApplyTo applies the operations in order. If one fails, the operations
// already applied are reverted and the error is returned.
func (c *Change) ApplyTo(target operation.Target) error {
	return operation.ApplyAll(c.Ops, target)
}

// Clone returns a deep copy of the change.
func (c *Change) Clone() *Change {
	clone := *c
	clone.Ops = make([]operation.Operation, len(c.Ops))
	for i, op := range c.Ops {
		clone.Ops[i] = op.Clone()
	}
	clone.Info = cloneInfo(c.Info)
	clone.Before.Path = c.Before.Path.Clone()
	clone.After.Path = c.After.Path.Clone()
	return &clone
}

// UnmarshalJSON accepts either the full change object or a bare array of
// operations.
func (c *Change) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var ops []operation.Operation
		if err := json.Unmarshal(trimmed, &ops); err != nil {
			return err
		}
		*c = Change{ID: uuid.NewString(), Ops: ops, Timestamp: time.Now()}
		return nil
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return docerr.InvalidArguments("change must be an object or an array of operations")
	}

	type plain Change
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	*c = Change(p)
	return nil
}

func cloneInfo(info map[string]any) map[string]any {
	if info == nil {
		return nil
	}
	return operation.Clone(info).(map[string]any)
}
