package history

import (
	"github.com/dshills/docengine/internal/engine/change"
	"github.com/dshills/docengine/internal/engine/operation"
)

// BeginGroup starts a group. Changes committed while grouping are merged
// into a single undo entry by EndGroup.
func (h *History) BeginGroup(info map[string]any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.grouping {
		// Already grouping, ignore nested calls
		return
	}
	h.grouping = true
	h.groupInfo = info
	h.group = nil
}

// EndGroup finishes a group and commits the merged change, if any.
func (h *History) EndGroup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.grouping {
		return
	}
	h.grouping = false
	group := h.group
	h.group = nil

	switch len(group) {
	case 0:
		return
	case 1:
		h.pushLocked(group[0])
		return
	}

	var ops []operation.Operation
	for _, c := range group {
		ops = append(ops, c.Ops...)
	}
	merged := change.New(ops, h.groupInfo).
		WithSelections(group[0].Before, group[len(group)-1].After)
	h.pushLocked(merged)
}

// CancelGroup ends a group without adding it to history.
// Note: the grouped changes still affect the document.
func (h *History) CancelGroup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.grouping = false
	h.group = nil
}

// IsGrouping returns true while a group is open.
func (h *History) IsGrouping() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.grouping
}

// GroupScope provides a convenient way to group changes using defer:
//
//	defer h.GroupScope(map[string]any{"title": "typing"}).End()
type GroupScope struct {
	history *History
	active  bool
}

// GroupScope starts a new group scope.
func (h *History) GroupScope(info map[string]any) *GroupScope {
	h.BeginGroup(info)
	return &GroupScope{history: h, active: true}
}

// End ends the group scope. Only the first call has effect.
func (g *GroupScope) End() {
	if g.active {
		g.history.EndGroup()
		g.active = false
	}
}

// Cancel cancels the group scope.
func (g *GroupScope) Cancel() {
	if g.active {
		g.history.CancelGroup()
		g.active = false
	}
}

// Checkpoint represents a point in history that can be returned to.
type Checkpoint struct {
	undoDepth int
}

// CreateCheckpoint creates a checkpoint at the current history position.
func (h *History) CreateCheckpoint() Checkpoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Checkpoint{undoDepth: len(h.done)}
}

// UndoToCheckpoint undoes every change made since the checkpoint and
// returns the changes that were applied.
func (h *History) UndoToCheckpoint(cp Checkpoint, target operation.Target) ([]*change.Change, error) {
	var applied []*change.Change
	for h.UndoCount() > cp.undoDepth {
		c, err := h.Undo(target)
		if err != nil {
			return applied, err
		}
		applied = append(applied, c)
	}
	return applied, nil
}

// RedoToCheckpoint redoes changes until the checkpoint depth is reached
// or nothing is left to redo.
func (h *History) RedoToCheckpoint(cp Checkpoint, target operation.Target) ([]*change.Change, error) {
	var applied []*change.Change
	for h.UndoCount() < cp.undoDepth && h.CanRedo() {
		c, err := h.Redo(target)
		if err != nil {
			return applied, err
		}
		applied = append(applied, c)
	}
	return applied, nil
}
