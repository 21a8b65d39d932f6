package history

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/docengine/internal/engine/change"
	"github.com/dshills/docengine/internal/engine/docerr"
	"github.com/dshills/docengine/internal/engine/operation"
)

// Common errors for history operations.
var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

// DefaultMaxEntries is used when a non-positive limit is given.
const DefaultMaxEntries = 1000

// entry is one committed change on a history stack.
type entry struct {
	change    *change.Change
	timestamp time.Time
}

// Info describes a history entry for display.
type Info struct {
	ID          string
	Description string
	Timestamp   time.Time
	Ops         int
}

// History manages undo/redo state for one editing session.
//
// done and undone are stacks of committed changes, most recent last.
// Committing clears undone, so redo is only possible directly after one or
// more undos. Entries dropped from either stack are not referenced
// anywhere else, so memory stays bounded by maxEntries.
type History struct {
	mu sync.Mutex

	done   []*entry
	undone []*entry

	// Grouping state
	grouping  bool
	groupInfo map[string]any
	group     []*change.Change

	maxEntries int
}

// New creates a history keeping at most maxEntries undo entries.
func New(maxEntries int) *History {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &History{maxEntries: maxEntries}
}

// Commit adds a change that has already been applied to the document.
// Empty changes are ignored.
func (h *History) Commit(c *change.Change) {
	if c == nil || c.IsEmpty() {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.grouping {
		h.group = append(h.group, c)
		return
	}
	h.pushLocked(c)
}

func (h *History) pushLocked(c *change.Change) {
	h.done = append(h.done, &entry{change: c, timestamp: time.Now()})
	h.undone = nil

	if len(h.done) > h.maxEntries {
		h.dropOldestLocked(len(h.done) - h.maxEntries)
	}
}

// dropOldestLocked forgets the n oldest done entries.
func (h *History) dropOldestLocked(n int) {
	// Copy so the dropped entries are not kept alive by the backing array.
	h.done = append(make([]*entry, 0, h.maxEntries+1), h.done[n:]...)
}

// Undo reverts the most recent done change on target and returns the
// change that was applied to do so. It fails with docerr.ErrIllegalState
// while a group is open. If reverting fails the document and
// the stacks are left as they were.
func (h *History) Undo(target operation.Target) (*change.Change, error) {
	h.mu.Lock()
	if h.grouping {
		h.mu.Unlock()
		return nil, docerr.IllegalState("cannot undo while a group is open")
	}
	if len(h.done) == 0 {
		h.mu.Unlock()
		return nil, ErrNothingToUndo
	}
	e := h.done[len(h.done)-1]
	h.done[len(h.done)-1] = nil
	h.done = h.done[:len(h.done)-1]
	h.mu.Unlock()

	inv, err := e.change.Invert()
	if err == nil {
		err = inv.ApplyTo(target)
	}
	if err != nil {
		h.mu.Lock()
		h.done = append(h.done, e)
		h.mu.Unlock()
		return nil, fmt.Errorf("undo %s: %w", e.change.ID, err)
	}

	h.mu.Lock()
	h.undone = append(h.undone, e)
	h.mu.Unlock()
	return inv, nil
}

// Redo applies the most recently undone change to target again and returns
// the change that was applied. If applying fails the document and the
// stacks are left as they were.
func (h *History) Redo(target operation.Target) (*change.Change, error) {
	h.mu.Lock()
	if h.grouping {
		h.mu.Unlock()
		return nil, docerr.IllegalState("cannot redo while a group is open")
	}
	if len(h.undone) == 0 {
		h.mu.Unlock()
		return nil, ErrNothingToRedo
	}
	e := h.undone[len(h.undone)-1]
	h.undone[len(h.undone)-1] = nil
	h.undone = h.undone[:len(h.undone)-1]
	h.mu.Unlock()

	if err := e.change.ApplyTo(target); err != nil {
		h.mu.Lock()
		h.undone = append(h.undone, e)
		h.mu.Unlock()
		return nil, fmt.Errorf("redo %s: %w", e.change.ID, err)
	}

	h.mu.Lock()
	h.done = append(h.done, e)
	h.mu.Unlock()
	return e.change.Reapply(), nil
}

// CanUndo returns true if undo is available.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.done) > 0
}

// CanRedo returns true if redo is available.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undone) > 0
}

// UndoCount returns the number of undo steps available.
func (h *History) UndoCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.done)
}

// RedoCount returns the number of redo steps available.
func (h *History) RedoCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undone)
}

// Reset clears all undo/redo history.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.done = nil
	h.undone = nil
	h.grouping = false
	h.group = nil
	h.groupInfo = nil
}

// UndoInfo describes the undo entries, oldest first.
func (h *History) UndoInfo() []Info {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.infoLocked(h.done)
}

// RedoInfo describes the redo entries, oldest first.
func (h *History) RedoInfo() []Info {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.infoLocked(h.undone)
}

func (h *History) infoLocked(stack []*entry) []Info {
	result := make([]Info, len(stack))
	for i, e := range stack {
		result[i] = e.info()
	}
	return result
}

func (e *entry) info() Info {
	return Info{
		ID:          e.change.ID,
		Description: e.change.Description(),
		Timestamp:   e.timestamp,
		Ops:         len(e.change.Ops),
	}
}

// PeekUndo describes the next undo entry without removing it.
func (h *History) PeekUndo() (Info, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.done) == 0 {
		return Info{}, false
	}
	return h.done[len(h.done)-1].info(), true
}

// PeekRedo describes the next redo entry without removing it.
func (h *History) PeekRedo() (Info, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.undone) == 0 {
		return Info{}, false
	}
	return h.undone[len(h.undone)-1].info(), true
}

// SetMaxEntries changes the maximum number of undo entries.
// If more entries exist, the oldest are dropped.
func (h *History) SetMaxEntries(max int) {
	if max <= 0 {
		max = DefaultMaxEntries
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.maxEntries = max
	if len(h.done) > max {
		h.dropOldestLocked(len(h.done) - max)
	}
}

// MaxEntries returns the maximum number of undo entries.
func (h *History) MaxEntries() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.maxEntries
}
