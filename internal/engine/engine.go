package engine

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/dshills/docengine/internal/engine/change"
	"github.com/dshills/docengine/internal/engine/document"
	"github.com/dshills/docengine/internal/engine/history"
	"github.com/dshills/docengine/internal/engine/snapshot"
	"github.com/dshills/docengine/internal/engine/transaction"
)

// Re-export commonly used types for convenience.
type (
	// Change is one undoable batch of operations.
	Change = change.Change

	// Selection is a caret or range inside a text property.
	Selection = change.Selection

	// Tx is an open transaction.
	Tx = transaction.Tx

	// HistoryInfo describes an undo or redo entry.
	HistoryInfo = history.Info
)

// Engine is an editing session over one document. It combines the
// document store, transactions, undo/redo history and the changeset of
// everything committed into a single API.
//
// All methods are safe for concurrent use; writes are serialized.
type Engine struct {
	mu sync.RWMutex

	store     *document.Store
	history   *history.History
	base      []byte
	changeset []*change.Change
	selection change.Selection

	// Configuration
	logger         *slog.Logger
	docOpts        []document.Option
	maxUndoEntries int
	readOnly       bool
}

// New creates an engine holding an empty document.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:         slog.Default(),
		maxUndoEntries: DefaultMaxUndoEntries,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.store = document.New(e.docOpts...)
	e.history = history.New(e.maxUndoEntries)
	e.base = []byte(`{"nodes":[]}`)
	return e
}

// Load replaces the document with data and resets history, changeset and
// selection. On error the engine is unchanged. Load is allowed on read-only
// engines.
func (e *Engine) Load(data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Load into a fresh store so a bad document leaves the session intact.
	store := document.New(e.docOpts...)
	if err := store.Load(data); err != nil {
		return err
	}
	base, err := json.Marshal(store)
	if err != nil {
		return err
	}
	e.store = store
	e.base = base
	e.changeset = nil
	e.selection = change.NullSelection
	e.history.Reset()
	e.logger.Debug("document loaded", "nodes", e.store.Len())
	return nil
}

// ============================================================================
// Transactions
// ============================================================================

// Transaction runs fn in a transaction that starts at the current
// selection. On success the change is recorded in history and the
// changeset and the selection moves to the change's after selection. If fn
// fails the document is rolled back and nothing is recorded.
//
// A transaction that performs no operations returns an empty change that
// is not recorded.
func (e *Engine) Transaction(info map[string]any, fn func(tx *Tx) error) (*Change, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.readOnly {
		return nil, ErrReadOnly
	}

	c, err := transaction.Run(e.store, e.selection, info, fn)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return c, nil
	}
	e.history.Commit(c)
	e.record(c)
	return c, nil
}

func (e *Engine) record(c *change.Change) {
	e.changeset = append(e.changeset, c)
	if !c.After.IsNull() || !c.Before.IsNull() {
		e.selection = c.After
	}
}

// ============================================================================
// Undo/Redo Operations
// ============================================================================

// Undo reverts the last change and returns the change that did so. The
// returned change is appended to the changeset. Undo and Redo fail with
// docerr.ErrIllegalState while an undo group is open.
func (e *Engine) Undo() (*Change, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.readOnly {
		return nil, ErrReadOnly
	}
	inv, err := e.history.Undo(e.store.Target())
	if err != nil {
		return nil, err
	}
	e.record(inv)
	return inv, nil
}

// Redo reapplies the last undone change and returns the change recorded
// for it.
func (e *Engine) Redo() (*Change, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.readOnly {
		return nil, ErrReadOnly
	}
	c, err := e.history.Redo(e.store.Target())
	if err != nil {
		return nil, err
	}
	e.record(c)
	return c, nil
}

// CanUndo returns true if undo is available.
func (e *Engine) CanUndo() bool {
	return e.history.CanUndo()
}

// CanRedo returns true if redo is available.
func (e *Engine) CanRedo() bool {
	return e.history.CanRedo()
}

// UndoCount returns the number of available undo operations.
func (e *Engine) UndoCount() int {
	return e.history.UndoCount()
}

// RedoCount returns the number of available redo operations.
func (e *Engine) RedoCount() int {
	return e.history.RedoCount()
}

// UndoInfo describes the undo stack, oldest first.
func (e *Engine) UndoInfo() []HistoryInfo {
	return e.history.UndoInfo()
}

// BeginUndoGroup starts a new undo group.
// All transactions until EndUndoGroup will be undone as a single unit.
func (e *Engine) BeginUndoGroup(info map[string]any) {
	e.history.BeginGroup(info)
}

// EndUndoGroup ends the current undo group.
func (e *Engine) EndUndoGroup() {
	e.history.EndGroup()
}

// CancelUndoGroup drops the current undo group from history. The changes
// stay applied and in the changeset.
func (e *Engine) CancelUndoGroup() {
	e.history.CancelGroup()
}

// ResetHistory removes all undo/redo history. The changeset is kept.
func (e *Engine) ResetHistory() {
	e.history.Reset()
}

// ============================================================================
// State
// ============================================================================

// Selection returns the current selection.
func (e *Engine) Selection() Selection {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.selection
}

// SetSelection sets the selection the next transaction starts from.
func (e *Engine) SetSelection(sel Selection) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selection = sel
}

// Document returns the document store for reading. Mutating it directly
// bypasses history and the changeset, and Load replaces it.
func (e *Engine) Document() *document.Store {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store
}

// Changeset returns copies of every recorded change, in order. Undo and
// redo changes are included.
func (e *Engine) Changeset() []*Change {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Change, len(e.changeset))
	for i, c := range e.changeset {
		out[i] = c.Clone()
	}
	return out
}

// Version returns the number of recorded changes.
func (e *Engine) Version() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.changeset)
}

// JSON returns the serialized document.
func (e *Engine) JSON() ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return json.Marshal(e.store)
}

// Replay folds the changeset over the document as it was last loaded and
// returns the resulting snapshot.
func (e *Engine) Replay() (*snapshot.Snapshot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return snapshot.Compute(e.base, e.changeset, snapshot.WithLogger(e.logger))
}

// IsReadOnly returns true if the engine is read-only.
func (e *Engine) IsReadOnly() bool {
	return e.readOnly
}
