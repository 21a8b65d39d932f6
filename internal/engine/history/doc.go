// Package history provides undo/redo for a document editing session.
//
// History is a state machine over the session's log of committed changes
// with two stacks of log indices:
//
//   - done: changes that can be undone, most recent last
//   - undone: changes that can be redone, most recently undone last
//
// Committing pushes onto done and clears undone. Undo applies the inverse
// of the top done change and moves it to undone; Redo applies it again and
// moves it back. Both are atomic: when applying fails, the document is left
// untouched and the stacks are restored before the error is returned.
//
//	h := history.New(1000)
//	h.Commit(c)
//	inv, err := h.Undo(store.Target())
//	redo, err := h.Redo(store.Target())
//
// # Grouping
//
// Several changes can be merged into one undo entry:
//
//	h.BeginGroup(map[string]any{"title": "typing"})
//	// ... several commits ...
//	h.EndGroup()
//
// # Checkpoints
//
// CreateCheckpoint records the current undo depth; UndoToCheckpoint undoes
// everything committed since.
//
// History is guarded by a mutex but is meant for a single editing session.
package history
