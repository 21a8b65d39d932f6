// Package engine provides an editing session over an operation-based
// document.
//
// The engine package is the facade over the document model, combining the
// node store, transactions, undo/redo history and the changeset into one
// thread-safe API.
//
// # Architecture
//
// The engine is built on several sub-packages:
//
//   - operation: paths, diffs and the four invertible operation kinds
//   - document: the node store with schema-driven cascading delete
//   - change: batches of operations with selections and metadata
//   - transaction: records store mutations and rolls them back on failure
//   - history: change-based undo/redo with groups and checkpoints
//   - snapshot: pure replay of a changeset over serialized JSON
//
// # Basic Usage
//
//	e := engine.New()
//	if err := e.Load([]byte(`{"nodes":[{"id":"p1","type":"paragraph","content":"ab"}]}`)); err != nil {
//	    return err
//	}
//
//	// Every mutation happens inside a transaction.
//	_, err := e.Transaction(map[string]any{"title": "type"}, func(tx *engine.Tx) error {
//	    _, err := tx.Update(operation.Path{"p1", "content"}, operation.TextInsert(2, "c"))
//	    return err
//	})
//
//	e.Undo() // content is "ab" again
//	e.Redo() // and "abc"
//
// # Changeset
//
// Every committed transaction, and every undo or redo, is appended to the
// changeset. Replaying the changeset over the loaded document with
// snapshot.Compute reproduces the current state; Replay does exactly that.
//
// # Thread Safety
//
// Engine methods serialize writes with a mutex. The store returned by
// Document must only be read.
package engine
