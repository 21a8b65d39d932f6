// Package operation defines the atomic, invertible mutations of a document.
//
// Every change to a document is expressed as one of four operation kinds:
//
//   - create: adds a node (a property bag with "id" and "type")
//   - delete: removes a node, carrying its data so it can be recreated
//   - set: replaces the value at a path, carrying the previous value
//   - update: applies a Diff (text or array insert/delete) at a path
//
// # Paths
//
// A Path is [nodeID, property, nested...]. Paths are the only way to
// address document content; no object references escape a store.
//
// # Inversion
//
// Invert derives the exact inverse of an operation from the operation
// alone. Update diffs carry a pre-image (the deleted substring or array
// element) captured when the operation was produced:
//
//	op := operation.Update(path, operation.TextInsert(2, "c"))
//	inv, _ := operation.Invert(op)
//	// inv deletes [2, 3) and remembers "c"
//
// # Application
//
// Apply runs an operation against any Target. The live document store and
// the snapshot fold both implement Target, so replay and editing share one
// code path. Apply is atomic: a failed operation leaves the target as it
// was.
package operation
