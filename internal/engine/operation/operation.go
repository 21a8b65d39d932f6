package operation

import (
	"errors"
	"fmt"

	"github.com/dshills/docengine/internal/engine/docerr"
)

// ErrNotInvertible indicates a delete was decoded without its pre-image.
var ErrNotInvertible = errors.New("operation has no pre-image and cannot be inverted")

// Kind identifies an operation.
type Kind uint8

const (
	// KindCreate adds a node.
	KindCreate Kind = iota
	// KindDelete removes a node.
	KindDelete
	// KindSet replaces a value.
	KindSet
	// KindUpdate applies a Diff to a value.
	KindUpdate
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindDelete:
		return "delete"
	case KindSet:
		return "set"
	case KindUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// ParseKind parses a wire kind name.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "create":
		return KindCreate, nil
	case "delete":
		return KindDelete, nil
	case "set":
		return KindSet, nil
	case "update":
		return KindUpdate, nil
	default:
		return 0, docerr.InvalidArguments("unknown operation type %q", s)
	}
}

// Operation is a single atomic document mutation.
// Operations must not be modified after construction; the constructors
// copy every value they are given.
type Operation struct {
	Kind Kind
	Path Path

	// Node is the node data for create and delete.
	Node NodeData

	// Old and Value are the previous and new values of a set.
	Old   any
	Value any

	// Diff is the sub-operation of an update.
	Diff Diff
}

// Create builds a create operation for node.
func Create(node NodeData) Operation {
	return Operation{Kind: KindCreate, Path: Path{node.ID()}, Node: node.Clone()}
}

// Delete builds a delete operation. node is the data of the node being
// removed and is what Invert recreates.
func Delete(node NodeData) Operation {
	return Operation{Kind: KindDelete, Path: Path{node.ID()}, Node: node.Clone()}
}

// DeleteID builds a delete operation that only knows the node id.
// It applies, but cannot be inverted.
func DeleteID(id string) Operation {
	return Operation{Kind: KindDelete, Path: Path{id}}
}

// Set builds a set operation replacing old with value at path.
func Set(path Path, old, value any) Operation {
	return Operation{Kind: KindSet, Path: path.Clone(), Old: Clone(old), Value: Clone(value)}
}

// Update builds an update operation applying diff at path.
func Update(path Path, diff Diff) Operation {
	return Operation{Kind: KindUpdate, Path: path.Clone(), Diff: diff.Clone()}
}

// NodeID returns the id of the node the operation targets.
func (op Operation) NodeID() string {
	return op.Path.NodeID()
}

// IsNoop reports whether the operation leaves the document unchanged.
func (op Operation) IsNoop() bool {
	if op.Kind != KindUpdate || !op.Diff.IsText() {
		return false
	}
	if op.Diff.Kind == DiffTextDelete {
		return op.Diff.End == op.Diff.Offset
	}
	s, _ := op.Diff.Value.(string)
	return s == ""
}

// Clone returns a deep copy of the operation.
func (op Operation) Clone() Operation {
	return Operation{
		Kind:  op.Kind,
		Path:  op.Path.Clone(),
		Node:  op.Node.Clone(),
		Old:   Clone(op.Old),
		Value: Clone(op.Value),
		Diff:  op.Diff.Clone(),
	}
}

// String renders the operation for logs.
func (op Operation) String() string {
	switch op.Kind {
	case KindUpdate:
		return fmt.Sprintf("update %s %s", op.Path, op.Diff)
	default:
		return fmt.Sprintf("%s %s", op.Kind, op.Path)
	}
}

// Invert returns the operation that undoes op.
func Invert(op Operation) (Operation, error) {
	switch op.Kind {
	case KindCreate:
		return Delete(op.Node), nil
	case KindDelete:
		if op.Node == nil {
			return Operation{}, fmt.Errorf("invert %s: %w", op, ErrNotInvertible)
		}
		return Create(op.Node), nil
	case KindSet:
		return Set(op.Path, op.Value, op.Old), nil
	case KindUpdate:
		d, err := op.Diff.Invert()
		if err != nil {
			return Operation{}, fmt.Errorf("invert %s: %w", op, err)
		}
		return Update(op.Path, d), nil
	default:
		return Operation{}, docerr.InvalidArguments("unknown operation kind %d", op.Kind)
	}
}

// InvertAll returns the inverses of ops in reverse order.
func InvertAll(ops []Operation) ([]Operation, error) {
	out := make([]Operation, len(ops))
	for i, op := range ops {
		inv, err := Invert(op)
		if err != nil {
			return nil, err
		}
		out[len(ops)-1-i] = inv
	}
	return out, nil
}
