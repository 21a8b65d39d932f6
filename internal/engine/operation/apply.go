package operation

import (
	"errors"

	"github.com/dshills/docengine/internal/engine/docerr"
)

// Target is a document state operations can be applied to.
//
// Implementations must make each method atomic: on error the state is
// unchanged.
type Target interface {
	// HasNode reports whether a node with id exists.
	HasNode(id string) bool
	// CreateNode adds a node. The node id is known not to exist.
	CreateNode(node NodeData) error
	// DeleteNode removes a node. The node id is known to exist.
	DeleteNode(id string) error
	// Property returns the value at a property path.
	Property(path Path) (any, error)
	// SetProperty stores value at a property path; nil removes it.
	SetProperty(path Path, value any) error
}

// Apply applies op to target.
func Apply(op Operation, target Target) error {
	err := apply(op, target)
	if err == nil {
		return nil
	}
	var de *docerr.Error
	if errors.As(err, &de) {
		if de.Path == nil {
			de = de.WithOp(op.Kind.String())
			de.Path = op.Path
			return de
		}
		return de.WithOp(op.Kind.String())
	}
	return err
}

func apply(op Operation, target Target) error {
	id := op.NodeID()
	if id == "" {
		return docerr.InvalidArguments("operation has no target node")
	}

	switch op.Kind {
	case KindCreate:
		if op.Node == nil || op.Node.ID() != id {
			return docerr.InvalidArguments("create requires node data with id %q", id)
		}
		if target.HasNode(id) {
			return docerr.Application(op.Path, "node already exists")
		}
		return target.CreateNode(op.Node.Clone())

	case KindDelete:
		if !target.HasNode(id) {
			return docerr.NotFound(op.Path, "no such node")
		}
		return target.DeleteNode(id)

	case KindSet:
		if err := checkPropertyPath(op.Path); err != nil {
			return err
		}
		if !target.HasNode(id) {
			return docerr.NotFound(op.Path, "no such node")
		}
		return target.SetProperty(op.Path, Clone(op.Value))

	case KindUpdate:
		if err := checkPropertyPath(op.Path); err != nil {
			return err
		}
		if !target.HasNode(id) {
			return docerr.NotFound(op.Path, "no such node")
		}
		current, err := target.Property(op.Path)
		if err != nil {
			return err
		}
		next, err := op.Diff.Apply(current)
		if err != nil {
			return err
		}
		return target.SetProperty(op.Path, next)

	default:
		return docerr.InvalidArguments("unknown operation kind %d", op.Kind)
	}
}

func checkPropertyPath(p Path) error {
	if len(p) < 2 {
		return docerr.InvalidArguments("path %q does not address a property", p.String())
	}
	if p[1] == "id" {
		return docerr.Application(p, "node ids are immutable")
	}
	return nil
}

// ApplyAll applies ops in order. If one fails, the ops already applied are
// reverted in reverse order so that target is left unchanged.
func ApplyAll(ops []Operation, target Target) error {
	for i, op := range ops {
		if err := Apply(op, target); err != nil {
			if rerr := revert(ops[:i], target); rerr != nil {
				return errors.Join(err, rerr)
			}
			return err
		}
	}
	return nil
}

func revert(applied []Operation, target Target) error {
	for i := len(applied) - 1; i >= 0; i-- {
		inv, err := Invert(applied[i])
		if err != nil {
			return err
		}
		if err := Apply(inv, target); err != nil {
			return err
		}
	}
	return nil
}
