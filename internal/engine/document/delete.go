package document

import (
	"unicode/utf8"

	"github.com/dshills/docengine/internal/engine/change"
	"github.com/dshills/docengine/internal/engine/docerr"
	"github.com/dshills/docengine/internal/engine/operation"
)

// Delete removes node id together with its structural children and the
// annotations anchored to it. Container annotations whose start or end sits
// on the node are moved to the adjacent sibling, or deleted when there is
// none.
//
// Deleting an unknown id fails with docerr.ErrNotFound. Deleting a node
// that was already deleted is logged and does nothing, since cascades can
// reach the same node through several paths.
//
// The returned operations are those performed before any failure, so a
// recorder always sees exactly what was applied.
func (s *Store) Delete(id string) ([]operation.Operation, error) {
	var ops []operation.Operation
	err := s.deleteCascade(id, &ops)
	return ops, err
}

func (s *Store) deleteCascade(id string, ops *[]operation.Operation) error {
	node, ok := s.nodes[id]
	if !ok {
		if _, gone := s.deleted[id]; gone {
			s.logger.Debug("delete of already deleted node ignored", "node", id)
			return nil
		}
		return docerr.NotFound(operation.Path{id}, "no such node")
	}
	behavior := BehaviorOf(s.kinds[id])

	for _, prop := range behavior.ChildProperties() {
		for _, child := range operation.ToStrings(node[prop]) {
			if err := s.deleteCascade(child, ops); err != nil {
				return err
			}
		}
	}

	for _, annID := range s.Annotations(id) {
		if err := s.deleteCascade(annID, ops); err != nil {
			return err
		}
	}

	for _, annID := range s.ContainerAnchors(id) {
		if err := s.reanchor(annID, id, ops); err != nil {
			return err
		}
	}

	// The node may have been removed while deleting its dependents.
	node, ok = s.nodes[id]
	if !ok {
		return nil
	}
	op := operation.Delete(node)
	if err := s.Apply(op); err != nil {
		return err
	}
	*ops = append(*ops, op)
	return nil
}

// reanchor moves the anchors of container annotation annID away from the
// node being deleted.
func (s *Store) reanchor(annID, deleting string, ops *[]operation.Operation) error {
	ann, ok := s.nodes[annID]
	if !ok {
		return nil
	}
	startPath, _ := operation.ToPath(ann["startPath"])
	endPath, _ := operation.ToPath(ann["endPath"])
	onStart := startPath.NodeID() == deleting
	onEnd := endPath.NodeID() == deleting

	containerID, _ := ann["containerId"].(string)
	siblings := s.containerNodes(containerID)
	pos := indexOf(siblings, deleting)

	if (onStart && onEnd) || pos < 0 {
		return s.deleteCascade(annID, ops)
	}

	if onStart {
		if pos+1 >= len(siblings) {
			return s.deleteCascade(annID, ops)
		}
		next := siblings[pos+1]
		if err := s.setAnchor(annID, "startPath", "startOffset", s.textPath(next), 0, ops); err != nil {
			return err
		}
	}
	if onEnd {
		if pos == 0 {
			return s.deleteCascade(annID, ops)
		}
		prev := siblings[pos-1]
		if err := s.setAnchor(annID, "endPath", "endOffset", s.textPath(prev), s.textLength(prev), ops); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) setAnchor(annID, pathKey, offsetKey string, path operation.Path, offset int, ops *[]operation.Operation) error {
	op, err := s.Set(operation.Path{annID, pathKey}, path)
	if err != nil {
		return err
	}
	*ops = append(*ops, op)
	op, err = s.Set(operation.Path{annID, offsetKey}, offset)
	if err != nil {
		return err
	}
	*ops = append(*ops, op)
	return nil
}

// DeleteFromContainer deletes node id and hides it from containerID. It
// returns the selection that should follow: the start of the next sibling,
// or the end of the previous one, or the null selection.
func (s *Store) DeleteFromContainer(containerID, id string) ([]operation.Operation, change.Selection, error) {
	siblings := s.containerNodes(containerID)
	if !s.isContainer(containerID) {
		return nil, change.NullSelection, docerr.NotFound(operation.Path{containerID}, "no such container")
	}
	pos := indexOf(siblings, id)
	if pos < 0 {
		return nil, change.NullSelection, docerr.NotFound(operation.Path{containerID, "nodes"}, "%s is not shown in container", id)
	}

	sel := change.NullSelection
	switch {
	case pos+1 < len(siblings):
		sel = change.Caret(s.textPath(siblings[pos+1]), 0, containerID)
	case pos > 0:
		prev := siblings[pos-1]
		sel = change.Caret(s.textPath(prev), s.textLength(prev), containerID)
	}

	ops, err := s.Delete(id)
	if err != nil {
		return ops, change.NullSelection, err
	}
	op, err := s.Hide(containerID, id)
	if err != nil {
		return ops, change.NullSelection, err
	}
	return append(ops, op), sel, nil
}

// Show inserts node id into containerID at pos. A negative pos appends.
func (s *Store) Show(containerID, id string, pos int) (operation.Operation, error) {
	if !s.isContainer(containerID) {
		return operation.Operation{}, docerr.NotFound(operation.Path{containerID}, "no such container")
	}
	if !s.Has(id) {
		return operation.Operation{}, docerr.NotFound(operation.Path{id}, "no such node")
	}
	siblings := s.containerNodes(containerID)
	if indexOf(siblings, id) >= 0 {
		return operation.Operation{}, docerr.Application(operation.Path{containerID, "nodes"}, "%s is already shown", id)
	}
	if pos < 0 {
		pos = len(siblings)
	}
	return s.Update(operation.Path{containerID, "nodes"}, operation.ArrayInsert(pos, id))
}

// Hide removes node id from containerID. The node itself is kept.
func (s *Store) Hide(containerID, id string) (operation.Operation, error) {
	if !s.isContainer(containerID) {
		return operation.Operation{}, docerr.NotFound(operation.Path{containerID}, "no such container")
	}
	pos := indexOf(s.containerNodes(containerID), id)
	if pos < 0 {
		return operation.Operation{}, docerr.NotFound(operation.Path{containerID, "nodes"}, "%s is not shown in container", id)
	}
	return s.Update(operation.Path{containerID, "nodes"}, operation.ArrayDelete(pos))
}

// ContainerNodes returns the ids shown in a container.
func (s *Store) ContainerNodes(containerID string) []string {
	return s.containerNodes(containerID)
}

func (s *Store) isContainer(id string) bool {
	_, ok := s.nodes[id]
	return ok && BehaviorOf(s.kinds[id]).IsContainer()
}

func (s *Store) containerNodes(containerID string) []string {
	node, ok := s.nodes[containerID]
	if !ok {
		return nil
	}
	return operation.ToStrings(node["nodes"])
}

// textPath returns the path of a node's text property, or the node path.
func (s *Store) textPath(id string) operation.Path {
	if prop := BehaviorOf(s.kinds[id]).TextProperty(); prop != "" {
		return operation.Path{id, prop}
	}
	return operation.Path{id}
}

func (s *Store) textLength(id string) int {
	prop := BehaviorOf(s.kinds[id]).TextProperty()
	if prop == "" {
		return 0
	}
	text, _ := s.nodes[id][prop].(string)
	return utf8.RuneCountInString(text)
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
