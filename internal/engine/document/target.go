package document

import (
	"github.com/dshills/docengine/internal/engine/docerr"
	"github.com/dshills/docengine/internal/engine/operation"
)

// target exposes the raw, unrecorded primitives of a Store as an
// operation.Target. Index maintenance happens here so that every path that
// changes nodes (editing, undo, rollback, Load) keeps indices in sync.
type target Store

func (t *target) HasNode(id string) bool {
	_, ok := t.nodes[id]
	return ok
}

func (t *target) CreateNode(node operation.NodeData) error {
	kind, ok := t.schema.KindOf(node.Type())
	if !ok {
		return docerr.InvalidArguments("unknown node type %q", node.Type())
	}
	id := node.ID()
	t.nodes[id] = node
	t.kinds[id] = kind
	delete(t.deleted, id)
	(*Store)(t).index(id)
	return nil
}

func (t *target) DeleteNode(id string) error {
	(*Store)(t).unindex(id)
	delete(t.nodes, id)
	delete(t.kinds, id)
	t.deleted[id] = struct{}{}
	return nil
}

func (t *target) Property(path operation.Path) (any, error) {
	node, ok := t.nodes[path.NodeID()]
	if !ok {
		return nil, docerr.NotFound(path, "no such node")
	}
	v, err := operation.GetIn(map[string]any(node), path.Keys())
	if err != nil {
		return nil, docerr.NotFound(path, "%v", err)
	}
	return v, nil
}

func (t *target) SetProperty(path operation.Path, value any) error {
	id := path.NodeID()
	node, ok := t.nodes[id]
	if !ok {
		return docerr.NotFound(path, "no such node")
	}
	if path.Property() == "type" {
		return docerr.Application(path, "node types are immutable")
	}
	s := (*Store)(t)
	s.unindex(id)
	err := operation.SetIn(map[string]any(node), path.Keys(), value)
	s.index(id)
	if err != nil {
		return docerr.NotFound(path, "%v", err)
	}
	return nil
}

// index adds annotation node id to the annotation indices.
func (s *Store) index(id string) {
	for _, anchor := range s.anchorNodes(id) {
		set := s.indexFor(id)
		if set[anchor] == nil {
			set[anchor] = make(map[string]struct{})
		}
		set[anchor][id] = struct{}{}
	}
}

// unindex removes annotation node id from the annotation indices.
func (s *Store) unindex(id string) {
	for _, anchor := range s.anchorNodes(id) {
		set := s.indexFor(id)
		delete(set[anchor], id)
		if len(set[anchor]) == 0 {
			delete(set, anchor)
		}
	}
}

func (s *Store) indexFor(id string) map[string]map[string]struct{} {
	if BehaviorOf(s.kinds[id]).IsContainerAnnotation() {
		return s.anchors
	}
	return s.annotations
}

// anchorNodes returns the ids of the nodes an annotation is anchored on.
func (s *Store) anchorNodes(id string) []string {
	node, ok := s.nodes[id]
	if !ok {
		return nil
	}
	b := BehaviorOf(s.kinds[id])
	var keys []string
	switch {
	case b.IsAnnotation():
		keys = []string{"path"}
	case b.IsContainerAnnotation():
		keys = []string{"startPath", "endPath"}
	default:
		return nil
	}
	var out []string
	for _, key := range keys {
		if p, ok := operation.ToPath(node[key]); ok && len(p) > 0 {
			out = append(out, p.NodeID())
		}
	}
	return out
}
