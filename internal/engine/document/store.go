package document

import (
	"log/slog"
	"sort"

	"github.com/dshills/docengine/internal/engine/docerr"
	"github.com/dshills/docengine/internal/engine/operation"
)

// Recorder receives every operation a store performs while attached.
type Recorder interface {
	Record(op operation.Operation)
}

// Store holds the nodes of one document and applies operations to them.
//
// Every mutating method returns the operation(s) it performed. Store is not
// safe for concurrent use; at most one Recorder (an open transaction) may be
// attached at a time.
type Store struct {
	schema *Schema
	ids    IDGenerator
	logger *slog.Logger

	nodes   map[string]operation.NodeData
	kinds   map[string]Kind
	deleted map[string]struct{}

	// annotations indexes property annotations by annotated node.
	annotations map[string]map[string]struct{}
	// anchors indexes container annotations by the nodes their start and
	// end anchors sit on.
	anchors map[string]map[string]struct{}

	recorder Recorder
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		schema:      DefaultSchema(),
		ids:         UUIDGenerator{},
		logger:      slog.Default(),
		nodes:       make(map[string]operation.NodeData),
		kinds:       make(map[string]Kind),
		deleted:     make(map[string]struct{}),
		annotations: make(map[string]map[string]struct{}),
		anchors:     make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schema returns the store's schema.
func (s *Store) Schema() *Schema {
	return s.schema
}

// Logger returns the store's logger.
func (s *Store) Logger() *slog.Logger {
	return s.logger
}

// Attach attaches a recorder. Only one recorder may be attached.
func (s *Store) Attach(r Recorder) error {
	if s.recorder != nil {
		return docerr.IllegalState("a transaction is already open on this document")
	}
	s.recorder = r
	return nil
}

// Detach removes r if it is the attached recorder.
func (s *Store) Detach(r Recorder) {
	if s.recorder == r {
		s.recorder = nil
	}
}

// Recording reports whether a recorder is attached.
func (s *Store) Recording() bool {
	return s.recorder != nil
}

// Has reports whether a node exists.
func (s *Store) Has(id string) bool {
	_, ok := s.nodes[id]
	return ok
}

// Len returns the number of nodes.
func (s *Store) Len() int {
	return len(s.nodes)
}

// Get returns a copy of the node with id.
func (s *Store) Get(id string) (*Node, bool) {
	data, ok := s.nodes[id]
	if !ok {
		return nil, false
	}
	return &Node{ID: id, Type: data.Type(), Kind: s.kinds[id], Props: data.Clone()}, true
}

// GetPath returns a copy of the value at path. A single-element path
// returns the whole node data.
func (s *Store) GetPath(path operation.Path) (any, error) {
	if len(path) == 0 {
		return nil, docerr.InvalidArguments("empty path")
	}
	data, ok := s.nodes[path.NodeID()]
	if !ok {
		return nil, docerr.NotFound(path, "no such node")
	}
	if path.IsNode() {
		return data.Clone(), nil
	}
	v, err := (*target)(s).Property(path)
	if err != nil {
		return nil, err
	}
	return operation.Clone(v), nil
}

// Nodes returns copies of all nodes ordered by id.
func (s *Store) Nodes() []*Node {
	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*Node, 0, len(ids))
	for _, id := range ids {
		n, _ := s.Get(id)
		out = append(out, n)
	}
	return out
}

// Annotations returns the ids of property annotations on node id.
func (s *Store) Annotations(id string) []string {
	return sortedKeys(s.annotations[id])
}

// ContainerAnchors returns the ids of container annotations anchored on
// node id.
func (s *Store) ContainerAnchors(id string) []string {
	return sortedKeys(s.anchors[id])
}

// Target returns the store as an operation.Target. Operations applied
// through it bypass the attached recorder.
func (s *Store) Target() operation.Target {
	return (*target)(s)
}

// Apply applies op and records it.
func (s *Store) Apply(op operation.Operation) error {
	if err := operation.Apply(op, (*target)(s)); err != nil {
		return err
	}
	if s.recorder != nil {
		s.recorder.Record(op)
	}
	return nil
}

// Create adds a node. An id is generated when data has none.
func (s *Store) Create(data operation.NodeData) (operation.Operation, error) {
	if data == nil {
		return operation.Operation{}, docerr.InvalidArguments("create: no node data")
	}
	node := data.Clone()
	typeName := node.Type()
	if typeName == "" {
		return operation.Operation{}, docerr.InvalidArguments("create: node has no type")
	}
	kind, ok := s.schema.KindOf(typeName)
	if !ok {
		return operation.Operation{}, docerr.InvalidArguments("create: unknown node type %q", typeName)
	}
	if node.ID() == "" {
		node["id"] = s.ids.NewID(typeName)
	}
	for _, prop := range BehaviorOf(kind).ChildProperties() {
		if _, ok := node[prop]; !ok {
			node[prop] = []any{}
		}
	}
	op := operation.Create(node)
	return op, s.Apply(op)
}

// Set stores value at path, recording the previous value.
func (s *Store) Set(path operation.Path, value any) (operation.Operation, error) {
	if !s.Has(path.NodeID()) {
		return operation.Operation{}, docerr.NotFound(path, "no such node")
	}
	old, err := (*target)(s).Property(path)
	if err != nil {
		old = nil
	}
	op := operation.Set(path, old, value)
	return op, s.Apply(op)
}

// Update applies diff at path, capturing the pre-image of deletes.
func (s *Store) Update(path operation.Path, diff operation.Diff) (operation.Operation, error) {
	if !s.Has(path.NodeID()) {
		return operation.Operation{}, docerr.NotFound(path, "no such node")
	}
	current, err := (*target)(s).Property(path)
	if err != nil {
		return operation.Operation{}, err
	}
	captured, err := diff.Capture(current)
	if err != nil {
		return operation.Operation{}, docerr.Application(path, "%v", err)
	}
	op := operation.Update(path, captured)
	return op, s.Apply(op)
}

// Indent raises the level of a list item. It returns no operation when the
// item is already at the deepest level.
func (s *Store) Indent(id string) ([]operation.Operation, error) {
	return s.changeLevel(id, (*ListItemCapability).Indented)
}

// Dedent lowers the level of a list item.
func (s *Store) Dedent(id string) ([]operation.Operation, error) {
	return s.changeLevel(id, (*ListItemCapability).Dedented)
}

func (s *Store) changeLevel(id string, next func(*ListItemCapability, int) (int, bool)) ([]operation.Operation, error) {
	node, ok := s.nodes[id]
	if !ok {
		return nil, docerr.NotFound(operation.Path{id}, "no such node")
	}
	li := BehaviorOf(s.kinds[id]).ListItem()
	if li == nil {
		return nil, docerr.Application(operation.Path{id}, "%s is not a list item", node.Type())
	}
	level, changed := next(li, li.Level(node))
	if !changed {
		return nil, nil
	}
	op, err := s.Set(operation.Path{id, "level"}, level)
	if err != nil {
		return nil, err
	}
	return []operation.Operation{op}, nil
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
