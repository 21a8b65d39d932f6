package document

import (
	"fmt"
	"sort"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/docengine/internal/engine/operation"
)

// Schema maps node type names to kinds. Each store owns its schema.
type Schema struct {
	types map[string]Kind
}

// NewSchema creates an empty schema.
func NewSchema() *Schema {
	return &Schema{types: make(map[string]Kind)}
}

// DefaultSchema returns a schema with the built-in node types.
func DefaultSchema() *Schema {
	s := NewSchema()
	s.Define("paragraph", KindParagraph)
	s.Define("heading", KindHeading)
	s.Define("text", KindText)
	s.Define("list-item", KindListItem)
	s.Define("list", KindList)
	s.Define("container", KindContainer)
	s.Define("annotation", KindAnnotation)
	s.Define("strong", KindAnnotation)
	s.Define("emphasis", KindAnnotation)
	s.Define("link", KindAnnotation)
	s.Define("container-annotation", KindContainerAnnotation)
	s.Define("comment", KindContainerAnnotation)
	s.Define("image", KindImage)
	return s
}

// Define maps a type name to a kind, replacing any previous mapping.
func (s *Schema) Define(typeName string, kind Kind) {
	s.types[typeName] = kind
}

// KindOf returns the kind of a type name.
func (s *Schema) KindOf(typeName string) (Kind, bool) {
	k, ok := s.types[typeName]
	return k, ok
}

// Types returns the defined type names in sorted order.
func (s *Schema) Types() []string {
	names := make([]string, 0, len(s.types))
	for name := range s.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IDGenerator produces ids for nodes created without one.
type IDGenerator interface {
	NewID(typeName string) string
}

// UUIDGenerator generates "<type>-<uuid>" ids.
type UUIDGenerator struct{}

// NewID implements IDGenerator.
func (UUIDGenerator) NewID(typeName string) string {
	return typeName + "-" + uuid.NewString()
}

// SequenceGenerator generates "<prefix><n>" ids from a counter it owns.
// When prefix is empty the type name followed by "-" is used.
type SequenceGenerator struct {
	prefix string
	next   atomic.Uint64
}

// NewSequenceGenerator creates a counter-based generator.
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	return &SequenceGenerator{prefix: prefix}
}

// NewID implements IDGenerator.
func (g *SequenceGenerator) NewID(typeName string) string {
	n := g.next.Add(1)
	prefix := g.prefix
	if prefix == "" {
		prefix = typeName + "-"
	}
	return prefix + strconv.FormatUint(n, 10)
}

// Node is a read-only view of a stored node.
type Node struct {
	ID    string
	Type  string
	Kind  Kind
	Props operation.NodeData
}

// Behavior returns the capabilities of the node's kind.
func (n *Node) Behavior() Behavior {
	return BehaviorOf(n.Kind)
}

// Text returns the node's text content, if it is textual.
func (n *Node) Text() string {
	prop := n.Behavior().TextProperty()
	if prop == "" {
		return ""
	}
	s, _ := n.Props[prop].(string)
	return s
}

// String renders the node for logs.
func (n *Node) String() string {
	return fmt.Sprintf("%s(%s)", n.Type, n.ID)
}

func toInt(v any) (int, bool) {
	return operation.ToInt(v)
}
