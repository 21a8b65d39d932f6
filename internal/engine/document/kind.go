package document

// Kind is the closed set of node kinds the store understands.
type Kind uint8

const (
	// KindParagraph is a block of text.
	KindParagraph Kind = iota
	// KindHeading is a block of text with a level.
	KindHeading
	// KindText is a plain text node.
	KindText
	// KindListItem is a text node inside a list, with an indent level.
	KindListItem
	// KindList owns list items through its "items" property.
	KindList
	// KindContainer shows an ordered list of nodes through "nodes".
	KindContainer
	// KindAnnotation annotates a range inside a single text property.
	KindAnnotation
	// KindContainerAnnotation spans a range across nodes of a container.
	KindContainerAnnotation
	// KindImage is a non-text block.
	KindImage
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindParagraph:
		return "paragraph"
	case KindHeading:
		return "heading"
	case KindText:
		return "text"
	case KindListItem:
		return "list-item"
	case KindList:
		return "list"
	case KindContainer:
		return "container"
	case KindAnnotation:
		return "annotation"
	case KindContainerAnnotation:
		return "container-annotation"
	case KindImage:
		return "image"
	default:
		return "unknown"
	}
}

// Behavior is the fixed capability interface every node kind implements.
type Behavior interface {
	// IsText reports whether the node holds editable text.
	IsText() bool
	// TextProperty names the text property, or "" for non-text nodes.
	TextProperty() string
	// ChildProperties names the properties holding structural child ids.
	ChildProperties() []string
	// IsContainer reports whether the node shows other nodes in order.
	IsContainer() bool
	// IsAnnotation reports whether the node is a property annotation.
	IsAnnotation() bool
	// IsContainerAnnotation reports whether the node is a container annotation.
	IsContainerAnnotation() bool
	// ListItem returns the list item capability, or nil.
	ListItem() *ListItemCapability
}

// textCapability marks a node as textual.
type textCapability struct {
	property string
}

// parentCapability lists the properties holding child ids.
type parentCapability struct {
	properties []string
}

// ListItemCapability provides indent and dedent for list items.
type ListItemCapability struct {
	MinLevel int
	MaxLevel int
}

// Level returns the level stored in a node's props.
func (c *ListItemCapability) Level(props map[string]any) int {
	if lvl, ok := toInt(props["level"]); ok {
		return lvl
	}
	return c.MinLevel
}

// Indented returns the level after indenting, and whether it changed.
func (c *ListItemCapability) Indented(level int) (int, bool) {
	if level >= c.MaxLevel {
		return level, false
	}
	return level + 1, true
}

// Dedented returns the level after dedenting, and whether it changed.
func (c *ListItemCapability) Dedented(level int) (int, bool) {
	if level <= c.MinLevel {
		return level, false
	}
	return level - 1, true
}

type annotationRole uint8

const (
	roleNone annotationRole = iota
	roleProperty
	roleContainer
)

// capabilities composes the capability parts of a kind.
type capabilities struct {
	text       *textCapability
	parent     *parentCapability
	listItem   *ListItemCapability
	container  bool
	annotation annotationRole
}

func (c capabilities) IsText() bool { return c.text != nil }

func (c capabilities) TextProperty() string {
	if c.text == nil {
		return ""
	}
	return c.text.property
}

func (c capabilities) ChildProperties() []string {
	if c.parent == nil {
		return nil
	}
	return c.parent.properties
}

func (c capabilities) IsContainer() bool { return c.container }

func (c capabilities) IsAnnotation() bool { return c.annotation == roleProperty }

func (c capabilities) IsContainerAnnotation() bool { return c.annotation == roleContainer }

func (c capabilities) ListItem() *ListItemCapability { return c.listItem }

var (
	contentText   = &textCapability{property: "content"}
	listChildren  = &parentCapability{properties: []string{"items"}}
	containerKids = &parentCapability{properties: []string{"nodes"}}
	listItemLevel = &ListItemCapability{MinLevel: 1, MaxLevel: 6}
)

// BehaviorOf returns the behavior of kind.
func BehaviorOf(kind Kind) Behavior {
	switch kind {
	case KindParagraph, KindHeading, KindText:
		return capabilities{text: contentText}
	case KindListItem:
		return capabilities{text: contentText, listItem: listItemLevel}
	case KindList:
		return capabilities{parent: listChildren}
	case KindContainer:
		return capabilities{parent: containerKids, container: true}
	case KindAnnotation:
		return capabilities{annotation: roleProperty}
	case KindContainerAnnotation:
		return capabilities{annotation: roleContainer}
	case KindImage:
		return capabilities{}
	default:
		return capabilities{}
	}
}
