package operation

import (
	"bytes"
	"encoding/json"

	"github.com/dshills/docengine/internal/engine/docerr"
)

// wireOperation is the JSON form of an Operation:
//
//	{"type":"update","path":["p1","content"],"diff":{"type":"insert","offset":2,"value":"c"}}
type wireOperation struct {
	Type     string    `json:"type"`
	Path     Path      `json:"path,omitempty"`
	Node     NodeData  `json:"node,omitempty"`
	Original any       `json:"original,omitempty"`
	Value    any       `json:"value,omitempty"`
	Diff     *wireDiff `json:"diff,omitempty"`
}

type wireDiff struct {
	Type   string          `json:"type"`
	Array  bool            `json:"array,omitempty"`
	Offset *int            `json:"offset,omitempty"`
	Start  *int            `json:"start,omitempty"`
	End    *int            `json:"end,omitempty"`
	Value  json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON encodes the operation in wire format.
func (op Operation) MarshalJSON() ([]byte, error) {
	w := wireOperation{Type: op.Kind.String(), Path: op.Path}
	switch op.Kind {
	case KindCreate, KindDelete:
		w.Node = op.Node
	case KindSet:
		w.Original = op.Old
		w.Value = op.Value
	case KindUpdate:
		d, err := encodeDiff(op.Diff)
		if err != nil {
			return nil, err
		}
		w.Diff = d
	}
	return json.Marshal(w)
}

func encodeDiff(d Diff) (*wireDiff, error) {
	w := &wireDiff{Array: !d.IsText()}
	if d.IsInsert() {
		w.Type = "insert"
		off := d.Offset
		w.Offset = &off
	} else {
		w.Type = "delete"
		start, end := d.Offset, d.End
		w.Start = &start
		w.End = &end
	}
	if d.captured {
		raw, err := json.Marshal(d.Value)
		if err != nil {
			return nil, err
		}
		w.Value = raw
	}
	return w, nil
}

// UnmarshalJSON decodes an operation from wire format.
func (op *Operation) UnmarshalJSON(data []byte) error {
	var w wireOperation
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&w); err != nil {
		return docerr.InvalidArguments("decode operation: %v", err)
	}
	kind, err := ParseKind(w.Type)
	if err != nil {
		return err
	}

	switch kind {
	case KindCreate:
		node := w.Node
		if node == nil {
			m, ok := w.Value.(map[string]any)
			if !ok {
				return docerr.InvalidArguments("create without node data")
			}
			node = NodeData(m)
		}
		if node.ID() == "" {
			return docerr.InvalidArguments("create without node id")
		}
		*op = Create(node)
	case KindDelete:
		switch {
		case w.Node != nil:
			*op = Delete(w.Node)
		case len(w.Path) > 0:
			*op = DeleteID(w.Path[0])
		default:
			return docerr.InvalidArguments("delete without node id")
		}
	case KindSet:
		if len(w.Path) < 2 {
			return docerr.InvalidArguments("set requires a property path")
		}
		*op = Set(w.Path, w.Original, w.Value)
	case KindUpdate:
		if len(w.Path) < 2 {
			return docerr.InvalidArguments("update requires a property path")
		}
		if w.Diff == nil {
			return docerr.InvalidArguments("update without diff")
		}
		d, err := decodeDiff(w.Diff)
		if err != nil {
			return err
		}
		*op = Update(w.Path, d)
	}
	return nil
}

func decodeDiff(w *wireDiff) (Diff, error) {
	var value any
	captured := len(w.Value) > 0
	if captured {
		if err := json.Unmarshal(w.Value, &value); err != nil {
			return Diff{}, docerr.InvalidArguments("decode diff value: %v", err)
		}
	}
	_, isText := value.(string)
	array := w.Array || (captured && !isText)

	switch w.Type {
	case "insert":
		off := firstOf(w.Offset, w.Start)
		if off == nil || !captured {
			return Diff{}, docerr.InvalidArguments("insert requires offset and value")
		}
		if array {
			return ArrayInsert(*off, value), nil
		}
		return TextInsert(*off, value.(string)), nil
	case "delete":
		start := firstOf(w.Start, w.Offset)
		if start == nil {
			return Diff{}, docerr.InvalidArguments("delete requires start offset")
		}
		if array {
			if captured {
				return ArrayDeleteOf(*start, value), nil
			}
			return ArrayDelete(*start), nil
		}
		if w.End == nil {
			return Diff{}, docerr.InvalidArguments("text delete requires end offset")
		}
		if captured {
			return TextDeleteOf(*start, *w.End, value.(string)), nil
		}
		return TextDelete(*start, *w.End), nil
	default:
		return Diff{}, docerr.InvalidArguments("unknown diff type %q", w.Type)
	}
}

func firstOf(a, b *int) *int {
	if a != nil {
		return a
	}
	return b
}
