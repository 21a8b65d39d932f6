package document

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dshills/docengine/internal/engine/docerr"
	"github.com/dshills/docengine/internal/engine/operation"
)

type documentJSON struct {
	Nodes []operation.NodeData `json:"nodes"`
}

// MarshalJSON encodes the document as {"nodes":[...]} ordered by node id,
// so that equal documents always encode to equal bytes.
func (s *Store) MarshalJSON() ([]byte, error) {
	doc := documentJSON{Nodes: make([]operation.NodeData, 0, len(s.nodes))}
	for _, n := range s.Nodes() {
		doc.Nodes = append(doc.Nodes, n.Props)
	}
	return json.Marshal(doc)
}

// Load replaces the contents of the store with the document in data. The
// "nodes" member may be an array of nodes or an object keyed by id.
//
// Loading is not recorded and fails with docerr.ErrIllegalState while a
// transaction is open.
func (s *Store) Load(data []byte) error {
	if s.recorder != nil {
		return docerr.IllegalState("cannot load while a transaction is open")
	}
	nodes, err := decodeNodes(data)
	if err != nil {
		return err
	}

	s.nodes = make(map[string]operation.NodeData, len(nodes))
	s.kinds = make(map[string]Kind, len(nodes))
	s.deleted = make(map[string]struct{})
	s.annotations = make(map[string]map[string]struct{})
	s.anchors = make(map[string]map[string]struct{})

	t := (*target)(s)
	for _, n := range nodes {
		if n == nil {
			return docerr.InvalidArguments("null node in document")
		}
		if n.ID() == "" {
			n["id"] = s.ids.NewID(n.Type())
		}
		if t.HasNode(n.ID()) {
			return docerr.InvalidArguments("duplicate node id %q", n.ID())
		}
		if err := t.CreateNode(n); err != nil {
			return fmt.Errorf("load node %s: %w", n.ID(), err)
		}
	}
	s.logger.Debug("document loaded", "nodes", len(nodes))
	return nil
}

func decodeNodes(data []byte) ([]operation.NodeData, error) {
	var raw struct {
		Nodes json.RawMessage `json:"nodes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, docerr.InvalidArguments("document is not a JSON object: %v", err)
	}
	body := bytes.TrimSpace(raw.Nodes)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}

	dec := func(v any) error {
		d := json.NewDecoder(bytes.NewReader(body))
		d.UseNumber()
		return d.Decode(v)
	}
	switch body[0] {
	case '[':
		var list []operation.NodeData
		if err := dec(&list); err != nil {
			return nil, docerr.InvalidArguments("decode nodes: %v", err)
		}
		return normalize(list), nil
	case '{':
		var byID map[string]operation.NodeData
		if err := dec(&byID); err != nil {
			return nil, docerr.InvalidArguments("decode nodes: %v", err)
		}
		list := make([]operation.NodeData, 0, len(byID))
		for _, id := range sortedIDs(byID) {
			n := byID[id]
			if n != nil && n.ID() == "" {
				n["id"] = id
			}
			list = append(list, n)
		}
		return normalize(list), nil
	default:
		return nil, docerr.InvalidArguments("nodes must be an array or an object")
	}
}

// normalize turns decoded json.Number values into int or float64 so that
// loaded documents compare equal to documents built in memory.
func normalize(list []operation.NodeData) []operation.NodeData {
	for i, n := range list {
		list[i] = operation.NodeData(normalizeValue(map[string]any(n)).(map[string]any))
	}
	return list
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeValue(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeValue(e)
		}
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i)
		}
		f, _ := t.Float64()
		return f
	default:
		return v
	}
}

func sortedIDs(m map[string]operation.NodeData) []string {
	set := make(map[string]struct{}, len(m))
	for id := range m {
		set[id] = struct{}{}
	}
	return sortedKeys(set)
}
