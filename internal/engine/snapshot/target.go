package snapshot

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/docengine/internal/engine/docerr"
	"github.com/dshills/docengine/internal/engine/operation"
)

// jsonTarget applies operations directly to a serialized document of the
// form {"nodes":[...]}. Edits keep the byte layout of untouched parts, so
// node and key order from the base document survive the fold.
type jsonTarget struct {
	doc   []byte
	index map[string]int
}

func newJSONTarget(base []byte) (*jsonTarget, error) {
	if !gjson.ValidBytes(base) {
		return nil, docerr.InvalidArguments("base document is not valid JSON")
	}
	root := gjson.ParseBytes(base)
	if !root.IsObject() {
		return nil, docerr.InvalidArguments("base document must be a JSON object")
	}

	doc := append([]byte(nil), base...)
	nodes := root.Get("nodes")
	var err error
	switch {
	case !nodes.Exists() || nodes.Type == gjson.Null:
		doc, err = sjson.SetRawBytes(doc, "nodes", []byte("[]"))
	case nodes.IsObject():
		doc, err = nodesToArray(doc, nodes)
	case !nodes.IsArray():
		return nil, docerr.InvalidArguments("nodes must be an array or an object")
	}
	if err != nil {
		return nil, docerr.InvalidArguments("normalize base document: %v", err)
	}

	t := &jsonTarget{doc: doc}
	t.reindex()
	return t, nil
}

// nodesToArray rewrites a nodes object keyed by id into an array.
func nodesToArray(doc []byte, nodes gjson.Result) ([]byte, error) {
	arr := []byte("[]")
	var err error
	nodes.ForEach(func(key, value gjson.Result) bool {
		raw := []byte(value.Raw)
		if value.IsObject() && !value.Get("id").Exists() {
			if raw, err = sjson.SetBytes(raw, "id", key.String()); err != nil {
				return false
			}
		}
		arr, err = sjson.SetRawBytes(arr, "-1", raw)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(doc, "nodes", arr)
}

func (t *jsonTarget) reindex() {
	t.index = make(map[string]int)
	i := 0
	gjson.GetBytes(t.doc, "nodes").ForEach(func(_, node gjson.Result) bool {
		if id := node.Get("id").String(); id != "" {
			t.index[id] = i
		}
		i++
		return true
	})
}

// jsonPath builds the gjson/sjson path of keys inside node i.
func jsonPath(i int, keys []string) string {
	var b strings.Builder
	b.WriteString("nodes.")
	b.WriteString(strconv.Itoa(i))
	for _, k := range keys {
		b.WriteByte('.')
		b.WriteString(gjson.Escape(k))
	}
	return b.String()
}

func (t *jsonTarget) HasNode(id string) bool {
	_, ok := t.index[id]
	return ok
}

func (t *jsonTarget) CreateNode(node operation.NodeData) error {
	raw, err := json.Marshal(node)
	if err != nil {
		return docerr.InvalidArguments("encode node: %v", err)
	}
	next := int(gjson.GetBytes(t.doc, "nodes.#").Int())
	doc, err := sjson.SetRawBytes(t.doc, "nodes.-1", raw)
	if err != nil {
		return docerr.Application(operation.Path{node.ID()}, "%v", err)
	}
	t.doc = doc
	t.index[node.ID()] = next
	return nil
}

func (t *jsonTarget) DeleteNode(id string) error {
	i, ok := t.index[id]
	if !ok {
		return docerr.NotFound(operation.Path{id}, "no such node")
	}
	doc, err := sjson.DeleteBytes(t.doc, jsonPath(i, nil))
	if err != nil {
		return docerr.Application(operation.Path{id}, "%v", err)
	}
	t.doc = doc
	t.reindex()
	return nil
}

func (t *jsonTarget) Property(path operation.Path) (any, error) {
	i, ok := t.index[path.NodeID()]
	if !ok {
		return nil, docerr.NotFound(path, "no such node")
	}
	r := gjson.GetBytes(t.doc, jsonPath(i, path.Keys()))
	if !r.Exists() {
		return nil, docerr.NotFound(path, "no such property")
	}
	return r.Value(), nil
}

func (t *jsonTarget) SetProperty(path operation.Path, value any) error {
	i, ok := t.index[path.NodeID()]
	if !ok {
		return docerr.NotFound(path, "no such node")
	}
	if path.Property() == "type" {
		return docerr.Application(path, "node types are immutable")
	}

	keys := path.Keys()
	inArray := false
	if len(keys) > 1 {
		parent := gjson.GetBytes(t.doc, jsonPath(i, keys[:len(keys)-1]))
		if !parent.Exists() {
			return docerr.NotFound(path, "no such property")
		}
		if parent.IsArray() {
			idx, err := strconv.Atoi(keys[len(keys)-1])
			if err != nil || idx < 0 || idx >= len(parent.Array()) {
				return docerr.NotFound(path, "index out of range")
			}
			inArray = true
		}
	}

	p := jsonPath(i, keys)
	var (
		doc []byte
		err error
	)
	switch {
	case value == nil && inArray:
		// Array elements are nulled in place; removing them would shift
		// the indices later operations address.
		doc, err = sjson.SetRawBytes(t.doc, p, []byte("null"))
	case value == nil:
		doc, err = sjson.DeleteBytes(t.doc, p)
	default:
		doc, err = sjson.SetBytes(t.doc, p, value)
	}
	if err != nil {
		return docerr.Application(path, "%v", err)
	}
	t.doc = doc
	return nil
}
