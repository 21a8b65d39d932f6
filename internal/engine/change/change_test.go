package change

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/dshills/docengine/internal/engine/docerr"
	"github.com/dshills/docengine/internal/engine/operation"
)

// mapTarget is a minimal operation.Target over plain maps.
type mapTarget map[string]operation.NodeData

func (m mapTarget) HasNode(id string) bool { _, ok := m[id]; return ok }

func (m mapTarget) CreateNode(n operation.NodeData) error {
	m[n.ID()] = n
	return nil
}

func (m mapTarget) DeleteNode(id string) error {
	delete(m, id)
	return nil
}

func (m mapTarget) Property(p operation.Path) (any, error) {
	return operation.GetIn(map[string]any(m[p.NodeID()]), p.Keys())
}

func (m mapTarget) SetProperty(p operation.Path, v any) error {
	return operation.SetIn(map[string]any(m[p.NodeID()]), p.Keys(), v)
}

func (m mapTarget) clone() mapTarget {
	c := make(mapTarget, len(m))
	for k, v := range m {
		c[k] = v.Clone()
	}
	return c
}

func sampleChange() *Change {
	ops := []operation.Operation{
		operation.Create(operation.NodeData{"id": "p2", "type": "paragraph", "content": "x"}),
		operation.Update(operation.Path{"p1", "content"}, operation.TextInsert(2, "c")),
		operation.Update(operation.Path{"p1", "content"}, operation.TextDeleteOf(0, 1, "a")),
		operation.Set(operation.Path{"p1", "align"}, nil, "left"),
	}
	return New(ops, map[string]any{"title": "edit"}).
		WithSelections(Caret(operation.Path{"p1", "content"}, 0, ""), Caret(operation.Path{"p1", "content"}, 2, ""))
}

func TestChangeApplyAndInvert(t *testing.T) {
	doc := mapTarget{"p1": {"id": "p1", "type": "paragraph", "content": "ab"}}
	before := doc.clone()

	c := sampleChange()
	if err := c.ApplyTo(doc); err != nil {
		t.Fatalf("ApplyTo: %v", err)
	}
	if got := doc["p1"]["content"]; got != "bc" {
		t.Errorf("content = %v, want bc", got)
	}

	inv, err := c.Invert()
	if err != nil {
		t.Fatalf("Invert: %v", err)
	}
	if inv.ID == c.ID {
		t.Error("inverse change reuses the id")
	}
	if inv.Info["inverts"] != c.ID {
		t.Errorf("inverts = %v, want %s", inv.Info["inverts"], c.ID)
	}
	if inv.Before.Start != c.After.Start || inv.After.Start != c.Before.Start {
		t.Error("selections not swapped")
	}
	if err := inv.ApplyTo(doc); err != nil {
		t.Fatalf("apply inverse: %v", err)
	}
	if !reflect.DeepEqual(doc, before) {
		t.Errorf("after inverse got %v, want %v", doc, before)
	}
}

func TestApplyToRevertsOnFailure(t *testing.T) {
	doc := mapTarget{"p1": {"id": "p1", "type": "paragraph", "content": "ab"}}
	before := doc.clone()

	c := New([]operation.Operation{
		operation.Update(operation.Path{"p1", "content"}, operation.TextInsert(0, "x")),
		operation.Update(operation.Path{"p1", "content"}, operation.TextInsert(10, "y")),
	}, nil)
	err := c.ApplyTo(doc)
	if !errors.Is(err, docerr.ErrApplication) {
		t.Fatalf("err = %v, want ErrApplication", err)
	}
	if !reflect.DeepEqual(doc, before) {
		t.Errorf("target changed after failed apply: %v", doc)
	}
}

func TestInvertWithoutPreimage(t *testing.T) {
	c := New([]operation.Operation{
		operation.Update(operation.Path{"p1", "content"}, operation.TextDelete(0, 1)),
	}, nil)
	if _, err := c.Invert(); !errors.Is(err, operation.ErrNotInvertible) {
		t.Errorf("err = %v, want ErrNotInvertible", err)
	}
}

func TestNewCopiesInputs(t *testing.T) {
	info := map[string]any{"title": "a"}
	ops := []operation.Operation{operation.Set(operation.Path{"p1", "x"}, nil, 1)}
	c := New(ops, info)

	info["title"] = "b"
	ops[0] = operation.Set(operation.Path{"p2", "y"}, nil, 2)
	if c.Description() != "a" {
		t.Errorf("Description() = %q, want a", c.Description())
	}
	if c.Ops[0].NodeID() != "p1" {
		t.Errorf("op changed through caller slice: %s", c.Ops[0])
	}
	if c.IsEmpty() {
		t.Error("IsEmpty() = true")
	}
}

func TestChangeJSON(t *testing.T) {
	c := sampleChange()
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded Change
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.ID != c.ID || len(decoded.Ops) != len(c.Ops) || decoded.Description() != "edit" {
		t.Errorf("decoded %+v", decoded)
	}
	if !decoded.After.Path.Equal(c.After.Path) || decoded.After.Start != 2 {
		t.Errorf("after selection = %+v", decoded.After)
	}

	doc := mapTarget{"p1": {"id": "p1", "type": "paragraph", "content": "ab"}}
	if err := decoded.ApplyTo(doc); err != nil {
		t.Fatalf("apply decoded: %v", err)
	}
	if got := doc["p1"]["content"]; got != "bc" {
		t.Errorf("content = %v, want bc", got)
	}
}

func TestChangeJSONBareArray(t *testing.T) {
	raw := `[{"type":"update","path":["p1","content"],"diff":{"type":"insert","offset":2,"value":"c"}}]`
	var c Change
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if c.ID == "" || len(c.Ops) != 1 || c.Ops[0].Kind != operation.KindUpdate {
		t.Errorf("decoded %+v", c)
	}
}

func TestChangeJSONRejectsScalars(t *testing.T) {
	for _, raw := range []string{`"ops"`, `42`, `true`} {
		var c Change
		if err := json.Unmarshal([]byte(raw), &c); !errors.Is(err, docerr.ErrInvalidArguments) {
			t.Errorf("Unmarshal(%s) err = %v, want ErrInvalidArguments", raw, err)
		}
	}
}

func TestSelection(t *testing.T) {
	if !NullSelection.IsNull() {
		t.Error("NullSelection.IsNull() = false")
	}
	sel := Caret(operation.Path{"p1", "content"}, 3, "body")
	if sel.IsNull() || !sel.IsCollapsed() {
		t.Errorf("caret %+v", sel)
	}
}
