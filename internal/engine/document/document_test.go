package document

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/dshills/docengine/internal/engine/change"
	"github.com/dshills/docengine/internal/engine/docerr"
	"github.com/dshills/docengine/internal/engine/operation"
)

func newTestStore(t *testing.T, nodes ...operation.NodeData) *Store {
	t.Helper()
	s := New(WithIDGenerator(NewSequenceGenerator("n")))
	for _, n := range nodes {
		if _, err := s.Create(n); err != nil {
			t.Fatalf("Create(%v): %v", n, err)
		}
	}
	return s
}

func snapshot(t *testing.T, s *Store) string {
	t.Helper()
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal store: %v", err)
	}
	return string(data)
}

func revertAll(t *testing.T, s *Store, ops []operation.Operation) {
	t.Helper()
	inv, err := operation.InvertAll(ops)
	if err != nil {
		t.Fatalf("InvertAll: %v", err)
	}
	for _, op := range inv {
		if err := s.Apply(op); err != nil {
			t.Fatalf("Apply(%s): %v", op, err)
		}
	}
}

func para(id, content string) operation.NodeData {
	return operation.NodeData{"id": id, "type": "paragraph", "content": content}
}

func TestCreateGeneratesID(t *testing.T) {
	s := newTestStore(t)
	op, err := s.Create(operation.NodeData{"type": "paragraph", "content": "x"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if op.NodeID() != "n1" {
		t.Errorf("generated id = %q, want n1", op.NodeID())
	}
	n, ok := s.Get("n1")
	if !ok {
		t.Fatal("node not stored")
	}
	if n.Kind != KindParagraph || n.Text() != "x" {
		t.Errorf("got %s kind=%s text=%q", n, n.Kind, n.Text())
	}
}

func TestCreateErrors(t *testing.T) {
	s := newTestStore(t, para("p1", "a"))

	tests := []struct {
		name string
		data operation.NodeData
		kind error
	}{
		{"nil data", nil, docerr.ErrInvalidArguments},
		{"no type", operation.NodeData{"id": "x"}, docerr.ErrInvalidArguments},
		{"unknown type", operation.NodeData{"id": "x", "type": "video"}, docerr.ErrInvalidArguments},
		{"duplicate id", para("p1", "b"), docerr.ErrApplication},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(tt.data)
			if !errors.Is(err, tt.kind) {
				t.Errorf("err = %v, want %v", err, tt.kind)
			}
		})
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d after failed creates, want 1", s.Len())
	}
}

func TestCreateInitializesChildProperties(t *testing.T) {
	s := newTestStore(t, operation.NodeData{"id": "body", "type": "container"})
	v, err := s.GetPath(operation.Path{"body", "nodes"})
	if err != nil {
		t.Fatalf("GetPath: %v", err)
	}
	if list, ok := v.([]any); !ok || len(list) != 0 {
		t.Errorf("nodes = %#v, want empty list", v)
	}
}

func TestSetAndUpdateRoundTrip(t *testing.T) {
	s := newTestStore(t, para("p1", "héllo"))
	before := snapshot(t, s)

	var ops []operation.Operation
	op, err := s.Set(operation.Path{"p1", "align"}, "center")
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	ops = append(ops, op)
	op, err = s.Update(operation.Path{"p1", "content"}, operation.TextDelete(1, 3))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if op.Diff.Value != "él" {
		t.Errorf("captured pre-image = %v, want \"él\"", op.Diff.Value)
	}
	ops = append(ops, op)

	if n, _ := s.Get("p1"); n.Text() != "hlo" {
		t.Errorf("content = %q, want \"hlo\"", n.Text())
	}

	revertAll(t, s, ops)
	if got := snapshot(t, s); got != before {
		t.Errorf("after revert:\n got %s\nwant %s", got, before)
	}
}

func TestGetPathReturnsCopy(t *testing.T) {
	s := newTestStore(t, operation.NodeData{"id": "l1", "type": "list", "items": []any{"a"}})
	v, err := s.GetPath(operation.Path{"l1", "items"})
	if err != nil {
		t.Fatalf("GetPath: %v", err)
	}
	v.([]any)[0] = "changed"
	if got, _ := s.GetPath(operation.Path{"l1", "items", "0"}); got != "a" {
		t.Errorf("store mutated through GetPath result: %v", got)
	}
	if _, err := s.GetPath(operation.Path{"missing", "x"}); !errors.Is(err, docerr.ErrNotFound) {
		t.Errorf("missing node err = %v, want ErrNotFound", err)
	}
}

func TestDeleteCascadeWithSelection(t *testing.T) {
	s := newTestStore(t,
		para("p1", "ab"),
		operation.NodeData{"id": "li1", "type": "list-item", "content": "item"},
		operation.NodeData{"id": "l1", "type": "list", "items": []any{"li1"}},
		para("p2", "cd"),
		operation.NodeData{"id": "body", "type": "container", "nodes": []any{"p1", "l1", "p2"}},
		operation.NodeData{"id": "a1", "type": "strong", "path": []any{"l1", "caption"}, "start": 0, "end": 1},
		operation.NodeData{"id": "a2", "type": "link", "path": []any{"l1", "caption"}, "start": 1, "end": 2},
	)
	if got := s.Annotations("l1"); len(got) != 2 {
		t.Fatalf("Annotations(l1) = %v, want 2 entries", got)
	}
	before := snapshot(t, s)

	ops, sel, err := s.DeleteFromContainer("body", "l1")
	if err != nil {
		t.Fatalf("DeleteFromContainer: %v", err)
	}
	for _, id := range []string{"l1", "li1", "a1", "a2"} {
		if s.Has(id) {
			t.Errorf("%s still exists", id)
		}
	}
	if got := s.ContainerNodes("body"); len(got) != 2 || got[0] != "p1" || got[1] != "p2" {
		t.Errorf("body nodes = %v, want [p1 p2]", got)
	}
	want := change.Caret(operation.Path{"p2", "content"}, 0, "body")
	if !sel.Path.Equal(want.Path) || sel.Start != 0 || sel.End != 0 || sel.ContainerID != "body" {
		t.Errorf("selection = %+v, want %+v", sel, want)
	}
	if got := s.Annotations("l1"); got != nil {
		t.Errorf("annotation index not cleared: %v", got)
	}

	revertAll(t, s, ops)
	if got := snapshot(t, s); got != before {
		t.Errorf("after revert:\n got %s\nwant %s", got, before)
	}
	if got := s.Annotations("l1"); len(got) != 2 {
		t.Errorf("annotation index not restored: %v", got)
	}
}

func TestDeleteFromContainerSelectsPreviousEnd(t *testing.T) {
	s := newTestStore(t,
		para("p1", "añb"),
		para("p2", "x"),
		operation.NodeData{"id": "body", "type": "container", "nodes": []any{"p1", "p2"}},
	)
	_, sel, err := s.DeleteFromContainer("body", "p2")
	if err != nil {
		t.Fatalf("DeleteFromContainer: %v", err)
	}
	if !sel.Path.Equal(operation.Path{"p1", "content"}) || sel.Start != 3 {
		t.Errorf("selection = %+v, want end of p1 at 3", sel)
	}

	_, sel, err = s.DeleteFromContainer("body", "p1")
	if err != nil {
		t.Fatalf("DeleteFromContainer: %v", err)
	}
	if !sel.IsNull() {
		t.Errorf("selection = %+v, want null", sel)
	}
}

func TestDeleteReanchorsContainerAnnotations(t *testing.T) {
	nodes := func() []operation.NodeData {
		return []operation.NodeData{
			para("p1", "ab"),
			para("p2", "cd"),
			para("p3", "ef"),
			operation.NodeData{"id": "body", "type": "container", "nodes": []any{"p1", "p2", "p3"}},
		}
	}
	comment := func(start, end string) operation.NodeData {
		return operation.NodeData{
			"id": "c1", "type": "comment", "containerId": "body",
			"startPath": []any{start, "content"}, "startOffset": 1,
			"endPath": []any{end, "content"}, "endOffset": 1,
		}
	}

	t.Run("start moves to next sibling", func(t *testing.T) {
		s := newTestStore(t, append(nodes(), comment("p2", "p3"))...)
		if _, err := s.Delete("p2"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		start, _ := s.GetPath(operation.Path{"c1", "startPath"})
		offset, _ := s.GetPath(operation.Path{"c1", "startOffset"})
		if p, _ := operation.ToPath(start); !p.Equal(operation.Path{"p3", "content"}) || offset != 0 {
			t.Errorf("start = %v@%v, want p3.content@0", start, offset)
		}
		if got := s.ContainerAnchors("p3"); len(got) != 1 || got[0] != "c1" {
			t.Errorf("ContainerAnchors(p3) = %v", got)
		}
	})

	t.Run("end moves to previous sibling end", func(t *testing.T) {
		s := newTestStore(t, append(nodes(), comment("p1", "p2"))...)
		if _, err := s.Delete("p2"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		end, _ := s.GetPath(operation.Path{"c1", "endPath"})
		offset, _ := s.GetPath(operation.Path{"c1", "endOffset"})
		if p, _ := operation.ToPath(end); !p.Equal(operation.Path{"p1", "content"}) || offset != 2 {
			t.Errorf("end = %v@%v, want p1.content@2", end, offset)
		}
	})

	t.Run("node outside container deletes annotation", func(t *testing.T) {
		s := newTestStore(t, append(nodes(), comment("p2", "p3"))...)
		if _, err := s.Hide("body", "p2"); err != nil {
			t.Fatalf("Hide: %v", err)
		}
		if _, err := s.Delete("p2"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if s.Has("c1") {
			t.Error("c1 should be deleted when its anchor node has no position")
		}
		if got := s.ContainerAnchors("p3"); got != nil {
			t.Errorf("ContainerAnchors(p3) = %v, want none", got)
		}
	})

	t.Run("both anchors on node", func(t *testing.T) {
		s := newTestStore(t, append(nodes(), comment("p2", "p2"))...)
		if _, err := s.Delete("p2"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if s.Has("c1") {
			t.Error("c1 should be deleted with its only anchor node")
		}
	})
}

func TestDeleteMissingAndTombstoned(t *testing.T) {
	s := newTestStore(t, para("p1", "a"))

	if _, err := s.Delete("nope"); !errors.Is(err, docerr.ErrNotFound) {
		t.Errorf("unknown id err = %v, want ErrNotFound", err)
	}
	if _, err := s.Delete("p1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	ops, err := s.Delete("p1")
	if err != nil {
		t.Errorf("second delete err = %v, want nil", err)
	}
	if len(ops) != 0 {
		t.Errorf("second delete ops = %v, want none", ops)
	}
}

func TestShowHide(t *testing.T) {
	s := newTestStore(t,
		para("p1", "a"),
		para("p2", "b"),
		operation.NodeData{"id": "body", "type": "container"},
	)
	if _, err := s.Show("body", "p2", -1); err != nil {
		t.Fatalf("Show: %v", err)
	}
	if _, err := s.Show("body", "p1", 0); err != nil {
		t.Fatalf("Show: %v", err)
	}
	if got := s.ContainerNodes("body"); len(got) != 2 || got[0] != "p1" {
		t.Errorf("nodes = %v, want [p1 p2]", got)
	}
	if _, err := s.Show("body", "p1", 0); !errors.Is(err, docerr.ErrApplication) {
		t.Errorf("duplicate show err = %v, want ErrApplication", err)
	}

	op, err := s.Hide("body", "p1")
	if err != nil {
		t.Fatalf("Hide: %v", err)
	}
	if op.Diff.Value != "p1" {
		t.Errorf("hide pre-image = %v, want p1", op.Diff.Value)
	}
	if !s.Has("p1") {
		t.Error("Hide removed the node")
	}
	if _, err := s.Hide("body", "p1"); !errors.Is(err, docerr.ErrNotFound) {
		t.Errorf("hide of hidden node err = %v, want ErrNotFound", err)
	}
	if _, err := s.Show("p1", "p2", 0); !errors.Is(err, docerr.ErrNotFound) {
		t.Errorf("show in non-container err = %v, want ErrNotFound", err)
	}
}

func TestIndentDedent(t *testing.T) {
	s := newTestStore(t,
		operation.NodeData{"id": "li1", "type": "list-item", "content": "x"},
		para("p1", "y"),
	)
	for i := 0; i < 10; i++ {
		if _, err := s.Indent("li1"); err != nil {
			t.Fatalf("Indent: %v", err)
		}
	}
	if lvl, _ := s.GetPath(operation.Path{"li1", "level"}); lvl != 6 {
		t.Errorf("level = %v, want 6", lvl)
	}
	ops, err := s.Indent("li1")
	if err != nil || len(ops) != 0 {
		t.Errorf("indent at max = %v, %v; want no ops", ops, err)
	}
	if _, err := s.Dedent("li1"); err != nil {
		t.Fatalf("Dedent: %v", err)
	}
	if lvl, _ := s.GetPath(operation.Path{"li1", "level"}); lvl != 5 {
		t.Errorf("level = %v, want 5", lvl)
	}
	if _, err := s.Indent("p1"); !errors.Is(err, docerr.ErrApplication) {
		t.Errorf("indent paragraph err = %v, want ErrApplication", err)
	}
}

type opLog struct{ ops []operation.Operation }

func (l *opLog) Record(op operation.Operation) { l.ops = append(l.ops, op) }

func TestRecorder(t *testing.T) {
	s := newTestStore(t)
	log := &opLog{}
	if err := s.Attach(log); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if err := s.Attach(&opLog{}); !errors.Is(err, docerr.ErrIllegalState) {
		t.Errorf("second Attach err = %v, want ErrIllegalState", err)
	}
	if _, err := s.Create(para("p1", "a")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Set(operation.Path{"p1", "content"}, "b"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Set(operation.Path{"p1", "type"}, "heading"); err == nil {
		t.Error("changing a node type should fail")
	}
	s.Detach(log)
	if s.Recording() {
		t.Error("still recording after Detach")
	}
	if len(log.ops) != 2 {
		t.Errorf("recorded %d ops, want 2", len(log.ops))
	}
}

func TestLoadAndMarshal(t *testing.T) {
	s := newTestStore(t)
	doc := `{"nodes":{"p2":{"type":"paragraph","content":"b"},"p1":{"type":"paragraph","content":"a"},` +
		`"a1":{"type":"strong","path":["p1","content"],"start":0,"end":1}}}`
	if err := s.Load([]byte(doc)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}
	if got := s.Annotations("p1"); len(got) != 1 || got[0] != "a1" {
		t.Errorf("Annotations(p1) = %v", got)
	}
	if end, _ := s.GetPath(operation.Path{"a1", "end"}); end != 1 {
		t.Errorf("end = %#v, want int 1", end)
	}

	want := `{"nodes":[{"end":1,"id":"a1","path":["p1","content"],"start":0,"type":"strong"},` +
		`{"content":"a","id":"p1","type":"paragraph"},{"content":"b","id":"p2","type":"paragraph"}]}`
	if got := snapshot(t, s); got != want {
		t.Errorf("marshal:\n got %s\nwant %s", got, want)
	}

	reloaded := newTestStore(t)
	if err := reloaded.Load([]byte(want)); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := snapshot(t, reloaded); got != want {
		t.Errorf("reload changed document:\n got %s\nwant %s", got, want)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `nodes`},
		{"bare string", `"doc"`},
		{"nodes scalar", `{"nodes":3}`},
		{"duplicate ids", `{"nodes":[{"id":"a","type":"text"},{"id":"a","type":"text"}]}`},
		{"unknown type", `{"nodes":[{"id":"a","type":"video"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			if err := s.Load([]byte(tt.doc)); !errors.Is(err, docerr.ErrInvalidArguments) {
				t.Errorf("Load err = %v, want ErrInvalidArguments", err)
			}
		})
	}
}

func TestBehaviorOf(t *testing.T) {
	tests := []struct {
		kind      Kind
		text      string
		children  int
		container bool
		listItem  bool
	}{
		{KindParagraph, "content", 0, false, false},
		{KindListItem, "content", 0, false, true},
		{KindList, "", 1, false, false},
		{KindContainer, "", 1, true, false},
		{KindImage, "", 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			b := BehaviorOf(tt.kind)
			if b.TextProperty() != tt.text || b.IsText() != (tt.text != "") {
				t.Errorf("text property = %q", b.TextProperty())
			}
			if len(b.ChildProperties()) != tt.children {
				t.Errorf("child properties = %v", b.ChildProperties())
			}
			if b.IsContainer() != tt.container {
				t.Errorf("IsContainer() = %v", b.IsContainer())
			}
			if (b.ListItem() != nil) != tt.listItem {
				t.Errorf("ListItem() = %v", b.ListItem())
			}
		})
	}
}
