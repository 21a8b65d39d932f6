package history

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/dshills/docengine/internal/engine/change"
	"github.com/dshills/docengine/internal/engine/docerr"
	"github.com/dshills/docengine/internal/engine/document"
	"github.com/dshills/docengine/internal/engine/operation"
	"github.com/dshills/docengine/internal/engine/transaction"
)

// Helper to create a store holding one paragraph.
func newTestStore(t *testing.T, content string) *document.Store {
	t.Helper()
	s := document.New()
	if _, err := s.Create(operation.NodeData{"id": "p1", "type": "paragraph", "content": content}); err != nil {
		t.Fatal(err)
	}
	return s
}

// insert commits a change appending text to p1.
func insert(t *testing.T, s *document.Store, h *History, text string) *change.Change {
	t.Helper()
	c, err := transaction.Run(s, change.NullSelection, map[string]any{"title": "insert " + text}, func(tx *transaction.Tx) error {
		cur, err := s.GetPath(operation.Path{"p1", "content"})
		if err != nil {
			return err
		}
		_, err = tx.Update(operation.Path{"p1", "content"}, operation.TextInsert(len([]rune(cur.(string))), text))
		return err
	})
	if err != nil {
		t.Fatalf("insert %q: %v", text, err)
	}
	h.Commit(c)
	return c
}

func content(t *testing.T, s *document.Store) string {
	t.Helper()
	v, err := s.GetPath(operation.Path{"p1", "content"})
	if err != nil {
		t.Fatal(err)
	}
	return v.(string)
}

func TestHistoryInitialState(t *testing.T) {
	h := New(0)
	if h.CanUndo() || h.CanRedo() {
		t.Error("new history should have nothing to undo or redo")
	}
	if h.MaxEntries() != DefaultMaxEntries {
		t.Errorf("MaxEntries() = %d, want %d", h.MaxEntries(), DefaultMaxEntries)
	}
}

func TestHistoryCommitAndUndo(t *testing.T) {
	s := newTestStore(t, "")
	h := New(100)
	insert(t, s, h, "a")
	insert(t, s, h, "b")
	insert(t, s, h, "c")

	if content(t, s) != "abc" {
		t.Fatalf("content = %q", content(t, s))
	}

	inv, err := h.Undo(s.Target())
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if content(t, s) != "ab" {
		t.Errorf("after undo content = %q, want ab", content(t, s))
	}
	if inv.Info["inverts"] == nil {
		t.Error("undo change does not reference the change it inverts")
	}
}

func TestHistoryCounts(t *testing.T) {
	s := newTestStore(t, "")
	h := New(100)
	const commits = 4
	for i := 0; i < commits; i++ {
		insert(t, s, h, "x")
		if h.CanRedo() {
			t.Fatalf("CanRedo() = true after commit %d", i)
		}
	}

	for k := 1; k <= commits; k++ {
		if _, err := h.Undo(s.Target()); err != nil {
			t.Fatalf("Undo %d: %v", k, err)
		}
		if !h.CanRedo() {
			t.Errorf("CanRedo() = false after %d undos", k)
		}
		if got, want := h.UndoCount(), commits-k; got != want {
			t.Errorf("UndoCount() = %d after %d undos, want %d", got, k, want)
		}
		if h.CanUndo() != (commits-k > 0) {
			t.Errorf("CanUndo() = %v after %d undos", h.CanUndo(), k)
		}
	}
	if _, err := h.Undo(s.Target()); !errors.Is(err, ErrNothingToUndo) {
		t.Errorf("err = %v, want ErrNothingToUndo", err)
	}
}

func TestHistoryRedo(t *testing.T) {
	s := newTestStore(t, "")
	h := New(100)
	c := insert(t, s, h, "a")
	insert(t, s, h, "b")

	if _, err := h.Undo(s.Target()); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Undo(s.Target()); err != nil {
		t.Fatal(err)
	}
	if content(t, s) != "" {
		t.Fatalf("content = %q, want empty", content(t, s))
	}

	redo, err := h.Redo(s.Target())
	if err != nil {
		t.Fatalf("Redo: %v", err)
	}
	if content(t, s) != "a" {
		t.Errorf("content = %q, want a", content(t, s))
	}
	if redo.ID == c.ID || redo.Info["redoes"] != c.ID {
		t.Errorf("redo change = %s info %v", redo.ID, redo.Info)
	}
	if h.UndoCount() != 1 || h.RedoCount() != 1 {
		t.Errorf("counts = %d/%d, want 1/1", h.UndoCount(), h.RedoCount())
	}
}

func TestHistoryRedoClearedOnCommit(t *testing.T) {
	s := newTestStore(t, "")
	h := New(100)
	insert(t, s, h, "a")
	if _, err := h.Undo(s.Target()); err != nil {
		t.Fatal(err)
	}
	insert(t, s, h, "b")

	if h.CanRedo() {
		t.Error("redo should be cleared after a new commit")
	}
	if _, err := h.Redo(s.Target()); !errors.Is(err, ErrNothingToRedo) {
		t.Errorf("err = %v, want ErrNothingToRedo", err)
	}
}

func TestHistoryUndoFailureRestoresState(t *testing.T) {
	s := newTestStore(t, "ab")
	h := New(100)
	insert(t, s, h, "c")

	// The document changes behind the history's back so the inverse no
	// longer applies.
	if _, err := s.Set(operation.Path{"p1", "content"}, "x"); err != nil {
		t.Fatal(err)
	}
	before, _ := json.Marshal(s)

	if _, err := h.Undo(s.Target()); !errors.Is(err, docerr.ErrApplication) {
		t.Fatalf("err = %v, want ErrApplication", err)
	}
	if h.UndoCount() != 1 || h.CanRedo() {
		t.Errorf("stacks not restored: undo=%d redo=%d", h.UndoCount(), h.RedoCount())
	}
	after, _ := json.Marshal(s)
	if string(after) != string(before) {
		t.Errorf("document changed by failed undo:\n got %s\nwant %s", after, before)
	}
}

func TestHistoryUndoRestoresMultiOpChange(t *testing.T) {
	s := newTestStore(t, "ab")
	h := New(100)
	before, _ := json.Marshal(s)

	c, err := transaction.Run(s, change.NullSelection, nil, func(tx *transaction.Tx) error {
		if _, err := tx.Create(operation.NodeData{"id": "body", "type": "container"}); err != nil {
			return err
		}
		if _, err := tx.Show("body", "p1", -1); err != nil {
			return err
		}
		_, err := tx.DeleteFromContainer("body", "p1")
		return err
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	h.Commit(c)

	if _, err := h.Undo(s.Target()); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	after, _ := json.Marshal(s)
	if string(after) != string(before) {
		t.Errorf("undo did not restore document:\n got %s\nwant %s", after, before)
	}
}

func TestHistoryMaxEntries(t *testing.T) {
	s := newTestStore(t, "")
	h := New(3)
	for i := 0; i < 5; i++ {
		insert(t, s, h, "x")
	}
	if h.UndoCount() != 3 {
		t.Errorf("UndoCount() = %d, want 3", h.UndoCount())
	}
	h.SetMaxEntries(2)
	if h.UndoCount() != 2 {
		t.Errorf("UndoCount() after SetMaxEntries = %d, want 2", h.UndoCount())
	}
	for h.CanUndo() {
		if _, err := h.Undo(s.Target()); err != nil {
			t.Fatal(err)
		}
	}
	if content(t, s) != "xxx" {
		t.Errorf("content = %q, want xxx", content(t, s))
	}
}

func TestHistoryReset(t *testing.T) {
	s := newTestStore(t, "")
	h := New(100)
	insert(t, s, h, "a")
	insert(t, s, h, "b")
	if _, err := h.Undo(s.Target()); err != nil {
		t.Fatal(err)
	}
	h.Reset()
	if h.CanUndo() || h.CanRedo() {
		t.Error("Reset should clear both stacks")
	}
}

func TestHistoryInfo(t *testing.T) {
	s := newTestStore(t, "")
	h := New(100)
	if _, ok := h.PeekUndo(); ok {
		t.Error("PeekUndo on empty history")
	}
	insert(t, s, h, "a")
	insert(t, s, h, "b")

	info := h.UndoInfo()
	if len(info) != 2 || info[0].Description != "insert a" || info[1].Description != "insert b" {
		t.Errorf("UndoInfo() = %+v", info)
	}
	top, ok := h.PeekUndo()
	if !ok || top.Description != "insert b" || top.Ops != 1 {
		t.Errorf("PeekUndo() = %+v, %v", top, ok)
	}

	if _, err := h.Undo(s.Target()); err != nil {
		t.Fatal(err)
	}
	next, ok := h.PeekRedo()
	if !ok || next.Description != "insert b" {
		t.Errorf("PeekRedo() = %+v, %v", next, ok)
	}
	if got := h.RedoInfo(); len(got) != 1 {
		t.Errorf("RedoInfo() = %+v", got)
	}
}

func TestHistoryGrouping(t *testing.T) {
	s := newTestStore(t, "")
	h := New(100)

	h.BeginGroup(map[string]any{"title": "typing"})
	if !h.IsGrouping() {
		t.Error("IsGrouping() = false")
	}
	insert(t, s, h, "a")
	insert(t, s, h, "b")
	insert(t, s, h, "c")
	h.EndGroup()

	if h.UndoCount() != 1 {
		t.Fatalf("UndoCount() = %d, want 1", h.UndoCount())
	}
	if info, _ := h.PeekUndo(); info.Description != "typing" || info.Ops != 3 {
		t.Errorf("group entry = %+v", info)
	}
	if _, err := h.Undo(s.Target()); err != nil {
		t.Fatal(err)
	}
	if content(t, s) != "" {
		t.Errorf("content = %q, want empty", content(t, s))
	}
}

func TestHistoryGroupScopeCancel(t *testing.T) {
	s := newTestStore(t, "")
	h := New(100)
	func() {
		g := h.GroupScope(nil)
		defer g.End()
		insert(t, s, h, "a")
		g.Cancel()
	}()
	if h.CanUndo() || h.IsGrouping() {
		t.Error("cancelled group should not be committed")
	}
}

func TestHistoryCheckpoint(t *testing.T) {
	s := newTestStore(t, "")
	h := New(100)
	insert(t, s, h, "a")
	cp := h.CreateCheckpoint()
	insert(t, s, h, "b")
	insert(t, s, h, "c")

	undone, err := h.UndoToCheckpoint(cp, s.Target())
	if err != nil {
		t.Fatalf("UndoToCheckpoint: %v", err)
	}
	if len(undone) != 2 || content(t, s) != "a" {
		t.Errorf("undid %d changes, content %q", len(undone), content(t, s))
	}

	end := Checkpoint{undoDepth: 3}
	redone, err := h.RedoToCheckpoint(end, s.Target())
	if err != nil {
		t.Fatalf("RedoToCheckpoint: %v", err)
	}
	if len(redone) != 2 || content(t, s) != "abc" {
		t.Errorf("redid %d changes, content %q", len(redone), content(t, s))
	}
}

func TestHistoryUndoRedoRejectedWhileGrouping(t *testing.T) {
	s := newTestStore(t, "")
	h := New(100)
	insert(t, s, h, "a")
	insert(t, s, h, "b")
	if _, err := h.Undo(s.Target()); err != nil {
		t.Fatal(err)
	}

	h.BeginGroup(map[string]any{"title": "typing"})
	insert(t, s, h, "c")
	if _, err := h.Undo(s.Target()); !errors.Is(err, docerr.ErrIllegalState) {
		t.Errorf("Undo err = %v, want ErrIllegalState", err)
	}
	if _, err := h.Redo(s.Target()); !errors.Is(err, docerr.ErrIllegalState) {
		t.Errorf("Redo err = %v, want ErrIllegalState", err)
	}
	if content(t, s) != "ac" || h.UndoCount() != 1 {
		t.Fatalf("content = %q undo = %d after rejected undo", content(t, s), h.UndoCount())
	}
	h.EndGroup()

	if _, err := h.Undo(s.Target()); err != nil {
		t.Fatalf("Undo after EndGroup: %v", err)
	}
	if content(t, s) != "a" {
		t.Errorf("content = %q, want a", content(t, s))
	}
}

func TestHistoryStacksStayBounded(t *testing.T) {
	s := newTestStore(t, "")
	h := New(3)
	for i := 0; i < 500; i++ {
		insert(t, s, h, "x")
		if i%2 == 0 {
			if _, err := h.Undo(s.Target()); err != nil {
				t.Fatal(err)
			}
		}
	}
	if h.UndoCount() > 3 {
		t.Errorf("UndoCount() = %d, want at most 3", h.UndoCount())
	}
	if c := cap(h.done); c > 8 {
		t.Errorf("undo stack capacity = %d, dropped entries are retained", c)
	}
	if c := cap(h.undone); c > 8 {
		t.Errorf("redo stack capacity = %d", c)
	}
}
