// Package storagetest holds the behavior every storage.Store must share.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docengine/internal/engine/change"
	"github.com/dshills/docengine/internal/engine/docerr"
	"github.com/dshills/docengine/internal/engine/operation"
	"github.com/dshills/docengine/internal/storage"
)

const base = `{"nodes":[{"id":"p1","type":"paragraph","content":"ab"}]}`

func insertChange(offset int, text string) *change.Change {
	return change.New([]operation.Operation{
		operation.Update(operation.Path{"p1", "content"}, operation.TextInsert(offset, text)),
	}, map[string]any{"title": "insert " + text})
}

// Run exercises a storage.Store implementation. newStore must return an
// empty store; Run closes it.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	ctx := context.Background()

	open := func(t *testing.T) storage.Store {
		s := newStore(t)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}

	t.Run("create and read", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.CreateDocument(ctx, "doc", []byte(base)))

		ok, err := s.DocumentExists(ctx, "doc")
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := s.Base(ctx, "doc")
		require.NoError(t, err)
		assert.JSONEq(t, base, string(got))

		v, err := s.Version(ctx, "doc")
		require.NoError(t, err)
		assert.Equal(t, 0, v)
	})

	t.Run("create twice", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.CreateDocument(ctx, "doc", []byte(base)))
		err := s.CreateDocument(ctx, "doc", []byte(base))
		assert.ErrorIs(t, err, storage.ErrDocumentExists)
		assert.ErrorIs(t, err, docerr.ErrIllegalState)
	})

	t.Run("invalid ids", func(t *testing.T) {
		s := open(t)
		for _, id := range []string{"", "a/b", "nul\x00"} {
			err := s.CreateDocument(ctx, id, []byte(base))
			assert.ErrorIs(t, err, docerr.ErrInvalidArguments, "id %q", id)
		}
	})

	t.Run("missing document", func(t *testing.T) {
		s := open(t)
		_, err := s.Base(ctx, "nope")
		assert.ErrorIs(t, err, storage.ErrDocumentNotFound)
		assert.ErrorIs(t, err, docerr.ErrNotFound)

		_, err = s.Version(ctx, "nope")
		assert.ErrorIs(t, err, storage.ErrDocumentNotFound)

		_, err = s.AppendChange(ctx, "nope", storage.AnyVersion, insertChange(0, "x"))
		assert.ErrorIs(t, err, storage.ErrDocumentNotFound)

		_, err = s.Changes(ctx, "nope", 0, 0)
		assert.ErrorIs(t, err, storage.ErrDocumentNotFound)

		ok, err := s.DocumentExists(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("append and read changes", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.CreateDocument(ctx, "doc", []byte(base)))

		for i, text := range []string{"c", "d", "e"} {
			v, err := s.AppendChange(ctx, "doc", i, insertChange(2+i, text))
			require.NoError(t, err)
			assert.Equal(t, i+1, v)
		}

		all, err := s.Changes(ctx, "doc", 0, 3)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "insert c", all[0].Description())
		assert.Equal(t, "insert e", all[2].Description())

		mid, err := s.Changes(ctx, "doc", 1, 2)
		require.NoError(t, err)
		require.Len(t, mid, 1)
		assert.Equal(t, all[1].ID, mid[0].ID)

		none, err := s.Changes(ctx, "doc", 3, 3)
		require.NoError(t, err)
		assert.Empty(t, none)

		_, err = s.Changes(ctx, "doc", 2, 4)
		assert.ErrorIs(t, err, docerr.ErrInvalidArguments)
		_, err = s.Changes(ctx, "doc", 2, 1)
		assert.ErrorIs(t, err, docerr.ErrInvalidArguments)
	})

	t.Run("stored changes replay", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.CreateDocument(ctx, "doc", []byte(base)))
		c := change.New([]operation.Operation{
			operation.Update(operation.Path{"p1", "content"}, operation.TextInsert(2, "c")),
			operation.Update(operation.Path{"p1", "content"}, operation.TextDeleteOf(0, 1, "a")),
		}, nil)
		_, err := s.AppendChange(ctx, "doc", 0, c)
		require.NoError(t, err)

		got, err := s.Changes(ctx, "doc", 0, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.Len(t, got[0].Ops, 2)
		assert.Equal(t, operation.KindUpdate, got[0].Ops[1].Kind)
		assert.True(t, got[0].Ops[1].Diff.HasPreimage())
	})

	t.Run("version conflict", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.CreateDocument(ctx, "doc", []byte(base)))
		_, err := s.AppendChange(ctx, "doc", 0, insertChange(2, "c"))
		require.NoError(t, err)

		_, err = s.AppendChange(ctx, "doc", 0, insertChange(2, "d"))
		assert.ErrorIs(t, err, storage.ErrVersionConflict)

		v, err := s.AppendChange(ctx, "doc", storage.AnyVersion, insertChange(3, "d"))
		require.NoError(t, err)
		assert.Equal(t, 2, v)
	})

	t.Run("nil change", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.CreateDocument(ctx, "doc", []byte(base)))
		_, err := s.AppendChange(ctx, "doc", 0, nil)
		assert.ErrorIs(t, err, docerr.ErrInvalidArguments)
	})

	t.Run("snapshots", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.CreateDocument(ctx, "doc", []byte(base)))
		for i := 0; i < 12; i++ {
			_, err := s.AppendChange(ctx, "doc", i, insertChange(0, "x"))
			require.NoError(t, err)
		}

		_, _, err := s.NearestSnapshot(ctx, "doc", 12)
		assert.ErrorIs(t, err, storage.ErrSnapshotNotFound)

		require.NoError(t, s.SaveSnapshot(ctx, "doc", 5, []byte(`{"v":5}`)))
		require.NoError(t, s.SaveSnapshot(ctx, "doc", 10, []byte(`{"v":10}`)))
		assert.ErrorIs(t, s.SaveSnapshot(ctx, "doc", 13, []byte(`{}`)), docerr.ErrInvalidArguments)

		cases := []struct {
			at      int
			version int
			data    string
		}{
			{at: 12, version: 10, data: `{"v":10}`},
			{at: 10, version: 10, data: `{"v":10}`},
			{at: 9, version: 5, data: `{"v":5}`},
			{at: 5, version: 5, data: `{"v":5}`},
		}
		for _, tc := range cases {
			v, data, err := s.NearestSnapshot(ctx, "doc", tc.at)
			require.NoError(t, err, "at %d", tc.at)
			assert.Equal(t, tc.version, v, "at %d", tc.at)
			assert.Equal(t, tc.data, string(data), "at %d", tc.at)
		}

		_, _, err = s.NearestSnapshot(ctx, "doc", 4)
		assert.ErrorIs(t, err, storage.ErrSnapshotNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.CreateDocument(ctx, "doc", []byte(base)))
		require.NoError(t, s.CreateDocument(ctx, "doc2", []byte(base)))
		_, err := s.AppendChange(ctx, "doc", 0, insertChange(0, "x"))
		require.NoError(t, err)
		require.NoError(t, s.SaveSnapshot(ctx, "doc", 1, []byte(`{}`)))

		ok, err := s.DeleteDocument(ctx, "doc")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.DeleteDocument(ctx, "doc")
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = s.Base(ctx, "doc")
		assert.ErrorIs(t, err, storage.ErrDocumentNotFound)

		// A document recreated under the same id starts over.
		require.NoError(t, s.CreateDocument(ctx, "doc", []byte(`{"nodes":[]}`)))
		v, err := s.Version(ctx, "doc")
		require.NoError(t, err)
		assert.Equal(t, 0, v)
		_, _, err = s.NearestSnapshot(ctx, "doc", 1)
		assert.ErrorIs(t, err, storage.ErrSnapshotNotFound)

		_, err = s.Base(ctx, "doc2")
		assert.NoError(t, err)
	})

	t.Run("list", func(t *testing.T) {
		s := open(t)
		ids, err := s.ListDocuments(ctx)
		require.NoError(t, err)
		assert.Empty(t, ids)

		for _, id := range []string{"b", "a", "c"} {
			require.NoError(t, s.CreateDocument(ctx, id, []byte(base)))
		}
		_, err = s.AppendChange(ctx, "b", 0, insertChange(0, "x"))
		require.NoError(t, err)

		ids, err = s.ListDocuments(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, ids)
	})

	t.Run("concurrent appends", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.CreateDocument(ctx, "doc", []byte(base)))

		const writers = 8
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := s.AppendChange(ctx, "doc", storage.AnyVersion, insertChange(0, fmt.Sprint(i)))
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}

		v, err := s.Version(ctx, "doc")
		require.NoError(t, err)
		assert.Equal(t, writers, v)
	})
}
