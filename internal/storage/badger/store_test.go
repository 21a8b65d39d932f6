package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docengine/internal/engine/change"
	"github.com/dshills/docengine/internal/engine/operation"
	"github.com/dshills/docengine/internal/storage"
	"github.com/dshills/docengine/internal/storage/storagetest"
)

func TestStoreInMemory(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		s, err := Open(InMemoryConfig())
		require.NoError(t, err)
		return s
	})
}

func TestStorePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Path = t.TempDir()
	cfg.GCInterval = 0

	s, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, s.CreateDocument(ctx, "doc", []byte(`{"nodes":[]}`)))
	c := change.New([]operation.Operation{
		operation.Create(operation.NodeData{"id": "p1", "type": "paragraph", "content": "a"}),
	}, map[string]any{"title": "create"})
	_, err = s.AppendChange(ctx, "doc", 0, c)
	require.NoError(t, err)
	require.NoError(t, s.SaveSnapshot(ctx, "doc", 1, []byte(`{"nodes":[{"id":"p1"}]}`)))
	require.NoError(t, s.Close())

	s, err = Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Version(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	got, err := s.Changes(ctx, "doc", 0, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, c.ID, got[0].ID)
	assert.Equal(t, "create", got[0].Description())

	sv, _, err := s.NearestSnapshot(ctx, "doc", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, sv)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestGCRunnerValidation(t *testing.T) {
	_, err := newGCRunner(nil, 0, 0.5, nil)
	assert.Error(t, err)
	_, err = newGCRunner(nil, 1, 1.5, nil)
	assert.Error(t, err)
}

func TestKeysSortNumerically(t *testing.T) {
	assert.Less(t, string(changeKey("d", 9)), string(changeKey("d", 10)))
	assert.Less(t, string(snapKey("d", 99)), string(snapKey("d", 100)))
}
