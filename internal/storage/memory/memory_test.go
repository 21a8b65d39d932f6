package memory

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

func TestStore(t *testing.T) {
	storagetest.Run(t, func(*testing.T) storage.Store { return New() })
}

func TestStoreCopiesChanges(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateDocument(ctx, "doc", []byte(`{"nodes":[]}`)))

	c := change.New([]operation.Operation{operation.Set(operation.Path{"p1", "x"}, nil, 1)}, map[string]any{"title": "a"})
	_, err := s.AppendChange(ctx, "doc", 0, c)
	require.NoError(t, err)
	c.Info["title"] = "b"

	got, err := s.Changes(ctx, "doc", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", got[0].Description())
}

func TestClosedStore(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.CreateDocument(ctx, "doc", nil), storage.ErrClosed)
	_, err := s.ListDocuments(ctx)
	assert.ErrorIs(t, err, storage.ErrClosed)
	_, err = s.Version(ctx, "doc")
	assert.ErrorIs(t, err, storage.ErrClosed)
}
