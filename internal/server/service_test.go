package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docengine/internal/engine/change"
	"github.com/dshills/docengine/internal/engine/docerr"
	"github.com/dshills/docengine/internal/storage"
)

func parseChange(t *testing.T, raw string) *change.Change {
	t.Helper()
	var c change.Change
	require.NoError(t, json.Unmarshal([]byte(raw), &c))
	return &c
}

func TestServiceConcurrentAppendsConflict(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, _, err := svc.CreateDocument(ctx, "doc", parseChange(t, createP1))
	require.NoError(t, err)

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		c := parseChange(t, insertC)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ApplyChange(ctx, "doc", 1, c)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if errors.Is(err, storage.ErrVersionConflict) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, writers-1, conflicts)
	data, version, err := svc.GetDocument(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, 2, version)
	assert.JSONEq(t, `{"nodes":[{"id":"p1","type":"paragraph","content":"abc"}]}`, string(data))
}

func TestServiceGetDocumentIsCurrent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, _, err := svc.CreateDocument(ctx, "doc", parseChange(t, createP1))
	require.NoError(t, err)

	// Prime the snapshot cache, then move the document on.
	_, v, err := svc.GetDocument(ctx, "doc")
	require.NoError(t, err)
	require.Equal(t, 1, v)
	_, err = svc.ApplyChange(ctx, "doc", storage.AnyVersion, parseChange(t, insertC))
	require.NoError(t, err)

	_, v, err = svc.GetDocument(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestServiceRejectedChangeIsNotStored(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, _, err := svc.CreateDocument(ctx, "doc", nil)
	require.NoError(t, err)

	_, err = svc.ApplyChange(ctx, "doc", 0, parseChange(t, insertC))
	assert.ErrorIs(t, err, docerr.ErrApplication)

	changes, version, err := svc.GetChanges(ctx, "doc", 0)
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Equal(t, 0, version)
}

func TestServiceDeleteValidatesID(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.DeleteDocument(context.Background(), "")
	assert.ErrorIs(t, err, docerr.ErrInvalidArguments)
}
