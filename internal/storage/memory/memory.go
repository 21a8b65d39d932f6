// Package memory implements storage.Store in process memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dshills/docengine/internal/engine/change"
	"github.com/dshills/docengine/internal/engine/docerr"
	"github.com/dshills/docengine/internal/storage"
)

type document struct {
	base      []byte
	changes   []*change.Change
	snapshots map[int][]byte
}

// Store is an in-memory storage.Store.
type Store struct {
	mu     sync.RWMutex
	docs   map[string]*document
	closed bool
}

var _ storage.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{docs: make(map[string]*document)}
}

func (s *Store) get(id string) (*document, error) {
	if s.closed {
		return nil, storage.ErrClosed
	}
	d, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrDocumentNotFound, id)
	}
	return d, nil
}

// CreateDocument implements storage.Store.
func (s *Store) CreateDocument(_ context.Context, id string, base []byte) error {
	if err := storage.ValidateID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	if _, ok := s.docs[id]; ok {
		return fmt.Errorf("%w: %s", storage.ErrDocumentExists, id)
	}
	s.docs[id] = &document{
		base:      append([]byte(nil), base...),
		snapshots: make(map[int][]byte),
	}
	return nil
}

// DocumentExists implements storage.Store.
func (s *Store) DocumentExists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, storage.ErrClosed
	}
	_, ok := s.docs[id]
	return ok, nil
}

// DeleteDocument implements storage.Store.
func (s *Store) DeleteDocument(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, storage.ErrClosed
	}
	_, ok := s.docs[id]
	delete(s.docs, id)
	return ok, nil
}

// Base implements storage.Store.
func (s *Store) Base(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), d.base...), nil
}

// AppendChange implements storage.Store.
func (s *Store) AppendChange(_ context.Context, id string, expectedVersion int, c *change.Change) (int, error) {
	if c == nil {
		return 0, docerr.InvalidArguments("no change to append")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.get(id)
	if err != nil {
		return 0, err
	}
	if expectedVersion != storage.AnyVersion && expectedVersion != len(d.changes) {
		return 0, fmt.Errorf("%w: document %s is at version %d, not %d",
			storage.ErrVersionConflict, id, len(d.changes), expectedVersion)
	}
	d.changes = append(d.changes, c.Clone())
	return len(d.changes), nil
}

// Changes implements storage.Store.
func (s *Store) Changes(_ context.Context, id string, from, to int) ([]*change.Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if err := storage.CheckRange(from, to, len(d.changes)); err != nil {
		return nil, err
	}
	out := make([]*change.Change, 0, to-from)
	for _, c := range d.changes[from:to] {
		out = append(out, c.Clone())
	}
	return out, nil
}

// Version implements storage.Store.
func (s *Store) Version(_ context.Context, id string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, err := s.get(id)
	if err != nil {
		return 0, err
	}
	return len(d.changes), nil
}

// SaveSnapshot implements storage.Store.
func (s *Store) SaveSnapshot(_ context.Context, id string, version int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.get(id)
	if err != nil {
		return err
	}
	if err := storage.CheckRange(0, version, len(d.changes)); err != nil {
		return err
	}
	d.snapshots[version] = append([]byte(nil), data...)
	return nil
}

// NearestSnapshot implements storage.Store.
func (s *Store) NearestSnapshot(_ context.Context, id string, atOrBefore int) (int, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, err := s.get(id)
	if err != nil {
		return 0, nil, err
	}
	best := -1
	for v := range d.snapshots {
		if v <= atOrBefore && v > best {
			best = v
		}
	}
	if best < 0 {
		return 0, nil, storage.ErrSnapshotNotFound
	}
	return best, append([]byte(nil), d.snapshots[best]...), nil
}

// ListDocuments implements storage.Store.
func (s *Store) ListDocuments(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrClosed
	}
	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close implements storage.Store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.docs = nil
	return nil
}
