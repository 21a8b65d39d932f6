package badger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/dshills/docengine/internal/engine/change"
	"github.com/dshills/docengine/internal/engine/docerr"
	"github.com/dshills/docengine/internal/storage"
)

const docPrefix = "doc/"

type meta struct {
	Version int       `json:"version"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// Store is a BadgerDB backed storage.Store.
type Store struct {
	db     *badger.DB
	gc     *gcRunner
	logger *slog.Logger

	// appendMu serializes appends so version checks never race.
	appendMu sync.Mutex
}

var _ storage.Store = (*Store)(nil)

// Open opens a store with cfg and starts value log GC when configured.
func Open(cfg Config) (*Store, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, logger: logger}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		runner, err := newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create GC runner: %w", err)
		}
		s.gc = runner
		runner.start()
	}
	return s, nil
}

func docKey(id string) []byte { return []byte(docPrefix + id + "/") }

func metaKey(id string) []byte { return []byte(docPrefix + id + "/meta") }

func baseKey(id string) []byte { return []byte(docPrefix + id + "/base") }

func changePrefix(id string) []byte { return []byte(docPrefix + id + "/change/") }

func changeKey(id string, version int) []byte {
	return []byte(fmt.Sprintf("%s%s/change/%020d", docPrefix, id, version))
}

func snapPrefix(id string) []byte { return []byte(docPrefix + id + "/snap/") }

func snapKey(id string, version int) []byte {
	return []byte(fmt.Sprintf("%s%s/snap/%020d", docPrefix, id, version))
}

func readMeta(txn *badger.Txn, id string) (meta, error) {
	var m meta
	item, err := txn.Get(metaKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return m, fmt.Errorf("%w: %s", storage.ErrDocumentNotFound, id)
	}
	if err != nil {
		return m, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &m)
	})
	return m, err
}

func writeMeta(txn *badger.Txn, id string, m meta) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return txn.Set(metaKey(id), data)
}

// CreateDocument implements storage.Store.
func (s *Store) CreateDocument(_ context.Context, id string, base []byte) error {
	if err := storage.ValidateID(id); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(metaKey(id)); err == nil {
			return fmt.Errorf("%w: %s", storage.ErrDocumentExists, id)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		now := time.Now().UTC()
		if err := writeMeta(txn, id, meta{Created: now, Updated: now}); err != nil {
			return err
		}
		return txn.Set(baseKey(id), append([]byte(nil), base...))
	})
}

// DocumentExists implements storage.Store.
func (s *Store) DocumentExists(_ context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(metaKey(id))
		switch {
		case err == nil:
			exists = true
			return nil
		case errors.Is(err, badger.ErrKeyNotFound):
			return nil
		default:
			return err
		}
	})
	return exists, err
}

// DeleteDocument implements storage.Store.
func (s *Store) DeleteDocument(ctx context.Context, id string) (bool, error) {
	if storage.ValidateID(id) != nil {
		return false, nil
	}
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	exists, err := s.DocumentExists(ctx, id)
	if err != nil || !exists {
		return false, err
	}

	var keys [][]byte
	prefix := docKey(id)
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	wb := s.db.NewWriteBatch()
	// Delete meta last so a partially deleted document still reads as present.
	sort.Slice(keys, func(i, j int) bool {
		return !bytes.HasSuffix(keys[i], []byte("/meta")) && bytes.HasSuffix(keys[j], []byte("/meta"))
	})
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			wb.Cancel()
			return false, err
		}
	}
	if err := wb.Flush(); err != nil {
		return false, fmt.Errorf("delete document %s: %w", id, err)
	}
	s.logger.Debug("document deleted", "document", id, "keys", len(keys))
	return true, nil
}

// Base implements storage.Store.
func (s *Store) Base(_ context.Context, id string) ([]byte, error) {
	var base []byte
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := readMeta(txn, id); err != nil {
			return err
		}
		item, err := txn.Get(baseKey(id))
		if err != nil {
			return err
		}
		base, err = item.ValueCopy(nil)
		return err
	})
	return base, err
}

// AppendChange implements storage.Store.
func (s *Store) AppendChange(_ context.Context, id string, expectedVersion int, c *change.Change) (int, error) {
	if c == nil {
		return 0, docerr.InvalidArguments("no change to append")
	}
	data, err := json.Marshal(c)
	if err != nil {
		return 0, fmt.Errorf("encode change: %w", err)
	}

	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	var version int
	err = s.db.Update(func(txn *badger.Txn) error {
		m, err := readMeta(txn, id)
		if err != nil {
			return err
		}
		if expectedVersion != storage.AnyVersion && expectedVersion != m.Version {
			return fmt.Errorf("%w: document %s is at version %d, not %d",
				storage.ErrVersionConflict, id, m.Version, expectedVersion)
		}
		m.Version++
		m.Updated = time.Now().UTC()
		if err := txn.Set(changeKey(id, m.Version), data); err != nil {
			return err
		}
		version = m.Version
		return writeMeta(txn, id, m)
	})
	if errors.Is(err, badger.ErrConflict) {
		return 0, fmt.Errorf("%w: %v", storage.ErrVersionConflict, err)
	}
	return version, err
}

// Changes implements storage.Store.
func (s *Store) Changes(_ context.Context, id string, from, to int) ([]*change.Change, error) {
	var out []*change.Change
	err := s.db.View(func(txn *badger.Txn) error {
		m, err := readMeta(txn, id)
		if err != nil {
			return err
		}
		if err := storage.CheckRange(from, to, m.Version); err != nil {
			return err
		}
		out = make([]*change.Change, 0, to-from)
		if to == from {
			return nil
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = changePrefix(id)
		it := txn.NewIterator(opts)
		defer it.Close()

		last := changeKey(id, to)
		for it.Seek(changeKey(id, from+1)); it.Valid(); it.Next() {
			item := it.Item()
			if bytes.Compare(item.Key(), last) > 0 {
				break
			}
			var c change.Change
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &c)
			}); err != nil {
				return fmt.Errorf("decode change %s: %w", item.Key(), err)
			}
			out = append(out, &c)
		}
		if len(out) != to-from {
			return fmt.Errorf("document %s: expected %d changes, found %d", id, to-from, len(out))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Version implements storage.Store.
func (s *Store) Version(_ context.Context, id string) (int, error) {
	var version int
	err := s.db.View(func(txn *badger.Txn) error {
		m, err := readMeta(txn, id)
		version = m.Version
		return err
	})
	return version, err
}

// SaveSnapshot implements storage.Store.
func (s *Store) SaveSnapshot(_ context.Context, id string, version int, data []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		m, err := readMeta(txn, id)
		if err != nil {
			return err
		}
		if err := storage.CheckRange(0, version, m.Version); err != nil {
			return err
		}
		return txn.Set(snapKey(id, version), append([]byte(nil), data...))
	})
}

// NearestSnapshot implements storage.Store.
func (s *Store) NearestSnapshot(_ context.Context, id string, atOrBefore int) (int, []byte, error) {
	var (
		version int
		data    []byte
	)
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := readMeta(txn, id); err != nil {
			return err
		}
		if atOrBefore < 0 {
			return storage.ErrSnapshotNotFound
		}
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = snapPrefix(id)
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(snapKey(id, atOrBefore))
		if !it.Valid() {
			return storage.ErrSnapshotNotFound
		}
		item := it.Item()
		suffix := strings.TrimPrefix(string(item.Key()), string(snapPrefix(id)))
		if _, err := fmt.Sscanf(suffix, "%d", &version); err != nil {
			return fmt.Errorf("decode snapshot key %s: %w", item.Key(), err)
		}
		var err error
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return 0, nil, err
	}
	return version, data, nil
}

// ListDocuments implements storage.Store.
func (s *Store) ListDocuments(_ context.Context) ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(docPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			if id, ok := strings.CutSuffix(strings.TrimPrefix(key, docPrefix), "/meta"); ok && !strings.Contains(id, "/") {
				ids = append(ids, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// Close stops garbage collection and closes the database.
func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.stop()
		s.gc = nil
	}
	return s.db.Close()
}
