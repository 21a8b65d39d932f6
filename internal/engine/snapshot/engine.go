package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/dshills/docengine/internal/engine/change"
	"github.com/dshills/docengine/internal/engine/docerr"
	"github.com/dshills/docengine/internal/storage"
)

var tracer = otel.Tracer("docengine.snapshot")

// Source is the part of storage.Store the engine reads from.
type Source interface {
	Base(ctx context.Context, id string) ([]byte, error)
	Version(ctx context.Context, id string) (int, error)
	Changes(ctx context.Context, id string, from, to int) ([]*change.Change, error)
	NearestSnapshot(ctx context.Context, id string, atOrBefore int) (int, []byte, error)
	SaveSnapshot(ctx context.Context, id string, version int, data []byte) error
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	// CacheSize is the number of snapshots kept in memory. Zero uses 256.
	CacheSize int
	// Interval persists a snapshot every Interval versions. Zero disables
	// persistence.
	Interval int
	Logger   *slog.Logger
}

// Engine serves snapshots of stored documents. It starts from the closest
// cached or stored snapshot and folds only the remaining changes.
type Engine struct {
	source   Source
	interval int
	logger   *slog.Logger

	cache  *lru.Cache[string, *Snapshot]
	flight singleflight.Group
}

// NewEngine creates an engine reading from source.
func NewEngine(source Source, cfg EngineConfig) (*Engine, error) {
	if source == nil {
		return nil, errors.New("snapshot engine needs a source")
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 256
	}
	if cfg.Interval < 0 {
		return nil, fmt.Errorf("snapshot interval must not be negative, got %d", cfg.Interval)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cache, err := lru.New[string, *Snapshot](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create snapshot cache: %w", err)
	}
	return &Engine{
		source:   source,
		interval: cfg.Interval,
		logger:   cfg.Logger,
		cache:    cache,
	}, nil
}

func cacheKey(id string, version int) string {
	return id + "@" + strconv.Itoa(version)
}

// Get returns the snapshot selected by q. A version beyond the document's
// head fails with docerr.ErrInvalidArguments.
func (e *Engine) Get(ctx context.Context, q Query) (*Snapshot, error) {
	ctx, span := tracer.Start(ctx, "snapshot.Get",
		trace.WithAttributes(attribute.String("document", q.DocumentID)))
	defer span.End()

	snap, err := e.get(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("version", snap.Version), attribute.Int("skipped", snap.Skipped))
	return snap, nil
}

func (e *Engine) get(ctx context.Context, q Query) (*Snapshot, error) {
	if q.DocumentID == "" {
		return nil, docerr.InvalidArguments("snapshot query needs a documentId")
	}
	head, err := e.source.Version(ctx, q.DocumentID)
	if err != nil {
		return nil, err
	}
	version := head
	if q.Version != nil {
		version = *q.Version
		if version < 0 || version > head {
			return nil, docerr.InvalidArguments("document %s has no version %d (head is %d)", q.DocumentID, version, head)
		}
	}

	key := cacheKey(q.DocumentID, version)
	if snap, ok := e.cache.Get(key); ok {
		lookups.WithLabelValues("cache").Inc()
		return snap.Clone(), nil
	}

	result, err, _ := e.flight.Do(key, func() (interface{}, error) {
		return e.build(ctx, q.DocumentID, version)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Snapshot).Clone(), nil
}

// build computes the snapshot at version and caches it.
func (e *Engine) build(ctx context.Context, id string, version int) (*Snapshot, error) {
	start, err := e.nearest(ctx, id, version)
	if err != nil {
		return nil, err
	}

	snap := start
	for snap.Version < version {
		// Fold up to the next persistence boundary so every boundary crossed
		// gets saved.
		next := version
		if e.interval > 0 {
			if boundary := (snap.Version/e.interval + 1) * e.interval; boundary < next {
				next = boundary
			}
		}
		changes, err := e.source.Changes(ctx, id, snap.Version, next)
		if err != nil {
			return nil, fmt.Errorf("load changes %d..%d of %s: %w", snap.Version, next, id, err)
		}
		folded, err := Compute(snap.Data, changes,
			WithDocumentID(id),
			WithStartVersion(snap.Version),
			WithLogger(e.logger))
		if err != nil {
			return nil, err
		}
		folded.Skipped += snap.Skipped
		snap = folded

		if e.interval > 0 && snap.Version%e.interval == 0 {
			e.persist(ctx, snap)
		}
	}

	e.cache.Add(cacheKey(id, snap.Version), snap)
	return snap, nil
}

// nearest finds the closest starting point at or before version: a cached
// snapshot, a stored snapshot or the base document.
func (e *Engine) nearest(ctx context.Context, id string, version int) (*Snapshot, error) {
	var best *Snapshot
	for _, key := range e.cache.Keys() {
		v, ok := versionOf(key, id)
		if !ok || v > version || (best != nil && v <= best.Version) {
			continue
		}
		if snap, ok := e.cache.Peek(key); ok {
			best = snap
		}
	}

	stored, data, err := e.source.NearestSnapshot(ctx, id, version)
	switch {
	case err == nil:
		if best == nil || stored > best.Version {
			lookups.WithLabelValues("stored").Inc()
			return &Snapshot{DocumentID: id, Version: stored, Data: data}, nil
		}
	case !errors.Is(err, storage.ErrSnapshotNotFound):
		return nil, fmt.Errorf("find snapshot of %s: %w", id, err)
	}

	if best != nil {
		lookups.WithLabelValues("cache").Inc()
		return best, nil
	}

	base, err := e.source.Base(ctx, id)
	if err != nil {
		return nil, err
	}
	lookups.WithLabelValues("base").Inc()
	// Compute with no changes normalizes the base exactly as a fold would.
	return Compute(base, nil, WithDocumentID(id), WithLogger(e.logger))
}

func (e *Engine) persist(ctx context.Context, snap *Snapshot) {
	if err := e.source.SaveSnapshot(ctx, snap.DocumentID, snap.Version, snap.Data); err != nil {
		e.logger.Warn("snapshot: save failed",
			"document", snap.DocumentID,
			"version", snap.Version,
			"error", err)
		return
	}
	e.logger.Debug("snapshot: saved", "document", snap.DocumentID, "version", snap.Version)
}

// Forget drops every cached snapshot of document id. Call it when the
// document is deleted.
func (e *Engine) Forget(id string) {
	for _, key := range e.cache.Keys() {
		if _, ok := versionOf(key, id); ok {
			e.cache.Remove(key)
		}
	}
}

// CacheLen returns the number of cached snapshots.
func (e *Engine) CacheLen() int {
	return e.cache.Len()
}

func versionOf(key, id string) (int, bool) {
	rest, ok := strings.CutPrefix(key, id+"@")
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(rest)
	return v, err == nil
}
