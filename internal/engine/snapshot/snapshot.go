// Package snapshot materializes document state from a base document and an
// ordered changeset.
//
// Compute is a pure fold: it never mutates its inputs and, given the same
// inputs, always produces the same bytes. Operations that fail to apply are
// logged at debug level and skipped so that a damaged history still yields
// a best-effort snapshot with the correct version.
package snapshot

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/tidwall/gjson"

	"github.com/dshills/docengine/internal/engine/change"
	"github.com/dshills/docengine/internal/engine/docerr"
	"github.com/dshills/docengine/internal/engine/operation"
)

// Snapshot is the materialized state of a document at a version.
type Snapshot struct {
	DocumentID string          `json:"documentId,omitempty"`
	Version    int             `json:"version"`
	Data       json.RawMessage `json:"data"`
	// Skipped counts operations that could not be applied.
	Skipped int `json:"skipped,omitempty"`
}

// Clone returns a copy that does not share Data.
func (s *Snapshot) Clone() *Snapshot {
	c := *s
	c.Data = append(json.RawMessage(nil), s.Data...)
	return &c
}

type computeConfig struct {
	documentID   string
	startVersion int
	logger       *slog.Logger
}

// Option configures Compute.
type Option func(*computeConfig)

// WithDocumentID tags the snapshot and log entries with a document id.
func WithDocumentID(id string) Option {
	return func(c *computeConfig) { c.documentID = id }
}

// WithStartVersion declares that base already is the snapshot at version v,
// so the result has version v+len(changes).
func WithStartVersion(v int) Option {
	return func(c *computeConfig) { c.startVersion = v }
}

// WithLogger sets the logger used to report skipped operations.
func WithLogger(l *slog.Logger) Option {
	return func(c *computeConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Compute folds changes, in order, over a copy of base.
//
// base must be a JSON object; its "nodes" member may be absent, an array of
// nodes, or an object of nodes keyed by id. Invalid base JSON fails with
// docerr.ErrInvalidArguments.
func Compute(base []byte, changes []*change.Change, opts ...Option) (*Snapshot, error) {
	cfg := computeConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	start := time.Now()
	t, err := newJSONTarget(base)
	if err != nil {
		return nil, err
	}

	skipped := 0
	for ci, c := range changes {
		if c == nil {
			continue
		}
		for oi, op := range c.Ops {
			if err := operation.Apply(op, t); err != nil {
				skipped++
				opsSkipped.WithLabelValues(errorKind(err)).Inc()
				cfg.logger.Debug("snapshot: operation skipped",
					"document", cfg.documentID,
					"version", cfg.startVersion+ci+1,
					"change", c.ID,
					"index", oi,
					"operation", op.String(),
					"error", err)
				continue
			}
			opsApplied.Inc()
		}
	}
	computeDuration.Observe(time.Since(start).Seconds())

	return &Snapshot{
		DocumentID: cfg.documentID,
		Version:    cfg.startVersion + len(changes),
		Data:       t.doc,
		Skipped:    skipped,
	}, nil
}

// Query selects a document snapshot. A nil Version means the latest.
type Query struct {
	DocumentID string `json:"documentId"`
	Version    *int   `json:"version,omitempty"`
}

// ParseQuery decodes a query. Anything other than a JSON object with a
// non-empty string documentId fails with docerr.ErrInvalidArguments; in
// particular a bare string is not accepted as a document id.
func ParseQuery(raw []byte) (Query, error) {
	raw = bytes.TrimSpace(raw)
	if !gjson.ValidBytes(raw) {
		return Query{}, docerr.InvalidArguments("snapshot query is not valid JSON")
	}
	r := gjson.ParseBytes(raw)
	if !r.IsObject() {
		return Query{}, docerr.InvalidArguments("snapshot query must be an object like {\"documentId\": \"...\"}")
	}

	id := r.Get("documentId")
	if id.Type != gjson.String || id.String() == "" {
		return Query{}, docerr.InvalidArguments("snapshot query needs a documentId string")
	}
	q := Query{DocumentID: id.String()}

	if v := r.Get("version"); v.Exists() && v.Type != gjson.Null {
		n := v.Num
		if v.Type != gjson.Number || n < 0 || n != float64(int(n)) {
			return Query{}, docerr.InvalidArguments("snapshot version must be a non-negative integer")
		}
		version := int(n)
		q.Version = &version
	}
	return q, nil
}
