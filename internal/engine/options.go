package engine

import (
	"log/slog"

	"github.com/dshills/docengine/internal/engine/document"
)

// DefaultMaxUndoEntries is the undo depth used when none is configured.
const DefaultMaxUndoEntries = 1000

// Option configures an Engine during creation.
type Option func(*Engine)

// WithSchema sets the schema that maps node types to kinds.
func WithSchema(schema *document.Schema) Option {
	return func(e *Engine) {
		e.docOpts = append(e.docOpts, document.WithSchema(schema))
	}
}

// WithIDGenerator sets how ids are generated for nodes created without one.
func WithIDGenerator(ids document.IDGenerator) Option {
	return func(e *Engine) {
		e.docOpts = append(e.docOpts, document.WithIDGenerator(ids))
	}
}

// WithLogger sets the logger of the engine and its document store.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
			e.docOpts = append(e.docOpts, document.WithLogger(logger))
		}
	}
}

// WithMaxUndoEntries sets the maximum number of undo history entries.
func WithMaxUndoEntries(max int) Option {
	return func(e *Engine) {
		if max > 0 {
			e.maxUndoEntries = max
		}
	}
}

// WithReadOnly creates a read-only engine.
// Write operations will return ErrReadOnly.
func WithReadOnly() Option {
	return func(e *Engine) {
		e.readOnly = true
	}
}
