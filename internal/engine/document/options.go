package document

import "log/slog"

// Option configures a Store.
type Option func(*Store)

// WithSchema sets the schema used to resolve node types.
func WithSchema(schema *Schema) Option {
	return func(s *Store) {
		if schema != nil {
			s.schema = schema
		}
	}
}

// WithIDGenerator sets the generator for nodes created without an id.
func WithIDGenerator(ids IDGenerator) Option {
	return func(s *Store) {
		if ids != nil {
			s.ids = ids
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}
