package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrUnsupportedFormat is returned for config files that are neither TOML
// nor YAML.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// ParseError represents an error while parsing a configuration file.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError lists every invalid field.
type ValidationError struct {
	Fields []FieldError
}

// FieldError is one invalid field.
type FieldError struct {
	Field string
	Rule  string
	Value any
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: failed %q (value %v)", f.Field, f.Rule, f.Value)
	}
	return "invalid configuration: " + strings.Join(parts, "; ")
}

func newValidationError(errs validator.ValidationErrors) *ValidationError {
	ve := &ValidationError{Fields: make([]FieldError, len(errs))}
	for i, fe := range errs {
		ve.Fields[i] = FieldError{
			Field: strings.TrimPrefix(fe.Namespace(), "Config."),
			Rule:  fe.Tag(),
			Value: fe.Value(),
		}
	}
	return ve
}
