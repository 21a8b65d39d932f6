// Package docerr defines the error kinds shared by the document engine.
//
// Every failure surfaced by the engine belongs to one of four kinds and can
// be matched with errors.Is against the kind sentinel:
//
//	if errors.Is(err, docerr.ErrNotFound) { ... }
package docerr

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds.
var (
	// ErrNotFound indicates an operation targets a missing node or path.
	ErrNotFound = errors.New("not found")

	// ErrApplication indicates an operation cannot be applied to the current
	// state (wrong value type, offset out of range, duplicate id).
	ErrApplication = errors.New("operation not applicable")

	// ErrIllegalState indicates transaction discipline was violated.
	ErrIllegalState = errors.New("illegal state")

	// ErrInvalidArguments indicates a malformed external request.
	ErrInvalidArguments = errors.New("invalid arguments")
)

// Error carries the kind of a failure plus where it happened.
type Error struct {
	// Kind is one of the sentinels above.
	Kind error
	// Op names the operation that failed (e.g. "set", "update").
	Op string
	// Path is the document path involved, if any.
	Path []string
	// Message describes the failure.
	Message string
	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is reports whether target is the kind sentinel of this error.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithOp returns a copy of the error tagged with the operation name.
func (e *Error) WithOp(op string) *Error {
	c := *e
	c.Op = op
	return &c
}

func newError(kind error, path []string, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Path:    path,
		Message: fmt.Sprintf(format, args...),
	}
}

// NotFound returns an ErrNotFound error for path.
func NotFound(path []string, format string, args ...any) *Error {
	return newError(ErrNotFound, path, format, args...)
}

// Application returns an ErrApplication error for path.
func Application(path []string, format string, args ...any) *Error {
	return newError(ErrApplication, path, format, args...)
}

// IllegalState returns an ErrIllegalState error.
func IllegalState(format string, args ...any) *Error {
	return newError(ErrIllegalState, nil, format, args...)
}

// InvalidArguments returns an ErrInvalidArguments error.
func InvalidArguments(format string, args ...any) *Error {
	return newError(ErrInvalidArguments, nil, format, args...)
}

// KindOf returns the kind sentinel of err, or nil if err carries none.
func KindOf(err error) error {
	for _, kind := range []error{ErrNotFound, ErrApplication, ErrIllegalState, ErrInvalidArguments} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
