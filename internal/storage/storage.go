// Package storage defines the versioned document store the server persists
// documents in.
//
// A document is a base JSON document plus an append-only changeset. The
// version of a document is the number of changes appended to it; change n
// (1-based) moves the document from version n-1 to version n. Snapshots of
// materialized state may be saved at any version to shorten replays.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/docengine/internal/engine/change"
	"github.com/dshills/docengine/internal/engine/docerr"
)

// Errors returned by Store implementations. The first three wrap engine
// error kinds so callers can match either.
var (
	ErrDocumentNotFound = fmt.Errorf("document %w", docerr.ErrNotFound)
	ErrDocumentExists   = fmt.Errorf("document already exists: %w", docerr.ErrIllegalState)
	ErrVersionConflict  = fmt.Errorf("version conflict: %w", docerr.ErrIllegalState)
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrClosed           = errors.New("storage closed")
)

// AnyVersion disables the version check of AppendChange.
const AnyVersion = -1

// MaxIDLength bounds document ids.
const MaxIDLength = 256

// Store persists documents and their changesets. Implementations are safe
// for concurrent use.
type Store interface {
	// CreateDocument stores a new document with its base JSON.
	CreateDocument(ctx context.Context, id string, base []byte) error
	// DocumentExists reports whether a document exists.
	DocumentExists(ctx context.Context, id string) (bool, error)
	// DeleteDocument removes a document and everything stored for it. It
	// reports whether the document existed; deleting a missing document is
	// not an error.
	DeleteDocument(ctx context.Context, id string) (bool, error)
	// Base returns the base JSON of a document.
	Base(ctx context.Context, id string) ([]byte, error)
	// AppendChange appends c if the document is at expectedVersion (or
	// expectedVersion is AnyVersion) and returns the new version.
	AppendChange(ctx context.Context, id string, expectedVersion int, c *change.Change) (int, error)
	// Changes returns the changes that move the document from version from
	// to version to, in order.
	Changes(ctx context.Context, id string, from, to int) ([]*change.Change, error)
	// Version returns the current version of a document.
	Version(ctx context.Context, id string) (int, error)
	// SaveSnapshot stores materialized state at version.
	SaveSnapshot(ctx context.Context, id string, version int, data []byte) error
	// NearestSnapshot returns the saved snapshot with the highest version
	// not above atOrBefore, or ErrSnapshotNotFound.
	NearestSnapshot(ctx context.Context, id string, atOrBefore int) (int, []byte, error)
	// ListDocuments returns all document ids in sorted order.
	ListDocuments(ctx context.Context) ([]string, error)
	// Close releases resources.
	Close() error
}

// ValidateID checks that id can be used as a document id.
func ValidateID(id string) error {
	switch {
	case id == "":
		return docerr.InvalidArguments("document id is empty")
	case len(id) > MaxIDLength:
		return docerr.InvalidArguments("document id longer than %d bytes", MaxIDLength)
	case strings.ContainsAny(id, "/\x00"):
		return docerr.InvalidArguments("document id %q contains a reserved character", id)
	}
	return nil
}

// CheckRange validates a Changes range against the current version.
func CheckRange(from, to, version int) error {
	if from < 0 || to < from || to > version {
		return docerr.InvalidArguments("change range [%d, %d] outside [0, %d]", from, to, version)
	}
	return nil
}
