package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dshills/docengine/internal/engine/change"
	"github.com/dshills/docengine/internal/engine/docerr"
	"github.com/dshills/docengine/internal/engine/snapshot"
	"github.com/dshills/docengine/internal/storage"
)

// EmptyDocument is the base of every document created through the service.
const EmptyDocument = `{"nodes":[]}`

// DeleteResult reports the outcome of DeleteDocument.
type DeleteResult struct {
	Deleted bool `json:"deleted"`
}

// Service maps document requests onto a store and a snapshot engine. It
// holds no state of its own and is safe for concurrent use.
type Service struct {
	store     storage.Store
	snapshots *snapshot.Engine
	logger    *slog.Logger
}

// NewService creates a service over store. Snapshots must read from the
// same store.
func NewService(store storage.Store, snapshots *snapshot.Engine, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, snapshots: snapshots, logger: logger}
}

// CreateDocument creates a document with an empty base and appends initial
// as its first change. An empty id is replaced by a random UUID. It returns
// the id and the version of the new document.
func (s *Service) CreateDocument(ctx context.Context, id string, initial *change.Change) (string, int, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if err := storage.ValidateID(id); err != nil {
		return "", 0, err
	}
	base := []byte(EmptyDocument)
	hasInitial := initial != nil && !initial.IsEmpty()
	if hasInitial {
		if err := s.check(id, base, 0, initial); err != nil {
			return "", 0, err
		}
	}

	if err := s.store.CreateDocument(ctx, id, base); err != nil {
		return "", 0, err
	}
	version := 0
	if hasInitial {
		v, err := s.store.AppendChange(ctx, id, 0, initial)
		if err != nil {
			if _, derr := s.store.DeleteDocument(ctx, id); derr != nil {
				s.logger.Error("remove half-created document", "document", id, "error", derr)
			}
			return "", 0, err
		}
		version = v
	}

	s.logger.Info("document created", "document", id, "version", version)
	return id, version, nil
}

// GetDocument returns the JSON of a document at its current version.
func (s *Service) GetDocument(ctx context.Context, id string) ([]byte, int, error) {
	snap, err := s.snapshots.Get(ctx, snapshot.Query{DocumentID: id})
	if err != nil {
		return nil, 0, err
	}
	return snap.Data, snap.Version, nil
}

// DeleteDocument removes a document. Deleting a missing document succeeds
// with Deleted set to false.
func (s *Service) DeleteDocument(ctx context.Context, id string) (DeleteResult, error) {
	if err := storage.ValidateID(id); err != nil {
		return DeleteResult{}, err
	}
	existed, err := s.store.DeleteDocument(ctx, id)
	if err != nil {
		return DeleteResult{}, err
	}
	s.snapshots.Forget(id)
	if existed {
		s.logger.Info("document deleted", "document", id)
	}
	return DeleteResult{Deleted: existed}, nil
}

// ApplyChange appends c to a document whose current version is
// baseVersion and returns the new version. storage.AnyVersion appends to
// whatever the current version is. The change must apply cleanly to the
// current state; a change that would be partly skipped is rejected with
// docerr.ErrApplication and nothing is stored.
func (s *Service) ApplyChange(ctx context.Context, id string, baseVersion int, c *change.Change) (int, error) {
	if c == nil || c.IsEmpty() {
		return 0, docerr.InvalidArguments("change has no operations")
	}
	if baseVersion < storage.AnyVersion {
		return 0, docerr.InvalidArguments("base version %d is negative", baseVersion)
	}

	current, err := s.snapshots.Get(ctx, snapshot.Query{DocumentID: id})
	if err != nil {
		return 0, err
	}
	if baseVersion != storage.AnyVersion && baseVersion != current.Version {
		return 0, fmt.Errorf("%w: %s is at version %d, change is based on %d",
			storage.ErrVersionConflict, id, current.Version, baseVersion)
	}
	if err := s.check(id, current.Data, current.Version, c); err != nil {
		return 0, err
	}

	// A concurrent writer between the read above and this append surfaces
	// as ErrVersionConflict.
	version, err := s.store.AppendChange(ctx, id, current.Version, c)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("change applied", "document", id, "change", c.ID, "version", version)
	return version, nil
}

// GetChanges returns the changes after version since together with the
// current version.
func (s *Service) GetChanges(ctx context.Context, id string, since int) ([]*change.Change, int, error) {
	head, err := s.store.Version(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	changes, err := s.store.Changes(ctx, id, since, head)
	if err != nil {
		return nil, 0, err
	}
	return changes, head, nil
}

// GetSnapshot returns the snapshot selected by q.
func (s *Service) GetSnapshot(ctx context.Context, q snapshot.Query) (*snapshot.Snapshot, error) {
	return s.snapshots.Get(ctx, q)
}

// ListDocuments returns every document id in sorted order.
func (s *Service) ListDocuments(ctx context.Context) ([]string, error) {
	return s.store.ListDocuments(ctx)
}

// check folds c onto data and fails if any operation would be skipped.
func (s *Service) check(id string, data []byte, version int, c *change.Change) error {
	folded, err := snapshot.Compute(data, []*change.Change{c},
		snapshot.WithDocumentID(id),
		snapshot.WithStartVersion(version),
		snapshot.WithLogger(s.logger))
	if err != nil {
		return err
	}
	if folded.Skipped > 0 {
		return docerr.Application(nil, "%d of %d operations do not apply to %s at version %d",
			folded.Skipped, len(c.Ops), id, version)
	}
	return nil
}
