package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dshills/docengine/internal/engine/change"
	"github.com/dshills/docengine/internal/engine/docerr"
	"github.com/dshills/docengine/internal/engine/snapshot"
	"github.com/dshills/docengine/internal/storage"
)

// DocumentIDHeader carries the id of a document created by
// POST /api/documents.
const DocumentIDHeader = "X-Document-Id"

// CreateDocumentRequest is the body of POST /api/documents. Both fields
// are optional.
type CreateDocumentRequest struct {
	DocumentID string         `json:"documentId"`
	Change     *change.Change `json:"change"`
}

// DocumentResponse is returned by GET /api/documents/:id.
type DocumentResponse struct {
	Data    json.RawMessage `json:"data"`
	Version int             `json:"version"`
}

// ApplyChangeRequest is the body of POST /api/documents/:id/changes. A
// missing BaseVersion appends to the current version.
type ApplyChangeRequest struct {
	BaseVersion *int           `json:"baseVersion"`
	Change      *change.Change `json:"change"`
}

// VersionResponse carries the version after a write.
type VersionResponse struct {
	Version int `json:"version"`
}

// ChangesResponse is returned by GET /api/documents/:id/changes.
type ChangesResponse struct {
	Changes []*change.Change `json:"changes"`
	Version int              `json:"version"`
}

// ListDocumentsResponse is returned by GET /api/documents.
type ListDocumentsResponse struct {
	Documents []string `json:"documents"`
}

// Handlers holds the gin handlers of the document API.
type Handlers struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandlers creates handlers over svc.
func NewHandlers(svc *Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{svc: svc, logger: logger}
}

// HandleHealth reports liveness.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleListDocuments handles GET /api/documents.
func (h *Handlers) HandleListDocuments(c *gin.Context) {
	ids, err := h.svc.ListDocuments(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, ListDocumentsResponse{Documents: ids})
}

// HandleCreateDocument handles POST /api/documents.
func (h *Handlers) HandleCreateDocument(c *gin.Context) {
	var req CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.fail(c, requestError(err))
		return
	}

	id, version, err := h.svc.CreateDocument(c.Request.Context(), req.DocumentID, req.Change)
	if err != nil {
		h.fail(c, err)
		return
	}
	// The body is the bare version; the id, which may have been generated,
	// is in the Location and DocumentIDHeader headers.
	c.Header("Location", "/api/documents/"+url.PathEscape(id))
	c.Header(DocumentIDHeader, id)
	c.JSON(http.StatusCreated, version)
}

// HandleGetDocument handles GET /api/documents/:id.
func (h *Handlers) HandleGetDocument(c *gin.Context) {
	data, version, err := h.svc.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, DocumentResponse{Data: data, Version: version})
}

// HandleDeleteDocument handles DELETE /api/documents/:id.
func (h *Handlers) HandleDeleteDocument(c *gin.Context) {
	result, err := h.svc.DeleteDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleGetChanges handles GET /api/documents/:id/changes?since=n.
func (h *Handlers) HandleGetChanges(c *gin.Context) {
	since := 0
	if raw := c.Query("since"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.fail(c, docerr.InvalidArguments("since must be an integer, got %q", raw))
			return
		}
		since = n
	}

	changes, version, err := h.svc.GetChanges(c.Request.Context(), c.Param("id"), since)
	if err != nil {
		h.fail(c, err)
		return
	}
	if changes == nil {
		changes = []*change.Change{}
	}
	c.JSON(http.StatusOK, ChangesResponse{Changes: changes, Version: version})
}

// HandleApplyChange handles POST /api/documents/:id/changes.
func (h *Handlers) HandleApplyChange(c *gin.Context) {
	var req ApplyChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, requestError(err))
		return
	}
	base := storage.AnyVersion
	if req.BaseVersion != nil {
		base = *req.BaseVersion
	}

	version, err := h.svc.ApplyChange(c.Request.Context(), c.Param("id"), base, req.Change)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, VersionResponse{Version: version})
}

// HandleSnapshot handles POST /api/snapshots. The body must be a query
// object; a bare string is rejected.
func (h *Handlers) HandleSnapshot(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		h.fail(c, requestError(err))
		return
	}
	q, err := snapshot.ParseQuery(raw)
	if err != nil {
		h.fail(c, err)
		return
	}

	snap, err := h.svc.GetSnapshot(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status, code := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

// requestError classifies a body read or decode failure. Oversized bodies
// keep their own error so they map to 413.
func requestError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || errors.Is(err, docerr.ErrInvalidArguments) {
		return err
	}
	return docerr.InvalidArguments("invalid request body: %v", err)
}
