package server

import (
	"errors"
	"net/http"

	"github.com/dshills/docengine/internal/engine/docerr"
	"github.com/dshills/docengine/internal/storage"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusOf maps an error to an HTTP status and an error code.
func statusOf(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE"
	case errors.Is(err, storage.ErrVersionConflict):
		return http.StatusConflict, "VERSION_CONFLICT"
	case errors.Is(err, storage.ErrDocumentExists):
		return http.StatusConflict, "DOCUMENT_EXISTS"
	case errors.Is(err, docerr.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, docerr.ErrInvalidArguments):
		return http.StatusBadRequest, "INVALID_ARGUMENTS"
	case errors.Is(err, docerr.ErrIllegalState):
		return http.StatusConflict, "ILLEGAL_STATE"
	case errors.Is(err, docerr.ErrApplication):
		return http.StatusUnprocessableEntity, "NOT_APPLICABLE"
	case errors.Is(err, storage.ErrClosed):
		return http.StatusServiceUnavailable, "UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}
