package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/adfharrison1/go-docdb/pkg/domain"
)

// ErrorResponse represents a standard JSON error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
	// Kind is the error taxonomy name, e.g. "duplicate key".
	Kind string `json:"kind,omitempty"`
	// Path is the offending field path or key, when known.
	Path string `json:"path,omitempty"`
}

// WriteJSONError writes a JSON error response with the given status code and message.
func WriteJSONError(w http.ResponseWriter, statusCode int, message string) {
	writeErrorResponse(w, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

func writeErrorResponse(w http.ResponseWriter, response ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(response.Code)
	json.NewEncoder(w).Encode(response)
}

var errorKinds = []error{
	domain.ErrDuplicateKey,
	domain.ErrTypeMismatch,
	domain.ErrUnsupportedType,
	domain.ErrInvalidFilter,
	domain.ErrInvalidUpdate,
	domain.ErrInvalidPipeline,
	domain.ErrInvalidIndex,
	domain.ErrInvalidOptions,
	domain.ErrNotFound,
	domain.ErrCollectionDropped,
}

// StatusFor maps an engine error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrDuplicateKey):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrCollectionDropped):
		return http.StatusGone
	case errors.Is(err, domain.ErrTypeMismatch),
		errors.Is(err, domain.ErrUnsupportedType),
		errors.Is(err, domain.ErrInvalidFilter),
		errors.Is(err, domain.ErrInvalidUpdate),
		errors.Is(err, domain.ErrInvalidPipeline),
		errors.Is(err, domain.ErrInvalidIndex),
		errors.Is(err, domain.ErrInvalidOptions):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func kindOf(err error) string {
	for _, kind := range errorKinds {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return ""
}

// writeError logs err and writes it with the status StatusFor picks.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Errorw("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		h.logger.Debugw("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeErrorResponse(w, ErrorResponse{
		Error:   http.StatusText(status),
		Message: err.Error(),
		Code:    status,
		Kind:    kindOf(err),
		Path:    domain.PathOf(err),
	})
}
