package api

import (
	"net/http"

	"github.com/adfharrison1/go-docdb/pkg/storage"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message"`
	Stats   storage.Stats `json:"stats"`
}

// HandleHealth handles GET requests to the health check endpoint.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Message: "go-docdb is running",
		Stats:   h.engine.Stats(),
	})
}
