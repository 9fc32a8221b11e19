package handlers

import (
	"net/http"

	"github.com/kozaktomas/derm-match/internal/index"
)

// HealthHandler reports process liveness plus whether the similarity index
// holds a corpus snapshot yet. The endpoint always answers 200; readiness
// probes should branch on the index_ready field.
type HealthHandler struct {
	idx *index.Index
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(idx *index.Index) *HealthHandler {
	return &HealthHandler{idx: idx}
}

// Get handles the health check endpoint.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"index_ready": h.idx.Ready(),
	})
}
