package handlers

import (
	"context"
	"log"
	"net/http"
	"time"
)

// CorpusReloader replaces the index contents from the configured source.
type CorpusReloader interface {
	Reload(ctx context.Context) (int, error)
}

// ReloadHandler handles the corpus reload endpoint.
type ReloadHandler struct {
	loader CorpusReloader
}

// NewReloadHandler creates a new reload handler.
func NewReloadHandler(loader CorpusReloader) *ReloadHandler {
	return &ReloadHandler{loader: loader}
}

// Reload pulls the full corpus from its source and swaps it into the index.
// On failure the index keeps serving its previous snapshot.
func (h *ReloadHandler) Reload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	count, err := h.loader.Reload(r.Context())
	if err != nil {
		log.Printf("corpus reload failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to reload corpus")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"records":     count,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}
