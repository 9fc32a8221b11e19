package handlers

import (
	"net/http"

	"github.com/kozaktomas/derm-match/internal/cache"
	"github.com/kozaktomas/derm-match/internal/detect"
	"github.com/kozaktomas/derm-match/internal/embed"
	"github.com/kozaktomas/derm-match/internal/index"
)

// ServiceStats exposes live counters from the running pipeline. All values
// come from in-memory state, so the endpoint is cheap enough to poll.
type ServiceStats interface {
	CacheStats() cache.Stats
	IndexStats() index.Stats
	DetectorBreaker() detect.BreakerStatus
	EmbedderBreaker() embed.BreakerStatus
}

// StatsHandler handles the statistics endpoint.
type StatsHandler struct {
	service ServiceStats
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(service ServiceStats) *StatsHandler {
	return &StatsHandler{service: service}
}

// StatsResponse aggregates the service counters for operators.
type StatsResponse struct {
	Cache    cache.Stats          `json:"cache"`
	Index    index.Stats          `json:"index"`
	Detector detect.BreakerStatus `json:"detector_breaker"`
	Embedder embed.BreakerStatus  `json:"embedding_breaker"`
}

// Get handles the statistics endpoint.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, StatsResponse{
		Cache:    h.service.CacheStats(),
		Index:    h.service.IndexStats(),
		Detector: h.service.DetectorBreaker(),
		Embedder: h.service.EmbedderBreaker(),
	})
}
