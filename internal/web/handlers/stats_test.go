package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/derm-match/internal/cache"
	"github.com/kozaktomas/derm-match/internal/detect"
	"github.com/kozaktomas/derm-match/internal/embed"
	"github.com/kozaktomas/derm-match/internal/index"
)

type stubServiceStats struct{}

func (stubServiceStats) CacheStats() cache.Stats {
	return cache.Stats{Hits: 10, Misses: 4, Entries: 4, Capacity: 1024}
}

func (stubServiceStats) IndexStats() index.Stats {
	return index.Stats{Records: 1500, Dim: 512, HNSW: false, Swaps: 2}
}

func (stubServiceStats) DetectorBreaker() detect.BreakerStatus {
	return detect.BreakerStatus{Enabled: true, State: "closed"}
}

func (stubServiceStats) EmbedderBreaker() embed.BreakerStatus {
	return embed.BreakerStatus{Enabled: false}
}

func TestStatsHandler_Get(t *testing.T) {
	handler := NewStatsHandler(stubServiceStats{})

	req := httptest.NewRequest("GET", "/api/v1/stats", nil)
	recorder := httptest.NewRecorder()

	handler.Get(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "application/json")

	var stats StatsResponse
	parseJSONResponse(t, recorder, &stats)

	if stats.Cache.Hits != 10 || stats.Cache.Misses != 4 {
		t.Errorf("unexpected cache stats: %+v", stats.Cache)
	}
	if stats.Index.Records != 1500 || stats.Index.Dim != 512 {
		t.Errorf("unexpected index stats: %+v", stats.Index)
	}
	if !stats.Detector.Enabled || stats.Detector.State != "closed" {
		t.Errorf("unexpected detector breaker: %+v", stats.Detector)
	}
	if stats.Embedder.Enabled {
		t.Errorf("unexpected embedder breaker: %+v", stats.Embedder)
	}
}
