package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/derm-match/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	// Create handlers
	analyzeHandler := handlers.NewAnalyzeHandler(s.deps.Analyzer)
	statsHandler := handlers.NewStatsHandler(s.deps)
	reloadHandler := handlers.NewReloadHandler(s.deps.Loader)
	healthHandler := handlers.NewHealthHandler(s.deps.Index)

	// Health check
	s.router.Get("/api/v1/health", healthHandler.Get)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyze", analyzeHandler.Analyze)
		r.Get("/stats", statsHandler.Get)
		r.Get("/taxonomy", handlers.Taxonomy)
		r.Post("/index/reload", reloadHandler.Reload)
	})
}
