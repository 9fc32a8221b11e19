package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/derm-match/internal/analyzer"
	"github.com/kozaktomas/derm-match/internal/cache"
	"github.com/kozaktomas/derm-match/internal/config"
	"github.com/kozaktomas/derm-match/internal/corpus"
	"github.com/kozaktomas/derm-match/internal/detect"
	"github.com/kozaktomas/derm-match/internal/embed"
	"github.com/kozaktomas/derm-match/internal/index"
	"github.com/kozaktomas/derm-match/internal/web/middleware"
)

// Deps bundles the long-lived pipeline components the handlers serve from.
type Deps struct {
	Analyzer  *analyzer.Analyzer
	Index     *index.Index
	Localizer *detect.Localizer
	Embedder  *embed.Client
	Loader    *corpus.Loader
}

func (d Deps) CacheStats() cache.Stats               { return d.Analyzer.CacheStats() }
func (d Deps) IndexStats() index.Stats               { return d.Index.Stats() }
func (d Deps) DetectorBreaker() detect.BreakerStatus { return d.Localizer.BreakerStatus() }
func (d Deps) EmbedderBreaker() embed.BreakerStatus  { return d.Embedder.BreakerStatus() }

// Server represents the web server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	deps       Deps
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, port int, host string, deps Deps) *Server {
	r := chi.NewRouter()

	s := &Server{
		router: r,
		deps:   deps,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(30 * time.Second))
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	// Set up routes
	s.setupRoutes()

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
