// Package httpserver provides the HTTP REST API server for the scholar
// service.
package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/helixir/scholar-service/internal/resilience"
	"github.com/helixir/scholar-service/internal/tools"
)

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	tools      *tools.Service
	breaker    *resilience.Breaker
	registry   *prometheus.Registry
	validate   *validator.Validate
	logger     zerolog.Logger

	metricsEnabled bool
	metricsPath    string
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MetricsEnabled  bool
	MetricsPath     string
}

// NewServer creates a new HTTP server with all dependencies. The breaker is
// the upstream circuit breaker, consulted by the readiness endpoint; the
// registry backs the metrics endpoint.
func NewServer(
	cfg Config,
	toolService *tools.Service,
	breaker *resilience.Breaker,
	registry *prometheus.Registry,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		tools:          toolService,
		breaker:        breaker,
		registry:       registry,
		validate:       validator.New(),
		logger:         logger.With().Str("component", "http-server").Logger(),
		metricsEnabled: cfg.MetricsEnabled,
		metricsPath:    cfg.MetricsPath,
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(s.requestLogMiddleware)

	// Health endpoints
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	if s.metricsEnabled {
		path := s.metricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(jsonContentTypeMiddleware)

		r.Get("/papers/search", s.searchPapers)
		r.Post("/papers/recommendations", s.getRecommendations)
		r.Get("/papers/{paperID}", s.getPaperDetails)
		r.Get("/papers/{paperID}/citations", s.getPaperCitations)
		r.Get("/papers/{paperID}/references", s.getPaperReferences)
		r.Get("/papers/{paperID}/related", s.getRelatedPapers)

		r.Get("/authors/search", s.searchAuthors)
		r.Post("/authors/duplicates", s.findDuplicateAuthors)
		r.Post("/authors/consolidate", s.consolidateAuthors)
		r.Get("/authors/{authorID}", s.getAuthorDetails)
		r.Get("/authors/{authorID}/top-papers", s.getAuthorTopPapers)

		r.Get("/tracked-papers", s.listTrackedPapers)
		r.Delete("/tracked-papers", s.clearTrackedPapers)
		r.Post("/export/bibtex", s.exportBibTeX)
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the handler tree for tests.
func (s *Server) Router() http.Handler { return s.router }

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler reports readiness. An open upstream circuit means the
// service cannot do useful work, so readiness degrades with it.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	state := s.breaker.State()
	if state == resilience.CircuitOpen {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "not_ready",
			"circuit": state.String(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ready",
		"circuit": state.String(),
	})
}
