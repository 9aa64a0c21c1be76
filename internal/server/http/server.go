// Package httpserver provides the HTTP REST API server for the evidence search service.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/helixir/evidence-search-service/internal/domain"
)

// Searcher runs one evidence search. *evidence.Service satisfies it.
type Searcher interface {
	Search(ctx context.Context, q domain.SearchQuery) (*domain.SearchResult, error)
}

// MetricsRecorder receives one observation per served request.
type MetricsRecorder interface {
	RecordHTTPRequest(method, route string, status int, durationSeconds float64)
}

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	searcher   Searcher
	logger     zerolog.Logger
	metrics    MetricsRecorder
	config     Config
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// AllowedOrigins lists the browser origins allowed by CORS.
	AllowedOrigins []string

	// RequestTimeout bounds each search. Zero disables the bound.
	RequestTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records per-request metrics on m.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// NewServer creates a new HTTP server.
func NewServer(cfg Config, searcher Searcher, logger zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		searcher: searcher,
		logger:   logger.With().Str("component", "http-server").Logger(),
		config:   cfg,
	}
	for _, opt := range opts {
		opt(s)
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
	r.Use(corsMiddleware(s.config.AllowedOrigins))
	r.Use(s.accessLogMiddleware)
	r.Use(jsonContentTypeMiddleware)

	r.Get("/health", s.healthHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(requestTimeoutMiddleware(s.config.RequestTimeout))

		r.Get("/search", s.searchGet)
		r.Post("/search", s.searchPost)
	})

	return r
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
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

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// defaultAllowedOrigin is the local frontend development server.
const defaultAllowedOrigin = "http://localhost:3000"

// corsMiddleware allows the configured origins with credentials, any method and any header.
// With no origins configured only the local frontend is allowed.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{defaultAllowedOrigin}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
			http.MethodDelete, http.MethodHead, http.MethodOptions,
		},
		AllowedHeaders:       []string{"*"},
		ExposedHeaders:       []string{"X-Correlation-ID", "X-Request-Id"},
		AllowCredentials:     true,
		OptionsSuccessStatus: http.StatusNoContent,
	}).Handler
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort log; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
