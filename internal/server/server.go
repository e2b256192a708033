package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/market-analyzer/internal/analysis"
	"github.com/aristath/market-analyzer/internal/diagnostics"
	"github.com/aristath/market-analyzer/internal/resilience"
	"github.com/aristath/market-analyzer/internal/sources"
)

// Config holds server configuration
type Config struct {
	Port        int
	Log         zerolog.Logger
	Pipeline    *analysis.Pipeline
	Manager     *sources.Manager
	Breakers    *resilience.BreakerRegistry
	Fallbacks   *resilience.FallbackRegistry
	Diagnostics *diagnostics.Repository
	DevMode     bool
}

// Server represents the HTTP server
type Server struct {
	router      *chi.Mux
	server      *http.Server
	log         zerolog.Logger
	pipeline    *analysis.Pipeline
	manager     *sources.Manager
	breakers    *resilience.BreakerRegistry
	fallbacks   *resilience.FallbackRegistry
	diagnostics *diagnostics.Repository
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		log:         cfg.Log.With().Str("component", "server").Logger(),
		pipeline:    cfg.Pipeline,
		manager:     cfg.Manager,
		breakers:    cfg.Breakers,
		fallbacks:   cfg.Fallbacks,
		diagnostics: cfg.Diagnostics,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(120 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/analysis", s.handleAnalysis)

		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.handleSystemStatus)
		})

		// Administrative surface: source selection, fallback toggles,
		// breaker overrides. Internal, not request-triggered.
		r.Route("/admin", func(r chi.Router) {
			r.Get("/sources/health", s.handleSourcesHealth)
			r.Post("/sources/primary", s.handleSetPrimarySource)
			r.Post("/sources/fallback", s.handleSetFallbackEnabled)
			r.Post("/sources/reset-counters", s.handleResetFallbackCounts)
			r.Get("/fallbacks", s.handleFallbackEntries)
			r.Get("/breakers", s.handleBreakerStats)
			r.Post("/breakers/{service}/force-open", s.handleForceOpen)
			r.Post("/breakers/{service}/force-close", s.handleForceClose)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
