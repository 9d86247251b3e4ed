package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/od-flow-service/internal/dataset"
	"github.com/couchcryptid/od-flow-service/internal/domain"
	"github.com/couchcryptid/od-flow-service/internal/observability"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dataset is the read side of the record store.
type Dataset interface {
	Snapshot() *dataset.Snapshot
	CheckReadiness(ctx context.Context) error
}

// SelectionPublisher forwards a computed selection downstream.
type SelectionPublisher interface {
	PublishSelection(ctx context.Context, sel domain.Selection) error
}

// Options configures the API routes.
type Options struct {
	// DefaultOrigin is applied when a request leaves origin unset.
	DefaultOrigin string
	// Publisher is optional; without it the publish route answers 503.
	Publisher SelectionPublisher
	Metrics   *observability.Metrics
	// CORSAllowedOrigins enables cross-origin access to /api/v1 when non-empty.
	CORSAllowedOrigins []string
	// RateLimitPerMinute caps /api/v1 requests per client IP; 0 disables it.
	RateLimitPerMinute int
}

// Server exposes the selection API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	data       Dataset
	opts       Options
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the health routes and the /api/v1 selection routes.
func NewServer(addr string, data Dataset, opts Options, logger *slog.Logger) *Server {
	s := &Server{
		data:   data,
		opts:   opts,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(data))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(requestLogger(logger))
		if len(opts.CORSAllowedOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: opts.CORSAllowedOrigins,
				AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
				AllowedHeaders: []string{"Accept", "Content-Type"},
				ExposedHeaders: []string{"Content-Disposition", "X-Request-Id"},
				MaxAge:         300,
			}))
		}
		if opts.RateLimitPerMinute > 0 {
			r.Use(httprate.LimitByIP(opts.RateLimitPerMinute, time.Minute))
		}
		r.Get("/zones", s.handleZones)
		r.Route("/flows", func(r chi.Router) {
			r.Get("/", s.handleFlows)
			r.Get("/export", s.handleExport)
			r.Get("/geojson", s.handleGeoJSON)
			r.Post("/publish", s.handlePublish)
		})
	})

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chimiddleware.GetReqID(r.Context()),
			)
		})
	}
}
