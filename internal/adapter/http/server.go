package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/store-locator/internal/gate"
)

// Options configures routing and cross-origin policy.
type Options struct {
	// BasePath prefixes every /api route, e.g. "/map".
	BasePath       string
	AllowedOrigins []string
	OperatorAPIKey string
}

// Server exposes the widget API alongside health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer wires the router. Every response, including gate rejections and
// panics recovered by the router, carries CORS headers.
func NewServer(addr string, opts Options, api *API, tokens *TokenHandler, g *gate.Gate, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(gate.CORS(opts.AllowedOrigins))
	r.Use(middleware.Recoverer)
	r.Use(g.Middleware)

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(ready))
	r.Handle("/metrics", promhttp.Handler())

	r.Route(opts.BasePath+"/api", func(r chi.Router) {
		r.Get("/locations", api.handleLocations)
		r.Post("/geocode", api.handleGeocodeBatch)
		r.Get("/geocode", api.handleGeocodeSearch)
		r.Get("/maps/tiles/{z}/{x}/{y}.png", api.handleTile)

		r.With(gate.RequireOperator(opts.OperatorAPIKey)).
			Post("/auth/generate-token", tokens.handleGenerate)
	})

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}
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
