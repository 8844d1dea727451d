// Package router provides HTTP routing configuration using Chi.
package router

import (
	_ "embed"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/remiblancher/derpki/internal/api/handler"
	"github.com/remiblancher/derpki/internal/api/metrics"
	"github.com/remiblancher/derpki/internal/api/middleware"
	"github.com/remiblancher/derpki/internal/profile"
)

//go:embed openapi.yaml
var openapiSpec []byte

// Config holds router configuration.
type Config struct {
	Version string
	Logger  *zap.Logger

	// Metrics may be nil, in which case /metrics is not served.
	Metrics *metrics.Metrics

	// Profiles listed under /api/v1/profiles.
	Profiles map[string]*profile.Profile
}

// New creates a new Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.CORS)
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	healthHandler := handler.NewHealthHandler(cfg.Version, []string{"inspect"})
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	r.Get("/api/openapi.yaml", serveOpenAPISpec)

	inspectHandler := handler.NewInspectHandler(logger, cfg.Metrics)
	csrHandler := handler.NewCSRHandler()
	oidHandler := handler.NewOIDHandler()
	profileHandler := handler.NewProfileHandler(cfg.Profiles)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/inspect", inspectHandler.Inspect)

		r.Route("/csr", func(r chi.Router) {
			r.Post("/verify", csrHandler.Verify)
		})

		r.Route("/oids", func(r chi.Router) {
			r.Get("/", oidHandler.List)
			r.Get("/{name}", oidHandler.Get)
		})

		r.Route("/profiles", func(r chi.Router) {
			r.Get("/", profileHandler.List)
			r.Get("/{name}", profileHandler.Get)
		})
	})

	return r
}

// serveOpenAPISpec serves the OpenAPI specification file.
func serveOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openapiSpec)
}
