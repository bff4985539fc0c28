// Package api provides the HTTP API for CityTrace.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/citytrace/citytrace/internal/api/handler"
	"github.com/citytrace/citytrace/internal/api/middleware"
	"github.com/citytrace/citytrace/internal/api/response"
	"github.com/citytrace/citytrace/internal/archive"
	"github.com/citytrace/citytrace/internal/pipeline"
	"github.com/citytrace/citytrace/internal/provider/resilience"
	"github.com/citytrace/citytrace/internal/regionstats"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string

	// Metrics records OpenTelemetry HTTP metrics when set.
	Metrics *middleware.Metrics

	Pipeline *pipeline.Service
	Archive  archive.Repository

	// Registry and Database feed the ops endpoints. Both may be nil.
	Registry *resilience.Registry
	Database handler.Pinger

	// Gatherer is served on /metrics when set.
	Gatherer prometheus.Gatherer

	// TokenValidator enables bearer auth on render and archive routes.
	TokenValidator middleware.TokenValidator

	RequireTLS bool

	// RateLimit is requests per minute per IP for metadata routes. Zero
	// uses middleware.StandardRateLimit.
	RateLimit int

	// RenderRateLimit is requests per minute for render routes. Zero uses
	// middleware.RenderRateLimit.
	RenderRateLimit int

	// Defaults for map requests.
	Stretch regionstats.Method
	Mask    *pipeline.MaskOptions
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "citytrace-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no route for "+r.Method+" "+r.URL.Path)
	})

	opsHandler := handler.NewOpsHandler(handler.OpsHandlerConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Registry:  cfg.Registry,
		Database:  cfg.Database,
	})
	metadataHandler := handler.NewMetadataHandler(cfg.Pipeline)
	renderHandler := handler.NewRenderHandler(handler.RenderHandlerConfig{
		Pipeline: cfg.Pipeline,
		Archive:  cfg.Archive,
		Stretch:  cfg.Stretch,
		Mask:     cfg.Mask,
		Logger:   cfg.Logger,
	})

	authEnabled := cfg.TokenValidator != nil
	var authMiddleware func(http.Handler) http.Handler
	if authEnabled {
		authMiddleware = middleware.Auth(cfg.TokenValidator)
	}
	requireAuth := middleware.Optional(authEnabled, authMiddleware)

	renderLimit := middleware.RenderRateLimit
	if cfg.RenderRateLimit > 0 {
		renderLimit = middleware.PerMinute(cfg.RenderRateLimit)
	}
	renderRateLimit := middleware.RateLimitByClient(renderLimit)
	standardLimit := middleware.StandardRateLimit
	if cfg.RateLimit > 0 {
		standardLimit = middleware.PerMinute(cfg.RateLimit)
	}
	standardRateLimit := middleware.RateLimitByIP(standardLimit)

	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(requireAuth).Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/metadata", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/cities", metadataHandler.ListCities)
			r.Get("/gases", metadataHandler.ListGases)
		})

		// Render endpoints fan out to many imagery calls per request.
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(renderRateLimit)
			r.Use(middleware.RequireJSON)
			r.Post("/maps:render", renderHandler.RenderMap)
			r.Post("/nightlights:render", renderHandler.RenderNightLights)
			r.Post("/winds:render", renderHandler.RenderWinds)
			r.Post("/timeseries:compute", renderHandler.ComputeTimeSeries)
		})

		if cfg.Archive != nil {
			runsHandler := handler.NewRunsHandler(cfg.Archive)
			r.Route("/runs", func(r chi.Router) {
				r.Use(requireAuth)
				r.Use(standardRateLimit)
				r.Get("/", runsHandler.ListRuns)
				r.Get("/{runId}", runsHandler.GetRun)
			})
		}
	})

	return r
}
