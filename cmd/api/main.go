// Package main provides the entrypoint for the CityTrace API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/citytrace/citytrace/internal/api"
	"github.com/citytrace/citytrace/internal/api/handler"
	"github.com/citytrace/citytrace/internal/api/middleware"
	"github.com/citytrace/citytrace/internal/app"
	"github.com/citytrace/citytrace/internal/auth"
	"github.com/citytrace/citytrace/internal/config"
	"github.com/citytrace/citytrace/internal/provider/resilience"
	"github.com/citytrace/citytrace/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "citytrace-api"

	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := app.NewLogger(os.Stdout, cfg, serviceName, Version)
	log.Info().
		Str("build_time", BuildTime).
		Str("environment", cfg.Server.Environment).
		Msg("starting CityTrace API")

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Server.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if tp.Enabled() {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	providers := resilience.NewRegistry()
	imageryClient, err := app.NewImageryClient(ctx, cfg, providers, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create imagery client")
	}

	pipelineService, err := app.NewPipeline(cfg, imageryClient, promRegistry, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create pipeline")
	}

	runs, err := app.OpenArchive(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open run archive")
	}
	defer runs.Close()

	var db handler.Pinger
	if runs.Pool != nil {
		db = runs.Pool
	}

	var validator middleware.TokenValidator
	if cfg.Auth.SigningKey != "" {
		jwtService, jwtErr := auth.NewJWTService(auth.JWTConfig{
			SigningKey: cfg.Auth.SigningKey,
			Issuer:     cfg.Auth.Issuer,
		})
		if jwtErr != nil {
			log.Fatal().Err(jwtErr).Msg("failed to create JWT service")
		}
		validator = jwtService
		log.Info().Msg("bearer authentication enabled")
	} else {
		log.Warn().Msg("no signing key configured, API is unauthenticated")
	}

	mask := app.Mask(cfg)
	router := api.NewRouter(api.RouterConfig{
		Version:        Version,
		BuildTime:      BuildTime,
		Logger:         log,
		ServiceName:    serviceName,
		Metrics:        metrics,
		Pipeline:       pipelineService,
		Archive:        runs.Repository,
		Registry:       providers,
		Database:       db,
		Gatherer:       promRegistry,
		TokenValidator: validator,
		RequireTLS:     cfg.Server.Environment == "production",
		RateLimit:      cfg.Server.RateLimit,
		Stretch:        app.Stretch(cfg),
		Mask:           &mask,
	})

	server := newServer(cfg.Server, router)

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}

func newServer(cfg config.ServerConfig, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      h,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
}
