// Package app builds the shared CityTrace components from configuration.
package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/citytrace/citytrace/internal/archive"
	"github.com/citytrace/citytrace/internal/config"
	"github.com/citytrace/citytrace/internal/database"
	"github.com/citytrace/citytrace/internal/geo"
	"github.com/citytrace/citytrace/internal/imagery"
	"github.com/citytrace/citytrace/internal/pipeline"
	"github.com/citytrace/citytrace/internal/provider/resilience"
	"github.com/citytrace/citytrace/internal/regionstats"
	"github.com/citytrace/citytrace/internal/timeseries"
)

// NewLogger returns a JSON logger tagged with the service and version.
func NewLogger(w io.Writer, cfg *config.Config, service, version string) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return zerolog.New(w).
		Level(cfg.LogLevel()).
		With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
}

// NewImageryClient creates the gateway client and registers it on registry.
func NewImageryClient(ctx context.Context, cfg *config.Config, registry *resilience.Registry, logger zerolog.Logger) (*imagery.Client, error) {
	clientCfg := imagery.ClientConfig{
		BaseURL:    cfg.Imagery.BaseURL,
		Timeout:    cfg.Imagery.Timeout,
		MaxRetries: uint64(cfg.Imagery.MaxRetries), //nolint:gosec // validated non-negative
		Registry:   registry,
		Logger:     logger,
	}

	if cfg.Imagery.OAuth {
		ts, err := imagery.DefaultTokenSource(ctx)
		if err != nil {
			return nil, err
		}
		clientCfg.TokenSource = ts
	}

	return imagery.NewClient(clientCfg), nil
}

// NewPipeline creates the pipeline service with the configured policies.
func NewPipeline(cfg *config.Config, svc imagery.Service, reg prometheus.Registerer, logger zerolog.Logger) (*pipeline.Service, error) {
	policy, err := timeseries.ParsePolicy(cfg.Pipeline.Mode)
	if err != nil {
		return nil, err
	}

	return pipeline.NewService(pipeline.ServiceConfig{
		Imagery:      svc,
		Gazetteer:    geo.NewGazetteer(geo.GazetteerConfig{Policy: cfg.UnknownCityPolicy()}),
		RadiusMeters: cfg.Pipeline.RadiusMeters,
		ModePolicy:   policy,
		Concurrency:  cfg.Pipeline.Concurrency,
		Dimensions:   cfg.Imagery.Dimensions,
		Metrics:      pipeline.NewMetrics(reg),
		Logger:       logger,
	}), nil
}

// Stretch returns the configured default stretch method.
func Stretch(cfg *config.Config) regionstats.Method {
	m, err := regionstats.ParseMethod(cfg.Pipeline.Stretch)
	if err != nil {
		return regionstats.MethodMinMax
	}
	return m
}

// Mask returns the configured default night-lights mask.
func Mask(cfg *config.Config) pipeline.MaskOptions {
	return pipeline.MaskOptions{
		Threshold: cfg.Pipeline.MaskThreshold,
		Opacity:   cfg.Pipeline.MaskOpacity,
	}
}

// Archive is the run store and, when Postgres backs it, its pool.
type Archive struct {
	Repository archive.Repository
	Pool       *pgxpool.Pool
}

// Close releases the pool, if any.
func (a *Archive) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}

// OpenArchive connects to Postgres and migrates the schema when a database
// host is configured. Otherwise runs are kept in memory.
func OpenArchive(ctx context.Context, cfg database.Config, logger zerolog.Logger) (*Archive, error) {
	if !cfg.Enabled() {
		logger.Warn().Msg("no database configured, archiving runs in memory")
		return &Archive{Repository: archive.NewInMemoryRepository()}, nil
	}

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect archive: %w", err)
	}

	repo := archive.NewPostgresRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}

	logger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("database connected")

	return &Archive{Repository: repo, Pool: pool}, nil
}
