// Package main provides the entrypoint for the CityTrace precompute worker.
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

	"github.com/citytrace/citytrace/internal/app"
	"github.com/citytrace/citytrace/internal/config"
	"github.com/citytrace/citytrace/internal/provider/resilience"
	"github.com/citytrace/citytrace/internal/telemetry"
	"github.com/citytrace/citytrace/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "citytrace-worker"

	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := app.NewLogger(os.Stdout, cfg, serviceName, Version)
	log.Info().Str("build_time", BuildTime).Msg("starting CityTrace worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector())

	imageryClient, err := app.NewImageryClient(ctx, cfg, resilience.NewRegistry(), log)
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

	job := worker.NewPrecomputeJob(worker.PrecomputeJobConfig{
		Config:   precomputeConfig(cfg.Worker),
		Pipeline: pipelineService,
		Archive:  runs.Repository,
		Metrics:  worker.NewMetrics(promRegistry),
		Logger:   log,
	})

	scheduler := worker.NewScheduler(job, cfg.Worker.Interval, log)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer scheduler.Stop()

	if cfg.Worker.PubSubProject != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.Worker.PubSubProject,
			SubscriptionName: cfg.Worker.PubSubSubscription,
			Job:              job,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer handler.Close() //nolint:errcheck // best effort on shutdown

		go func() {
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	}

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Worker.HealthPort),
		Handler:      worker.NewHealthMux(job, scheduler, promRegistry, Version),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

func precomputeConfig(cfg config.WorkerConfig) worker.PrecomputeConfig {
	return worker.PrecomputeConfig{
		Targets:     worker.Targets(cfg.Cities, cfg.Gases),
		Year:        cfg.Year,
		Concurrency: cfg.Concurrency,
		Timeout:     cfg.Timeout,
	}
}
