package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/citytrace/citytrace/internal/archive"
	"github.com/citytrace/citytrace/internal/geo"
	"github.com/citytrace/citytrace/internal/pipeline"
	"github.com/citytrace/citytrace/internal/timeseries"
)

// PrecomputeJob computes monthly series for its targets and archives them.
type PrecomputeJob struct {
	config   PrecomputeConfig
	logger   zerolog.Logger
	pipeline *pipeline.Service
	archive  archive.Repository
	now      func() time.Time

	metrics *Metrics
	stats   *Stats
}

// Metrics are the Prometheus collectors of the precompute job.
type Metrics struct {
	Runs        prometheus.Counter
	Targets     *prometheus.CounterVec
	RunDuration prometheus.Histogram
}

// NewMetrics registers the worker collectors on reg. A nil reg uses a
// private registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		Runs: f.NewCounter(prometheus.CounterOpts{
			Namespace: "citytrace",
			Subsystem: "worker",
			Name:      "precompute_runs_total",
			Help:      "Precompute job runs",
		}),
		Targets: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citytrace",
			Subsystem: "worker",
			Name:      "precompute_targets_total",
			Help:      "Precomputed targets by result",
		}, []string{"result"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "citytrace",
			Subsystem: "worker",
			Name:      "precompute_duration_seconds",
			Help:      "Duration of precompute job runs",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}

// Stats is an in-process summary of past runs for the health endpoint.
type Stats struct {
	mu sync.RWMutex

	TotalRuns         int64
	SuccessfulTargets int64
	FailedTargets     int64
	MissingBins       int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
}

// PrecomputeJobConfig holds configuration for creating a PrecomputeJob.
type PrecomputeJobConfig struct {
	Config   PrecomputeConfig
	Pipeline *pipeline.Service

	// Archive receives each computed series. Nil skips archiving.
	Archive archive.Repository

	Metrics *Metrics
	Logger  zerolog.Logger
	Now     func() time.Time
}

// NewPrecomputeJob creates a new precompute job.
func NewPrecomputeJob(cfg PrecomputeJobConfig) *PrecomputeJob {
	config := cfg.Config
	defaults := DefaultPrecomputeConfig()
	if len(config.Targets) == 0 {
		config.Targets = defaults.Targets
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &PrecomputeJob{
		config:   config,
		logger:   cfg.Logger.With().Str("component", "precompute").Logger(),
		pipeline: cfg.Pipeline,
		archive:  cfg.Archive,
		now:      now,
		metrics:  metrics,
		stats:    &Stats{},
	}
}

// Config returns the effective job configuration.
func (j *PrecomputeJob) Config() PrecomputeConfig {
	return j.config
}

// PrecomputeResult contains the result of one run.
type PrecomputeResult struct {
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	Year         int
	TotalTargets int
	Successful   int
	Failed       int
	MissingBins  int
	RunIDs       []string
	Errors       []PrecomputeError
}

// PrecomputeError records a failed target.
type PrecomputeError struct {
	Target Target
	Error  string
}

// Run computes every configured target. A failing target is recorded and
// does not stop the others.
func (j *PrecomputeJob) Run(ctx context.Context) *PrecomputeResult {
	return j.run(ctx, j.config.Targets, j.config.YearAt(j.now()))
}

// RunTargets computes the given targets for year. Zero year uses the
// configured one.
func (j *PrecomputeJob) RunTargets(ctx context.Context, targets []Target, year int) *PrecomputeResult {
	if year <= 0 {
		year = j.config.YearAt(j.now())
	}
	return j.run(ctx, targets, year)
}

func (j *PrecomputeJob) run(ctx context.Context, targets []Target, year int) *PrecomputeResult {
	startTime := j.now()
	result := &PrecomputeResult{
		StartTime:    startTime,
		Year:         year,
		TotalTargets: len(targets),
	}

	j.logger.Info().
		Int("total_targets", result.TotalTargets).
		Int("year", year).
		Int("concurrency", j.config.Concurrency).
		Msg("starting precompute job")

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.config.Concurrency)

	for _, target := range targets {
		target := target
		g.Go(func() error {
			runID, missing, err := j.precompute(gctx, target, year)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				result.Errors = append(result.Errors, PrecomputeError{Target: target, Error: err.Error()})
				j.metrics.Targets.WithLabelValues("failed").Inc()
				j.logger.Warn().Err(err).Str("city", target.City).Str("gas", target.Gas).Msg("precompute target failed")
				return nil
			}
			result.Successful++
			result.MissingBins += missing
			if runID != "" {
				result.RunIDs = append(result.RunIDs, runID)
			}
			j.metrics.Targets.WithLabelValues("succeeded").Inc()
			return nil
		})
	}
	_ = g.Wait()

	result.EndTime = j.now()
	result.Duration = result.EndTime.Sub(startTime)

	j.metrics.Runs.Inc()
	j.metrics.RunDuration.Observe(result.Duration.Seconds())
	j.updateStats(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("missing_bins", result.MissingBins).
		Msg("precompute job completed")

	return result
}

func (j *PrecomputeJob) precompute(ctx context.Context, target Target, year int) (string, int, error) {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	r, err := geo.HalfYearRange(year, geo.HalfJanDec)
	if err != nil {
		return "", 0, err
	}

	res, err := j.pipeline.TimeSeries(ctx, pipeline.TimeSeriesRequest{
		City:  target.City,
		Gas:   target.Gas,
		Range: r,
		Mode:  string(timeseries.ModeMonthly),
	})
	if err != nil {
		return "", 0, err
	}

	if j.archive == nil {
		return "", res.Missing(), nil
	}
	run := archive.FromTimeSeries(res, j.now())
	if err := j.archive.Create(ctx, run); err != nil {
		return "", 0, fmt.Errorf("archive run: %w", err)
	}
	return run.ID, res.Missing(), nil
}

func (j *PrecomputeJob) updateStats(result *PrecomputeResult) {
	j.stats.mu.Lock()
	defer j.stats.mu.Unlock()

	j.stats.TotalRuns++
	j.stats.SuccessfulTargets += int64(result.Successful)
	j.stats.FailedTargets += int64(result.Failed)
	j.stats.MissingBins += int64(result.MissingBins)
	j.stats.LastRunAt = result.EndTime
	j.stats.LastRunDuration = result.Duration
}

// StatsSnapshot returns the run summary as a map for the health endpoint.
func (j *PrecomputeJob) StatsSnapshot() map[string]interface{} {
	j.stats.mu.RLock()
	defer j.stats.mu.RUnlock()

	snapshot := map[string]interface{}{
		"total_runs":         j.stats.TotalRuns,
		"successful_targets": j.stats.SuccessfulTargets,
		"failed_targets":     j.stats.FailedTargets,
		"missing_bins":       j.stats.MissingBins,
		"last_run_duration":  j.stats.LastRunDuration.String(),
	}
	if !j.stats.LastRunAt.IsZero() {
		snapshot["last_run_at"] = j.stats.LastRunAt.UTC().Format(time.RFC3339)
	}
	return snapshot
}
