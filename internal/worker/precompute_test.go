package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citytrace/citytrace/internal/archive"
	"github.com/citytrace/citytrace/internal/imagery"
	"github.com/citytrace/citytrace/internal/imagery/imagerytest"
	"github.com/citytrace/citytrace/internal/pipeline"
	"github.com/citytrace/citytrace/internal/worker"
)

var fixedNow = time.Date(2020, time.June, 1, 12, 0, 0, 0, time.UTC)

type testJob struct {
	job     *worker.PrecomputeJob
	imagery *imagerytest.Fake
	archive *archive.InMemoryRepository
	metrics *worker.Metrics
}

func newTestJob(t *testing.T, cfg worker.PrecomputeConfig) *testJob {
	t.Helper()

	fake := imagerytest.New()
	repo := archive.NewInMemoryRepository()
	metrics := worker.NewMetrics(prometheus.NewRegistry())

	svc := pipeline.NewService(pipeline.ServiceConfig{
		Imagery: fake,
		Logger:  zerolog.Nop(),
	})

	job := worker.NewPrecomputeJob(worker.PrecomputeJobConfig{
		Config:   cfg,
		Pipeline: svc,
		Archive:  repo,
		Metrics:  metrics,
		Logger:   zerolog.Nop(),
		Now:      func() time.Time { return fixedNow },
	})

	return &testJob{job: job, imagery: fake, archive: repo, metrics: metrics}
}

func TestNewPrecomputeJob_Defaults(t *testing.T) {
	env := newTestJob(t, worker.PrecomputeConfig{})

	cfg := env.job.Config()
	assert.Equal(t, 24, cfg.TotalTargets())
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, 5*time.Minute, cfg.Timeout)
}

func TestPrecomputeJob_Run(t *testing.T) {
	env := newTestJob(t, worker.PrecomputeConfig{
		Targets:     worker.Targets([]string{"Delhi", "Mumbai"}, []string{"CO"}),
		Concurrency: 2,
	})
	env.imagery.Empty = func(_ string, q imagery.Query) bool { return q.Range.Start.Month() == time.April }

	result := env.job.Run(context.Background())

	assert.Equal(t, 2019, result.Year)
	assert.Equal(t, 2, result.TotalTargets)
	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 2, result.MissingBins)
	require.Len(t, result.RunIDs, 2)

	run, err := env.archive.Get(context.Background(), result.RunIDs[0])
	require.NoError(t, err)
	assert.Equal(t, archive.KindTimeSeries, run.Kind)
	assert.Equal(t, "monthly", run.Mode)
	assert.Equal(t, "2019-01-01", run.Start.Format("2006-01-02"))
	assert.Equal(t, "2019-12-31", run.End.Format("2006-01-02"))
	require.Len(t, run.Bins, 12)
	assert.Nil(t, run.Bins[3].Value)
	assert.NotNil(t, run.Bins[0].Value)
	assert.Equal(t, fixedNow, run.CreatedAt)

	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.Runs))
	assert.Equal(t, float64(2), testutil.ToFloat64(env.metrics.Targets.WithLabelValues("succeeded")))
}

func TestPrecomputeJob_Run_CollectsFailures(t *testing.T) {
	env := newTestJob(t, worker.PrecomputeConfig{
		Targets: []worker.Target{
			{City: "Delhi", Gas: "CO"},
			{City: "Atlantis", Gas: "CO"},
			{City: "Delhi", Gas: "O3"},
		},
		Year:        2019,
		Concurrency: 1,
	})

	result := env.job.Run(context.Background())

	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Errors, 2)

	failed := map[string]bool{}
	for _, e := range result.Errors {
		failed[e.Target.City+"/"+e.Target.Gas] = true
		assert.NotEmpty(t, e.Error)
	}
	assert.True(t, failed["Atlantis/CO"])
	assert.True(t, failed["Delhi/O3"])

	all, err := env.archive.List(context.Background(), archive.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all.Items, 1)
	assert.Equal(t, float64(2), testutil.ToFloat64(env.metrics.Targets.WithLabelValues("failed")))
}

func TestPrecomputeJob_Run_GatewayDown(t *testing.T) {
	env := newTestJob(t, worker.PrecomputeConfig{
		Targets: worker.Targets([]string{"Delhi"}, []string{"CO", "NO2"}),
		Year:    2019,
	})
	env.imagery.Err = errors.New("connection refused")

	result := env.job.Run(context.Background())

	assert.Equal(t, 0, result.Successful)
	assert.Equal(t, 2, result.Failed)
	assert.Empty(t, result.RunIDs)
}

func TestPrecomputeJob_RunTargets_WithoutArchive(t *testing.T) {
	fake := imagerytest.New()
	job := worker.NewPrecomputeJob(worker.PrecomputeJobConfig{
		Pipeline: pipeline.NewService(pipeline.ServiceConfig{Imagery: fake, Logger: zerolog.Nop()}),
		Logger:   zerolog.Nop(),
		Now:      func() time.Time { return fixedNow },
	})

	result := job.RunTargets(context.Background(), []worker.Target{{City: "Chennai", Gas: "SO2"}}, 2018)

	assert.Equal(t, 2018, result.Year)
	assert.Equal(t, 1, result.Successful)
	assert.Empty(t, result.RunIDs)
}

func TestPrecomputeJob_StatsSnapshot(t *testing.T) {
	env := newTestJob(t, worker.PrecomputeConfig{
		Targets: []worker.Target{{City: "Delhi", Gas: "CO"}, {City: "Nowhere", Gas: "CO"}},
		Year:    2019,
	})

	before := env.job.StatsSnapshot()
	assert.Equal(t, int64(0), before["total_runs"])
	assert.NotContains(t, before, "last_run_at")

	env.job.Run(context.Background())
	env.job.Run(context.Background())

	stats := env.job.StatsSnapshot()
	assert.Equal(t, int64(2), stats["total_runs"])
	assert.Equal(t, int64(2), stats["successful_targets"])
	assert.Equal(t, int64(2), stats["failed_targets"])
	assert.Equal(t, "2020-06-01T12:00:00Z", stats["last_run_at"])
}
