package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citytrace/citytrace/internal/worker"
)

func TestScheduler_RunsImmediately(t *testing.T) {
	env := newTestJob(t, worker.PrecomputeConfig{
		Targets: worker.Targets([]string{"Delhi"}, []string{"CO"}),
		Year:    2019,
	})

	s := worker.NewScheduler(env.job, time.Hour, zerolog.Nop())
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Stop)
	assert.True(t, s.Running())

	assert.Eventually(t, func() bool {
		return env.job.StatsSnapshot()["total_runs"] == int64(1)
	}, 5*time.Second, 20*time.Millisecond)
}

func TestScheduler_RequiresJob(t *testing.T) {
	s := worker.NewScheduler(nil, time.Hour, zerolog.Nop())
	assert.Error(t, s.Start(context.Background()))
}
