package worker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citytrace/citytrace/internal/archive"
	"github.com/citytrace/citytrace/internal/worker"
)

func TestDispatcher_Precompute(t *testing.T) {
	env := newTestJob(t, worker.PrecomputeConfig{
		Targets: worker.Targets([]string{"Delhi"}, []string{"CO"}),
		Year:    2019,
	})
	d := worker.NewDispatcher(env.job, zerolog.Nop())

	jobType, err := d.Dispatch(context.Background(), []byte(`{"job_type":"precompute"}`))
	require.NoError(t, err)
	assert.Equal(t, worker.JobPrecompute, jobType)

	runs, err := env.archive.List(context.Background(), archive.ListOptions{})
	require.NoError(t, err)
	require.Len(t, runs.Items, 1)
	assert.Equal(t, "Delhi", runs.Items[0].City)
}

func TestDispatcher_Precompute_Narrowed(t *testing.T) {
	env := newTestJob(t, worker.PrecomputeConfig{Year: 2019})
	d := worker.NewDispatcher(env.job, zerolog.Nop())

	_, err := d.Dispatch(context.Background(),
		[]byte(`{"job_type":"precompute","cities":["Pune"],"gases":["NO2","HCHO"],"year":2018}`))
	require.NoError(t, err)

	runs, err := env.archive.List(context.Background(), archive.ListOptions{City: "pune"})
	require.NoError(t, err)
	require.Len(t, runs.Items, 2)
	assert.Equal(t, 2018, runs.Items[0].Start.Year())
}

func TestDispatcher_Precompute_TooManyFailures(t *testing.T) {
	env := newTestJob(t, worker.PrecomputeConfig{Year: 2019})
	env.imagery.Err = errors.New("gateway down")
	d := worker.NewDispatcher(env.job, zerolog.Nop())

	_, err := d.Dispatch(context.Background(), []byte(`{"job_type":"precompute","cities":["Delhi"],"gases":["CO"]}`))
	assert.ErrorContains(t, err, "too many precompute failures")
}

func TestDispatcher_HealthCheck(t *testing.T) {
	env := newTestJob(t, worker.PrecomputeConfig{})
	d := worker.NewDispatcher(env.job, zerolog.Nop())

	_, err := d.Dispatch(context.Background(), []byte(`{"job_type":"health_check"}`))
	require.NoError(t, err)

	env.imagery.Err = errors.New("gateway down")
	_, err = d.Dispatch(context.Background(), []byte(`{"job_type":"health_check"}`))
	assert.ErrorContains(t, err, "health check failed")
}

func TestDispatcher_Errors(t *testing.T) {
	env := newTestJob(t, worker.PrecomputeConfig{})
	d := worker.NewDispatcher(env.job, zerolog.Nop())

	jobType, err := d.Dispatch(context.Background(), []byte(`{"job_type":"provider_refresh"}`))
	assert.ErrorIs(t, err, worker.ErrUnknownJob)
	assert.Equal(t, "provider_refresh", jobType)

	_, err = d.Dispatch(context.Background(), []byte(`not json`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, worker.ErrUnknownJob)
	assert.Equal(t, 0, env.imagery.Calls())
}
