package worker_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citytrace/citytrace/internal/imagery/imagerytest"
	"github.com/citytrace/citytrace/internal/pipeline"
	"github.com/citytrace/citytrace/internal/worker"
)

func TestHealthMux(t *testing.T) {
	reg := prometheus.NewRegistry()
	job := worker.NewPrecomputeJob(worker.PrecomputeJobConfig{
		Config:   worker.PrecomputeConfig{Targets: worker.Targets([]string{"Delhi"}, []string{"CO"}), Year: 2019},
		Pipeline: pipeline.NewService(pipeline.ServiceConfig{Imagery: imagerytest.New(), Logger: zerolog.Nop()}),
		Metrics:  worker.NewMetrics(reg),
		Logger:   zerolog.Nop(),
	})
	job.Run(context.Background())

	mux := worker.NewHealthMux(job, nil, reg, "1.0.0")

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var health worker.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "1.0.0", health.Version)
	assert.False(t, health.Scheduler)
	assert.Equal(t, float64(1), health.Stats["total_runs"])

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `citytrace_worker_precompute_targets_total{result="succeeded"} 1`)
}
