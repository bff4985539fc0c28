package worker_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/citytrace/citytrace/internal/worker"
)

func TestDefaultPrecomputeConfig(t *testing.T) {
	cfg := worker.DefaultPrecomputeConfig()

	assert.Equal(t, 24, cfg.TotalTargets())
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, 5*time.Minute, cfg.Timeout)
	assert.Equal(t, worker.Target{City: "Delhi", Gas: "CO"}, cfg.Targets[0])
}

func TestTargets_CrossProduct(t *testing.T) {
	targets := worker.Targets([]string{"Pune", "Agra"}, []string{"NO2", "SO2"})

	assert.Equal(t, []worker.Target{
		{City: "Pune", Gas: "NO2"},
		{City: "Pune", Gas: "SO2"},
		{City: "Agra", Gas: "NO2"},
		{City: "Agra", Gas: "SO2"},
	}, targets)
	assert.Empty(t, worker.Targets(nil, []string{"CO"}))
}

func TestPrecomputeConfig_YearAt(t *testing.T) {
	now := time.Date(2024, time.March, 3, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 2023, worker.PrecomputeConfig{}.YearAt(now))
	assert.Equal(t, 2019, worker.PrecomputeConfig{Year: 2019}.YearAt(now))
}
