package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citytrace/citytrace/internal/config"
	"github.com/citytrace/citytrace/internal/worker"
)

func TestPrecomputeConfig(t *testing.T) {
	cfg := precomputeConfig(config.WorkerConfig{
		Timeout:     3 * time.Minute,
		Concurrency: 4,
		Cities:      []string{"Delhi", "Mumbai"},
		Gases:       []string{"CO", "NO2"},
		Year:        2021,
	})

	require.Equal(t, 4, cfg.TotalTargets())
	assert.Equal(t, worker.Target{City: "Delhi", Gas: "CO"}, cfg.Targets[0])
	assert.Equal(t, worker.Target{City: "Mumbai", Gas: "NO2"}, cfg.Targets[3])
	assert.Equal(t, 2021, cfg.Year)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 3*time.Minute, cfg.Timeout)
}
