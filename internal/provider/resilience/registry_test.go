package resilience_test

import (
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citytrace/citytrace/internal/provider/resilience"
)

func newRegistered(t *testing.T, registry *resilience.Registry, name string) *resilience.Client {
	t.Helper()
	cfg := resilience.DefaultClientConfig(name)
	cfg.Registry = registry
	return resilience.NewClient(cfg)
}

func TestRegistry_RegisterOnConstruction(t *testing.T) {
	registry := resilience.NewRegistry()
	client := newRegistered(t, registry, "imagery")

	assert.Equal(t, 1, registry.Len())
	assert.Equal(t, "imagery", client.Name())

	health := registry.Health("imagery")
	require.NotNil(t, health)
	assert.Equal(t, gobreaker.StateClosed, health.CircuitState)
	assert.Equal(t, resilience.StatusHealthy, health.Status())
}

func TestRegistry_Unregister(t *testing.T) {
	registry := resilience.NewRegistry()
	newRegistered(t, registry, "imagery")

	registry.Unregister("imagery")

	assert.Equal(t, 0, registry.Len())
	assert.Nil(t, registry.Health("imagery"))
}

func TestRegistry_RecordSuccessAndFailure(t *testing.T) {
	registry := resilience.NewRegistry()
	newRegistered(t, registry, "imagery")

	health := registry.Health("imagery")
	require.NotNil(t, health)
	assert.Nil(t, health.LastSuccessAt)
	assert.Nil(t, health.LastFailureAt)

	registry.RecordSuccess("imagery")
	registry.RecordFailure("imagery", assert.AnError)

	health = registry.Health("imagery")
	require.NotNil(t, health.LastSuccessAt)
	require.NotNil(t, health.LastFailureAt)
	assert.WithinDuration(t, time.Now(), *health.LastSuccessAt, time.Second)
	assert.Equal(t, assert.AnError.Error(), health.LastError)
}

func TestRegistry_UnknownNamesIgnored(t *testing.T) {
	registry := resilience.NewRegistry()

	registry.RecordSuccess("nonexistent")
	registry.RecordFailure("nonexistent", assert.AnError)
	assert.Nil(t, registry.Health("nonexistent"))
}

func TestRegistry_SnapshotSortedByName(t *testing.T) {
	registry := resilience.NewRegistry()
	for _, name := range []string{"imagery-c", "imagery-a", "imagery-b"} {
		newRegistered(t, registry, name)
	}

	snapshot := registry.Snapshot()
	require.Len(t, snapshot, 3)
	assert.Equal(t, "imagery-a", snapshot[0].Name)
	assert.Equal(t, "imagery-b", snapshot[1].Name)
	assert.Equal(t, "imagery-c", snapshot[2].Name)
}

func TestProviderHealth_Status(t *testing.T) {
	tests := []struct {
		state  gobreaker.State
		status string
	}{
		{gobreaker.StateClosed, resilience.StatusHealthy},
		{gobreaker.StateHalfOpen, resilience.StatusDegraded},
		{gobreaker.StateOpen, resilience.StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			h := &resilience.ProviderHealth{CircuitState: tt.state}
			assert.Equal(t, tt.status, h.Status())
		})
	}
}
