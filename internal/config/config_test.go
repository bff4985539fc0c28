package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citytrace/citytrace/internal/config"
	"github.com/citytrace/citytrace/internal/geo"
)

// chdir moves into an empty directory so no .env or config.yaml is found.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Imagery.Timeout)
	assert.Equal(t, 512, cfg.Imagery.Dimensions)
	assert.Empty(t, cfg.Database.Host, "archive defaults to memory")
	assert.Equal(t, geo.PolicyReject, cfg.UnknownCityPolicy())
	assert.Equal(t, 1.0, cfg.Pipeline.MaskOpacity)
	assert.Equal(t, 30.0, cfg.Pipeline.MaskThreshold)
	assert.Equal(t, []string{"CO", "NO2", "SO2", "HCHO"}, cfg.Worker.Gases)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel())
}

func TestLoad_Environment(t *testing.T) {
	chdir(t)
	t.Setenv("CITYTRACE_SERVER_PORT", "9000")
	t.Setenv("CITYTRACE_IMAGERY_BASE_URL", "https://imagery.example.com")
	t.Setenv("CITYTRACE_PIPELINE_UNKNOWN_CITY", "fallback")
	t.Setenv("CITYTRACE_WORKER_INTERVAL", "6h")
	t.Setenv("CITYTRACE_LOG_LEVEL", "debug")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "https://imagery.example.com", cfg.Imagery.BaseURL)
	assert.Equal(t, geo.PolicyFallback, cfg.UnknownCityPolicy())
	assert.Equal(t, 6*time.Hour, cfg.Worker.Interval)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel())
}

func TestLoad_DotEnv(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CITYTRACE_PIPELINE_MASK_THRESHOLD=42\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("CITYTRACE_PIPELINE_MASK_THRESHOLD") })

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 42.0, cfg.Pipeline.MaskThreshold)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := chdir(t)
	yaml := "pipeline:\n  mode: seasonal\n  stretch: percentile\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "seasonal", cfg.Pipeline.Mode)
	assert.Equal(t, "percentile", cfg.Pipeline.Stretch)
}

func TestValidate_CollectsErrors(t *testing.T) {
	chdir(t)
	t.Setenv("CITYTRACE_SERVER_PORT", "0")
	t.Setenv("CITYTRACE_PIPELINE_UNKNOWN_CITY", "guess")
	t.Setenv("CITYTRACE_PIPELINE_MASK_OPACITY", "1.5")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "pipeline.unknown_city")
	assert.Contains(t, err.Error(), "pipeline.mask_opacity")
}
