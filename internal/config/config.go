// Package config loads CityTrace configuration from defaults, an optional
// config file, a .env file and CITYTRACE_ environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/citytrace/citytrace/internal/database"
	"github.com/citytrace/citytrace/internal/geo"
	"github.com/citytrace/citytrace/internal/regionstats"
	"github.com/citytrace/citytrace/internal/timeseries"
)

// EnvPrefix is prepended to every environment key, e.g.
// CITYTRACE_IMAGERY_BASE_URL sets imagery.base_url.
const EnvPrefix = "CITYTRACE"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Imagery   ImageryConfig   `mapstructure:"imagery"`
	Database  database.Config `mapstructure:"database"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Worker    WorkerConfig    `mapstructure:"worker"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Environment  string        `mapstructure:"environment"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// RateLimit is requests per minute per client IP.
	RateLimit int `mapstructure:"rate_limit"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ImageryConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	Dimensions int           `mapstructure:"dimensions"`

	// OAuth enables Google application default credentials.
	OAuth bool `mapstructure:"oauth"`
}

type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

type AuthConfig struct {
	// SigningKey enables bearer auth on the API when set.
	SigningKey string `mapstructure:"signing_key"`
	Issuer     string `mapstructure:"issuer"`
}

type PipelineConfig struct {
	UnknownCity   string  `mapstructure:"unknown_city"`
	RadiusMeters  float64 `mapstructure:"radius_meters"`
	Mode          string  `mapstructure:"mode"`
	Stretch       string  `mapstructure:"stretch"`
	MaskThreshold float64 `mapstructure:"mask_threshold"`
	MaskOpacity   float64 `mapstructure:"mask_opacity"`
	Concurrency   int     `mapstructure:"concurrency"`
}

type WorkerConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Concurrency int           `mapstructure:"concurrency"`
	Cities      []string      `mapstructure:"cities"`
	Gases       []string      `mapstructure:"gases"`

	// Year whose monthly series is precomputed. Zero means last year.
	Year int `mapstructure:"year"`

	HealthPort         int    `mapstructure:"health_port"`
	PubSubProject      string `mapstructure:"pubsub_project"`
	PubSubSubscription string `mapstructure:"pubsub_subscription"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.rate_limit", 60)

	v.SetDefault("log.level", "info")

	v.SetDefault("imagery.base_url", "http://localhost:8090")
	v.SetDefault("imagery.timeout", "30s")
	v.SetDefault("imagery.max_retries", 2)
	v.SetDefault("imagery.dimensions", 512)
	v.SetDefault("imagery.oauth", false)

	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "citytrace")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "citytrace")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "5m")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.sample_ratio", 1.0)

	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.issuer", "citytrace")

	v.SetDefault("pipeline.unknown_city", string(geo.PolicyReject))
	v.SetDefault("pipeline.radius_meters", geo.DefaultRadiusMeters)
	v.SetDefault("pipeline.mode", "auto")
	v.SetDefault("pipeline.stretch", string(regionstats.MethodMinMax))
	v.SetDefault("pipeline.mask_threshold", 30.0)
	v.SetDefault("pipeline.mask_opacity", 1.0)
	v.SetDefault("pipeline.concurrency", 4)

	v.SetDefault("worker.interval", "24h")
	v.SetDefault("worker.timeout", "5m")
	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.cities", []string{"Delhi", "Mumbai", "Kolkata", "Chennai", "Bangalore", "Hyderabad"})
	v.SetDefault("worker.gases", []string{"CO", "NO2", "SO2", "HCHO"})
	v.SetDefault("worker.year", 0)
	v.SetDefault("worker.health_port", 8081)
	v.SetDefault("worker.pubsub_project", "")
	v.SetDefault("worker.pubsub_subscription", "citytrace-jobs")
}

// Load reads configuration. A missing .env or config file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server timeouts must be positive")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Sprintf("log.level %q is not a level", c.Log.Level))
	}
	if c.Imagery.BaseURL == "" {
		errs = append(errs, "imagery.base_url is required")
	}
	if c.Imagery.Timeout <= 0 {
		errs = append(errs, "imagery.timeout must be positive")
	}
	if c.Imagery.MaxRetries < 0 {
		errs = append(errs, "imagery.max_retries must not be negative")
	}
	if c.Database.Host != "" && (c.Database.Port <= 0 || c.Database.Port > 65535) {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if _, err := geo.ParseUnknownCityPolicy(c.Pipeline.UnknownCity); err != nil {
		errs = append(errs, "pipeline.unknown_city must be reject or fallback")
	}
	if _, err := timeseries.ParsePolicy(c.Pipeline.Mode); err != nil {
		errs = append(errs, "pipeline.mode must be auto, monthly or seasonal")
	}
	if _, err := regionstats.ParseMethod(c.Pipeline.Stretch); err != nil {
		errs = append(errs, "pipeline.stretch must be minmax or percentile")
	}
	if c.Pipeline.RadiusMeters <= 0 {
		errs = append(errs, "pipeline.radius_meters must be positive")
	}
	if c.Pipeline.MaskOpacity < 0 || c.Pipeline.MaskOpacity > 1 {
		errs = append(errs, fmt.Sprintf("pipeline.mask_opacity must be within [0, 1], got %g", c.Pipeline.MaskOpacity))
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, fmt.Sprintf("telemetry.sample_ratio must be within [0, 1], got %g", c.Telemetry.SampleRatio))
	}
	if c.Worker.Interval <= 0 {
		errs = append(errs, "worker.interval must be positive")
	}
	if c.Worker.Concurrency <= 0 {
		errs = append(errs, "worker.concurrency must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// LogLevel returns the parsed log level, defaulting to info.
func (c *Config) LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// UnknownCityPolicy returns the parsed pipeline policy.
func (c *Config) UnknownCityPolicy() geo.UnknownCityPolicy {
	p, err := geo.ParseUnknownCityPolicy(c.Pipeline.UnknownCity)
	if err != nil {
		return geo.PolicyReject
	}
	return p
}
