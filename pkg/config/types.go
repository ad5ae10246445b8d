package config

import (
	"time"

	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/engine"
	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/telemetry"
)

// Config is the top-level application configuration, loaded from a YAML
// file with environment variable overrides applied on top.
type Config struct {
	// Environment specifies the deployment environment (development, staging, production).
	Environment string `yaml:"environment" validate:"omitempty,oneof=development staging production"`

	// Database configures the persistence layer.
	Database DatabaseConfig `yaml:"database"`

	// Logging configures structured log output.
	Logging LoggingConfig `yaml:"logging"`

	// Tracing configures distributed tracing export.
	Tracing TracingConfig `yaml:"tracing"`

	// Metrics configures the Prometheus metrics endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// Scheduler configures the background scan and purge jobs.
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// SeedPaths lists files or directories holding policy seed documents.
	SeedPaths []string `yaml:"seed_paths,omitempty"`
}

// DatabaseConfig configures the SQLite persistence layer.
type DatabaseConfig struct {
	// Path is the SQLite database file path. ":memory:" runs in memory.
	Path string `yaml:"path" validate:"required"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level sets the minimum log level (trace, debug, info, warn, error, fatal).
	Level string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error fatal"`

	// Format specifies the log format (console, json).
	Format string `yaml:"format" validate:"omitempty,oneof=console json"`

	// Output specifies where logs are written (stdout, stderr, file path).
	Output string `yaml:"output,omitempty"`

	// EnableCaller adds file:line caller information to logs.
	EnableCaller bool `yaml:"enable_caller,omitempty"`
}

// TracingConfig configures distributed tracing.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	Enabled bool `yaml:"enabled"`

	// Exporter specifies the trace exporter (otlp, stdout, none).
	Exporter string `yaml:"exporter" validate:"omitempty,oneof=otlp stdout none"`

	// Endpoint is the OTLP collector endpoint (e.g. "localhost:4317").
	Endpoint string `yaml:"endpoint,omitempty"`

	// SamplingRate is the trace sampling rate (0.0 to 1.0).
	SamplingRate float64 `yaml:"sampling_rate" validate:"gte=0,lte=1"`

	// Insecure disables TLS for the exporter connection.
	Insecure bool `yaml:"insecure,omitempty"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	Enabled bool `yaml:"enabled"`

	// ListenAddress is the address for the metrics HTTP endpoint.
	ListenAddress string `yaml:"listen_address,omitempty"`

	// Path is the HTTP path for metrics.
	Path string `yaml:"path,omitempty"`
}

// SchedulerConfig configures the background scan and purge loops. A zero
// interval disables the corresponding job.
type SchedulerConfig struct {
	// ScanInterval is how often the compliance scanner runs.
	ScanInterval time.Duration `yaml:"scan_interval,omitempty"`

	// ScanScope restricts scans to one environment scope. Empty scans all.
	ScanScope string `yaml:"scan_scope,omitempty"`

	// PurgeInterval is how often the retention purger runs.
	PurgeInterval time.Duration `yaml:"purge_interval,omitempty"`

	// RetentionDays is how long audit data is kept before purging.
	RetentionDays int `yaml:"retention_days,omitempty" validate:"omitempty,gt=0"`

	// PurgeDryRun makes scheduled purges count rows without deleting.
	PurgeDryRun bool `yaml:"purge_dry_run,omitempty"`

	// Actor is recorded on audit entries written by scheduled jobs.
	Actor string `yaml:"actor,omitempty"`
}

// Telemetry converts the application configuration into the telemetry
// stack's own configuration type.
func (c *Config) Telemetry(version string) *telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.ServiceVersion = version
	tc.Environment = c.Environment

	tc.Logging.Level = c.Logging.Level
	tc.Logging.Format = c.Logging.Format
	tc.Logging.Output = c.Logging.Output
	tc.Logging.EnableCaller = c.Logging.EnableCaller

	tc.Tracing.Enabled = c.Tracing.Enabled
	tc.Tracing.Exporter = c.Tracing.Exporter
	tc.Tracing.Endpoint = c.Tracing.Endpoint
	tc.Tracing.SamplingRate = c.Tracing.SamplingRate
	tc.Tracing.Insecure = c.Tracing.Insecure

	tc.Metrics.Enabled = c.Metrics.Enabled
	tc.Metrics.ListenAddress = c.Metrics.ListenAddress
	tc.Metrics.Path = c.Metrics.Path

	return tc
}

// RunnerConfig converts the scheduler section into the engine's runner
// configuration.
func (c *Config) RunnerConfig() engine.RunnerConfig {
	return engine.RunnerConfig{
		ScanInterval:  c.Scheduler.ScanInterval,
		ScanScope:     c.Scheduler.ScanScope,
		PurgeInterval: c.Scheduler.PurgeInterval,
		RetentionDays: c.Scheduler.RetentionDays,
		PurgeDryRun:   c.Scheduler.PurgeDryRun,
		Actor:         c.Scheduler.Actor,
	}
}
