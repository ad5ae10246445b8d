package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Database.Path != "snowgov.db" {
		t.Errorf("unexpected default database path: %s", cfg.Database.Path)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("unexpected default log level: %s", cfg.Logging.Level)
	}
	if cfg.Scheduler.RetentionDays != 90 {
		t.Errorf("unexpected default retention: %d", cfg.Scheduler.RetentionDays)
	}
	if !cfg.Scheduler.PurgeDryRun {
		t.Error("scheduled purges must default to dry run")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snowgov.yaml")
	content := `environment: production
database:
  path: /var/lib/snowgov/snowgov.db
logging:
  level: warn
  format: json
metrics:
  enabled: true
  listen_address: ":9191"
scheduler:
  scan_interval: 30m
  retention_days: 30
seed_paths:
  - /etc/snowgov/policies
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Environment != "production" {
		t.Errorf("unexpected environment: %s", cfg.Environment)
	}
	if cfg.Database.Path != "/var/lib/snowgov/snowgov.db" {
		t.Errorf("unexpected database path: %s", cfg.Database.Path)
	}
	if cfg.Logging.Level != "warn" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging config: %+v", cfg.Logging)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.ListenAddress != ":9191" {
		t.Errorf("unexpected metrics config: %+v", cfg.Metrics)
	}
	if cfg.Scheduler.ScanInterval != 30*time.Minute {
		t.Errorf("unexpected scan interval: %s", cfg.Scheduler.ScanInterval)
	}
	if cfg.Scheduler.RetentionDays != 30 {
		t.Errorf("unexpected retention: %d", cfg.Scheduler.RetentionDays)
	}
	if len(cfg.SeedPaths) != 1 || cfg.SeedPaths[0] != "/etc/snowgov/policies" {
		t.Errorf("unexpected seed paths: %v", cfg.SeedPaths)
	}
	// File settings merge over defaults rather than replacing them.
	if cfg.Scheduler.PurgeInterval != 24*time.Hour {
		t.Errorf("expected default purge interval to survive, got %s", cfg.Scheduler.PurgeInterval)
	}
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{
			name: "bad log level",
			content: `logging:
  level: shouting
`,
		},
		{
			name: "bad environment",
			content: `environment: qa
`,
		},
		{
			name: "negative retention",
			content: `scheduler:
  retention_days: -1
`,
		},
		{
			name: "empty database path",
			content: `database:
  path: ""
`,
		},
		{
			name:    "malformed yaml",
			content: "database: [",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "bad.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected load to fail")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected load to fail for missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SNOWGOV_DB_PATH", "/tmp/override.db")
	t.Setenv("SNOWGOV_LOG_LEVEL", "debug")
	t.Setenv("SNOWGOV_RETENTION_DAYS", "7")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("expected env override for database path, got %s", cfg.Database.Path)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected env override for log level, got %s", cfg.Logging.Level)
	}
	if cfg.Scheduler.RetentionDays != 7 {
		t.Errorf("expected env override for retention, got %d", cfg.Scheduler.RetentionDays)
	}
}

func TestTelemetryConversion(t *testing.T) {
	cfg := Default()
	cfg.Environment = "production"
	cfg.Logging.Level = "warn"
	cfg.Logging.Format = "json"
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "otlp"
	cfg.Tracing.Endpoint = "collector:4317"

	tc := cfg.Telemetry("1.2.3")
	if tc.ServiceVersion != "1.2.3" {
		t.Errorf("unexpected service version: %s", tc.ServiceVersion)
	}
	if tc.Environment != "production" {
		t.Errorf("unexpected environment: %s", tc.Environment)
	}
	if tc.Logging.Level != "warn" || tc.Logging.Format != "json" {
		t.Errorf("unexpected logging config: %+v", tc.Logging)
	}
	if !tc.Tracing.Enabled || tc.Tracing.Exporter != "otlp" || tc.Tracing.Endpoint != "collector:4317" {
		t.Errorf("unexpected tracing config: %+v", tc.Tracing)
	}
	if err := tc.Validate(); err != nil {
		t.Errorf("converted telemetry config should validate: %v", err)
	}
}

func TestRunnerConfigConversion(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.ScanInterval = 15 * time.Minute
	cfg.Scheduler.ScanScope = "PROD"
	cfg.Scheduler.PurgeDryRun = true

	rc := cfg.RunnerConfig()
	if rc.ScanInterval != 15*time.Minute || rc.ScanScope != "PROD" {
		t.Errorf("unexpected runner config: %+v", rc)
	}
	if !rc.PurgeDryRun {
		t.Error("expected dry-run purges")
	}
	if rc.Actor != "scheduler" {
		t.Errorf("unexpected actor: %s", rc.Actor)
	}
}
