package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Default returns the built-in configuration. Every field can be
// overridden by the config file and the SNOWGOV_* environment variables.
func Default() *Config {
	return &Config{
		Environment: "development",
		Database: DatabaseConfig{
			Path: "snowgov.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "none",
			SamplingRate: 1.0,
		},
		Metrics: MetricsConfig{
			Enabled:       false,
			ListenAddress: ":9090",
			Path:          "/metrics",
		},
		Scheduler: SchedulerConfig{
			ScanInterval:  time.Hour,
			PurgeInterval: 24 * time.Hour,
			RetentionDays: 90,
			PurgeDryRun:   true,
			Actor:         "scheduler",
		},
	}
}

// Load reads the configuration file at path, applies environment
// overrides, and validates the result. An empty path loads defaults and
// environment overrides only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its declared constraints.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyEnv overlays SNOWGOV_* environment variables on top of the loaded
// configuration. Only a small operational subset is exposed this way.
func applyEnv(cfg *Config) {
	if v := os.Getenv("SNOWGOV_ENV"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("SNOWGOV_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("SNOWGOV_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SNOWGOV_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SNOWGOV_METRICS_ADDR"); v != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.ListenAddress = v
	}
	if v := os.Getenv("SNOWGOV_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			cfg.Scheduler.RetentionDays = days
		}
	}
}

// Watcher re-reads the configuration file when it changes on disk.
type Watcher struct {
	path    string
	logger  zerolog.Logger
	watcher *fsnotify.Watcher
}

// NewWatcher creates a config file watcher.
func NewWatcher(path string, logger zerolog.Logger) *Watcher {
	return &Watcher{
		path:   path,
		logger: logger.With().Str("component", "config-watcher").Logger(),
	}
}

// Start begins watching the config file. Each successful reload is handed
// to reloadFn; parse and validation failures keep the previous
// configuration and are logged. Editors often replace files instead of
// writing in place, so the parent directory is watched rather than the
// file itself.
func (w *Watcher) Start(reloadFn func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	w.watcher = watcher

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	go w.processEvents(reloadFn)
	return nil
}

// Stop stops watching.
func (w *Watcher) Stop() error {
	if w.watcher == nil {
		return nil
	}
	return w.watcher.Close()
}

func (w *Watcher) processEvents(reloadFn func(*Config)) {
	target := filepath.Clean(w.path)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			cfg, err := Load(w.path)
			if err != nil {
				w.logger.Warn().Err(err).Msg("Config reload failed, keeping previous configuration")
				continue
			}
			w.logger.Info().Str("path", w.path).Msg("Configuration reloaded")
			reloadFn(cfg)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Config watcher error")
		}
	}
}
