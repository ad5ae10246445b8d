package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/config"
	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/engine"
	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/governance"
	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/registry"
	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/stores"
	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/telemetry"
)

// app holds the wired application components shared by all commands.
type app struct {
	cfg       *config.Config
	telemetry *telemetry.Telemetry
	store     *stores.SQLiteStore
	registry  *registry.Memory
	recorder  *engine.Recorder
	service   *engine.Service
	scanner   *engine.Scanner
	purger    *engine.Purger
	logger    zerolog.Logger
}

// newApp loads configuration, opens the store, and wires the engine. The
// live resource registry is rebuilt from the audit trail so quota and scan
// state survives restarts.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	tel, err := telemetry.NewTelemetry(cfg.Telemetry(appVersion))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	logger := tel.Logger.Zerolog()

	store, err := stores.NewSQLiteStore(stores.Config{Path: cfg.Database.Path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}

	reg := registry.NewMemory(logger)
	if _, err := reg.Rebuild(ctx, store); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to rebuild resource registry: %w", err)
	}

	evaluator := governance.NewEvaluator(store, logger)
	recorder := engine.NewRecorder(evaluator, store, reg, logger,
		engine.WithRecorderMetrics(tel.Metrics),
		engine.WithRecorderEvents(tel.Events))
	service := engine.NewService(store, store, store, recorder, logger,
		engine.WithServiceMetrics(tel.Metrics),
		engine.WithServiceEvents(tel.Events))
	scanner := engine.NewScanner(store, store, store, reg, logger,
		engine.WithScannerMetrics(tel.Metrics),
		engine.WithScannerEvents(tel.Events))
	purger := engine.NewPurger(store, store, logger,
		engine.WithPurgerMetrics(tel.Metrics),
		engine.WithPurgerEvents(tel.Events))

	return &app{
		cfg:       cfg,
		telemetry: tel,
		store:     store,
		registry:  reg,
		recorder:  recorder,
		service:   service,
		scanner:   scanner,
		purger:    purger,
		logger:    logger,
	}, nil
}

// close releases the application components.
func (a *app) close(ctx context.Context) {
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Telemetry shutdown failed")
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Store close failed")
	}
}

// printResult renders a command result as indented JSON on stdout. The
// --json flag switches to compact single-line output for scripting.
func printResult(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	if !jsonOutput {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
