package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/config"
	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/engine"
)

func newServeCommand() *cobra.Command {
	var seedOnStart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the governance engine as a long-lived process",
		Long: `Run the governance engine with scheduled maintenance jobs.

Compliance scans and retention purges run on their configured intervals,
the Prometheus endpoint serves metrics when enabled, and the config file
is watched for changes. The process runs until interrupted.`,
		Example: `  # Run with the default config
  snowgov serve --config snowgov.yaml

  # Seed policies before starting
  snowgov serve --config snowgov.yaml --seed`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.close(context.Background())

			if seedOnStart && len(app.cfg.SeedPaths) > 0 {
				result, err := app.service.SeedPolicies(ctx, app.cfg.SeedPaths, "seeder")
				if err != nil {
					return err
				}
				app.logger.Info().
					Int("created", result.Created).
					Int("updated", result.Updated).
					Int("failed", result.Failed).
					Msg("Startup policy seed complete")
			}

			// Seed files are reapplied when they change on disk, so a
			// policy edit lands without a restart.
			if len(app.cfg.SeedPaths) > 0 {
				if err := app.service.WatchSeeds(ctx, app.cfg.SeedPaths, "seeder"); err != nil {
					app.logger.Warn().Err(err).Msg("Seed watcher could not start")
				}
			}

			if app.cfg.Metrics.Enabled {
				if err := app.telemetry.StartMetricsServer(); err != nil {
					return err
				}
			}

			runner := engine.NewRunner(app.scanner, app.purger, app.cfg.RunnerConfig(), app.logger)
			if err := runner.Start(ctx); err != nil {
				return err
			}

			// Scheduler settings from config reloads apply on the next start;
			// the watcher only logs them so operators see the change landed.
			if configPath != "" {
				watcher := config.NewWatcher(configPath, app.logger)
				if err := watcher.Start(func(cfg *config.Config) {
					app.logger.Info().Msg("Configuration change detected, restart to apply scheduler settings")
				}); err != nil {
					app.logger.Warn().Err(err).Msg("Config watcher could not start")
				} else {
					defer func() { _ = watcher.Stop() }()
				}
			}

			app.logger.Info().Msg("Governance engine running")
			<-ctx.Done()

			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return runner.Stop(stopCtx)
		},
	}

	cmd.Flags().BoolVar(&seedOnStart, "seed", false, "load configured seed paths before starting")

	return cmd
}
