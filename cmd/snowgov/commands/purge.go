package commands

import (
	"github.com/spf13/cobra"
)

func newPurgeCommand() *cobra.Command {
	var (
		retentionDays int
		dryRun        bool
		actor         string
	)

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Purge aged audit data",
		Long: `Remove audit entries, access entries, and resolved violations older
than the retention window.

Open violations are never purged regardless of age: an unresolved
finding stays visible until someone resolves it. Purges are dry runs
unless --dry-run=false is passed; a real purge records itself in the
audit trail, a dry run only counts.`,
		Example: `  # See what a purge would remove (the default)
  snowgov purge

  # Purge for real with a 30-day window
  snowgov purge --dry-run=false --retention-days 30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close(cmd.Context())

			days := retentionDays
			if days == 0 {
				days = app.cfg.Scheduler.RetentionDays
			}

			result, err := app.purger.Purge(cmd.Context(), days, dryRun, actor)
			if err != nil {
				return err
			}
			return printResult(result)
		},
	}

	cmd.Flags().IntVar(&retentionDays, "retention-days", 0, "retention window in days (default from config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", true, "count rows without deleting (pass --dry-run=false to delete)")
	cmd.Flags().StringVar(&actor, "actor", "cli", "actor recorded in the audit trail")

	return cmd
}
