package commands

import (
	"github.com/spf13/cobra"
)

func newScanCommand() *cobra.Command {
	var (
		scope string
		actor string
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a compliance scan",
		Long: `Sweep the live clone population against the active MAX_AGE policies.

Every other policy kind is checked when an operation is recorded; age is
the one property that changes while nothing happens, so stale clones can
only be found by scanning. Each stale clone opens one violation; clones
that already carry an open violation for the same policy are skipped.`,
		Example: `  # Scan all environments
  snowgov scan

  # Scan production only
  snowgov scan --scope PROD`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close(cmd.Context())

			result, err := app.scanner.Scan(cmd.Context(), scope, actor)
			if err != nil {
				return err
			}
			return printResult(result)
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "", "restrict the scan to one environment scope")
	cmd.Flags().StringVar(&actor, "actor", "cli", "actor recorded in the audit trail")

	return cmd
}
