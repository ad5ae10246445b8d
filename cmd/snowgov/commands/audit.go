package commands

import (
	"github.com/spf13/cobra"

	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/stores"
)

func newAuditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Browse the audit trail",
		Long: `Browse the append-only audit trail of recorded operations.

Every recorded operation, scan pass, and purge leaves exactly one entry.
Entries are never updated or deleted outside retention purges.`,
	}

	cmd.AddCommand(newAuditListCommand())

	return cmd
}

func newAuditListCommand() *cobra.Command {
	var (
		operation string
		actor     string
		scope     string
		outcome   string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List audit entries",
		Example: `  # Recent activity
  snowgov audit list

  # Blocked operations in production
  snowgov audit list --scope PROD --outcome BLOCKED

  # Everything one user did
  snowgov audit list --actor alice`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close(cmd.Context())

			filter := stores.AuditFilter{Limit: limit}
			if operation != "" {
				filter.Operation = &operation
			}
			if actor != "" {
				filter.Actor = &actor
			}
			if scope != "" {
				filter.Scope = &scope
			}
			if outcome != "" {
				filter.Outcome = &outcome
			}

			entries, err := app.service.ListAuditEntries(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printResult(entries)
		},
	}

	cmd.Flags().StringVar(&operation, "operation", "", "filter by operation kind")
	cmd.Flags().StringVar(&actor, "actor", "", "filter by actor")
	cmd.Flags().StringVar(&scope, "scope", "", "filter by environment scope")
	cmd.Flags().StringVar(&outcome, "outcome", "", "filter by outcome (SUCCESS, FAILED, BLOCKED)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of entries")

	return cmd
}
