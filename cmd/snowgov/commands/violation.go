package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/engine"
	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/stores"
)

func newViolationCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "violation",
		Short: "Inspect and resolve policy violations",
		Long: `Browse recorded policy violations and resolve them.

Violations open when an operation or scan trips a policy and stay open
until someone resolves them. Open violations are exempt from retention
purges regardless of age.`,
	}

	cmd.AddCommand(newViolationListCommand())
	cmd.AddCommand(newViolationGetCommand())
	cmd.AddCommand(newViolationResolveCommand())

	return cmd
}

func newViolationListCommand() *cobra.Command {
	var (
		status     string
		policyID   string
		resourceID string
		violator   string
		severity   string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List violations",
		Example: `  # All open violations
  snowgov violation list --status OPEN

  # Violations by one user
  snowgov violation list --violator alice

  # Critical findings for one policy
  snowgov violation list --policy 4f8a... --severity CRITICAL`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close(cmd.Context())

			filter := stores.ViolationFilter{Limit: limit}
			if status != "" {
				filter.Status = &status
			}
			if policyID != "" {
				filter.PolicyID = &policyID
			}
			if resourceID != "" {
				filter.ResourceID = &resourceID
			}
			if violator != "" {
				filter.Violator = &violator
			}
			if severity != "" {
				filter.Severity = &severity
			}

			violations, err := app.service.ListViolations(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printResult(violations)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (OPEN, RESOLVED)")
	cmd.Flags().StringVar(&policyID, "policy", "", "filter by policy ID")
	cmd.Flags().StringVar(&resourceID, "resource", "", "filter by resource ID")
	cmd.Flags().StringVar(&violator, "violator", "", "filter by violator")
	cmd.Flags().StringVar(&severity, "severity", "", "filter by severity")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of violations")

	return cmd
}

func newViolationGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <violation-id>",
		Short: "Show one violation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close(cmd.Context())

			result, err := app.service.GetViolation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if result.Status != engine.StatusSuccess {
				return fmt.Errorf("%s", result.Message)
			}
			return printResult(result.Violation)
		},
	}
}

func newViolationResolveCommand() *cobra.Command {
	var (
		resolvedBy string
		notes      string
	)

	cmd := &cobra.Command{
		Use:   "resolve <violation-id>",
		Short: "Resolve an open violation",
		Example: `  # Resolve with a note
  snowgov violation resolve 9c2e... --by admin --notes "clone deleted"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close(cmd.Context())

			result, err := app.service.ResolveViolation(cmd.Context(), args[0], resolvedBy, notes)
			if err != nil {
				return err
			}
			if result.Status != engine.StatusSuccess {
				return fmt.Errorf("%s", result.Message)
			}
			return printResult(result.Violation)
		},
	}

	cmd.Flags().StringVar(&resolvedBy, "by", "", "who resolved the violation")
	cmd.Flags().StringVar(&notes, "notes", "", "resolution notes")
	_ = cmd.MarkFlagRequired("by")

	return cmd
}
