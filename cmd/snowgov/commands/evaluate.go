package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/engine"
	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/governance"
)

func newEvaluateCommand() *cobra.Command {
	var (
		actor          string
		role           string
		scope          string
		resourceID     string
		resourceName   string
		resourceKind   string
		sourceSchema   string
		sourceName     string
		classification string
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Pre-check a clone operation against active policies",
		Long: `Evaluate a hypothetical clone creation against the active policies
without recording anything.

Use this before an irreversible operation to see whether it would be
blocked. Nothing is written: no audit entry, no violations, no registry
update. The exit code is non-zero on a blocking verdict.`,
		Example: `  # Would this clone be allowed?
  snowgov evaluate --actor alice --role ANALYST --scope PROD \
    --resource-id clone-1 --resource-name orders_clone --resource-kind TABLE`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close(cmd.Context())

			verdict, err := app.recorder.Evaluate(cmd.Context(), engine.OperationRequest{
				Operation:      governance.OpCreate,
				Actor:          actor,
				ActorRole:      role,
				Scope:          scope,
				ResourceID:     resourceID,
				ResourceName:   resourceName,
				ResourceKind:   resourceKind,
				SourceSchema:   sourceSchema,
				SourceName:     sourceName,
				Classification: classification,
			})
			if err != nil {
				return err
			}

			if err := printResult(verdict); err != nil {
				return err
			}
			if verdict.Block {
				return fmt.Errorf("operation would be blocked by policy")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "user who would perform the operation")
	cmd.Flags().StringVar(&role, "role", "", "actor's role")
	cmd.Flags().StringVar(&scope, "scope", "", "environment scope (e.g. DEV, PROD)")
	cmd.Flags().StringVar(&resourceID, "resource-id", "", "clone resource identifier")
	cmd.Flags().StringVar(&resourceName, "resource-name", "", "clone resource name")
	cmd.Flags().StringVar(&resourceKind, "resource-kind", "", "resource kind (TABLE, SCHEMA, DATABASE)")
	cmd.Flags().StringVar(&sourceSchema, "source-schema", "", "schema the clone would be taken from")
	cmd.Flags().StringVar(&sourceName, "source-name", "", "object the clone would be taken from")
	cmd.Flags().StringVar(&classification, "classification", "", "data classification of the source")
	_ = cmd.MarkFlagRequired("actor")

	return cmd
}
