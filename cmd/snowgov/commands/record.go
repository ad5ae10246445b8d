package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/engine"
	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/governance"
)

func newRecordCommand() *cobra.Command {
	var (
		operation      string
		actor          string
		role           string
		scope          string
		resourceID     string
		resourceName   string
		resourceKind   string
		sourceSchema   string
		sourceName     string
		classification string
		failed         bool
		errMsg         string
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a clone operation",
		Long: `Record a clone operation that already happened and evaluate it
against the active policies.

The operation itself is performed elsewhere; this command only renders
the governance verdict and appends the audit entry. A BLOCK verdict
means the caller must roll the operation back; the exit code is
non-zero so pipelines can react.`,
		Example: `  # Record a successful clone creation
  snowgov record --operation CREATE --actor alice --role ANALYST \
    --scope DEV --resource-id clone-1 --resource-name orders_clone \
    --resource-kind TABLE --source-schema SALES --source-name ORDERS

  # Record a failed creation attempt
  snowgov record --operation CREATE --actor alice --scope DEV \
    --resource-id clone-2 --resource-name events_clone \
    --failed --error "insufficient privileges"

  # Record a clone deletion
  snowgov record --operation DELETE --actor alice --scope DEV \
    --resource-id clone-1 --resource-name orders_clone`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close(cmd.Context())

			result := app.recorder.RecordOperation(cmd.Context(), engine.OperationRequest{
				Operation:      governance.OperationKind(operation),
				Actor:          actor,
				ActorRole:      role,
				Scope:          scope,
				ResourceID:     resourceID,
				ResourceName:   resourceName,
				ResourceKind:   resourceKind,
				SourceSchema:   sourceSchema,
				SourceName:     sourceName,
				Classification: classification,
				Success:        !failed,
				Error:          errMsg,
			})

			if err := printResult(result); err != nil {
				return err
			}
			if result.Blocked {
				return fmt.Errorf("operation blocked by policy, roll back %s", resourceID)
			}
			if !result.Recorded {
				return fmt.Errorf("operation could not be recorded")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&operation, "operation", "CREATE", "operation kind (CREATE, DELETE)")
	cmd.Flags().StringVar(&actor, "actor", "", "user who performed the operation")
	cmd.Flags().StringVar(&role, "role", "", "actor's role at execution time")
	cmd.Flags().StringVar(&scope, "scope", "", "environment scope (e.g. DEV, PROD)")
	cmd.Flags().StringVar(&resourceID, "resource-id", "", "clone resource identifier")
	cmd.Flags().StringVar(&resourceName, "resource-name", "", "clone resource name")
	cmd.Flags().StringVar(&resourceKind, "resource-kind", "", "resource kind (TABLE, SCHEMA, DATABASE)")
	cmd.Flags().StringVar(&sourceSchema, "source-schema", "", "schema the clone was taken from")
	cmd.Flags().StringVar(&sourceName, "source-name", "", "object the clone was taken from")
	cmd.Flags().StringVar(&classification, "classification", "", "data classification of the source")
	cmd.Flags().BoolVar(&failed, "failed", false, "the operation failed in the warehouse")
	cmd.Flags().StringVar(&errMsg, "error", "", "failure message from the warehouse")
	_ = cmd.MarkFlagRequired("actor")
	_ = cmd.MarkFlagRequired("resource-id")

	return cmd
}
