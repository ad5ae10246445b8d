package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/engine"
	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/stores"
)

func newPolicyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Manage governance policies",
		Long: `Create, inspect, and manage governance policies.

Policies are evaluated against clone operations at recording time. Each
policy has a kind that selects its evaluation semantics, an optional
environment scope, a severity, and a kind-specific definition.`,
	}

	cmd.AddCommand(newPolicyCreateCommand())
	cmd.AddCommand(newPolicyListCommand())
	cmd.AddCommand(newPolicyGetCommand())
	cmd.AddCommand(newPolicyToggleCommand())
	cmd.AddCommand(newPolicyDeleteCommand())
	cmd.AddCommand(newPolicySeedCommand())

	return cmd
}

func newPolicyCreateCommand() *cobra.Command {
	var (
		name           string
		kind           string
		scope          string
		severity       string
		description    string
		definition     string
		definitionFile string
		inactive       bool
		actor          string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a governance policy",
		Example: `  # Block table clones in production
  snowgov policy create --name no-prod-table-clones \
    --kind ENVIRONMENT_RESTRICTION --scope PROD --severity CRITICAL \
    --definition '{"action":"BLOCK","restricted_kinds":["TABLE"]}'

  # Cap clones per user, logging only
  snowgov policy create --name clone-quota --kind USER_QUOTA \
    --definition '{"action":"LOG","max_resources":10}'

  # Load the definition from a file
  snowgov policy create --name pii-guard --kind SENSITIVE_DATA \
    --definition-file pii-guard.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := []byte(definition)
			if definitionFile != "" {
				data, err := os.ReadFile(definitionFile)
				if err != nil {
					return fmt.Errorf("failed to read definition file: %w", err)
				}
				raw = data
			}

			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close(cmd.Context())

			active := !inactive
			result, err := app.service.CreatePolicy(cmd.Context(), engine.PolicyInput{
				Name:        name,
				Kind:        kind,
				Scope:       scope,
				Severity:    severity,
				Active:      &active,
				Description: description,
				Definition:  json.RawMessage(raw),
			}, actor)
			if err != nil {
				return err
			}
			if result.Status != engine.StatusSuccess {
				return fmt.Errorf("%s", result.Message)
			}
			return printResult(result.Policy)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "unique policy name")
	cmd.Flags().StringVar(&kind, "kind", "", "policy kind (e.g. ENVIRONMENT_RESTRICTION, USER_QUOTA)")
	cmd.Flags().StringVar(&scope, "scope", "", "environment scope (empty applies everywhere)")
	cmd.Flags().StringVar(&severity, "severity", "", "severity (INFO, WARNING, ERROR, CRITICAL)")
	cmd.Flags().StringVar(&description, "description", "", "human-readable description")
	cmd.Flags().StringVar(&definition, "definition", "", "kind-specific definition as JSON")
	cmd.Flags().StringVar(&definitionFile, "definition-file", "", "file holding the definition JSON")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "create the policy deactivated")
	cmd.Flags().StringVar(&actor, "actor", "cli", "actor recorded in the audit trail")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("kind")

	return cmd
}

func newPolicyListCommand() *cobra.Command {
	var (
		kind       string
		scope      string
		activeOnly bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List governance policies",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close(cmd.Context())

			filter := stores.PolicyFilter{Limit: limit}
			if kind != "" {
				filter.Kind = &kind
			}
			if scope != "" {
				filter.Scope = &scope
			}
			if activeOnly {
				active := true
				filter.Active = &active
			}

			policies, err := app.service.ListPolicies(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printResult(policies)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "filter by policy kind")
	cmd.Flags().StringVar(&scope, "scope", "", "filter by environment scope")
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only active policies")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of policies to return")

	return cmd
}

func newPolicyGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <policy-id>",
		Short: "Show one policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close(cmd.Context())

			result, err := app.service.GetPolicy(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if result.Status != engine.StatusSuccess {
				return fmt.Errorf("%s", result.Message)
			}
			return printResult(result.Policy)
		},
	}
}

func newPolicyToggleCommand() *cobra.Command {
	var (
		off   bool
		actor string
	)

	cmd := &cobra.Command{
		Use:   "toggle <policy-id>",
		Short: "Activate or deactivate a policy",
		Long: `Activate or deactivate a policy without deleting it.

Deactivated policies keep their configuration and history but no longer
participate in evaluation or scanning.`,
		Example: `  # Reactivate a policy
  snowgov policy toggle 4f8a...

  # Take a policy out of evaluation
  snowgov policy toggle 4f8a... --off`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close(cmd.Context())

			result, err := app.service.SetPolicyActive(cmd.Context(), args[0], !off, actor)
			if err != nil {
				return err
			}
			if result.Status != engine.StatusSuccess {
				return fmt.Errorf("%s", result.Message)
			}
			return printResult(result.Policy)
		},
	}

	cmd.Flags().BoolVar(&off, "off", false, "deactivate instead of activate")
	cmd.Flags().StringVar(&actor, "actor", "cli", "actor recorded in the audit trail")

	return cmd
}

func newPolicyDeleteCommand() *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "delete <policy-id>",
		Short: "Delete a policy",
		Long: `Delete a policy permanently.

Violations already recorded against the policy are kept; they reference
the policy by ID and name and remain meaningful on their own.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close(cmd.Context())

			result, err := app.service.DeletePolicy(cmd.Context(), args[0], actor)
			if err != nil {
				return err
			}
			if result.Status != engine.StatusSuccess {
				return fmt.Errorf("%s", result.Message)
			}
			return printResult(result.Policy)
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "cli", "actor recorded in the audit trail")

	return cmd
}

func newPolicySeedCommand() *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "seed [path...]",
		Short: "Load policies from seed files",
		Long: `Load policy seed documents from YAML files or directories and upsert
them by name. Without arguments the seed paths from the configuration
file are used.`,
		Example: `  # Seed from the configured paths
  snowgov policy seed

  # Seed from an explicit directory
  snowgov policy seed ./policies/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close(cmd.Context())

			paths := args
			if len(paths) == 0 {
				paths = app.cfg.SeedPaths
			}
			if len(paths) == 0 {
				return fmt.Errorf("no seed paths given and none configured")
			}

			result, err := app.service.SeedPolicies(cmd.Context(), paths, actor)
			if err != nil {
				return err
			}
			return printResult(result)
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "seeder", "actor recorded in the audit trail")

	return cmd
}
