package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool

	// appVersion is injected by Execute for telemetry identification.
	appVersion string
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	appVersion = version
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "snowgov",
		Short: "Snowgov - Clone Governance Engine",
		Long: `Snowgov evaluates warehouse clone operations against governance
policies and keeps a tamper-evident record of what happened.

Features:
  - Declarative policies for environment, quota, schedule, and data rules
  - Post-hoc evaluation with blocking verdicts
  - Append-only audit and access trails
  - Violation lifecycle with resolution tracking
  - Scheduled compliance scans and retention purges`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newPolicyCommand())
	rootCmd.AddCommand(newEvaluateCommand())
	rootCmd.AddCommand(newRecordCommand())
	rootCmd.AddCommand(newAccessCommand())
	rootCmd.AddCommand(newViolationCommand())
	rootCmd.AddCommand(newAuditCommand())
	rootCmd.AddCommand(newScanCommand())
	rootCmd.AddCommand(newPurgeCommand())
	rootCmd.AddCommand(newServeCommand())

	return rootCmd
}
