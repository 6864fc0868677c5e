package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// configPath is a persistent flag shared by every subcommand: the
// directory config.Load searches for config.yaml (in addition to its
// own built-in defaults and VELOCITY_MATCH_* environment overrides).
var configPath string

// NewRootCmd builds the velocity-match root command and wires its
// three subcommands: run, recover, snapshot.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "velocity-match",
		Short: "Single-instrument limit order matching engine",
		Long: `velocity-match runs a price-time-priority matching core with a
write-ahead log, periodic snapshots, and deterministic crash recovery.

This CLI only constructs and starts the core; it contains no matching
logic of its own.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "directory containing config.yaml (optional)")

	root.AddCommand(newRunCmd())
	root.AddCommand(newRecoverCmd())
	root.AddCommand(newSnapshotCmd())
	return root
}

func wrapf(action string, err error) error {
	return fmt.Errorf("velocity-match: %s: %w", action, err)
}
