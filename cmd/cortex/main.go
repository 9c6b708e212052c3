// Package main implements the cortex CLI: a trust-scored cognition
// pipeline over specialist outputs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cortex/internal/config"
	"cortex/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "cortex",
	Short: "cortex - trust-scored cognition pipeline",
	Long: `cortex ingests standardized specialist outputs, lints them for
contradictions, checks them against a constitutional rule set, arbitrates
competing proposals, and persists approved results into a trust-ranked,
garbage-collected memory store.

Every governance decision and memory mutation lands in an append-only
audit ledger.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		if err := logging.Initialize(cfg.Logging.Dir, level); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "cortex.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(integrateCmd)
	rootCmd.AddCommand(deliberateCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(trustCmd)
	rootCmd.AddCommand(gcCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(auditCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
