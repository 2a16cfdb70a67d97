// Package main implements the orchestd CLI: pipeline runs, dependency
// validation, and catalog inspection.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// configPath overrides the default config file location.
	configPath string
	// version information, set at build time.
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "orchestd",
	Short: "Agent pipeline orchestrator",
	Long: `orchestd drives a multi-phase agent pipeline: dependency-ordered agent
execution with checkpointing, reward accounting, and a forensic verification
gate between phases.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.config/orchestd/config.yaml)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(validateCmd)
}
