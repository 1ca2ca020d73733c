package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// DefaultConfigPath returns the path hydra reads its configuration from
// when --config is not given.
func DefaultConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "hydra", "config.yaml")
}

var rootCmd = &cobra.Command{
	Use:   "hydra",
	Short: "Multi-headed agent orchestrator",
	Long: `Hydra answers a task by attacking it from several directions at once.

A planner decomposes the task into subquestions, a pool of agents
executes them concurrently under per-agent timeouts, and a synthesizer
merges the results into one answer. Individual agent failures degrade
the answer instead of aborting the run.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
