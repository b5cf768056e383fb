package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "aegis",
	Short: "Aegis - content moderation orchestration service",
	Long: `Aegis orchestrates image moderation across a fleet of model backends.

It accepts image uploads over HTTP and produces moderation decisions by:
  - Routing each request to a backend version per the rollout policy
  - Batching calls toward batch-capable model servers
  - Aggregating classifier, safety, and OCR factors into one verdict
  - Recording every decision to a durable audit store`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
