// Package main is nexuscore's command-line entry point: a local AI
// collaborator service built around the Orchestrator-Brainstem-Governance
// triad. Grounded on the teacher's cmd/nexus main.go root-command split.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nexuscore",
		Short: "nexuscore - a locally-hosted AI collaborator service",
		Long: `nexuscore runs the Orchestrator-Brainstem-Governance triad: a task
executor that routes each turn through a model router, executes governed
tools, and adapts its operational mode to host resource pressure.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildChatCmd(),
		buildSessionCmd(),
		buildTelemetryCmd(),
	)

	return rootCmd
}
