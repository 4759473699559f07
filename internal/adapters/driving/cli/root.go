// Package cli implements the echomind command line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/gen-mind/echo-mind/internal/core/ports/driven"
	"github.com/gen-mind/echo-mind/internal/core/ports/driving"
	"github.com/gen-mind/echo-mind/internal/logger"
)

// Injected services. Set by Execute before any command runs.
var (
	version          = "dev"
	syncOrchestrator driving.SyncOrchestrator
	connectorStore   driven.ConnectorStore
	checkpointStore  driven.CheckpointStore
	runStore         driven.RunStore
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "echomind",
	Short: "Resumable sync engine for external content systems",
	Long: `EchoMind synchronises documents from external systems such as Google
Drive, Microsoft Graph, Gmail, Google Calendar and Google Contacts into a
storage sink, tracking progress in per-connector checkpoints so interrupted
runs resume where they left off.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
	SilenceUsage: true,
}

//nolint:gochecknoinits // Cobra command registration
func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Deps carries the services the commands need.
type Deps struct {
	Version          string
	SyncOrchestrator driving.SyncOrchestrator
	ConnectorStore   driven.ConnectorStore
	CheckpointStore  driven.CheckpointStore
	RunStore         driven.RunStore
}

// Execute wires the dependencies and runs the CLI.
func Execute(deps Deps) error {
	if deps.Version != "" {
		version = deps.Version
	}
	syncOrchestrator = deps.SyncOrchestrator
	connectorStore = deps.ConnectorStore
	checkpointStore = deps.CheckpointStore
	runStore = deps.RunStore

	return rootCmd.Execute()
}
