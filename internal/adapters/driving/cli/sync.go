package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gen-mind/echo-mind/internal/core/ports/driving"
)

var syncCmd = &cobra.Command{
	Use:   "sync [connector-id]",
	Short: "Synchronise documents from connectors",
	Long: `Runs one sync pass for configured connectors.
If a connector ID is provided, only that connector is synchronised.
Otherwise, all connectors are synchronised. A pass resumes from the
connector's checkpoint and leaves an updated checkpoint behind, so
interrupted syncs pick up where they stopped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

//nolint:gochecknoinits // Cobra command registration
func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	if syncOrchestrator == nil {
		return errors.New("sync service not configured")
	}

	ctx := context.Background()

	if len(args) > 0 {
		connectorID := args[0]
		cmd.Printf("Synchronising connector: %s...\n", connectorID)

		if err := syncWithProgress(ctx, cmd, syncOrchestrator, connectorID); err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}

		cmd.Printf("Connector %s synchronised successfully.\n", connectorID)
		return nil
	}

	cmd.Println("Synchronising all connectors...")

	if err := syncOrchestrator.SyncAll(ctx); err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	cmd.Println("All connectors synchronised successfully.")
	return nil
}

// syncWithProgress runs sync while displaying progress updates.
func syncWithProgress(
	ctx context.Context,
	cmd *cobra.Command,
	syncOrch driving.SyncOrchestrator,
	connectorID string,
) error {
	// Start sync in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- syncOrch.Sync(ctx, connectorID)
	}()

	// Poll status every 500ms
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	lastCount := 0
	for {
		select {
		case err := <-errCh:
			// Print final status (ignore status error - best effort)
			status, statusErr := syncOrch.Status(ctx, connectorID)
			if statusErr == nil && status != nil && status.DocumentsProcessed > 0 {
				cmd.Printf("\rProcessed %d documents (%d errors)\n",
					status.DocumentsProcessed, status.ErrorCount)
			}
			return err
		case <-ticker.C:
			// Check progress (ignore status error - best effort)
			status, statusErr := syncOrch.Status(ctx, connectorID)
			if statusErr == nil && status != nil && status.DocumentsProcessed > lastCount {
				cmd.Printf("\rProcessing... %d documents", status.DocumentsProcessed)
				lastCount = status.DocumentsProcessed
			}
		}
	}
}
