package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gen-mind/echo-mind/internal/core/domain"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect and manage connector checkpoints",
}

var checkpointShowCmd = &cobra.Command{
	Use:   "show <connector-id>",
	Short: "Print a connector's checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheckpointShow,
}

var checkpointResetCmd = &cobra.Command{
	Use:   "reset <connector-id>",
	Short: "Delete a connector's checkpoint, forcing a full resync",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheckpointReset,
}

//nolint:gochecknoinits // Cobra command registration
func init() {
	checkpointCmd.AddCommand(checkpointShowCmd)
	checkpointCmd.AddCommand(checkpointResetCmd)
	rootCmd.AddCommand(checkpointCmd)
}

func runCheckpointShow(cmd *cobra.Command, args []string) error {
	if checkpointStore == nil {
		return errors.New("checkpoint store not configured")
	}

	data, err := checkpointStore.Get(context.Background(), args[0])
	if errors.Is(err, domain.ErrNotFound) {
		cmd.Printf("No checkpoint stored for connector %s.\n", args[0])
		return nil
	}
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		// Not valid JSON: print it raw.
		cmd.Println(string(data))
		return nil
	}
	cmd.Println(pretty.String())
	return nil
}

func runCheckpointReset(cmd *cobra.Command, args []string) error {
	if checkpointStore == nil {
		return errors.New("checkpoint store not configured")
	}

	if err := checkpointStore.Delete(context.Background(), args[0]); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}

	cmd.Printf("Checkpoint for connector %s cleared. The next sync starts from scratch.\n", args[0])
	return nil
}
