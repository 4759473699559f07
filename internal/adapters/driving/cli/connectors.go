package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var connectorsCmd = &cobra.Command{
	Use:   "connectors",
	Short: "List configured connectors",
	RunE:  runConnectors,
}

var runsCmd = &cobra.Command{
	Use:   "runs <connector-id>",
	Short: "Show sync run history for a connector",
	Args:  cobra.ExactArgs(1),
	RunE:  runRuns,
}

//nolint:gochecknoinits // Cobra command registration
func init() {
	rootCmd.AddCommand(connectorsCmd)
	rootCmd.AddCommand(runsCmd)
}

func runConnectors(cmd *cobra.Command, _ []string) error {
	if connectorStore == nil {
		return errors.New("connector store not configured")
	}

	connectors, err := connectorStore.List(context.Background())
	if err != nil {
		return fmt.Errorf("list connectors: %w", err)
	}

	if len(connectors) == 0 {
		cmd.Println("No connectors configured.")
		return nil
	}

	for _, c := range connectors {
		cmd.Printf("%s\t%s\t%s\n", c.ID, c.Provider, c.Name)
	}
	return nil
}

func runRuns(cmd *cobra.Command, args []string) error {
	if runStore == nil {
		return errors.New("run store not configured")
	}

	runs, err := runStore.ListByConnector(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	if len(runs) == 0 {
		cmd.Println("No runs recorded.")
		return nil
	}

	for _, run := range runs {
		state := "running"
		switch {
		case run.Failure != "":
			state = "failed: " + run.Failure
		case run.FinishedAt != nil && run.HasMore:
			state = "partial"
		case run.FinishedAt != nil:
			state = "complete"
		}
		cmd.Printf("%s\t%s\t%d docs\t%d errors\t%s\n",
			run.StartedAt.Format("2006-01-02 15:04:05"), run.ID, run.Documents, run.Errors, state)
	}
	return nil
}
