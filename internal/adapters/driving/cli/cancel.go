package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel [job-id]",
	Short: "Cancel a running job",
	Long: `Requests cancellation of a running job. An offline job drains work
already dispatched to the engine so the partial output stays valid;
an online job stops immediately. Cancelling a finished job is a no-op.`,
	Args: cobra.ExactArgs(1),
	RunE: runCancel,
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}

func runCancel(cmd *cobra.Command, args []string) error {
	if pipelineService == nil {
		return errors.New("pipeline service not configured")
	}

	jobID := args[0]
	if err := pipelineService.Cancel(context.Background(), jobID); err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}

	cmd.Printf("Cancellation requested for job %s.\n", jobID)
	return nil
}
