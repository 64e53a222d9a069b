package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/viseme-labs/talksync/internal/core/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Show job status or engine health",
	Long: `With a job ID, shows that job's state and live counters.
Without arguments, checks that the inference engine is reachable.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if pipelineService == nil {
		return errors.New("pipeline service not configured")
	}

	ctx := context.Background()

	if len(args) == 0 {
		if err := pipelineService.EngineHealth(ctx); err != nil {
			return fmt.Errorf("engine health check failed: %w", err)
		}
		cmd.Println("Engine is reachable and ready.")
		if storePath != "" {
			cmd.Printf("Job store: %s\n", storePath)
		}
		return nil
	}

	status, err := pipelineService.Status(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	cmd.Printf("Job %s\n", status.JobID)
	cmd.Printf("  State: %s (%s)\n", status.State, status.Mode)
	cmd.Printf("  Segments: %d in, %d batches dispatched, %d in flight\n",
		status.Stats.SegmentsIn, status.Stats.BatchesDispatched, status.Stats.InFlight)
	cmd.Printf("  Frames: %d emitted (watermark %d)\n",
		status.Stats.FramesEmitted, status.Stats.Watermark)
	if status.Stats.SegmentErrors > 0 {
		cmd.Printf("  Segment errors: %d (%d retries)\n", status.Stats.SegmentErrors, status.Stats.Retries)
	}
	if status.State == domain.JobStateFailed {
		cmd.Printf("  Error: [%s] %s\n", status.ErrorKind, status.Error)
	}

	return nil
}
