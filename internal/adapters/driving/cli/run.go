package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/viseme-labs/talksync/internal/core/domain"
	"github.com/viseme-labs/talksync/internal/core/ports/driving"
)

var runCmd = &cobra.Command{
	Use:   "run [audio] [portrait]",
	Short: "Render a clip offline",
	Long: `Renders a talking-head clip from an audio file and a portrait image.
The job runs offline: batches fill before dispatch and the result is
written as a buffered output file.`,
	Args: cobra.ExactArgs(2),
	RunE: runRun,
}

// Flags for the run command.
var (
	runOutput    string
	runGapPolicy string
)

func init() {
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Output file path (default: generated under the output directory)")
	runCmd.Flags().StringVar(&runGapPolicy, "gap-policy", "", "How failed segments are filled: marker or substitute")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	if pipelineService == nil {
		return errors.New("pipeline service not configured")
	}

	ctx := context.Background()

	desc := domain.JobDescriptor{
		Mode:       domain.ModeOffline,
		AudioPath:  args[0],
		SourcePath: args[1],
		OutputPath: runOutput,
	}
	if runGapPolicy != "" {
		desc.Config = domain.DefaultPipelineConfig(domain.ModeOffline)
		desc.Config.GapPolicy = domain.GapPolicy(runGapPolicy)
	}

	handle, err := pipelineService.Start(ctx, desc)
	if err != nil {
		return fmt.Errorf("failed to start job: %w", err)
	}

	cmd.Printf("Rendering %s -> %s (job %s)\n", desc.AudioPath, handle.OutputPath, handle.ID)

	job, err := waitWithProgress(ctx, cmd, pipelineService, handle.ID)
	if err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	switch job.State {
	case domain.JobStateCompleted:
		cmd.Printf("Done: %d frames", job.FramesEmitted)
		if job.SegmentErrors > 0 {
			cmd.Printf(" (%d segment errors)", job.SegmentErrors)
		}
		cmd.Println()
	case domain.JobStateCancelled:
		cmd.Printf("Cancelled after %d frames.\n", job.FramesEmitted)
	case domain.JobStateFailed:
		return fmt.Errorf("job failed (%s): %s", job.ErrorKind, job.Error)
	}

	return nil
}

// waitWithProgress blocks until the job finishes while displaying
// progress updates.
func waitWithProgress(
	ctx context.Context,
	cmd *cobra.Command,
	pipeline driving.PipelineService,
	jobID string,
) (*domain.Job, error) {
	type result struct {
		job *domain.Job
		err error
	}
	resCh := make(chan result, 1)
	go func() {
		job, err := pipeline.Wait(ctx, jobID)
		resCh <- result{job, err}
	}()

	// Rewrite the progress line only on a real terminal; log plain
	// lines when output is redirected.
	interactive := term.IsTerminal(int(os.Stdout.Fd()))

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var lastFrames int64
	for {
		select {
		case res := <-resCh:
			if interactive && lastFrames > 0 {
				cmd.Println()
			}
			return res.job, res.err
		case <-ticker.C:
			status, err := pipeline.Status(ctx, jobID)
			if err != nil || status.Stats.FramesEmitted <= lastFrames {
				continue
			}
			lastFrames = status.Stats.FramesEmitted
			if interactive {
				cmd.Printf("\rRendering... %d frames", lastFrames)
			} else {
				cmd.Printf("Rendering... %d frames\n", lastFrames)
			}
		}
	}
}
