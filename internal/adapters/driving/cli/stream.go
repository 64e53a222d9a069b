package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/viseme-labs/talksync/internal/core/domain"
)

var streamCmd = &cobra.Command{
	Use:   "stream [audio] [portrait]",
	Short: "Render a clip online, streaming frames as they render",
	Long: `Renders a talking-head clip in online mode: partial batches flush
after a bounded wait and frames are written unbuffered as soon as they
are in order. Use "-o -" to stream to stdout.

Interrupting the stream abandons in-flight work immediately.`,
	Args: cobra.ExactArgs(2),
	RunE: runStream,
}

var streamOutput string

func init() {
	streamCmd.Flags().StringVarP(&streamOutput, "output", "o", "-", "Output destination, - for stdout")
	rootCmd.AddCommand(streamCmd)
}

func runStream(cmd *cobra.Command, args []string) error {
	if pipelineService == nil {
		return errors.New("pipeline service not configured")
	}

	ctx := context.Background()

	handle, err := pipelineService.Start(ctx, domain.JobDescriptor{
		Mode:       domain.ModeOnline,
		AudioPath:  args[0],
		SourcePath: args[1],
		OutputPath: streamOutput,
	})
	if err != nil {
		return fmt.Errorf("failed to start job: %w", err)
	}

	// Progress chatter would corrupt a stdout stream; keep it on stderr.
	cmd.PrintErrf("Streaming job %s -> %s\n", handle.ID, handle.OutputPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cmd.PrintErrln("Interrupted, cancelling...")
		//nolint:errcheck // best effort on shutdown
		pipelineService.Cancel(ctx, handle.ID)
	}()

	job, err := pipelineService.Wait(ctx, handle.ID)
	if err != nil {
		return fmt.Errorf("stream failed: %w", err)
	}

	switch job.State {
	case domain.JobStateCompleted:
		cmd.PrintErrf("Done: %d frames", job.FramesEmitted)
		if job.SegmentErrors > 0 {
			cmd.PrintErrf(" (%d substituted or marked)", job.SegmentErrors)
		}
		cmd.PrintErrln()
	case domain.JobStateCancelled:
		cmd.PrintErrf("Cancelled after %d frames.\n", job.FramesEmitted)
	case domain.JobStateFailed:
		return fmt.Errorf("job failed (%s): %s", job.ErrorKind, job.Error)
	}

	return nil
}
