package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/viseme-labs/talksync/internal/core/domain"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List rendering jobs",
	Long:  `Lists all known rendering jobs, newest first.`,
	RunE:  runJobs,
}

var jobsState string

func init() {
	jobsCmd.Flags().StringVar(&jobsState, "state", "", "Only show jobs in this state")
	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, _ []string) error {
	if pipelineService == nil {
		return errors.New("pipeline service not configured")
	}

	jobs, err := pipelineService.List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	if jobsState != "" {
		filtered := jobs[:0]
		for _, job := range jobs {
			if string(job.State) == jobsState {
				filtered = append(filtered, job)
			}
		}
		jobs = filtered
	}

	if len(jobs) == 0 {
		cmd.Println("No jobs found.")
		return nil
	}

	for i := range jobs {
		job := &jobs[i]
		cmd.Printf("  %s\n", job.ID)
		cmd.Printf("    State: %s (%s)\n", job.State, job.Mode)
		cmd.Printf("    Audio: %s\n", job.Descriptor.AudioPath)
		if job.Descriptor.OutputPath != "" {
			cmd.Printf("    Output: %s%s\n", job.Descriptor.OutputPath, outputSize(job.Descriptor.OutputPath))
		}
		if job.FramesEmitted > 0 || job.State.Terminal() {
			cmd.Printf("    Frames: %d", job.FramesEmitted)
			if job.SegmentErrors > 0 {
				cmd.Printf(" (%d segment errors)", job.SegmentErrors)
			}
			cmd.Println()
		}
		if job.State == domain.JobStateFailed {
			cmd.Printf("    Error: [%s] %s\n", job.ErrorKind, job.Error)
		}
		cmd.Printf("    Created: %s\n", job.CreatedAt.Format("2006-01-02 15:04:05"))
		cmd.Println()
	}

	cmd.Printf("Total: %d jobs\n", len(jobs))
	return nil
}

// outputSize annotates an output path with its on-disk size, empty when
// the file is absent or a stream destination.
func outputSize(path string) string {
	if path == "-" {
		return ""
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ""
	}
	return fmt.Sprintf(" (%s)", humanize.Bytes(uint64(info.Size())))
}
