package driving

import (
	"context"

	"github.com/viseme-labs/talksync/internal/core/domain"
)

// PipelineService manages rendering jobs end to end.
type PipelineService interface {
	// Start validates the descriptor, admits a job and begins running
	// its pipeline. Returns as soon as the job is admitted.
	Start(ctx context.Context, desc domain.JobDescriptor) (*JobHandle, error)

	// Cancel requests cancellation of a running job. Cancelling a job
	// already in a terminal state is a no-op, not an error.
	Cancel(ctx context.Context, jobID string) error

	// Status returns the current state and live counters for a job.
	Status(ctx context.Context, jobID string) (*JobStatus, error)

	// Wait blocks until the job reaches a terminal state and returns
	// its final record.
	Wait(ctx context.Context, jobID string) (*domain.Job, error)

	// List returns all known jobs, newest first.
	List(ctx context.Context) ([]domain.Job, error)

	// EngineHealth checks that the configured inference engine is
	// reachable and ready.
	EngineHealth(ctx context.Context) error
}

// JobHandle identifies an admitted job.
type JobHandle struct {
	// ID is the job identifier.
	ID string

	// OutputPath is the resolved sink destination.
	OutputPath string

	// Done is closed when the job reaches a terminal state.
	Done <-chan struct{}
}

// JobStatus is a point-in-time view of a job.
type JobStatus struct {
	// JobID identifies the job.
	JobID string

	// State is the current lifecycle state.
	State domain.JobState

	// Mode is the job's processing mode.
	Mode domain.Mode

	// Stats holds the live pipeline counters. Zero-valued for jobs
	// that are no longer active.
	Stats domain.PipelineStats

	// ErrorKind classifies the fatal error for failed jobs.
	ErrorKind string

	// Error is the fatal error message for failed jobs.
	Error string
}

// WatchService runs the spool-directory intake loop.
type WatchService interface {
	// Start begins watching the spool directory and submitting jobs.
	// Blocks until the context is cancelled or an error occurs.
	Start(ctx context.Context) error

	// Stop gracefully stops the watcher.
	Stop() error
}
