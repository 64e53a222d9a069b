package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/viseme-labs/talksync/internal/core/domain"
	"github.com/viseme-labs/talksync/internal/core/ports/driven"
	"github.com/viseme-labs/talksync/internal/core/ports/driving"
	"github.com/viseme-labs/talksync/internal/logger"
	"github.com/viseme-labs/talksync/internal/pipeline"
)

// Ensure PipelineController implements the interface.
var _ driving.PipelineService = (*PipelineController)(nil)

// PipelineController owns job lifecycles: it admits jobs, wires a
// pipeline per job, tracks live status and records terminal results.
type PipelineController struct {
	jobStore  driven.JobStore
	engine    driven.InferenceEngine
	media     driven.MediaOpener
	sinks     driven.SinkOpener
	outputDir string

	// Status tracking
	mu         sync.RWMutex
	activeJobs map[string]*activeJob
}

// activeJob is the in-process state of a running pipeline.
type activeJob struct {
	pipe *pipeline.Pipeline
	done chan struct{}
}

// NewPipelineController creates a pipeline controller. outputDir is
// where generated output files land when a descriptor names no
// destination.
func NewPipelineController(
	jobStore driven.JobStore,
	engine driven.InferenceEngine,
	media driven.MediaOpener,
	sinks driven.SinkOpener,
	outputDir string,
) *PipelineController {
	return &PipelineController{
		jobStore:   jobStore,
		engine:     engine,
		media:      media,
		sinks:      sinks,
		outputDir:  outputDir,
		activeJobs: make(map[string]*activeJob),
	}
}

// Start validates the descriptor, admits a job and begins running its
// pipeline. Returns as soon as the job is admitted.
func (c *PipelineController) Start(ctx context.Context, desc domain.JobDescriptor) (*driving.JobHandle, error) {
	// An empty config selects the mode defaults.
	if desc.Config == (domain.PipelineConfig{}) {
		desc.Config = domain.DefaultPipelineConfig(desc.Mode)
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if c.engine == nil {
		return nil, domain.ErrEngineUnavailable
	}

	jobID := uuid.NewString()
	if desc.OutputPath == "" {
		desc.OutputPath = filepath.Join(c.outputDir, jobID+".tsav")
	}

	source, err := c.media.OpenSource(ctx, desc.AudioPath, desc.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}

	sink, err := c.sinks.OpenSink(ctx, desc.OutputPath, desc.Mode)
	if err != nil {
		source.Close()
		return nil, fmt.Errorf("open sink: %w", err)
	}

	job := &domain.Job{
		ID:         jobID,
		Mode:       desc.Mode,
		Descriptor: desc,
		State:      domain.JobStatePending,
		CreatedAt:  time.Now(),
	}
	if err := c.jobStore.Save(ctx, job); err != nil {
		source.Close()
		sink.Close()
		return nil, fmt.Errorf("save job: %w", err)
	}

	aj := &activeJob{
		pipe: pipeline.New(jobID, desc.Mode, desc.Config, source, c.engine, sink),
		done: make(chan struct{}),
	}

	c.mu.Lock()
	c.activeJobs[jobID] = aj
	c.mu.Unlock()

	logger.Info("Job %s admitted (%s, output %s)", jobID, desc.Mode, desc.OutputPath)
	go c.runJob(job, aj, source, sink)

	return &driving.JobHandle{
		ID:         jobID,
		OutputPath: desc.OutputPath,
		Done:       aj.done,
	}, nil
}

// runJob drives one job's pipeline to a terminal state.
func (c *PipelineController) runJob(job *domain.Job, aj *activeJob, source driven.MediaSource, sink driven.FrameSink) {
	defer close(aj.done)

	// Job execution outlives the Start call; cancellation goes through
	// the pipeline, not a context.
	ctx := context.Background()

	c.transition(ctx, job, domain.JobStateRunning)

	err := aj.pipe.Run(ctx)

	if closeErr := source.Close(); closeErr != nil {
		logger.Warn("Job %s: closing source: %v", job.ID, closeErr)
	}
	if closeErr := sink.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("%w: close: %v", domain.ErrOutput, closeErr)
	}

	stats := aj.pipe.Stats()
	job.FramesEmitted = stats.FramesEmitted
	job.SegmentErrors = stats.SegmentErrors

	switch {
	case err == nil:
		c.transition(ctx, job, domain.JobStateCompleted)
		logger.Info("Job %s completed: %d frames, %d segment errors",
			job.ID, job.FramesEmitted, job.SegmentErrors)
	case errors.Is(err, context.Canceled):
		c.transition(ctx, job, domain.JobStateCancelled)
		logger.Info("Job %s cancelled after %d frames", job.ID, job.FramesEmitted)
	default:
		job.ErrorKind = classifyError(err)
		job.Error = err.Error()
		c.transition(ctx, job, domain.JobStateFailed)
		logger.Error("Job %s failed (%s): %v", job.ID, job.ErrorKind, err)
	}

	c.mu.Lock()
	delete(c.activeJobs, job.ID)
	c.mu.Unlock()
}

// transition moves the job and persists the new state.
func (c *PipelineController) transition(ctx context.Context, job *domain.Job, to domain.JobState) {
	if err := job.Transition(to, time.Now()); err != nil {
		logger.Warn("Job %s: %v (%s -> %s)", job.ID, err, job.State, to)
		return
	}
	if err := c.jobStore.Save(ctx, job); err != nil {
		logger.Warn("Job %s: saving state %s: %v", job.ID, to, err)
	}
}

// classifyError maps a fatal pipeline error onto a recorded error kind.
func classifyError(err error) string {
	switch {
	case errors.Is(err, domain.ErrSource),
		errors.Is(err, domain.ErrUnsupportedMedia):
		return domain.ErrorKindSource
	case errors.Is(err, domain.ErrStallDetected):
		return domain.ErrorKindStall
	case errors.Is(err, domain.ErrOutput):
		return domain.ErrorKindOutput
	case errors.Is(err, domain.ErrFailureRate):
		return domain.ErrorKindFailureRate
	default:
		return domain.ErrorKindInternal
	}
}

// Cancel requests cancellation of a running job. Cancelling a job
// already in a terminal state is a no-op, not an error.
func (c *PipelineController) Cancel(ctx context.Context, jobID string) error {
	c.mu.RLock()
	aj, active := c.activeJobs[jobID]
	c.mu.RUnlock()

	if active {
		aj.pipe.CancelJob()
		return nil
	}

	job, err := c.jobStore.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.State.Terminal() {
		return nil
	}

	// Not active but not terminal: a record left behind by an earlier
	// process. Close it out.
	if err := job.Transition(domain.JobStateCancelled, time.Now()); err != nil {
		return err
	}
	return c.jobStore.Save(ctx, job)
}

// Status returns the current state and live counters for a job.
func (c *PipelineController) Status(ctx context.Context, jobID string) (*driving.JobStatus, error) {
	job, err := c.jobStore.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	status := &driving.JobStatus{
		JobID:     job.ID,
		State:     job.State,
		Mode:      job.Mode,
		ErrorKind: job.ErrorKind,
		Error:     job.Error,
		Stats: domain.PipelineStats{
			FramesEmitted: job.FramesEmitted,
			SegmentErrors: job.SegmentErrors,
		},
	}

	c.mu.RLock()
	aj, active := c.activeJobs[jobID]
	c.mu.RUnlock()
	if active {
		status.Stats = aj.pipe.Stats()
	}

	return status, nil
}

// Wait blocks until the job reaches a terminal state and returns its
// final record.
func (c *PipelineController) Wait(ctx context.Context, jobID string) (*domain.Job, error) {
	c.mu.RLock()
	aj, active := c.activeJobs[jobID]
	c.mu.RUnlock()

	if active {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-aj.done:
		}
	}

	job, err := c.jobStore.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.State.Terminal() {
		return nil, fmt.Errorf("%w: job %s", domain.ErrJobNotActive, jobID)
	}
	return job, nil
}

// List returns all known jobs, newest first.
func (c *PipelineController) List(ctx context.Context) ([]domain.Job, error) {
	return c.jobStore.List(ctx)
}

// EngineHealth checks that the configured inference engine is reachable
// and ready.
func (c *PipelineController) EngineHealth(ctx context.Context) error {
	if c.engine == nil {
		return domain.ErrEngineUnavailable
	}
	return c.engine.Ping(ctx)
}
