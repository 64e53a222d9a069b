package domain

import "time"

// JobState is the lifecycle state of a rendering job.
type JobState string

// Job lifecycle states.
const (
	// JobStatePending means the job is accepted but not yet running.
	JobStatePending JobState = "pending"

	// JobStateRunning means the pipeline is processing segments.
	JobStateRunning JobState = "running"

	// JobStateCompleted means all input was processed. Per-segment
	// errors may still be non-zero.
	JobStateCompleted JobState = "completed"

	// JobStateFailed means a fatal error aborted the job.
	JobStateFailed JobState = "failed"

	// JobStateCancelled means the job was cancelled by the caller.
	JobStateCancelled JobState = "cancelled"
)

// IsValid returns true if the state is recognised.
func (s JobState) IsValid() bool {
	switch s {
	case JobStatePending, JobStateRunning, JobStateCompleted, JobStateFailed, JobStateCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether the state admits no further transitions.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateCompleted, JobStateFailed, JobStateCancelled:
		return true
	default:
		return false
	}
}

// jobTransitions enumerates the permitted state changes.
var jobTransitions = map[JobState][]JobState{
	JobStatePending: {JobStateRunning, JobStateFailed, JobStateCancelled},
	JobStateRunning: {JobStateCompleted, JobStateFailed, JobStateCancelled},
}

// CanTransition reports whether a job may move from one state to another.
func CanTransition(from, to JobState) bool {
	for _, next := range jobTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Error kinds recorded on failed jobs.
const (
	ErrorKindSource      = "source_error"
	ErrorKindStall       = "stall_detected"
	ErrorKindOutput      = "output_error"
	ErrorKindFailureRate = "failure_rate_exceeded"
	ErrorKindInternal    = "internal_error"
)

// Job represents one end-to-end rendering run.
type Job struct {
	// ID is the unique identifier for the job.
	ID string

	// Mode selects online or offline processing semantics.
	Mode Mode

	// Descriptor is the input/output binding the job was started with.
	Descriptor JobDescriptor

	// State is the current lifecycle state.
	State JobState

	// ErrorKind classifies the fatal error for failed jobs, empty otherwise.
	ErrorKind string

	// Error is the fatal error message for failed jobs.
	Error string

	// FramesEmitted counts frames written to the sink, markers included.
	FramesEmitted int64

	// SegmentErrors counts per-segment error markers emitted.
	SegmentErrors int64

	// CreatedAt is when the job was accepted.
	CreatedAt time.Time

	// StartedAt is when the pipeline began running.
	StartedAt time.Time

	// FinishedAt is when the job reached a terminal state.
	FinishedAt time.Time
}

// Transition moves the job to a new state, recording the timestamp.
// Returns ErrInvalidTransition if the lifecycle does not permit the move.
func (j *Job) Transition(to JobState, now time.Time) error {
	if !CanTransition(j.State, to) {
		return ErrInvalidTransition
	}
	j.State = to
	switch to {
	case JobStateRunning:
		j.StartedAt = now
	case JobStateCompleted, JobStateFailed, JobStateCancelled:
		j.FinishedAt = now
	}
	return nil
}
