package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedMedia indicates an input file type the pipeline cannot decode.
	ErrUnsupportedMedia = errors.New("unsupported media type")

	// Pipeline Errors.

	// ErrSource indicates the media source failed mid-stream.
	// Unlike normal end of input, this aborts the job.
	ErrSource = errors.New("source read failed")

	// ErrExtraction indicates feature extraction failed for a segment.
	// Carried on the segment's error marker, never aborts the job by itself.
	ErrExtraction = errors.New("feature extraction failed")

	// ErrEngineExhausted indicates the engine kept failing after all retries.
	// Converted to per-segment error markers for the affected batch.
	ErrEngineExhausted = errors.New("inference retries exhausted")

	// ErrStallDetected indicates the reorder watermark stopped advancing
	// while results were still outstanding.
	ErrStallDetected = errors.New("pipeline stall detected")

	// ErrOutput indicates the output sink rejected a write.
	// Output failures are fatal: bytes already flushed stay where they are.
	ErrOutput = errors.New("output write failed")

	// ErrFailureRate indicates per-segment failures exceeded the
	// configured fraction of the sliding window.
	ErrFailureRate = errors.New("segment failure rate exceeded")

	// Job Lifecycle Errors.

	// ErrJobNotActive indicates the job is not currently running.
	ErrJobNotActive = errors.New("job not active")

	// ErrInvalidTransition indicates a job state change that the
	// lifecycle does not permit.
	ErrInvalidTransition = errors.New("invalid job state transition")

	// ErrEngineUnavailable indicates the inference engine is not configured
	// or cannot be reached.
	ErrEngineUnavailable = errors.New("inference engine unavailable")
)

// EngineError wraps a failure returned by the inference engine.
// Transient failures (timeouts, overload) are retried with backoff;
// permanent ones (bad tensor shape, rejected request) are not.
type EngineError struct {
	// Op names the engine operation that failed.
	Op string

	// Transient reports whether a retry may succeed.
	Transient bool

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Transient {
		return fmt.Sprintf("engine %s: transient: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("engine %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// IsTransientEngineError reports whether err is an engine failure
// worth retrying.
func IsTransientEngineError(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Transient
	}
	return false
}

// SegmentError records a terminal per-segment failure. It travels through
// the reorder buffer in place of the rendered frame so downstream stages
// stay index-contiguous.
type SegmentError struct {
	// Index is the segment the failure belongs to.
	Index int64

	// Stage names the pipeline stage that produced the failure.
	Stage string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment %d: %s: %v", e.Index, e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *SegmentError) Unwrap() error {
	return e.Err
}
