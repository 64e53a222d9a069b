package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Mode selects the pipeline's processing semantics.
type Mode string

// Available modes.
const (
	// ModeOffline optimises for throughput: batches always fill before
	// dispatch and cancellation drains in-flight work.
	ModeOffline Mode = "offline"

	// ModeOnline optimises for latency: partial batches flush after a
	// bounded wait and cancellation abandons in-flight work.
	ModeOnline Mode = "online"
)

// IsValid returns true if the mode is recognised.
func (m Mode) IsValid() bool {
	return m == ModeOffline || m == ModeOnline
}

// GapPolicy decides how the assembler fills a failed segment's position.
type GapPolicy string

// Available gap policies.
const (
	// GapPolicySubstitute repeats the last good visual payload with the
	// failed segment's own audio. Default for online mode.
	GapPolicySubstitute GapPolicy = "substitute"

	// GapPolicyMarker writes an explicit gap record. Default for
	// offline mode.
	GapPolicyMarker GapPolicy = "marker"
)

// IsValid returns true if the gap policy is recognised.
func (p GapPolicy) IsValid() bool {
	return p == GapPolicySubstitute || p == GapPolicyMarker
}

// Allowed input file extensions, lower case with leading dot.
var (
	allowedAudioExtensions = map[string]bool{
		".wav": true, ".mp3": true, ".m4a": true, ".flac": true, ".ogg": true,
	}

	allowedImageExtensions = map[string]bool{
		".png": true, ".jpg": true, ".jpeg": true, ".bmp": true, ".webp": true, ".tiff": true,
	}
)

// ValidAudioPath reports whether the path carries a recognised audio extension.
func ValidAudioPath(path string) bool {
	return allowedAudioExtensions[strings.ToLower(filepath.Ext(path))]
}

// ValidImagePath reports whether the path carries a recognised image extension.
func ValidImagePath(path string) bool {
	return allowedImageExtensions[strings.ToLower(filepath.Ext(path))]
}

// JobDescriptor binds a job to its input media, output destination and
// processing configuration.
type JobDescriptor struct {
	// AudioPath is the driving audio input.
	AudioPath string

	// SourcePath is the visual conditioning input (portrait image).
	SourcePath string

	// OutputPath is the sink destination. Empty selects a generated
	// name under the configured output directory.
	OutputPath string

	// Mode selects online or offline semantics.
	Mode Mode

	// Config holds the pipeline tuning knobs.
	Config PipelineConfig
}

// Validate checks the descriptor before job admission.
func (d *JobDescriptor) Validate() error {
	if d.AudioPath == "" {
		return fmt.Errorf("%w: audio path required", ErrInvalidInput)
	}
	if !ValidAudioPath(d.AudioPath) {
		return fmt.Errorf("%w: audio %q", ErrUnsupportedMedia, filepath.Ext(d.AudioPath))
	}
	if d.SourcePath == "" {
		return fmt.Errorf("%w: source image path required", ErrInvalidInput)
	}
	if !ValidImagePath(d.SourcePath) {
		return fmt.Errorf("%w: image %q", ErrUnsupportedMedia, filepath.Ext(d.SourcePath))
	}
	if !d.Mode.IsValid() {
		return fmt.Errorf("%w: mode %q", ErrInvalidInput, d.Mode)
	}
	return d.Config.Validate()
}

// PipelineConfig holds the tuning knobs for one pipeline run.
type PipelineConfig struct {
	// SegmentDuration is the audio window length per segment.
	SegmentDuration time.Duration

	// SegmentOverlap is the context carried from the previous segment.
	// Must be shorter than SegmentDuration.
	SegmentOverlap time.Duration

	// MaxBatchSize caps segments per engine call.
	MaxBatchSize int

	// MaxWait bounds how long the scheduler holds a partial batch in
	// online mode before flushing it.
	MaxWait time.Duration

	// MaxInFlight caps dispatched-but-unresolved batches. Acquiring a
	// slot blocks, which backpressures the whole pipeline.
	MaxInFlight int

	// EngineConcurrency caps simultaneous engine calls.
	EngineConcurrency int

	// MaxRetries bounds retry attempts for transient engine failures.
	MaxRetries int

	// RetryBackoff is the initial backoff, doubled per attempt.
	RetryBackoff time.Duration

	// SubmitRate paces engine submissions in requests per second.
	// Zero means unlimited.
	SubmitRate float64

	// QueueDepth is the capacity of inter-stage channels.
	QueueDepth int

	// StallTimeout is how long the reorder watermark may hold still
	// with results outstanding before the job fails.
	StallTimeout time.Duration

	// FailureWindow is the sliding window, in segments, over which the
	// failure rate is measured.
	FailureWindow int

	// FailureRateLimit is the fraction of the window that may fail
	// before the job aborts. 1 disables the check.
	FailureRateLimit float64

	// GapPolicy decides how failed segment positions are filled.
	// Empty selects the mode default.
	GapPolicy GapPolicy
}

// DefaultPipelineConfig returns the tuning defaults for a mode.
func DefaultPipelineConfig(mode Mode) PipelineConfig {
	cfg := PipelineConfig{
		SegmentDuration:   200 * time.Millisecond,
		SegmentOverlap:    40 * time.Millisecond,
		MaxBatchSize:      4,
		MaxWait:           120 * time.Millisecond,
		MaxInFlight:       2,
		EngineConcurrency: 1,
		MaxRetries:        2,
		RetryBackoff:      100 * time.Millisecond,
		QueueDepth:        8,
		StallTimeout:      30 * time.Second,
		FailureWindow:     50,
		FailureRateLimit:  0.5,
	}
	switch mode {
	case ModeOnline:
		cfg.GapPolicy = GapPolicySubstitute
	default:
		cfg.GapPolicy = GapPolicyMarker
	}
	return cfg
}

// Validate checks the configuration for internally consistent values.
func (c *PipelineConfig) Validate() error {
	if c.SegmentDuration <= 0 {
		return fmt.Errorf("%w: segment duration must be positive", ErrInvalidInput)
	}
	if c.SegmentOverlap < 0 || c.SegmentOverlap >= c.SegmentDuration {
		return fmt.Errorf("%w: overlap must be in [0, duration)", ErrInvalidInput)
	}
	if c.MaxBatchSize < 1 {
		return fmt.Errorf("%w: max batch size must be at least 1", ErrInvalidInput)
	}
	if c.MaxInFlight < 1 {
		return fmt.Errorf("%w: max in-flight must be at least 1", ErrInvalidInput)
	}
	if c.EngineConcurrency < 1 {
		return fmt.Errorf("%w: engine concurrency must be at least 1", ErrInvalidInput)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must not be negative", ErrInvalidInput)
	}
	if c.QueueDepth < 1 {
		return fmt.Errorf("%w: queue depth must be at least 1", ErrInvalidInput)
	}
	if c.StallTimeout <= 0 {
		return fmt.Errorf("%w: stall timeout must be positive", ErrInvalidInput)
	}
	if c.FailureWindow < 1 {
		return fmt.Errorf("%w: failure window must be at least 1", ErrInvalidInput)
	}
	if c.FailureRateLimit < 0 || c.FailureRateLimit > 1 {
		return fmt.Errorf("%w: failure rate limit must be in [0, 1]", ErrInvalidInput)
	}
	if c.GapPolicy != "" && !c.GapPolicy.IsValid() {
		return fmt.Errorf("%w: gap policy %q", ErrInvalidInput, c.GapPolicy)
	}
	return nil
}

// EffectiveGapPolicy resolves the gap policy for a mode, applying the
// mode default when unset.
func (c *PipelineConfig) EffectiveGapPolicy(mode Mode) GapPolicy {
	if c.GapPolicy != "" {
		return c.GapPolicy
	}
	if mode == ModeOnline {
		return GapPolicySubstitute
	}
	return GapPolicyMarker
}
