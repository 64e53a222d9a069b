package domain

import "time"

// OutputFrame is the rendered visual payload returned by the engine
// for one segment.
type OutputFrame struct {
	// Payload is the encoded rendered image sequence for the segment.
	Payload []byte

	// Width and Height are the rendered dimensions in pixels.
	Width  int
	Height int
}

// Frame is one ordered unit of pipeline output: the rendered visuals for
// a segment muxed with that segment's audio window, or an error marker
// occupying the segment's position so the output stays gap-free.
type Frame struct {
	// Index is the segment index this frame covers.
	Index int64

	// PTS is the presentation offset from stream start.
	PTS time.Duration

	// Duration is the span the frame covers.
	Duration time.Duration

	// Visual is the rendered payload. Empty when Err is set.
	Visual OutputFrame

	// Audio is the segment's PCM window, without overlap context.
	Audio []float32

	// Err is the terminal per-segment failure, nil for a rendered frame.
	Err error

	// Substituted marks a frame whose visual payload was borrowed from
	// the last good frame under the online substitution policy.
	Substituted bool
}

// IsMarker reports whether the frame is an error marker rather than a
// rendered result.
func (f Frame) IsMarker() bool {
	return f.Err != nil
}

// StreamHeader carries the parameters a sink needs before the first frame.
type StreamHeader struct {
	// JobID identifies the producing job.
	JobID string

	// SampleRate is the muxed audio sample rate in Hz.
	SampleRate int

	// FrameRate is the video frame rate in frames per second.
	FrameRate float64

	// Width and Height are the rendered dimensions in pixels.
	Width  int
	Height int
}
