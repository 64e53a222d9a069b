package domain

import "time"

// MediaProperties describes the sampling characteristics of an input feed.
// The chunker uses them to align audio windows with visual frame spans.
type MediaProperties struct {
	// SampleRate is the audio sample rate in Hz (mono).
	SampleRate int

	// FrameRate is the output video frame rate in frames per second.
	FrameRate float64

	// Channels is the source channel count before downmix.
	Channels int

	// Duration is the total input duration, zero when unknown (live feeds).
	Duration time.Duration
}

// VisualRef is the visual conditioning input for a segment: a still
// portrait or a frame from a reference clip.
type VisualRef struct {
	// FrameIndex is the reference frame this payload covers.
	FrameIndex int64

	// Payload is the encoded image (JPEG or PNG bytes).
	Payload []byte

	// Width and Height are the decoded dimensions in pixels.
	Width  int
	Height int
}

// Segment is one aligned unit of work: an audio window paired with the
// visual frame span it drives. Indices are zero-based, strictly
// increasing and gap-free within a job.
type Segment struct {
	// Index is the segment's position in the stream.
	Index int64

	// Samples is the mono PCM audio window: Context carried-over samples
	// followed by the samples of the owned span.
	Samples []float32

	// Context is the number of leading samples in Samples carried from
	// the previous segment for extractor continuity. Zero for the first
	// segment.
	Context int

	// Start is the owned span's presentation offset from stream start.
	Start time.Duration

	// Duration is the non-overlapping span this segment is responsible for.
	Duration time.Duration

	// FrameCount is the number of output frames this segment produces.
	FrameCount int

	// Visual is the conditioning reference for this span.
	Visual VisualRef

	// Last marks the final segment of a finite input.
	Last bool
}

// OwnedAudio returns the samples of the owned span, without the leading
// context. This is what gets muxed into the output.
func (s Segment) OwnedAudio() []float32 {
	if s.Context >= len(s.Samples) {
		return nil
	}
	return s.Samples[s.Context:]
}

// FeatureTensor is the extracted representation handed to the engine.
// Shape is row-major; Data length equals the product of Shape.
type FeatureTensor struct {
	// Shape holds the tensor dimensions, e.g. [frames, bins].
	Shape []int

	// Data is the flattened tensor content.
	Data []float32
}

// Len returns the expected element count for the tensor's shape.
func (t FeatureTensor) Len() int {
	if len(t.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}
