package driven

import (
	"context"

	"github.com/viseme-labs/talksync/internal/core/domain"
)

// MediaSource supplies decoded audio samples and visual reference frames.
// Audio drives the pipeline; the visual reference conditions rendering.
type MediaSource interface {
	// Properties returns the sampling characteristics of the feed.
	Properties() domain.MediaProperties

	// ReadAudio reads up to len(buf) mono samples into buf and returns
	// the number read. io.EOF signals a clean end of input; any other
	// error is a mid-stream source failure.
	ReadAudio(ctx context.Context, buf []float32) (int, error)

	// ReferenceFrame returns the visual reference covering the given
	// output frame index. A still portrait source returns the same
	// payload for every index.
	ReferenceFrame(ctx context.Context, index int64) (*domain.VisualRef, error)

	// Close releases resources.
	Close() error
}

// MediaOpener opens a MediaSource for a job's input paths. Implemented
// by media adapters; the controller stays ignorant of file formats.
type MediaOpener interface {
	// OpenSource opens the driving audio and the visual reference.
	OpenSource(ctx context.Context, audioPath, imagePath string) (MediaSource, error)
}
