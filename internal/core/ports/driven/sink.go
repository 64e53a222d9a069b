package driven

import (
	"context"

	"github.com/viseme-labs/talksync/internal/core/domain"
)

// FrameSink receives ordered, muxed output frames. Sinks are append-only:
// a failed write never retracts bytes already flushed.
type FrameSink interface {
	// WriteHeader writes stream parameters. Called once, before the
	// first frame.
	WriteHeader(ctx context.Context, h domain.StreamHeader) error

	// WriteFrame appends one frame. Frames arrive strictly ordered by
	// index; markers arrive in place of failed segments.
	WriteFrame(ctx context.Context, f domain.Frame) error

	// Flush forces buffered records out to the destination.
	Flush() error

	// Close flushes and releases the destination.
	Close() error
}

// SinkOpener opens the FrameSink for a job's output destination.
// Online jobs get an unbuffered live sink, offline jobs a buffered
// file sink.
type SinkOpener interface {
	// OpenSink opens the destination at path for the given mode.
	OpenSink(ctx context.Context, path string, mode domain.Mode) (FrameSink, error)
}
