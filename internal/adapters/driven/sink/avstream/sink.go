// Package avstream provides an unbuffered live FrameSink for online
// jobs. Every frame is written straight through to the destination so
// downstream consumers see it as soon as the pipeline emits it.
package avstream

import (
	"context"
	"io"

	"github.com/viseme-labs/talksync/internal/avrec"
	"github.com/viseme-labs/talksync/internal/core/domain"
	"github.com/viseme-labs/talksync/internal/core/ports/driven"
)

// Ensure Sink implements the interface.
var _ driven.FrameSink = (*Sink)(nil)

// Sink streams TSAV records to an io.Writer (pipe, socket, stdout).
type Sink struct {
	dst io.Writer
	w   *avrec.Writer
}

// New creates a live sink writing to dst.
func New(dst io.Writer) *Sink {
	return &Sink{
		dst: dst,
		w:   avrec.NewWriter(dst),
	}
}

// WriteHeader writes stream parameters. Called once, before the first frame.
func (s *Sink) WriteHeader(ctx context.Context, h domain.StreamHeader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.w.WriteHeader(h)
}

// WriteFrame appends one frame record.
func (s *Sink) WriteFrame(ctx context.Context, f domain.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.w.WriteFrame(f)
}

// Flush is a no-op: writes go straight to the destination.
func (s *Sink) Flush() error {
	return nil
}

// Close closes the destination when it is closeable.
func (s *Sink) Close() error {
	if c, ok := s.dst.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
