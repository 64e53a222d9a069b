// Package avfile provides a buffered file FrameSink for offline jobs.
package avfile

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/viseme-labs/talksync/internal/avrec"
	"github.com/viseme-labs/talksync/internal/core/domain"
	"github.com/viseme-labs/talksync/internal/core/ports/driven"
)

// Ensure Sink implements the interface.
var _ driven.FrameSink = (*Sink)(nil)

// bufferSize is the write buffer, sized for several frames per flush.
const bufferSize = 1 << 20

// Sink writes a TSAV stream to a file through a write buffer. Offline
// jobs favour encoder throughput over write latency.
type Sink struct {
	f   *os.File
	buf *bufio.Writer
	w   *avrec.Writer
}

// Create creates the output file, making parent directories as needed.
func Create(path string) (*Sink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrOutput, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrOutput, err)
	}

	buf := bufio.NewWriterSize(f, bufferSize)
	return &Sink{
		f:   f,
		buf: buf,
		w:   avrec.NewWriter(buf),
	}, nil
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

// Flush forces buffered records out to the file.
func (s *Sink) Flush() error {
	return s.buf.Flush()
}

// Close flushes and closes the file.
func (s *Sink) Close() error {
	flushErr := s.buf.Flush()
	closeErr := s.f.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// Path returns the output file path.
func (s *Sink) Path() string {
	return s.f.Name()
}
