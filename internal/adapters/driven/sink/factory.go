// Package sink selects the FrameSink implementation for a job's mode
// and destination.
package sink

import (
	"context"
	"os"

	"github.com/viseme-labs/talksync/internal/adapters/driven/sink/avfile"
	"github.com/viseme-labs/talksync/internal/adapters/driven/sink/avstream"
	"github.com/viseme-labs/talksync/internal/core/domain"
	"github.com/viseme-labs/talksync/internal/core/ports/driven"
)

// Stdout is the destination path selecting standard output.
const Stdout = "-"

// Ensure Factory implements the interface.
var _ driven.SinkOpener = (*Factory)(nil)

// Factory opens frame sinks for the controller. Offline jobs get the
// buffered file sink; online jobs get the unbuffered live sink, with
// "-" streaming to stdout.
type Factory struct{}

// NewFactory creates a sink factory.
func NewFactory() *Factory {
	return &Factory{}
}

// OpenSink opens the destination at path for the given mode.
func (f *Factory) OpenSink(_ context.Context, path string, mode domain.Mode) (driven.FrameSink, error) {
	if mode == domain.ModeOnline {
		if path == Stdout {
			return avstream.New(os.Stdout), nil
		}
		out, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		return avstream.New(out), nil
	}
	return avfile.Create(path)
}
