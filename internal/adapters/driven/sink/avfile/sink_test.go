package avfile

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viseme-labs/talksync/internal/avrec"
	"github.com/viseme-labs/talksync/internal/core/domain"
)

func TestSink_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "job.tsav")
	ctx := context.Background()

	sink, err := Create(path)
	require.NoError(t, err)
	assert.Equal(t, path, sink.Path())

	header := domain.StreamHeader{JobID: "job-1", SampleRate: 16000, FrameRate: 25, Width: 64, Height: 64}
	require.NoError(t, sink.WriteHeader(ctx, header))

	frame := domain.Frame{
		Index:    0,
		PTS:      0,
		Duration: 200 * time.Millisecond,
		Visual:   domain.OutputFrame{Payload: []byte{1, 2, 3}, Width: 64, Height: 64},
		Audio:    []float32{0.1, -0.1},
	}
	require.NoError(t, sink.WriteFrame(ctx, frame))
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r := avrec.NewReader(f)
	gotHeader, err := r.ReadHeader()
	require.NoError(t, err)
	assert.Equal(t, header, gotHeader)

	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, avrec.RecordFrame, rec.Type)
	assert.Equal(t, frame.Visual.Payload, rec.Frame.Visual.Payload)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSink_BuffersUntilFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.tsav")
	ctx := context.Background()

	sink, err := Create(path)
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.WriteHeader(ctx, domain.StreamHeader{JobID: "job-1"}))

	// Small writes stay in the buffer until flushed.
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())

	require.NoError(t, sink.Flush())
	info, err = os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}

func TestSink_WriteCancelledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.tsav")
	sink, err := Create(path)
	require.NoError(t, err)
	defer sink.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, sink.WriteHeader(ctx, domain.StreamHeader{}), context.Canceled)
}
