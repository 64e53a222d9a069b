package services

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viseme-labs/talksync/internal/core/domain"
	"github.com/viseme-labs/talksync/internal/core/ports/driving"
	"github.com/viseme-labs/talksync/internal/logger"
)

// recordingPipeline captures submitted descriptors.
type recordingPipeline struct {
	mu       sync.Mutex
	descs    []domain.JobDescriptor
	startErr error
}

var _ driving.PipelineService = (*recordingPipeline)(nil)

func (p *recordingPipeline) Start(_ context.Context, desc domain.JobDescriptor) (*driving.JobHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startErr != nil {
		return nil, p.startErr
	}
	p.descs = append(p.descs, desc)
	done := make(chan struct{})
	close(done)
	return &driving.JobHandle{ID: "job-1", Done: done}, nil
}

func (p *recordingPipeline) Cancel(context.Context, string) error { return nil }
func (p *recordingPipeline) Status(context.Context, string) (*driving.JobStatus, error) {
	return nil, domain.ErrNotFound
}
func (p *recordingPipeline) Wait(context.Context, string) (*domain.Job, error) {
	return nil, domain.ErrNotFound
}
func (p *recordingPipeline) List(context.Context) ([]domain.Job, error) { return nil, nil }
func (p *recordingPipeline) EngineHealth(context.Context) error         { return nil }

func (p *recordingPipeline) submissions() []domain.JobDescriptor {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.JobDescriptor, len(p.descs))
	copy(out, p.descs)
	return out
}

// startWatcher runs the watcher loop in the background and stops it
// when the test finishes.
func startWatcher(t *testing.T, w *Watcher) {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- w.Start(context.Background()) }()
	t.Cleanup(func() {
		require.NoError(t, w.Stop())
		require.NoError(t, <-errCh)
	})
	// Give the fsnotify watch a moment to attach.
	time.Sleep(50 * time.Millisecond)
}

func TestWatcher_SubmitsDroppedAudio(t *testing.T) {
	spool := t.TempDir()
	pipe := &recordingPipeline{}
	w := NewWatcher(pipe, spool, "/assets/avatar.png", 150*time.Millisecond)
	startWatcher(t, w)

	audio := filepath.Join(spool, "greeting.wav")
	require.NoError(t, os.WriteFile(audio, []byte("RIFF"), 0o644))

	require.Eventually(t, func() bool {
		return len(pipe.submissions()) == 1
	}, 5*time.Second, 20*time.Millisecond)

	descs := pipe.submissions()
	assert.Equal(t, domain.ModeOffline, descs[0].Mode)
	assert.Equal(t, audio, descs[0].AudioPath)
	assert.Equal(t, "/assets/avatar.png", descs[0].SourcePath)
}

func TestWatcher_OneJobPerFile(t *testing.T) {
	spool := t.TempDir()
	pipe := &recordingPipeline{}
	w := NewWatcher(pipe, spool, "/assets/avatar.png", 100*time.Millisecond)
	startWatcher(t, w)

	audio := filepath.Join(spool, "clip.wav")
	require.NoError(t, os.WriteFile(audio, []byte("RIFF"), 0o644))

	require.Eventually(t, func() bool {
		return len(pipe.submissions()) == 1
	}, 5*time.Second, 20*time.Millisecond)

	// Later writes to an already-submitted file do not resubmit it.
	require.NoError(t, os.WriteFile(audio, []byte("RIFF more"), 0o644))
	time.Sleep(400 * time.Millisecond)
	assert.Len(t, pipe.submissions(), 1)
}

func TestWatcher_SettleWaitsForQuiet(t *testing.T) {
	spool := t.TempDir()
	pipe := &recordingPipeline{}
	w := NewWatcher(pipe, spool, "/assets/avatar.png", 300*time.Millisecond)
	startWatcher(t, w)

	audio := filepath.Join(spool, "slow-upload.wav")
	f, err := os.Create(audio)
	require.NoError(t, err)

	// Keep the file busy past the settle period.
	for i := 0; i < 4; i++ {
		_, err = f.Write([]byte("chunk"))
		require.NoError(t, err)
		time.Sleep(120 * time.Millisecond)
		assert.Empty(t, pipe.submissions(), "submitted while still being written")
	}
	require.NoError(t, f.Close())

	require.Eventually(t, func() bool {
		return len(pipe.submissions()) == 1
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatcher_SkipsIneligibleFiles(t *testing.T) {
	spool := t.TempDir()
	pipe := &recordingPipeline{}
	w := NewWatcher(pipe, spool, "/assets/avatar.png", 100*time.Millisecond)
	startWatcher(t, w)

	require.NoError(t, os.WriteFile(filepath.Join(spool, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(spool, ".partial.wav"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(spool, "nested.wav"), 0o755))

	time.Sleep(400 * time.Millisecond)
	assert.Empty(t, pipe.submissions())
}

func TestWatcher_PicksUpExistingFiles(t *testing.T) {
	spool := t.TempDir()
	audio := filepath.Join(spool, "backlog.flac")
	require.NoError(t, os.WriteFile(audio, []byte("fLaC"), 0o644))

	pipe := &recordingPipeline{}
	w := NewWatcher(pipe, spool, "/assets/avatar.png", 100*time.Millisecond)
	startWatcher(t, w)

	require.Eventually(t, func() bool {
		return len(pipe.submissions()) == 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, audio, pipe.submissions()[0].AudioPath)
}

// logBuffer is a goroutine-safe writer for capturing logger output.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatcher_SubmitFailureIsLogged(t *testing.T) {
	buf := &logBuffer{}
	logger.SetOutput(buf)
	logger.SetVerbose(true)
	t.Cleanup(func() {
		logger.SetVerbose(false)
		logger.SetOutput(os.Stderr)
	})

	spool := t.TempDir()
	pipe := &recordingPipeline{startErr: errors.New("store offline")}
	w := NewWatcher(pipe, spool, "/assets/avatar.png", 100*time.Millisecond)
	startWatcher(t, w)

	audio := filepath.Join(spool, "drop.wav")
	require.NoError(t, os.WriteFile(audio, []byte("RIFF"), 0o644))

	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "Failed to submit")
	}, 5*time.Second, 20*time.Millisecond)
	assert.Empty(t, pipe.submissions())
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	spool := t.TempDir()
	w := NewWatcher(&recordingPipeline{}, spool, "/assets/avatar.png", time.Second)

	errCh := make(chan error, 1)
	go func() { errCh <- w.Start(context.Background()) }()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, w.Stop())
	require.NoError(t, <-errCh)
	require.NoError(t, w.Stop())
}
