package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/viseme-labs/talksync/internal/core/domain"
	"github.com/viseme-labs/talksync/internal/core/ports/driving"
)

// mockPipelineService implements driving.PipelineService with
// configurable behaviour.
type mockPipelineService struct {
	startFn  func(context.Context, domain.JobDescriptor) (*driving.JobHandle, error)
	cancelFn func(context.Context, string) error
	statusFn func(context.Context, string) (*driving.JobStatus, error)
	waitFn   func(context.Context, string) (*domain.Job, error)
	listFn   func(context.Context) ([]domain.Job, error)
	healthFn func(context.Context) error
}

func (m *mockPipelineService) Start(ctx context.Context, desc domain.JobDescriptor) (*driving.JobHandle, error) {
	if m.startFn != nil {
		return m.startFn(ctx, desc)
	}
	done := make(chan struct{})
	close(done)
	return &driving.JobHandle{ID: "job-123", OutputPath: "/out/job-123.tsav", Done: done}, nil
}

func (m *mockPipelineService) Cancel(ctx context.Context, jobID string) error {
	if m.cancelFn != nil {
		return m.cancelFn(ctx, jobID)
	}
	return nil
}

func (m *mockPipelineService) Status(ctx context.Context, jobID string) (*driving.JobStatus, error) {
	if m.statusFn != nil {
		return m.statusFn(ctx, jobID)
	}
	return &driving.JobStatus{JobID: jobID, State: domain.JobStateCompleted, Mode: domain.ModeOffline}, nil
}

func (m *mockPipelineService) Wait(ctx context.Context, jobID string) (*domain.Job, error) {
	if m.waitFn != nil {
		return m.waitFn(ctx, jobID)
	}
	return &domain.Job{ID: jobID, State: domain.JobStateCompleted, FramesEmitted: 42}, nil
}

func (m *mockPipelineService) List(ctx context.Context) ([]domain.Job, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockPipelineService) EngineHealth(ctx context.Context) error {
	if m.healthFn != nil {
		return m.healthFn(ctx)
	}
	return nil
}

// setupPipelineTest installs a mock pipeline service and returns a
// cleanup function restoring the previous one.
func setupPipelineTest(mock *mockPipelineService) func() {
	old := pipelineService
	pipelineService = mock
	return func() {
		pipelineService = old
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRunCmd_Use(t *testing.T) {
	assert.Equal(t, "run [audio] [portrait]", runCmd.Use)
}

func TestRunCmd_Short(t *testing.T) {
	assert.Equal(t, "Render a clip offline", runCmd.Short)
}

func TestRunCmd_Executes(t *testing.T) {
	var started domain.JobDescriptor
	cleanup := setupPipelineTest(&mockPipelineService{
		startFn: func(_ context.Context, desc domain.JobDescriptor) (*driving.JobHandle, error) {
			started = desc
			done := make(chan struct{})
			close(done)
			return &driving.JobHandle{ID: "job-123", OutputPath: "/out/job-123.tsav", Done: done}, nil
		},
	})
	defer cleanup()

	out, err := execute(t, "run", "speech.wav", "face.png")

	assert.NoError(t, err)
	assert.Equal(t, domain.ModeOffline, started.Mode)
	assert.Equal(t, "speech.wav", started.AudioPath)
	assert.Equal(t, "face.png", started.SourcePath)
	assert.Contains(t, out, "job-123")
	assert.Contains(t, out, "Done: 42 frames")
}

func TestRunCmd_OutputFlag(t *testing.T) {
	var started domain.JobDescriptor
	cleanup := setupPipelineTest(&mockPipelineService{
		startFn: func(_ context.Context, desc domain.JobDescriptor) (*driving.JobHandle, error) {
			started = desc
			done := make(chan struct{})
			close(done)
			return &driving.JobHandle{ID: "j", OutputPath: desc.OutputPath, Done: done}, nil
		},
	})
	defer cleanup()

	_, err := execute(t, "run", "speech.wav", "face.png", "-o", "clip.tsav")

	assert.NoError(t, err)
	assert.Equal(t, "clip.tsav", started.OutputPath)
}

func TestRunCmd_FailedJob(t *testing.T) {
	cleanup := setupPipelineTest(&mockPipelineService{
		waitFn: func(_ context.Context, jobID string) (*domain.Job, error) {
			return &domain.Job{
				ID:        jobID,
				State:     domain.JobStateFailed,
				ErrorKind: domain.ErrorKindStall,
				Error:     "watermark stalled at 7",
			}, nil
		},
	})
	defer cleanup()

	_, err := execute(t, "run", "speech.wav", "face.png")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "stall")
}

func TestRunCmd_StartError(t *testing.T) {
	cleanup := setupPipelineTest(&mockPipelineService{
		startFn: func(context.Context, domain.JobDescriptor) (*driving.JobHandle, error) {
			return nil, domain.ErrUnsupportedMedia
		},
	})
	defer cleanup()

	_, err := execute(t, "run", "speech.txt", "face.png")

	assert.ErrorIs(t, err, domain.ErrUnsupportedMedia)
}

func TestRunCmd_ServiceNotConfigured(t *testing.T) {
	old := pipelineService
	pipelineService = nil
	defer func() {
		pipelineService = old
	}()

	_, err := execute(t, "run", "speech.wav", "face.png")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline service not configured")
}

func TestRunCmd_ShowsProgress(t *testing.T) {
	release := make(chan struct{})
	cleanup := setupPipelineTest(&mockPipelineService{
		waitFn: func(_ context.Context, jobID string) (*domain.Job, error) {
			<-release
			return &domain.Job{ID: jobID, State: domain.JobStateCompleted, FramesEmitted: 10}, nil
		},
		statusFn: func(_ context.Context, jobID string) (*driving.JobStatus, error) {
			return &driving.JobStatus{
				JobID: jobID,
				State: domain.JobStateRunning,
				Stats: domain.PipelineStats{FramesEmitted: 5},
			}, nil
		},
	})
	defer cleanup()

	go func() {
		time.Sleep(700 * time.Millisecond)
		close(release)
	}()

	out, err := execute(t, "run", "speech.wav", "face.png")

	assert.NoError(t, err)
	assert.Contains(t, out, "Rendering... 5 frames")
}

func TestStreamCmd_Use(t *testing.T) {
	assert.Equal(t, "stream [audio] [portrait]", streamCmd.Use)
}

func TestStreamCmd_Executes(t *testing.T) {
	var started domain.JobDescriptor
	cleanup := setupPipelineTest(&mockPipelineService{
		startFn: func(_ context.Context, desc domain.JobDescriptor) (*driving.JobHandle, error) {
			started = desc
			done := make(chan struct{})
			close(done)
			return &driving.JobHandle{ID: "s-1", OutputPath: desc.OutputPath, Done: done}, nil
		},
	})
	defer cleanup()

	out, err := execute(t, "stream", "speech.wav", "face.png")

	assert.NoError(t, err)
	assert.Equal(t, domain.ModeOnline, started.Mode)
	assert.Equal(t, "-", started.OutputPath)
	assert.Contains(t, out, "Done: 42 frames")
}

func TestStreamCmd_FailedJob(t *testing.T) {
	cleanup := setupPipelineTest(&mockPipelineService{
		waitFn: func(_ context.Context, jobID string) (*domain.Job, error) {
			return &domain.Job{
				ID:        jobID,
				State:     domain.JobStateFailed,
				ErrorKind: domain.ErrorKindFailureRate,
				Error:     "too many segment failures",
			}, nil
		},
	})
	defer cleanup()

	_, err := execute(t, "stream", "speech.wav", "face.png")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "too many segment failures")
}

func TestStreamCmd_WaitError(t *testing.T) {
	cleanup := setupPipelineTest(&mockPipelineService{
		waitFn: func(context.Context, string) (*domain.Job, error) {
			return nil, errors.New("store unavailable")
		},
	})
	defer cleanup()

	_, err := execute(t, "stream", "speech.wav", "face.png")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "stream failed")
}
