package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/viseme-labs/talksync/internal/core/domain"
)

func TestCancelCmd_Use(t *testing.T) {
	assert.Equal(t, "cancel [job-id]", cancelCmd.Use)
}

func TestCancelCmd_Executes(t *testing.T) {
	var cancelled string
	cleanup := setupPipelineTest(&mockPipelineService{
		cancelFn: func(_ context.Context, jobID string) error {
			cancelled = jobID
			return nil
		},
	})
	defer cleanup()

	out, err := execute(t, "cancel", "job-9")

	assert.NoError(t, err)
	assert.Equal(t, "job-9", cancelled)
	assert.Contains(t, out, "Cancellation requested for job job-9")
}

func TestCancelCmd_UnknownJob(t *testing.T) {
	cleanup := setupPipelineTest(&mockPipelineService{
		cancelFn: func(context.Context, string) error {
			return domain.ErrNotFound
		},
	})
	defer cleanup()

	_, err := execute(t, "cancel", "missing")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCancelCmd_ServiceNotConfigured(t *testing.T) {
	old := pipelineService
	pipelineService = nil
	defer func() {
		pipelineService = old
	}()

	_, err := execute(t, "cancel", "job-9")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline service not configured")
}
