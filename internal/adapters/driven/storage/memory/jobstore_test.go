package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viseme-labs/talksync/internal/core/domain"
)

func testJob(id string, createdAt time.Time) *domain.Job {
	return &domain.Job{
		ID:   id,
		Mode: domain.ModeOffline,
		Descriptor: domain.JobDescriptor{
			AudioPath:  "/tmp/in.wav",
			SourcePath: "/tmp/face.png",
			Mode:       domain.ModeOffline,
			Config:     domain.DefaultPipelineConfig(domain.ModeOffline),
		},
		State:     domain.JobStatePending,
		CreatedAt: createdAt,
	}
}

func TestJobStore_SaveAndGet(t *testing.T) {
	store := NewJobStore()
	ctx := context.Background()

	job := testJob("job-1", time.Now())
	require.NoError(t, store.Save(ctx, job))

	got, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, domain.JobStatePending, got.State)

	// The store holds a copy; mutating the original must not leak in.
	job.State = domain.JobStateRunning
	got2, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatePending, got2.State)
}

func TestJobStore_Get_NotFound(t *testing.T) {
	store := NewJobStore()

	_, err := store.Get(context.Background(), "missing")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJobStore_Save_Invalid(t *testing.T) {
	store := NewJobStore()

	assert.ErrorIs(t, store.Save(context.Background(), nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, store.Save(context.Background(), &domain.Job{}), domain.ErrInvalidInput)
}

func TestJobStore_List_NewestFirst(t *testing.T) {
	store := NewJobStore()
	ctx := context.Background()

	base := time.Now()
	require.NoError(t, store.Save(ctx, testJob("a", base)))
	require.NoError(t, store.Save(ctx, testJob("b", base.Add(time.Minute))))
	require.NoError(t, store.Save(ctx, testJob("c", base.Add(2*time.Minute))))

	jobs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "c", jobs[0].ID)
	assert.Equal(t, "b", jobs[1].ID)
	assert.Equal(t, "a", jobs[2].ID)
}

func TestJobStore_Delete(t *testing.T) {
	store := NewJobStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testJob("job-1", time.Now())))
	require.NoError(t, store.Delete(ctx, "job-1"))

	_, err := store.Get(ctx, "job-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
