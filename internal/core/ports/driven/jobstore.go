package driven

import (
	"context"

	"github.com/viseme-labs/talksync/internal/core/domain"
)

// JobStore persists job records across process restarts.
type JobStore interface {
	// Save stores or updates a job record.
	Save(ctx context.Context, job *domain.Job) error

	// Get retrieves a job by ID.
	Get(ctx context.Context, id string) (*domain.Job, error)

	// List returns all jobs, newest first.
	List(ctx context.Context) ([]domain.Job, error)

	// Delete removes a job record.
	Delete(ctx context.Context, id string) error
}
