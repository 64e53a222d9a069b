package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/viseme-labs/talksync/internal/core/domain"
	"github.com/viseme-labs/talksync/internal/core/ports/driven"
)

// jobStore implements driven.JobStore.
type jobStore struct {
	store *Store
}

var _ driven.JobStore = (*jobStore)(nil)

// Save stores or updates a job record.
func (s *jobStore) Save(ctx context.Context, job *domain.Job) error {
	if job == nil || job.ID == "" {
		return domain.ErrInvalidInput
	}

	configJSON, err := json.Marshal(job.Descriptor.Config)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO jobs (id, mode, audio_path, source_path, output_path, config,
			state, error_kind, error, frames_emitted, segment_errors,
			created_at, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			mode = excluded.mode,
			audio_path = excluded.audio_path,
			source_path = excluded.source_path,
			output_path = excluded.output_path,
			config = excluded.config,
			state = excluded.state,
			error_kind = excluded.error_kind,
			error = excluded.error,
			frames_emitted = excluded.frames_emitted,
			segment_errors = excluded.segment_errors,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at
	`, job.ID, string(job.Mode), job.Descriptor.AudioPath, job.Descriptor.SourcePath,
		job.Descriptor.OutputPath, string(configJSON),
		string(job.State), job.ErrorKind, job.Error, job.FramesEmitted, job.SegmentErrors,
		job.CreatedAt.UTC(), nullTime(job.StartedAt), nullTime(job.FinishedAt))
	if err != nil {
		return fmt.Errorf("saving job: %w", err)
	}
	return nil
}

// Get retrieves a job by ID.
func (s *jobStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, mode, audio_path, source_path, output_path, config,
			state, error_kind, error, frames_emitted, segment_errors,
			created_at, started_at, finished_at
		FROM jobs WHERE id = ?
	`, id)

	job, err := scanJob(row)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// List returns all jobs, newest first.
func (s *jobStore) List(ctx context.Context) ([]domain.Job, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, mode, audio_path, source_path, output_path, config,
			state, error_kind, error, frames_emitted, segment_errors,
			created_at, started_at, finished_at
		FROM jobs ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job //nolint:prealloc // size unknown from query
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}

	return jobs, nil
}

// Delete removes a job record.
func (s *jobStore) Delete(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting job: %w", err)
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows for scanJob.
type scanner interface {
	Scan(dest ...any) error
}

// scanJob scans one job row.
func scanJob(row scanner) (*domain.Job, error) {
	var (
		job        domain.Job
		mode       string
		state      string
		configJSON string
		createdAt  time.Time
		startedAt  sql.NullTime
		finishedAt sql.NullTime
	)

	err := row.Scan(&job.ID, &mode, &job.Descriptor.AudioPath, &job.Descriptor.SourcePath,
		&job.Descriptor.OutputPath, &configJSON,
		&state, &job.ErrorKind, &job.Error, &job.FramesEmitted, &job.SegmentErrors,
		&createdAt, &startedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning job: %w", err)
	}

	if err := json.Unmarshal([]byte(configJSON), &job.Descriptor.Config); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	job.Mode = domain.Mode(mode)
	job.Descriptor.Mode = job.Mode
	job.State = domain.JobState(state)
	job.CreatedAt = createdAt
	if startedAt.Valid {
		job.StartedAt = startedAt.Time
	}
	if finishedAt.Valid {
		job.FinishedAt = finishedAt.Time
	}

	return &job, nil
}

// nullTime maps the zero time onto SQL NULL.
func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
