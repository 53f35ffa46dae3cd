package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get when no job exists with the given id.
var ErrNotFound = errors.New("job not found")

// JobStore handles the persistence of Job records. It is the single
// source of truth across restarts; all mutations are transactional.
type JobStore interface {
	// Create inserts a new job in QUEUED state.
	Create(ctx context.Context, job *Job) error

	// Get returns a job by its ID, or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*Job, error)

	// Update rewrites all mutable fields of an existing job.
	// The write is atomic: either every field lands or none do.
	Update(ctx context.Context, job *Job) error

	// List returns jobs newest-first, optionally filtered by status
	// (empty string means all).
	List(ctx context.Context, status JobStatus) ([]*Job, error)

	// ClaimNextQueued atomically selects the oldest QUEUED job
	// (tie-break: earliest created_at, then lowest id) and moves it to
	// PROCESSING with started_at set. Two concurrent callers can never
	// claim the same job. Returns (nil, nil) when the queue is empty.
	ClaimNextQueued(ctx context.Context) (*Job, error)

	// RecoverOrphaned reverts every job still in PROCESSING back to
	// QUEUED with started_at cleared. Called once on startup; FIFO
	// order is preserved because created_at is untouched.
	// Returns the number of jobs recovered.
	RecoverOrphaned(ctx context.Context) (int64, error)

	// CountByStatus returns the number of jobs in the given status
	// (empty string counts all jobs).
	CountByStatus(ctx context.Context, status JobStatus) (int64, error)
}
