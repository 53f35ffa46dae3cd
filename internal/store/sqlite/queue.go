package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"scribeq/internal/store"
)

// ClaimNextQueued claims the oldest queued job and moves it to
// PROCESSING in a single statement. SQLite executes the statement
// atomically, so two concurrent callers can never claim the same row
// even though the single-worker model makes that only a safety net.
func (s *Store) ClaimNextQueued(ctx context.Context) (*store.Job, error) {
	query := `
		UPDATE jobs
		SET status = ?, started_at = ?
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = ?
			ORDER BY created_at ASC, id ASC
			LIMIT 1
		)
		RETURNING ` + jobColumns

	row := s.db.QueryRowContext(ctx, query,
		string(store.JobStatusProcessing),
		formatTime(time.Now()),
		string(store.JobStatusQueued),
	)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Queue is empty.
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim next queued job: %w", err)
	}
	return job, nil
}

// RecoverOrphaned re-queues every job left in PROCESSING by an unclean
// shutdown. created_at is untouched, so recovered jobs keep their
// original FIFO position ahead of anything submitted since.
func (s *Store) RecoverOrphaned(ctx context.Context) (int64, error) {
	query := `
		UPDATE jobs
		SET status = ?, started_at = NULL
		WHERE status = ?
	`

	res, err := s.db.ExecContext(ctx, query,
		string(store.JobStatusQueued),
		string(store.JobStatusProcessing),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to recover orphaned jobs: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to recover orphaned jobs: %w", err)
	}
	return affected, nil
}
