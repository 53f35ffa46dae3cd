package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"scribeq/internal/store"

	"github.com/google/uuid"
)

const jobColumns = "id, status, input_kind, input_location, options, created_at, started_at, completed_at, result, error"

// Create inserts a new job row.
// Options, result, and error are stored as JSON; timestamps as
// RFC 3339 UTC text so lexical order matches chronological order.
func (s *Store) Create(ctx context.Context, job *store.Job) error {
	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	optionsJSON, err := json.Marshal(job.Options)
	if err != nil {
		return fmt.Errorf("failed to encode job options: %w", err)
	}

	resultJSON, err := marshalNullable(job.Result)
	if err != nil {
		return fmt.Errorf("failed to encode job result: %w", err)
	}
	errorJSON, err := marshalNullable(job.Error)
	if err != nil {
		return fmt.Errorf("failed to encode job error: %w", err)
	}

	_, err = s.db.ExecContext(ctx, query,
		job.ID.String(),
		string(job.Status),
		string(job.Input.Kind),
		job.Input.Location,
		string(optionsJSON),
		formatTime(job.CreatedAt),
		formatTimePtr(job.StartedAt),
		formatTimePtr(job.CompletedAt),
		resultJSON,
		errorJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job %s: %w", job.ID, err)
	}
	return nil
}

// Get returns a job by its ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*store.Job, error) {
	query := "SELECT " + jobColumns + " FROM jobs WHERE id = ?"

	job, err := scanJob(s.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	return job, nil
}

// Update rewrites all mutable fields of an existing job in one statement,
// so a failed write never leaves the row half-updated.
func (s *Store) Update(ctx context.Context, job *store.Job) error {
	query := `
		UPDATE jobs SET
			status = ?, started_at = ?, completed_at = ?, result = ?, error = ?
		WHERE id = ?
	`

	resultJSON, err := marshalNullable(job.Result)
	if err != nil {
		return fmt.Errorf("failed to encode job result: %w", err)
	}
	errorJSON, err := marshalNullable(job.Error)
	if err != nil {
		return fmt.Errorf("failed to encode job error: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query,
		string(job.Status),
		formatTimePtr(job.StartedAt),
		formatTimePtr(job.CompletedAt),
		resultJSON,
		errorJSON,
		job.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", job.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", job.ID, err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// List returns jobs newest-first, optionally filtered by status.
func (s *Store) List(ctx context.Context, status store.JobStatus) ([]*store.Job, error) {
	query := "SELECT " + jobColumns + " FROM jobs"
	args := []interface{}{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*store.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// CountByStatus returns the number of jobs in the given status.
func (s *Store) CountByStatus(ctx context.Context, status store.JobStatus) (int64, error) {
	query := "SELECT COUNT(*) FROM jobs"
	args := []interface{}{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return count, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*store.Job, error) {
	var (
		idStr       string
		status      string
		inputKind   string
		inputLoc    string
		optionsJSON string
		createdAt   string
		startedAt   sql.NullString
		completedAt sql.NullString
		resultJSON  sql.NullString
		errorJSON   sql.NullString
	)

	if err := row.Scan(&idStr, &status, &inputKind, &inputLoc, &optionsJSON,
		&createdAt, &startedAt, &completedAt, &resultJSON, &errorJSON); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid job id %q: %w", idStr, err)
	}

	job := &store.Job{
		ID:     id,
		Status: store.JobStatus(status),
		Input: store.InputRef{
			Kind:     store.InputKind(inputKind),
			Location: inputLoc,
		},
	}

	if err := json.Unmarshal([]byte(optionsJSON), &job.Options); err != nil {
		return nil, fmt.Errorf("invalid options for job %s: %w", id, err)
	}

	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at for job %s: %w", id, err)
	}
	if job.StartedAt, err = parseTimePtr(startedAt); err != nil {
		return nil, fmt.Errorf("invalid started_at for job %s: %w", id, err)
	}
	if job.CompletedAt, err = parseTimePtr(completedAt); err != nil {
		return nil, fmt.Errorf("invalid completed_at for job %s: %w", id, err)
	}

	if resultJSON.Valid {
		job.Result = &store.JobResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), job.Result); err != nil {
			return nil, fmt.Errorf("invalid result for job %s: %w", id, err)
		}
	}
	if errorJSON.Valid {
		job.Error = &store.JobError{}
		if err := json.Unmarshal([]byte(errorJSON.String), job.Error); err != nil {
			return nil, fmt.Errorf("invalid error for job %s: %w", id, err)
		}
	}

	return job, nil
}

func marshalNullable(v interface{}) (sql.NullString, error) {
	switch val := v.(type) {
	case *store.JobResult:
		if val == nil {
			return sql.NullString{}, nil
		}
	case *store.JobError:
		if val == nil {
			return sql.NullString{}, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// timeLayout is RFC 3339 with a fixed-width nanosecond fraction.
// Unlike time.RFC3339Nano it never trims trailing zeros, so the stored
// text sorts lexically in chronological order and ORDER BY created_at
// is the FIFO order the queue contract needs.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
