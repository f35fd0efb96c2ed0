// Package store is the job store DAO, the only component permitted to
// read or write jobs, job_results, queue_history and worker_heartbeats.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/listforge/pipeline/internal/domain"
	"github.com/listforge/pipeline/shared/postgresql"
)

// Store handles all database operations for the pipeline
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store instance
func NewStore(pg *postgresql.Client, logger *slog.Logger) *Store {
	return &Store{
		db:     pg.DB(),
		logger: logger,
	}
}

// allowedTransitions maps a job status to the statuses it may move to.
// in_progress -> pending is the stale-recovery path and nothing else.
var allowedTransitions = map[string][]string{
	domain.JobStatusPending: {domain.JobStatusInProgress},
	domain.JobStatusInProgress: {
		domain.JobStatusComplete,
		domain.JobStatusFailed,
		domain.JobStatusPending,
	},
}

// validTransition reports whether a job may move from one status to another
func validTransition(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// transitionSources returns the statuses a job must currently be in for a
// move to the target status to be legal
func transitionSources(to string) []string {
	var sources []string
	for from, targets := range allowedTransitions {
		for _, next := range targets {
			if next == to {
				sources = append(sources, from)
			}
		}
	}
	return sources
}

// GetJob retrieves a job by its ID
func (s *Store) GetJob(ctx context.Context, jobID string) (*Job, error) {
	query := `
		SELECT id, customer_id, unit_count, priority, status,
		       created_at, started_at, completed_at, error_message, metadata
		FROM jobs
		WHERE id = $1
	`

	var job Job
	if err := s.db.GetContext(ctx, &job, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// SetJobStatus moves a job to the given status, enforcing the allowed
// transition set. The current status is checked inside the UPDATE itself so
// concurrent callers cannot race a job through an illegal path.
func (s *Store) SetJobStatus(ctx context.Context, jobID, status, errorMessage string) error {
	sources := transitionSources(status)
	if len(sources) == 0 {
		return fmt.Errorf("%w: no path to status %q", domain.ErrInvalidTransition, status)
	}

	query := `
		UPDATE jobs
		SET status = $1,
		    error_message = NULLIF($2, ''),
		    started_at = CASE WHEN $1 = 'in_progress' THEN NOW() ELSE started_at END,
		    completed_at = CASE WHEN $1 IN ('complete', 'failed') THEN NOW() ELSE completed_at END
		WHERE id = $3
		  AND status = ANY($4)
	`

	result, err := s.db.ExecContext(ctx, query, status, errorMessage, jobID, pq.Array(sources))
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		job, getErr := s.GetJob(ctx, jobID)
		if getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: %s -> %s for job %s", domain.ErrInvalidTransition, job.Status, status, jobID)
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", jobID),
		slog.String("status", status),
	)

	return nil
}

// JobFilter narrows ListJobs results
type JobFilter struct {
	CustomerID string
	Status     string
	PageSize   int
	Cursor     *JobCursor
}

// JobCursor is a keyset pagination position over (created_at, id)
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// ListJobs returns up to PageSize+1 jobs matching the filter, newest first.
// The extra row lets the caller detect a next page.
func (s *Store) ListJobs(ctx context.Context, filter JobFilter) ([]Job, error) {
	query := `
		SELECT id, customer_id, unit_count, priority, status,
		       created_at, started_at, completed_at, error_message, metadata
		FROM jobs
		WHERE 1=1
	`
	args := []interface{}{}
	argIdx := 1

	if filter.CustomerID != "" {
		query += fmt.Sprintf(" AND customer_id = $%d", argIdx)
		args = append(args, filter.CustomerID)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []Job
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}
