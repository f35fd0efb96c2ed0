package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/listforge/pipeline/internal/domain"
)

// UpsertHeartbeat records a worker's liveness. Called periodically by
// executing workers; the schema and query contract live here so the store
// stays the single owner of the table.
func (s *Store) UpsertHeartbeat(ctx context.Context, workerID, status string, currentJobID *string) error {
	query := `
		INSERT INTO worker_heartbeats (
			worker_id, status, last_heartbeat, current_job_id, jobs_completed, jobs_failed
		) VALUES ($1, $2, NOW(), $3, 0, 0)
		ON CONFLICT (worker_id) DO UPDATE SET
			status = EXCLUDED.status,
			last_heartbeat = NOW(),
			current_job_id = EXCLUDED.current_job_id
	`

	if _, err := s.db.ExecContext(ctx, query, workerID, status, currentJobID); err != nil {
		return fmt.Errorf("failed to upsert heartbeat: %w", err)
	}

	return nil
}

// IncrementWorkerCounters bumps a worker's completed/failed counters
func (s *Store) IncrementWorkerCounters(ctx context.Context, workerID string, completed, failed int) error {
	query := `
		UPDATE worker_heartbeats
		SET jobs_completed = jobs_completed + $2,
		    jobs_failed = jobs_failed + $3
		WHERE worker_id = $1
	`

	if _, err := s.db.ExecContext(ctx, query, workerID, completed, failed); err != nil {
		return fmt.Errorf("failed to increment worker counters: %w", err)
	}

	return nil
}

// ListHeartbeats returns all worker heartbeat rows, most recent first
func (s *Store) ListHeartbeats(ctx context.Context) ([]WorkerHeartbeat, error) {
	query := `
		SELECT worker_id, status, last_heartbeat, current_job_id, jobs_completed, jobs_failed
		FROM worker_heartbeats
		ORDER BY last_heartbeat DESC
	`

	var heartbeats []WorkerHeartbeat
	if err := s.db.SelectContext(ctx, &heartbeats, query); err != nil {
		return nil, fmt.Errorf("failed to list heartbeats: %w", err)
	}

	return heartbeats, nil
}

// FindStaleJobs returns in_progress jobs whose worker heartbeat is missing
// or older than the threshold. Jobs started within the threshold are not
// reported, so a just-claimed job that has not written its first heartbeat
// yet cannot be a false positive. DISTINCT because more than one heartbeat
// row may reference the same job and each job must be recovered once.
func (s *Store) FindStaleJobs(ctx context.Context, threshold time.Duration) ([]Job, error) {
	query := `
		SELECT DISTINCT j.id, j.customer_id, j.unit_count, j.priority, j.status,
		       j.created_at, j.started_at, j.completed_at, j.error_message, j.metadata
		FROM jobs j
		LEFT JOIN worker_heartbeats w ON w.current_job_id = j.id
		WHERE j.status = $1
		  AND j.started_at IS NOT NULL
		  AND j.started_at < NOW() - ($2 * INTERVAL '1 second')
		  AND (w.worker_id IS NULL OR w.last_heartbeat < NOW() - ($2 * INTERVAL '1 second'))
		ORDER BY j.priority DESC, j.started_at ASC
	`

	var jobs []Job
	err := s.db.SelectContext(ctx, &jobs, query, domain.JobStatusInProgress, int64(threshold.Seconds()))
	if err != nil {
		return nil, fmt.Errorf("failed to find stale jobs: %w", err)
	}

	if len(jobs) > 0 {
		s.logger.Warn("Stale jobs detected",
			slog.Int("count", len(jobs)),
			slog.Duration("threshold", threshold),
		)
	}

	return jobs, nil
}
