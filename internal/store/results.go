package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/listforge/pipeline/internal/idempotency"
)

// JobResultParams carries the fields of an upserted submission outcome
type JobResultParams struct {
	JobID          string
	UnitName       string
	IdempotencyKey string
	Status         string
	Payload        []byte
	ResponseLog    string
	ErrorMessage   string
}

// UpsertJobResult inserts or updates a submission outcome keyed on its
// idempotency key. Concurrent or duplicate calls with the same key collapse
// into one logical row; the later call's status and logs win.
//
// Callers that computed a key before performing the submission pass it in;
// a blank key is derived here from (job, unit, payload) so the same triple
// always lands on the same row either way.
func (s *Store) UpsertJobResult(ctx context.Context, p JobResultParams) (string, error) {
	if p.IdempotencyKey == "" {
		key, err := idempotency.Key(p.JobID, p.UnitName, p.Payload)
		if err != nil {
			return "", fmt.Errorf("failed to derive idempotency key: %w", err)
		}
		p.IdempotencyKey = key
	} else if len(p.IdempotencyKey) != idempotency.KeyLength {
		return "", fmt.Errorf("idempotency key must be %d characters", idempotency.KeyLength)
	}

	query := `
		INSERT INTO job_results (
			id, job_id, unit_name, status, idempotency_key,
			payload, response_log, error_message, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, NULLIF($7, ''), NULLIF($8, ''), NOW(), NOW()
		)
		ON CONFLICT (idempotency_key) DO UPDATE SET
			status = EXCLUDED.status,
			response_log = EXCLUDED.response_log,
			error_message = EXCLUDED.error_message,
			updated_at = NOW()
		RETURNING id
	`

	var id string
	err := s.db.QueryRowContext(
		ctx,
		query,
		uuid.New().String(),
		p.JobID,
		p.UnitName,
		p.Status,
		p.IdempotencyKey,
		p.Payload,
		p.ResponseLog,
		p.ErrorMessage,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert job result: %w", err)
	}

	s.logger.Debug("Job result upserted",
		slog.String("job_id", p.JobID),
		slog.String("unit", p.UnitName),
		slog.String("status", p.Status),
		slog.String("idempotency_key", p.IdempotencyKey),
	)

	return id, nil
}

// ListJobResults returns all submission outcomes for a job, oldest first
func (s *Store) ListJobResults(ctx context.Context, jobID string) ([]JobResult, error) {
	query := `
		SELECT id, job_id, unit_name, status, idempotency_key,
		       payload, response_log, error_message, created_at, updated_at
		FROM job_results
		WHERE job_id = $1
		ORDER BY created_at ASC, id ASC
	`

	var results []JobResult
	if err := s.db.SelectContext(ctx, &results, query, jobID); err != nil {
		return nil, fmt.Errorf("failed to list job results: %w", err)
	}

	return results, nil
}
