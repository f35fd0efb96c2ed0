package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// RecordHistory appends an audit event for a job. History is best-effort
// observability: failures are logged and swallowed so they can never fail
// the caller's primary operation.
func (s *Store) RecordHistory(ctx context.Context, jobID, unitName, event string, payload map[string]interface{}) {
	var payloadJSON []byte
	if payload != nil {
		var err error
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			s.logger.Warn("Failed to marshal history payload",
				slog.String("job_id", jobID),
				slog.String("event", event),
				slog.Any("error", err),
			)
			payloadJSON = nil
		}
	}

	query := `
		INSERT INTO queue_history (job_id, unit_name, event, payload, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, NOW())
	`

	if _, err := s.db.ExecContext(ctx, query, jobID, unitName, event, payloadJSON); err != nil {
		s.logger.Warn("Failed to record history event",
			slog.String("job_id", jobID),
			slog.String("event", event),
			slog.Any("error", err),
		)
	}
}

// ListHistory returns the audit trail for a job in append order
func (s *Store) ListHistory(ctx context.Context, jobID string) ([]QueueHistoryEvent, error) {
	query := `
		SELECT id, job_id, unit_name, event, payload, created_at
		FROM queue_history
		WHERE job_id = $1
		ORDER BY id ASC
	`

	var events []QueueHistoryEvent
	if err := s.db.SelectContext(ctx, &events, query, jobID); err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	return events, nil
}
