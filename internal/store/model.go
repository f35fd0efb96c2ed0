package store

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Job is one customer work order
type Job struct {
	ID           string         `db:"id"`
	CustomerID   string         `db:"customer_id"`
	UnitCount    int            `db:"unit_count"`
	Priority     int            `db:"priority"`
	Status       string         `db:"status"`
	CreatedAt    time.Time      `db:"created_at"`
	StartedAt    *time.Time     `db:"started_at"`
	CompletedAt  *time.Time     `db:"completed_at"`
	ErrorMessage *string        `db:"error_message"`
	Metadata     types.JSONText `db:"metadata"`
}

// JobResult is one directory-submission outcome within a job
type JobResult struct {
	ID             string         `db:"id"`
	JobID          string         `db:"job_id"`
	UnitName       string         `db:"unit_name"`
	Status         string         `db:"status"`
	IdempotencyKey string         `db:"idempotency_key"`
	Payload        types.JSONText `db:"payload"`
	ResponseLog    *string        `db:"response_log"`
	ErrorMessage   *string        `db:"error_message"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

// QueueHistoryEvent is one row of the append-only audit trail
type QueueHistoryEvent struct {
	ID        int64          `db:"id"`
	JobID     string         `db:"job_id"`
	UnitName  *string        `db:"unit_name"`
	Event     string         `db:"event"`
	Payload   types.JSONText `db:"payload"`
	CreatedAt time.Time      `db:"created_at"`
}

// WorkerHeartbeat is the liveness record for an executing worker
type WorkerHeartbeat struct {
	WorkerID      string    `db:"worker_id"`
	Status        string    `db:"status"`
	LastHeartbeat time.Time `db:"last_heartbeat"`
	CurrentJobID  *string   `db:"current_job_id"`
	JobsCompleted int       `db:"jobs_completed"`
	JobsFailed    int       `db:"jobs_failed"`
}

// Directory is one third-party directory in the submission catalog
type Directory struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Category  string    `db:"category"`
	SubmitURL string    `db:"submit_url"`
	Active    bool      `db:"active"`
	CreatedAt time.Time `db:"created_at"`
}
