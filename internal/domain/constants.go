package domain

// Job status constants
const (
	JobStatusPending    = "pending"
	JobStatusInProgress = "in_progress"
	JobStatusComplete   = "complete"
	JobStatusFailed     = "failed"
)

// ValidJobStatus reports whether s is a known job status
func ValidJobStatus(s string) bool {
	switch s {
	case JobStatusPending, JobStatusInProgress, JobStatusComplete, JobStatusFailed:
		return true
	}
	return false
}

// Job result status constants
const (
	ResultStatusPending   = "pending"
	ResultStatusSubmitted = "submitted"
	ResultStatusFailed    = "failed"
	ResultStatusRetry     = "retry"
)

// Worker heartbeat status constants
const (
	WorkerStatusActive = "active"
	WorkerStatusIdle   = "idle"
	WorkerStatusError  = "error"
)

// Queue history event names
const (
	EventQueueClaimed       = "queue_claimed"
	EventFlowTriggered      = "flow_triggered"
	EventSubmissionComplete = "submission_complete"
	EventStaleJobRecovered  = "stale_job_recovered"
)

// ReasonStaleRecovery is the reason attached to messages republished by the
// stale job monitor.
const ReasonStaleRecovery = "stale_job_recovery"
