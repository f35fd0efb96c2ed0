package dto

// ListJobsRequest are the query parameters of the job list endpoint
type ListJobsRequest struct {
	CustomerID string `form:"customer_id"`
	Status     string `form:"status"`
	PageSize   int    `form:"page_size"`
	Cursor     string `form:"cursor"`
}

// ListJobsResponse is a cursor-paginated page of jobs
type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

// JobDTO is the wire representation of a job
type JobDTO struct {
	JobID        string `json:"job_id"`
	CustomerID   string `json:"customer_id"`
	UnitCount    int    `json:"unit_count"`
	Priority     int    `json:"priority"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
	StartedAt    string `json:"started_at,omitempty"`
	CompletedAt  string `json:"completed_at,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// JobResultDTO is the wire representation of one submission outcome
type JobResultDTO struct {
	ID             string `json:"id"`
	JobID          string `json:"job_id"`
	UnitName       string `json:"unit_name"`
	Status         string `json:"status"`
	IdempotencyKey string `json:"idempotency_key"`
	ErrorMessage   string `json:"error_message,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// HistoryEventDTO is the wire representation of one audit event
type HistoryEventDTO struct {
	ID        int64  `json:"id"`
	JobID     string `json:"job_id"`
	UnitName  string `json:"unit_name,omitempty"`
	Event     string `json:"event"`
	Payload   string `json:"payload,omitempty"`
	CreatedAt string `json:"created_at"`
}

// WorkerDTO is the wire representation of a worker heartbeat row
type WorkerDTO struct {
	WorkerID      string `json:"worker_id"`
	Status        string `json:"status"`
	LastHeartbeat string `json:"last_heartbeat"`
	CurrentJobID  string `json:"current_job_id,omitempty"`
	JobsCompleted int    `json:"jobs_completed"`
	JobsFailed    int    `json:"jobs_failed"`
}

// DirectoryDTO is the wire representation of a catalog directory
type DirectoryDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	SubmitURL string `json:"submit_url"`
}
