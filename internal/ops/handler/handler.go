package handler

import (
	"context"
	"log/slog"

	"github.com/listforge/pipeline/internal/store"
	"github.com/listforge/pipeline/shared/postgresql"
)

// Store is the read surface the handlers use. *store.Store satisfies it;
// tests substitute fakes.
type Store interface {
	GetJob(ctx context.Context, jobID string) (*store.Job, error)
	ListJobs(ctx context.Context, filter store.JobFilter) ([]store.Job, error)
	ListJobResults(ctx context.Context, jobID string) ([]store.JobResult, error)
	ListHistory(ctx context.Context, jobID string) ([]store.QueueHistoryEvent, error)
	ListHeartbeats(ctx context.Context) ([]store.WorkerHeartbeat, error)
	SearchDirectories(ctx context.Context, term string, limit int) ([]store.Directory, error)
}

var _ Store = (*store.Store)(nil)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger   *slog.Logger
	Store    Store
	DBClient *postgresql.Client
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger *slog.Logger
	store  Store
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		store:  deps.Store,
	}
}
