// Package monitor holds the two watchdog loops: stale-job recovery and
// dead-letter alerting.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/listforge/pipeline/internal/domain"
	"github.com/listforge/pipeline/internal/retry"
	"github.com/listforge/pipeline/internal/store"
)

// recoveredMessage is the error note written on a job pulled back from a
// dead worker
const recoveredMessage = "recovered from stale state"

// StaleStore is the slice of the job store the stale monitor needs
type StaleStore interface {
	FindStaleJobs(ctx context.Context, threshold time.Duration) ([]store.Job, error)
	SetJobStatus(ctx context.Context, jobID, status, errorMessage string) error
	RecordHistory(ctx context.Context, jobID, unitName, event string, payload map[string]interface{})
}

// Publisher republishes recovery messages to the submission queue
type Publisher interface {
	Publish(ctx context.Context, body []byte, contentType string) error
}

// StaleJobMonitor detects in_progress jobs whose worker stopped
// heartbeating and re-enqueues them. This is the only legitimate path for a
// job to move from in_progress back to pending.
type StaleJobMonitor struct {
	logger    *slog.Logger
	store     StaleStore
	publisher Publisher
	threshold time.Duration
	interval  time.Duration
	retryCfg  retry.Config
}

// StaleConfig holds stale monitor configuration
type StaleConfig struct {
	Logger    *slog.Logger
	Store     StaleStore
	Publisher Publisher
	Threshold time.Duration
	Interval  time.Duration
}

// NewStaleJobMonitor creates a stale job monitor
func NewStaleJobMonitor(cfg *StaleConfig) *StaleJobMonitor {
	return &StaleJobMonitor{
		logger:    cfg.Logger,
		store:     cfg.Store,
		publisher: cfg.Publisher,
		threshold: cfg.Threshold,
		interval:  cfg.Interval,
		retryCfg:  retry.DefaultConfig(),
	}
}

// Run executes recovery cycles until ctx is canceled
func (m *StaleJobMonitor) Run(ctx context.Context) error {
	m.logger.Info("Stale job monitor started",
		slog.Duration("threshold", m.threshold),
		slog.Duration("interval", m.interval),
	)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Stale job monitor stopped - context canceled")
			return nil
		case <-ticker.C:
			m.RunOnce(ctx)
		}
	}
}

// RunOnce performs one recovery cycle
func (m *StaleJobMonitor) RunOnce(ctx context.Context) {
	jobs, err := m.store.FindStaleJobs(ctx, m.threshold)
	if err != nil {
		m.logger.Error("Failed to scan for stale jobs",
			slog.Any("error", err),
		)
		return
	}

	for _, job := range jobs {
		m.recover(ctx, &job)
	}
}

// recover re-enqueues one stale job. If the republish fails the job stays
// in_progress and the next cycle retries; a transient queue outage must not
// be recorded as a processing failure.
func (m *StaleJobMonitor) recover(ctx context.Context, job *store.Job) {
	msg := domain.QueueMessage{
		JobID:      job.ID,
		CustomerID: job.CustomerID,
		UnitCount:  job.UnitCount,
		Priority:   job.Priority,
		CreatedAt:  time.Now().UTC(),
		Source:     "stale-monitor",
		Retry:      true,
		Reason:     domain.ReasonStaleRecovery,
	}

	body, err := msg.Marshal()
	if err != nil {
		m.logger.Error("Failed to marshal recovery message",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
		return
	}

	err = retry.Do(ctx, m.logger, "stale_recovery_publish", m.retryCfg, func() error {
		return m.publisher.Publish(ctx, body, "application/json")
	})
	if err != nil {
		m.logger.Warn("Failed to republish stale job, will retry next cycle",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
		return
	}

	if err := m.store.SetJobStatus(ctx, job.ID, domain.JobStatusPending, recoveredMessage); err != nil {
		// The retry message is already out; the consumer's in_progress
		// transition will fail harmlessly if this row never moves.
		m.logger.Error("Failed to reset recovered job to pending",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
		return
	}

	m.store.RecordHistory(ctx, job.ID, "", domain.EventStaleJobRecovered, map[string]interface{}{
		"message":   recoveredMessage,
		"reason":    domain.ReasonStaleRecovery,
		"threshold": m.threshold.String(),
	})

	m.logger.Info("Stale job recovered",
		slog.String("job_id", job.ID),
		slog.String("customer_id", job.CustomerID),
	)
}
