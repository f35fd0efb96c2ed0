package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// QueueInspector reads the current depth of a queue
type QueueInspector interface {
	QueueDepth(name string) (int, error)
}

// DeadLetterMonitor watches the dead-letter queue and raises edge-triggered
// operator alerts: one alert per depth increase, never one per cycle.
type DeadLetterMonitor struct {
	logger       *slog.Logger
	inspector    QueueInspector
	notifier     Notifier
	queueName    string
	dashboardURL string
	interval     time.Duration
	minDepth     int

	// lastAlerted is the depth at the previous successful alert. Reset to
	// zero once the queue drains so a future increase from zero alerts again.
	lastAlerted int
}

// DeadLetterConfig holds dead-letter monitor configuration
type DeadLetterConfig struct {
	Logger       *slog.Logger
	Inspector    QueueInspector
	Notifier     Notifier
	QueueName    string
	DashboardURL string
	Interval     time.Duration
	MinDepth     int
}

// NewDeadLetterMonitor creates a dead-letter monitor
func NewDeadLetterMonitor(cfg *DeadLetterConfig) *DeadLetterMonitor {
	minDepth := cfg.MinDepth
	if minDepth <= 0 {
		minDepth = 1
	}
	return &DeadLetterMonitor{
		logger:       cfg.Logger,
		inspector:    cfg.Inspector,
		notifier:     cfg.Notifier,
		queueName:    cfg.QueueName,
		dashboardURL: cfg.DashboardURL,
		interval:     cfg.Interval,
		minDepth:     minDepth,
	}
}

// Run executes check cycles until ctx is canceled
func (m *DeadLetterMonitor) Run(ctx context.Context) error {
	m.logger.Info("Dead-letter monitor started",
		slog.String("queue", m.queueName),
		slog.Duration("interval", m.interval),
	)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Dead-letter monitor stopped - context canceled")
			return nil
		case <-ticker.C:
			m.RunOnce(ctx)
		}
	}
}

// RunOnce performs one depth check
func (m *DeadLetterMonitor) RunOnce(ctx context.Context) {
	depth, err := m.inspector.QueueDepth(m.queueName)
	if err != nil {
		m.logger.Warn("Failed to read dead-letter queue depth",
			slog.String("queue", m.queueName),
			slog.Any("error", err),
		)
		return
	}

	if depth == 0 {
		if m.lastAlerted != 0 {
			m.logger.Info("Dead-letter queue drained",
				slog.String("queue", m.queueName),
			)
		}
		m.lastAlerted = 0
		return
	}

	if depth < m.minDepth || depth <= m.lastAlerted {
		m.logger.Debug("Dead-letter depth unchanged",
			slog.String("queue", m.queueName),
			slog.Int("depth", depth),
			slog.Int("last_alerted", m.lastAlerted),
		)
		return
	}

	alert := Alert{
		Text: fmt.Sprintf(
			"Dead-letter queue %q depth rose to %d (last alerted at %d). Inspect failed messages: %s",
			m.queueName, depth, m.lastAlerted, m.dashboardURL,
		),
		Depth:     depth,
		Queue:     m.queueName,
		Timestamp: time.Now().UTC(),
	}

	if err := m.notifier.Send(ctx, alert); err != nil {
		// Tracker is not advanced, so the next cycle re-attempts the alert
		m.logger.Error("Failed to deliver dead-letter alert",
			slog.String("queue", m.queueName),
			slog.Int("depth", depth),
			slog.Any("error", err),
		)
		return
	}

	m.logger.Warn("Dead-letter alert sent",
		slog.String("queue", m.queueName),
		slog.Int("depth", depth),
	)
	m.lastAlerted = depth
}
