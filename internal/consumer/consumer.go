// Package consumer drains the submission queue and converts each message
// into exactly one workflow-run attempt.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/listforge/pipeline/internal/domain"
	"github.com/listforge/pipeline/internal/flow"
	"github.com/listforge/pipeline/shared/rabbitmq"
)

// maxLoggedBody caps how much of an offending message body ends up in logs
const maxLoggedBody = 512

// JobStore is the slice of the job store the consumer needs
type JobStore interface {
	SetJobStatus(ctx context.Context, jobID, status, errorMessage string) error
	RecordHistory(ctx context.Context, jobID, unitName, event string, payload map[string]interface{})
}

// Trigger starts workflow runs
type Trigger interface {
	StartRun(ctx context.Context, params flow.RunParameters) (string, error)
}

// Publisher puts rejected messages back onto the submission queue with an
// explicit attempt counter
type Publisher interface {
	PublishWithHeaders(ctx context.Context, body []byte, contentType string, headers amqp.Table) error
}

// Config holds consumer configuration
type Config struct {
	Logger       *slog.Logger
	Store        JobStore
	Trigger      Trigger
	Publisher    Publisher
	RabbitClient *rabbitmq.Client

	BatchSize        int
	ProcessingLease  time.Duration
	FailureThreshold int
	MaxReceiveCount  int
}

// Consumer is the queue consumer process
type Consumer struct {
	logger       *slog.Logger
	store        JobStore
	trigger      Trigger
	publisher    Publisher
	rabbitClient *rabbitmq.Client

	consumerID      string
	batchSize       int
	processingLease time.Duration
	maxReceiveCount int
	breaker         *CircuitBreaker
}

// NewConsumer creates a new consumer instance
func NewConsumer(cfg *Config) *Consumer {
	return &Consumer{
		logger:          cfg.Logger,
		store:           cfg.Store,
		trigger:         cfg.Trigger,
		publisher:       cfg.Publisher,
		rabbitClient:    cfg.RabbitClient,
		consumerID:      fmt.Sprintf("consumer-%s", uuid.New().String()[:8]),
		batchSize:       cfg.BatchSize,
		processingLease: cfg.ProcessingLease,
		maxReceiveCount: cfg.MaxReceiveCount,
		breaker:         NewCircuitBreaker(cfg.FailureThreshold),
	}
}

// Start subscribes to the submission queue and processes deliveries until
// ctx is canceled or the circuit breaker trips. A tripped breaker returns
// domain.ErrCircuitOpen so the process exits loudly instead of spinning
// through an outage.
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.rabbitClient.Consume(c.consumerID, c.batchSize)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("Queue consumer started",
		slog.String("consumer_id", c.consumerID),
		slog.Int("batch_size", c.batchSize),
		slog.Duration("processing_lease", c.processingLease),
	)

	return c.consume(ctx, deliveries)
}

// consume is the delivery loop, split from Start so tests can feed it
// fabricated deliveries
func (c *Consumer) consume(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Queue consumer stopped - context canceled")
			return nil

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("Delivery channel closed")
				return fmt.Errorf("delivery channel closed")
			}

			c.handleDelivery(ctx, &delivery)

			if c.breaker.Tripped() {
				c.logger.Error("Circuit breaker tripped, stopping consumer",
					slog.Int("consecutive_failures", c.breaker.Failures()),
				)
				return domain.ErrCircuitOpen
			}
		}
	}
}

// handleDelivery processes a single message end to end: validate, record the
// claim, trigger the workflow run, then ack. Ack only after a successful
// trigger; acking first and failing to trigger would silently lose the job.
func (c *Consumer) handleDelivery(ctx context.Context, d *amqp.Delivery) {
	receiveCount := rabbitmq.ReceiveCount(d)

	msg, err := domain.ParseQueueMessage(d.Body)
	if err != nil {
		c.rejectMalformed(ctx, d, receiveCount, err)
		// The iteration itself worked; only infrastructure failures feed
		// the breaker.
		c.breaker.Success()
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.processingLease)
	defer cancel()

	retryAttempt := msg.Retry || d.Redelivered

	c.store.RecordHistory(ctx, msg.JobID, "", domain.EventQueueClaimed, map[string]interface{}{
		"consumer_id":   c.consumerID,
		"receive_count": receiveCount,
		"retry":         retryAttempt,
		"reason":        msg.Reason,
		"priority":      msg.Priority,
		"source":        msg.Source,
	})

	runID, err := c.trigger.StartRun(ctx, flow.RunParameters{
		JobID:        msg.JobID,
		CustomerID:   msg.CustomerID,
		UnitCount:    msg.UnitCount,
		Priority:     msg.Priority,
		Retry:        retryAttempt,
		ReceiveCount: receiveCount,
	})
	if err != nil {
		c.logger.Error("Failed to trigger workflow run",
			slog.String("job_id", msg.JobID),
			slog.Int("receive_count", receiveCount),
			slog.Any("error", err),
		)
		c.breaker.Failure()

		// Leave the message for redelivery
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.logger.Error("Failed to NACK message after trigger failure",
				slog.String("job_id", msg.JobID),
				slog.Any("error", nackErr),
			)
		}
		return
	}

	c.markStarted(ctx, msg.JobID)

	c.store.RecordHistory(ctx, msg.JobID, "", domain.EventFlowTriggered, map[string]interface{}{
		"run_id":        runID,
		"retry":         retryAttempt,
		"receive_count": receiveCount,
	})

	if ackErr := d.Ack(false); ackErr != nil {
		// The trigger already succeeded; the broker will redeliver and the
		// downstream idempotent writes absorb the duplicate.
		c.logger.Error("Failed to ACK message after successful trigger",
			slog.String("job_id", msg.JobID),
			slog.String("run_id", runID),
			slog.Any("error", ackErr),
		)
		c.breaker.Failure()
		return
	}

	c.logger.Info("Message processed",
		slog.String("job_id", msg.JobID),
		slog.String("run_id", runID),
		slog.Bool("retry", retryAttempt),
	)
	c.breaker.Success()
}

// rejectMalformed handles a message that failed validation. Below the
// receive ceiling it is republished with an incremented attempt counter and
// the original acked; at the ceiling it is dead-lettered. A plain requeue
// would not advance any counter, so producers' garbage could cycle forever.
func (c *Consumer) rejectMalformed(ctx context.Context, d *amqp.Delivery, receiveCount int, parseErr error) {
	body := d.Body
	if len(body) > maxLoggedBody {
		body = body[:maxLoggedBody]
	}

	c.logger.Error("Rejecting malformed message",
		slog.Int("receive_count", receiveCount),
		slog.Int("max_receive_count", c.maxReceiveCount),
		slog.String("body", string(body)),
		slog.Any("error", parseErr),
	)

	if receiveCount >= c.maxReceiveCount {
		if err := d.Nack(false, false); err != nil {
			c.logger.Error("Failed to dead-letter malformed message",
				slog.Any("error", err),
			)
		}
		return
	}

	headers := amqp.Table{rabbitmq.ReceiveCountHeader: int64(receiveCount + 1)}
	if err := c.publisher.PublishWithHeaders(ctx, d.Body, d.ContentType, headers); err != nil {
		// Fall back to a broker requeue rather than lose the message
		c.logger.Error("Failed to republish malformed message",
			slog.Int("receive_count", receiveCount),
			slog.Any("error", err),
		)
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.logger.Error("Failed to NACK malformed message",
				slog.Any("error", nackErr),
			)
		}
		return
	}

	if err := d.Ack(false); err != nil {
		c.logger.Error("Failed to ACK republished malformed message",
			slog.Any("error", err),
		)
	}
}

// markStarted moves the job to in_progress. A job already started by an
// earlier duplicate trigger, or not yet visible in the store, must not fail
// message processing.
func (c *Consumer) markStarted(ctx context.Context, jobID string) {
	err := c.store.SetJobStatus(ctx, jobID, domain.JobStatusInProgress, "")
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidTransition):
		c.logger.Debug("Job already past pending",
			slog.String("job_id", jobID),
		)
	case errors.Is(err, domain.ErrJobNotFound):
		c.logger.Warn("Job row not found while marking started",
			slog.String("job_id", jobID),
		)
	default:
		c.logger.Error("Failed to mark job started",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
	}
}
