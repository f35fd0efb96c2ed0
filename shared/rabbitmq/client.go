package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Config holds RabbitMQ connection and topology configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	VHost    string

	ExchangeName    string
	ExchangeType    string
	ExchangeDurable bool

	QueueName    string
	QueueDurable bool
	RoutingKey   string

	// Dead-letter topology. Messages nacked without requeue on QueueName are
	// routed through DeadLetterExchange into DeadLetterQueue.
	DeadLetterExchange string
	DeadLetterQueue    string

	RetryAttempts     int
	RetryInterval     time.Duration
	Heartbeat         time.Duration
	ConnectionTimeout time.Duration
}

// Client represents a RabbitMQ client
type Client struct {
	config      *Config
	conn        *amqp.Connection
	channel     *amqp.Channel
	logger      *slog.Logger
	closeChan   chan *amqp.Error
	isConnected bool
}

// NewClient creates a new RabbitMQ client and declares the exchange, queue
// and dead-letter topology
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	client := &Client{
		config:      config,
		logger:      logger,
		closeChan:   make(chan *amqp.Error),
		isConnected: false,
	}

	if err := client.connect(); err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ client: %w", err)
	}

	return client, nil
}

// connect establishes connection to RabbitMQ with retry logic
func (c *Client) connect() error {
	var err error

	dsn := fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		c.config.User,
		c.config.Password,
		c.config.Host,
		c.config.Port,
		c.config.VHost,
	)

	amqpConfig := amqp.Config{
		Heartbeat: c.config.Heartbeat,
		Locale:    "en_US",
	}

	for attempt := 1; attempt <= c.config.RetryAttempts; attempt++ {
		c.logger.Info("Connecting to RabbitMQ",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", c.config.RetryAttempts),
		)

		c.conn, err = amqp.DialConfig(dsn, amqpConfig)
		if err == nil {
			c.logger.Info("Successfully connected to RabbitMQ")
			break
		}

		c.logger.Error("Failed to connect to RabbitMQ",
			slog.Any("error", err),
			slog.Int("attempt", attempt),
		)

		if attempt < c.config.RetryAttempts {
			time.Sleep(c.config.RetryInterval)
		}
	}

	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", c.config.RetryAttempts, err)
	}

	c.channel, err = c.conn.Channel()
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to create channel: %w", err)
	}

	if err := c.setup(); err != nil {
		c.channel.Close()
		c.conn.Close()
		return fmt.Errorf("failed to setup exchange and queues: %w", err)
	}

	// Monitor connection
	c.closeChan = make(chan *amqp.Error)
	c.channel.NotifyClose(c.closeChan)
	c.isConnected = true

	c.logger.Info("RabbitMQ client initialized",
		slog.String("exchange", c.config.ExchangeName),
		slog.String("queue", c.config.QueueName),
		slog.String("dead_letter_queue", c.config.DeadLetterQueue),
	)

	return nil
}

// setup declares the dead-letter exchange/queue first, then the primary
// exchange and queue with dead-lettering pointed at them
func (c *Client) setup() error {
	if c.config.DeadLetterExchange != "" {
		err := c.channel.ExchangeDeclare(
			c.config.DeadLetterExchange, // name
			"direct",                    // type
			true,                        // durable
			false,                       // auto-deleted
			false,                       // internal
			false,                       // no-wait
			nil,                         // arguments
		)
		if err != nil {
			return fmt.Errorf("failed to declare dead-letter exchange: %w", err)
		}

		_, err = c.channel.QueueDeclare(
			c.config.DeadLetterQueue, // name
			true,                     // durable
			false,                    // auto-delete
			false,                    // exclusive
			false,                    // no-wait
			nil,                      // arguments
		)
		if err != nil {
			return fmt.Errorf("failed to declare dead-letter queue: %w", err)
		}

		err = c.channel.QueueBind(
			c.config.DeadLetterQueue,    // queue name
			c.config.RoutingKey,         // routing key
			c.config.DeadLetterExchange, // exchange
			false,                       // no-wait
			nil,                         // arguments
		)
		if err != nil {
			return fmt.Errorf("failed to bind dead-letter queue: %w", err)
		}
	}

	err := c.channel.ExchangeDeclare(
		c.config.ExchangeName,    // name
		c.config.ExchangeType,    // type
		c.config.ExchangeDurable, // durable
		false,                    // auto-deleted
		false,                    // internal
		false,                    // no-wait
		nil,                      // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	var queueArgs amqp.Table
	if c.config.DeadLetterExchange != "" {
		queueArgs = amqp.Table{
			"x-dead-letter-exchange": c.config.DeadLetterExchange,
		}
	}

	_, err = c.channel.QueueDeclare(
		c.config.QueueName,    // name
		c.config.QueueDurable, // durable
		false,                 // auto-delete
		false,                 // exclusive
		false,                 // no-wait
		queueArgs,             // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	err = c.channel.QueueBind(
		c.config.QueueName,    // queue name
		c.config.RoutingKey,   // routing key
		c.config.ExchangeName, // exchange
		false,                 // no-wait
		nil,                   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	return nil
}

// Publish publishes a persistent message to the primary exchange
func (c *Client) Publish(ctx context.Context, body []byte, contentType string) error {
	return c.PublishWithHeaders(ctx, body, contentType, nil)
}

// PublishWithHeaders publishes a persistent message with application headers
// set. Used for republishing rejected deliveries with an explicit receive
// count, since a broker requeue carries no attempt counter.
func (c *Client) PublishWithHeaders(ctx context.Context, body []byte, contentType string, headers amqp.Table) error {
	if !c.isConnected {
		return fmt.Errorf("not connected to RabbitMQ")
	}

	err := c.channel.PublishWithContext(
		ctx,
		c.config.ExchangeName, // exchange
		c.config.RoutingKey,   // routing key
		false,                 // mandatory
		false,                 // immediate
		amqp.Publishing{
			ContentType:  contentType,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Headers:      headers,
		},
	)

	if err != nil {
		c.logger.Error("Failed to publish message to RabbitMQ",
			slog.Any("error", err),
		)
		return fmt.Errorf("failed to publish message: %w", err)
	}

	c.logger.Debug("Message published to RabbitMQ",
		slog.Int("body_size", len(body)),
		slog.String("content_type", contentType),
	)

	return nil
}

// Consume starts consuming messages from the primary queue with the given
// prefetch count. Manual acknowledgment, non-exclusive.
func (c *Client) Consume(consumerTag string, prefetchCount int) (<-chan amqp.Delivery, error) {
	if !c.isConnected {
		return nil, fmt.Errorf("not connected to RabbitMQ")
	}

	// Prefetch bounds the number of in-flight unacked deliveries per
	// consumer, the AMQP equivalent of a bounded receive batch.
	if err := c.channel.Qos(prefetchCount, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	messages, err := c.channel.Consume(
		c.config.QueueName, // queue
		consumerTag,        // consumer tag
		false,              // auto-ack
		false,              // exclusive
		false,              // no-local
		false,              // no-wait
		nil,                // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to consume messages: %w", err)
	}

	c.logger.Info("Started consuming messages from RabbitMQ",
		slog.String("queue", c.config.QueueName),
		slog.String("consumer_tag", consumerTag),
		slog.Int("prefetch_count", prefetchCount),
	)

	return messages, nil
}

// QueueDepth returns the current message count of the named queue
func (c *Client) QueueDepth(name string) (int, error) {
	if !c.isConnected {
		return 0, fmt.Errorf("not connected to RabbitMQ")
	}

	state, err := c.channel.QueueInspect(name)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect queue %q: %w", name, err)
	}

	return state.Messages, nil
}

// ReceiveCountHeader carries the attempt count stamped onto consumer
// republishes. The broker only counts dead-letter cycles (x-death), not
// plain requeues, so republished messages track their own counter.
const ReceiveCountHeader = "x-receive-count"

// ReceiveCount returns how many times the delivery has been received,
// including the current attempt. The explicit republish counter takes the
// place of the initial attempt when present; prior dead-letter cycles are
// added from the x-death header the broker maintains.
func ReceiveCount(d *amqp.Delivery) int {
	count := 1
	switch n := d.Headers[ReceiveCountHeader].(type) {
	case int64:
		count = int(n)
	case int32:
		count = int(n)
	case int:
		count = n
	}
	deaths, ok := d.Headers["x-death"].([]interface{})
	if !ok {
		return count
	}
	for _, entry := range deaths {
		table, ok := entry.(amqp.Table)
		if !ok {
			continue
		}
		if n, ok := table["count"].(int64); ok {
			count += int(n)
		}
	}
	return count
}

// Close closes the RabbitMQ connection
func (c *Client) Close() error {
	c.logger.Info("Closing RabbitMQ connection")

	c.isConnected = false

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.logger.Error("Failed to close RabbitMQ channel",
				slog.Any("error", err),
			)
		}
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Error("Failed to close RabbitMQ connection",
				slog.Any("error", err),
			)
			return err
		}
	}

	c.logger.Info("RabbitMQ connection closed successfully")
	return nil
}

// IsConnected returns the connection status
func (c *Client) IsConnected() bool {
	return c.isConnected && c.conn != nil && !c.conn.IsClosed()
}
