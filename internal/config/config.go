package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	App      AppConfig      `yaml:"app"`
	Logging  LoggingConfig  `yaml:"logging"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Flow     FlowConfig     `yaml:"flow"`
	Consumer ConsumerConfig `yaml:"consumer"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Alert    AlertConfig    `yaml:"alert"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// ServerConfig holds HTTP server configuration for the ops service
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds RabbitMQ connection and topology configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	DeadLetter DeadLetterConfig `yaml:"dead_letter"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Durable bool   `yaml:"durable"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name    string `yaml:"name"`
	Durable bool   `yaml:"durable"`
}

// DeadLetterConfig holds the dead-letter exchange and queue names
type DeadLetterConfig struct {
	Exchange string `yaml:"exchange"`
	Queue    string `yaml:"queue"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// FlowConfig holds workflow-runner trigger settings
type FlowConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	RunNamePrefix  string        `yaml:"run_name_prefix"`
	AuthToken      string        `yaml:"auth_token"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RetryAttempts  int           `yaml:"retry_attempts"`
	RetryInterval  time.Duration `yaml:"retry_interval"`
}

// ConsumerConfig holds queue consumer settings
type ConsumerConfig struct {
	// BatchSize is the consumer prefetch count, the bound on in-flight
	// unacked deliveries.
	BatchSize int `yaml:"batch_size"`
	// ProcessingLease is the end-to-end budget for handling one delivery.
	// All downstream calls must complete within it.
	ProcessingLease time.Duration `yaml:"processing_lease"`
	// FailureThreshold is the number of consecutive handling failures that
	// trips the circuit breaker and stops the process.
	FailureThreshold int `yaml:"failure_threshold"`
	// MaxReceiveCount is the delivery-attempt ceiling after which a
	// malformed message is routed to the dead-letter queue.
	MaxReceiveCount int `yaml:"max_receive_count"`
}

// MonitorConfig holds stale-job and dead-letter monitor settings
type MonitorConfig struct {
	StaleThreshold     time.Duration `yaml:"stale_threshold"`
	StaleCheckInterval time.Duration `yaml:"stale_check_interval"`
	DLQCheckInterval   time.Duration `yaml:"dlq_check_interval"`
	DLQAlertMinDepth   int           `yaml:"dlq_alert_min_depth"`
}

// AlertConfig holds operator alert notification settings
type AlertConfig struct {
	WebhookURL   string        `yaml:"webhook_url"`
	DashboardURL string        `yaml:"dashboard_url"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	return nil
}

func (c *Config) validateRabbitMQ() error {
	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}
	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}
	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}
	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}
	return nil
}

// ValidateConsumerConfig checks the settings the consumer service needs.
// A half-configured consumer silently drops work, so startup refuses instead.
func (c *Config) ValidateConsumerConfig() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateRabbitMQ(); err != nil {
		return err
	}

	if c.RabbitMQ.DeadLetter.Exchange == "" {
		return fmt.Errorf("rabbitmq dead-letter exchange is required")
	}
	if c.RabbitMQ.DeadLetter.Queue == "" {
		return fmt.Errorf("rabbitmq dead-letter queue is required")
	}

	if c.Flow.Endpoint == "" {
		return fmt.Errorf("flow endpoint is required")
	}
	if c.Flow.RequestTimeout <= 0 {
		return fmt.Errorf("flow request_timeout must be greater than 0")
	}

	if c.Consumer.BatchSize <= 0 {
		return fmt.Errorf("consumer batch_size must be greater than 0")
	}
	if c.Consumer.ProcessingLease <= 0 {
		return fmt.Errorf("consumer processing_lease must be greater than 0")
	}
	if c.Flow.RequestTimeout >= c.Consumer.ProcessingLease {
		return fmt.Errorf("flow request_timeout must be shorter than consumer processing_lease")
	}
	if c.Consumer.FailureThreshold <= 0 {
		return fmt.Errorf("consumer failure_threshold must be greater than 0")
	}
	if c.Consumer.MaxReceiveCount <= 0 {
		return fmt.Errorf("consumer max_receive_count must be greater than 0")
	}

	return nil
}

// ValidateStaleMonitorConfig checks the settings the stale-job monitor needs
func (c *Config) ValidateStaleMonitorConfig() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateRabbitMQ(); err != nil {
		return err
	}

	if c.Monitor.StaleThreshold <= 0 {
		return fmt.Errorf("monitor stale_threshold must be greater than 0")
	}
	if c.Monitor.StaleCheckInterval <= 0 {
		return fmt.Errorf("monitor stale_check_interval must be greater than 0")
	}

	return nil
}

// ValidateDLQMonitorConfig checks the settings the dead-letter monitor needs
func (c *Config) ValidateDLQMonitorConfig() error {
	if err := c.validateRabbitMQ(); err != nil {
		return err
	}

	if c.RabbitMQ.DeadLetter.Queue == "" {
		return fmt.Errorf("rabbitmq dead-letter queue is required")
	}
	if c.Monitor.DLQCheckInterval <= 0 {
		return fmt.Errorf("monitor dlq_check_interval must be greater than 0")
	}
	if c.Alert.WebhookURL == "" {
		return fmt.Errorf("alert webhook_url is required")
	}

	return nil
}

// ValidateOpsConfig checks the settings the ops API service needs
func (c *Config) ValidateOpsConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}
	return c.validateDatabase()
}
