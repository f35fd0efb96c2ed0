package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				// Verify some key fields are populated
				assert.Equal(t, "submissions_db", cfg.Database.Database)
				assert.Equal(t, "submission_queue", cfg.RabbitMQ.Queue.Name)
				assert.Equal(t, "submission_queue_dlq", cfg.RabbitMQ.DeadLetter.Queue)
				assert.Equal(t, 5, cfg.Consumer.BatchSize)
				assert.Equal(t, 10*time.Minute, cfg.Consumer.ProcessingLease)
				assert.Equal(t, 10*time.Minute, cfg.Monitor.StaleThreshold)
				assert.Equal(t, 2*time.Minute, cfg.Monitor.StaleCheckInterval)
				assert.Equal(t, "submission-consumer", cfg.App.Name)
			}
		})
	}
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "submissions_db",
		},
		RabbitMQ: RabbitMQConfig{
			Host: "localhost",
			Port: 5672,
			Exchange: ExchangeConfig{
				Name: "submissions_exchange",
			},
			Queue: QueueConfig{
				Name: "submission_queue",
			},
			DeadLetter: DeadLetterConfig{
				Exchange: "submissions_dlx",
				Queue:    "submission_queue_dlq",
			},
		},
		Flow: FlowConfig{
			Endpoint:       "http://localhost:4200/api/flow-runs",
			RequestTimeout: 30 * time.Second,
		},
		Consumer: ConsumerConfig{
			BatchSize:        5,
			ProcessingLease:  10 * time.Minute,
			FailureThreshold: 5,
			MaxReceiveCount:  3,
		},
		Monitor: MonitorConfig{
			StaleThreshold:     10 * time.Minute,
			StaleCheckInterval: 2 * time.Minute,
			DLQCheckInterval:   5 * time.Minute,
		},
		Alert: AlertConfig{
			WebhookURL: "https://hooks.example.com/services/T000/B000/XXXX",
		},
	}
}

func TestConfig_ValidateConsumerConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "empty database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name:      "invalid rabbitmq port",
			mutate:    func(c *Config) { c.RabbitMQ.Port = 70000 },
			wantErr:   true,
			errString: "invalid rabbitmq port",
		},
		{
			name:      "missing dead-letter queue",
			mutate:    func(c *Config) { c.RabbitMQ.DeadLetter.Queue = "" },
			wantErr:   true,
			errString: "dead-letter queue is required",
		},
		{
			name:      "missing flow endpoint",
			mutate:    func(c *Config) { c.Flow.Endpoint = "" },
			wantErr:   true,
			errString: "flow endpoint is required",
		},
		{
			name:      "flow timeout exceeds processing lease",
			mutate:    func(c *Config) { c.Flow.RequestTimeout = 15 * time.Minute },
			wantErr:   true,
			errString: "must be shorter than consumer processing_lease",
		},
		{
			name:      "zero batch size",
			mutate:    func(c *Config) { c.Consumer.BatchSize = 0 },
			wantErr:   true,
			errString: "batch_size must be greater than 0",
		},
		{
			name:      "zero failure threshold",
			mutate:    func(c *Config) { c.Consumer.FailureThreshold = 0 },
			wantErr:   true,
			errString: "failure_threshold must be greater than 0",
		},
		{
			name:      "zero max receive count",
			mutate:    func(c *Config) { c.Consumer.MaxReceiveCount = 0 },
			wantErr:   true,
			errString: "max_receive_count must be greater than 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateConsumerConfig()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateStaleMonitorConfig(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.ValidateStaleMonitorConfig())

	cfg.Monitor.StaleThreshold = 0
	err := cfg.ValidateStaleMonitorConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stale_threshold must be greater than 0")

	cfg = validConfig()
	cfg.Monitor.StaleCheckInterval = 0
	err = cfg.ValidateStaleMonitorConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stale_check_interval must be greater than 0")
}

func TestConfig_ValidateDLQMonitorConfig(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.ValidateDLQMonitorConfig())

	cfg.Alert.WebhookURL = ""
	err := cfg.ValidateDLQMonitorConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook_url is required")

	cfg = validConfig()
	cfg.Monitor.DLQCheckInterval = 0
	err = cfg.ValidateDLQMonitorConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dlq_check_interval must be greater than 0")
}

func TestConfig_ValidateOpsConfig(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.ValidateOpsConfig())

	cfg.Server.Port = 0
	err := cfg.ValidateOpsConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid server port")
}
