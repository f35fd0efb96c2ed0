// Package retry provides exponential backoff with jitter for unreliable
// remote calls (workflow trigger, alert webhook, recovery republish).
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config holds backoff settings for a retried operation
type Config struct {
	MaxAttempts         int
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// DefaultConfig returns the backoff settings used when a caller does not
// override them
func DefaultConfig() Config {
	return Config{
		MaxAttempts:         3,
		InitialInterval:     200 * time.Millisecond,
		MaxInterval:         5 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = def.InitialInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = def.MaxInterval
	}
	if c.Multiplier <= 0 {
		c.Multiplier = def.Multiplier
	}
	if c.RandomizationFactor < 0 {
		c.RandomizationFactor = def.RandomizationFactor
	}
	return c
}

// Permanent marks err as non-retryable; Do returns it immediately
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op with exponential backoff and jitter until it succeeds, returns
// a permanent error, the attempt budget is exhausted, or ctx is canceled.
// Each failed attempt is logged at warning level under the given name.
func Do(ctx context.Context, logger *slog.Logger, name string, cfg Config, op func() error) error {
	cfg = cfg.withDefaults()

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = cfg.InitialInterval
	exp.MaxInterval = cfg.MaxInterval
	exp.Multiplier = cfg.Multiplier
	exp.RandomizationFactor = cfg.RandomizationFactor
	exp.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(cfg.MaxAttempts-1)), ctx)

	notify := func(err error, next time.Duration) {
		logger.Warn("Operation failed, retrying",
			slog.String("operation", name),
			slog.Duration("retry_after", next),
			slog.Any("error", err),
		)
	}

	return backoff.RetryNotify(op, b, notify)
}
