package retry

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		MaxAttempts:         3,
		InitialInterval:     time.Millisecond,
		MaxInterval:         2 * time.Millisecond,
		Multiplier:          2.0,
		RandomizationFactor: 0,
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), slog.Default(), "test-op", testConfig(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("boom")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_ExhaustsAttemptBudget(t *testing.T) {
	attempts := 0
	wantErr := errors.New("still down")
	err := Do(context.Background(), slog.Default(), "test-op", testConfig(), func() error {
		attempts++
		return wantErr
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 3, attempts)
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	attempts := 0
	wantErr := errors.New("rejected")
	err := Do(context.Background(), slog.Default(), "test-op", testConfig(), func() error {
		attempts++
		return Permanent(wantErr)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, attempts)
}

func TestDo_ContextCancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := Do(ctx, slog.Default(), "test-op", testConfig(), func() error {
		attempts++
		cancel()
		return errors.New("boom")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	assert.Equal(t, DefaultConfig().MaxAttempts, cfg.MaxAttempts)
	assert.Equal(t, DefaultConfig().InitialInterval, cfg.InitialInterval)
	assert.Equal(t, DefaultConfig().Multiplier, cfg.Multiplier)
}
