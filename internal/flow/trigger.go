// Package flow is the thin adapter that starts asynchronous workflow runs
// on the external flow-runner service. All submission business logic lives
// on the other side of this call.
package flow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/listforge/pipeline/internal/domain"
	"github.com/listforge/pipeline/internal/retry"
)

// RunParameters are passed to the workflow run
type RunParameters struct {
	JobID        string `json:"job_id"`
	CustomerID   string `json:"customer_id"`
	UnitCount    int    `json:"unit_count"`
	Priority     int    `json:"priority"`
	Retry        bool   `json:"retry"`
	ReceiveCount int    `json:"receive_count"`
}

// runRequest is the flow-runner wire format
type runRequest struct {
	RunName    string        `json:"run_name"`
	Parameters RunParameters `json:"parameters"`
}

type runResponse struct {
	RunID string `json:"run_id"`
}

// TriggerError is the typed failure of a StartRun call. Transport errors are
// transient and worth a redelivery; rejections (4xx) are not.
type TriggerError struct {
	Transport  bool
	StatusCode int
	Err        error
}

func (e *TriggerError) Error() string {
	if e.Transport {
		return fmt.Sprintf("flow trigger transport error: %v", e.Err)
	}
	return fmt.Sprintf("flow trigger rejected (status %d): %v", e.StatusCode, e.Err)
}

func (e *TriggerError) Unwrap() error {
	return e.Err
}

// Config holds flow-runner client settings
type Config struct {
	Endpoint       string
	RunNamePrefix  string
	AuthToken      string
	RequestTimeout time.Duration
	RetryAttempts  int
	RetryInterval  time.Duration
}

// Trigger starts workflow runs over HTTP
type Trigger struct {
	config     *Config
	httpClient *http.Client
	retryCfg   retry.Config
	logger     *slog.Logger
}

// NewTrigger creates a flow trigger client
func NewTrigger(config *Config, logger *slog.Logger) *Trigger {
	return &Trigger{
		config: config,
		httpClient: &http.Client{
			Timeout: config.RequestTimeout,
		},
		retryCfg: retry.Config{
			MaxAttempts:     config.RetryAttempts,
			InitialInterval: config.RetryInterval,
		},
		logger: logger,
	}
}

// StartRun starts exactly one asynchronous workflow run and returns its run
// id. Transport failures are retried with backoff inside the call; a 4xx
// rejection is returned immediately. A timeout that raced a server-side
// success is reported as failure; the caller's redelivery plus idempotent
// downstream writes absorb the possible duplicate.
func (t *Trigger) StartRun(ctx context.Context, params RunParameters) (string, error) {
	if params.JobID == "" || params.CustomerID == "" {
		return "", &TriggerError{Err: fmt.Errorf("job_id and customer_id are required")}
	}
	if params.UnitCount <= 0 {
		return "", &TriggerError{Err: fmt.Errorf("unit_count must be positive")}
	}

	req := runRequest{
		RunName:    t.runName(params),
		Parameters: params,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", &TriggerError{Err: fmt.Errorf("failed to marshal run request: %w", err)}
	}

	var runID string
	err = retry.Do(ctx, t.logger, "flow_trigger", t.retryCfg, func() error {
		id, err := t.post(ctx, body)
		if err != nil {
			var te *TriggerError
			if errors.As(err, &te) && !te.Transport {
				return retry.Permanent(err)
			}
			return err
		}
		runID = id
		return nil
	})
	if err != nil {
		return "", err
	}

	t.logger.Info("Workflow run started",
		slog.String("job_id", params.JobID),
		slog.String("run_id", runID),
		slog.Bool("retry", params.Retry),
		slog.Int("receive_count", params.ReceiveCount),
	)

	return runID, nil
}

// runName derives a stable, human-readable run name. A flow runner that
// rejects duplicate run names will refuse the second trigger of the same
// attempt, which is the best deduplication available at this layer.
func (t *Trigger) runName(params RunParameters) string {
	name := fmt.Sprintf("%s-%s", t.config.RunNamePrefix, params.JobID)
	if params.Retry {
		name = fmt.Sprintf("%s-r%d", name, params.ReceiveCount)
	}
	return name
}

func (t *Trigger) post(ctx context.Context, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &TriggerError{Err: fmt.Errorf("failed to build request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if t.config.AuthToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.config.AuthToken)
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return "", &TriggerError{Transport: true, Err: domain.NewTransientError(err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &TriggerError{Transport: true, Err: domain.NewTransientError(err)}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var run runResponse
		if err := json.Unmarshal(respBody, &run); err != nil {
			return "", &TriggerError{StatusCode: resp.StatusCode, Err: fmt.Errorf("invalid run response: %w", err)}
		}
		if run.RunID == "" {
			return "", &TriggerError{StatusCode: resp.StatusCode, Err: fmt.Errorf("run response missing run_id")}
		}
		return run.RunID, nil

	case resp.StatusCode >= 500:
		return "", &TriggerError{
			Transport:  true,
			StatusCode: resp.StatusCode,
			Err:        domain.NewTransientError(fmt.Errorf("flow runner returned %d: %s", resp.StatusCode, truncate(respBody, 256))),
		}

	default:
		return "", &TriggerError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("flow runner returned %d: %s", resp.StatusCode, truncate(respBody, 256)),
		}
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
