package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Alert is the operator notification sent when the dead-letter queue grows
type Alert struct {
	Text      string    `json:"text"`
	Depth     int       `json:"depth"`
	Queue     string    `json:"queue"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier delivers operator alerts
type Notifier interface {
	Send(ctx context.Context, alert Alert) error
}

// WebhookNotifier posts alerts to a chat webhook
type WebhookNotifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWebhookNotifier creates a webhook notifier
func NewWebhookNotifier(webhookURL string, timeout time.Duration, logger *slog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Send posts the alert as JSON. The caller treats failure as non-fatal.
func (n *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver alert: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook returned %d", resp.StatusCode)
	}

	n.logger.Debug("Alert delivered",
		slog.String("queue", alert.Queue),
		slog.Int("depth", alert.Depth),
	)

	return nil
}
