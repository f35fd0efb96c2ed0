package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// QueueMessage is the inbound submission request published by the product
// surface (or republished by the stale job monitor with Retry/Reason set).
type QueueMessage struct {
	JobID      string    `json:"job_id"`
	CustomerID string    `json:"customer_id"`
	UnitCount  int       `json:"unit_count"`
	Priority   int       `json:"priority"`
	CreatedAt  time.Time `json:"created_at"`
	Source     string    `json:"source"`
	Retry      bool      `json:"retry,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

// ParseQueueMessage decodes and validates a raw message body.
// Any failure unwraps to ErrMalformedMessage.
func ParseQueueMessage(body []byte) (*QueueMessage, error) {
	var msg QueueMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Validate checks the required fields (job_id, customer_id, unit_count)
func (m *QueueMessage) Validate() error {
	if m.JobID == "" {
		return &FieldError{Field: "job_id", Reason: "is required"}
	}
	if m.CustomerID == "" {
		return &FieldError{Field: "customer_id", Reason: "is required"}
	}
	if m.UnitCount <= 0 {
		return &FieldError{Field: "unit_count", Reason: "must be a positive integer"}
	}
	if m.Priority < 0 {
		return &FieldError{Field: "priority", Reason: "must not be negative"}
	}
	return nil
}

// Marshal encodes the message for publishing
func (m *QueueMessage) Marshal() ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal queue message: %w", err)
	}
	return body, nil
}
