package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQueueMessage(t *testing.T) {
	body := []byte(`{"job_id":"J1","customer_id":"C1","unit_count":5,"priority":2,"source":"checkout"}`)

	msg, err := ParseQueueMessage(body)
	require.NoError(t, err)
	assert.Equal(t, "J1", msg.JobID)
	assert.Equal(t, "C1", msg.CustomerID)
	assert.Equal(t, 5, msg.UnitCount)
	assert.Equal(t, 2, msg.Priority)
	assert.False(t, msg.Retry)
}

func TestParseQueueMessage_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "not json",
			body: `garbage`,
		},
		{
			name: "missing job_id",
			body: `{"customer_id":"C1","unit_count":5}`,
		},
		{
			name: "missing customer_id",
			body: `{"job_id":"J1","unit_count":5}`,
		},
		{
			name: "zero unit_count",
			body: `{"job_id":"J1","customer_id":"C1","unit_count":0}`,
		},
		{
			name: "negative priority",
			body: `{"job_id":"J1","customer_id":"C1","unit_count":5,"priority":-1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQueueMessage([]byte(tt.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedMessage)
		})
	}
}

func TestQueueMessage_MarshalRoundTrip(t *testing.T) {
	msg := &QueueMessage{
		JobID:      "J1",
		CustomerID: "C1",
		UnitCount:  3,
		Priority:   1,
		Source:     "stale-monitor",
		Retry:      true,
		Reason:     ReasonStaleRecovery,
	}

	body, err := msg.Marshal()
	require.NoError(t, err)

	parsed, err := ParseQueueMessage(body)
	require.NoError(t, err)
	assert.Equal(t, msg.JobID, parsed.JobID)
	assert.True(t, parsed.Retry)
	assert.Equal(t, ReasonStaleRecovery, parsed.Reason)
}
