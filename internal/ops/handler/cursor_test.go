package handler

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listforge/pipeline/internal/store"
)

func TestJobCursorRoundTrip(t *testing.T) {
	original := &store.JobCursor{
		CreatedAt: time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC),
		JobID:     "7f2b1c9a-58e0-4f11-9d3c-2a6f0e8b4d71",
	}

	encoded, err := EncodeJobCursor(original)
	require.NoError(t, err)

	decoded, err := DecodeJobCursor(encoded)
	require.NoError(t, err)
	require.NotNil(t, decoded)

	assert.True(t, decoded.CreatedAt.Equal(original.CreatedAt))
	assert.Equal(t, original.JobID, decoded.JobID)
}

func TestDecodeJobCursor_Empty(t *testing.T) {
	cursor, err := DecodeJobCursor("")
	require.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestDecodeJobCursor_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
	}{
		{
			name:   "not base64",
			cursor: "!!not-base64!!",
		},
		{
			name:   "missing separator",
			cursor: base64.StdEncoding.EncodeToString([]byte("1234567890")),
		},
		{
			name:   "non-numeric timestamp",
			cursor: base64.StdEncoding.EncodeToString([]byte("abc|job-1")),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeJobCursor(tt.cursor)
			assert.Error(t, err)
		})
	}
}
