package flow

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listforge/pipeline/internal/domain"
)

func testTrigger(endpoint string) *Trigger {
	return NewTrigger(&Config{
		Endpoint:       endpoint,
		RunNamePrefix:  "directory-submission",
		RequestTimeout: 2 * time.Second,
		RetryAttempts:  3,
		RetryInterval:  time.Millisecond,
	}, slog.Default())
}

func validParams() RunParameters {
	return RunParameters{
		JobID:        "job-1",
		CustomerID:   "cust-1",
		UnitCount:    3,
		Priority:     1,
		ReceiveCount: 1,
	}
}

func TestStartRun_Success(t *testing.T) {
	var gotReq runRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"run_id": "run-42"})
	}))
	defer srv.Close()

	runID, err := testTrigger(srv.URL).StartRun(context.Background(), validParams())

	require.NoError(t, err)
	assert.Equal(t, "run-42", runID)
	assert.Equal(t, "directory-submission-job-1", gotReq.RunName)
	assert.Equal(t, "job-1", gotReq.Parameters.JobID)
	assert.Equal(t, 3, gotReq.Parameters.UnitCount)
}

func TestStartRun_RetryRunNameCarriesAttempt(t *testing.T) {
	var gotReq runRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]string{"run_id": "run-43"})
	}))
	defer srv.Close()

	params := validParams()
	params.Retry = true
	params.ReceiveCount = 2

	_, err := testTrigger(srv.URL).StartRun(context.Background(), params)

	require.NoError(t, err)
	assert.Equal(t, "directory-submission-job-1-r2", gotReq.RunName)
	assert.True(t, gotReq.Parameters.Retry)
	assert.Equal(t, 2, gotReq.Parameters.ReceiveCount)
}

func TestStartRun_TransientFailureIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"run_id": "run-44"})
	}))
	defer srv.Close()

	runID, err := testTrigger(srv.URL).StartRun(context.Background(), validParams())

	require.NoError(t, err)
	assert.Equal(t, "run-44", runID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestStartRun_RejectionIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := testTrigger(srv.URL).StartRun(context.Background(), validParams())

	require.Error(t, err)
	var te *TriggerError
	require.True(t, errors.As(err, &te))
	assert.False(t, te.Transport)
	assert.Equal(t, http.StatusUnprocessableEntity, te.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, domain.IsTransient(err))
}

func TestStartRun_TransportErrorExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testTrigger(srv.URL).StartRun(context.Background(), validParams())

	require.Error(t, err)
	var te *TriggerError
	require.True(t, errors.As(err, &te))
	assert.True(t, te.Transport)
	assert.True(t, domain.IsTransient(err))
}

func TestStartRun_MissingRunID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	_, err := testTrigger(srv.URL).StartRun(context.Background(), validParams())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing run_id")
}

func TestStartRun_ValidatesParameters(t *testing.T) {
	trigger := testTrigger("http://localhost:0")

	tests := []struct {
		name   string
		mutate func(*RunParameters)
	}{
		{"missing job id", func(p *RunParameters) { p.JobID = "" }},
		{"missing customer id", func(p *RunParameters) { p.CustomerID = "" }},
		{"zero unit count", func(p *RunParameters) { p.UnitCount = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := validParams()
			tt.mutate(&params)

			_, err := trigger.StartRun(context.Background(), params)
			require.Error(t, err)
		})
	}
}
