package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listforge/pipeline/internal/domain"
)

// The tests below run the real queries against a throwaway Postgres
// container. Idempotent upserts, the stale-job scan and status transitions
// all live in SQL, so only a real database exercises them.

var (
	pgOnce sync.Once
	pgDB   *sqlx.DB
	pgErr  error
)

func testDB(t *testing.T) *sqlx.DB {
	t.Helper()
	pgOnce.Do(func() {
		pgDB, pgErr = startPostgres()
	})
	if pgErr != nil {
		t.Skipf("postgres container unavailable: %v", pgErr)
	}
	return pgDB
}

func startPostgres() (*sqlx.DB, error) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		return nil, fmt.Errorf("failed to create docker pool: %w", err)
	}
	if err := pool.Client.Ping(); err != nil {
		return nil, fmt.Errorf("docker daemon not reachable: %w", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=pipeline",
			"POSTGRES_PASSWORD=pipeline",
			"POSTGRES_DB=submissions_test",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}
	// Reaped even if the test process dies before cleanup
	_ = resource.Expire(300)

	var db *sqlx.DB
	pool.MaxWait = 60 * time.Second
	err = pool.Retry(func() error {
		var connErr error
		db, connErr = sqlx.Connect("postgres", fmt.Sprintf(
			"host=localhost port=%s user=pipeline password=pipeline dbname=submissions_test sslmode=disable",
			resource.GetPort("5432/tcp"),
		))
		return connErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres container: %w", err)
	}

	schema, err := os.ReadFile(filepath.Join("..", "..", "db", "schema.sql"))
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return db, nil
}

func newDBStore(t *testing.T) *Store {
	t.Helper()
	db := testDB(t)

	// Each test starts from empty tables
	_, err := db.Exec(`TRUNCATE jobs, job_results, queue_history, worker_heartbeats, directories CASCADE`)
	require.NoError(t, err)

	return &Store{
		db:     db,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func seedJob(t *testing.T, s *Store, status string, startedAgo time.Duration) string {
	t.Helper()
	id := uuid.New().String()
	_, err := s.db.Exec(`
		INSERT INTO jobs (id, customer_id, unit_count, priority, status, created_at, started_at)
		VALUES ($1, 'C1', 3, 1, $2, NOW(), NOW() - ($3 * INTERVAL '1 second'))
	`, id, status, int64(startedAgo.Seconds()))
	require.NoError(t, err)
	return id
}

func seedHeartbeat(t *testing.T, s *Store, workerID, jobID string, beatAgo time.Duration) {
	t.Helper()
	_, err := s.db.Exec(`
		INSERT INTO worker_heartbeats (worker_id, status, last_heartbeat, current_job_id)
		VALUES ($1, 'active', NOW() - ($2 * INTERVAL '1 second'), $3)
	`, workerID, int64(beatAgo.Seconds()), jobID)
	require.NoError(t, err)
}

func TestUpsertJobResult_SameKeyCollapsesToOneRow(t *testing.T) {
	s := newDBStore(t)
	ctx := context.Background()

	jobID := seedJob(t, s, domain.JobStatusInProgress, 0)
	payload := []byte(`{"name":"Acme Plumbing","city":"Austin"}`)

	id1, err := s.UpsertJobResult(ctx, JobResultParams{
		JobID:    jobID,
		UnitName: "yelp",
		Status:   domain.ResultStatusPending,
		Payload:  payload,
	})
	require.NoError(t, err)

	id2, err := s.UpsertJobResult(ctx, JobResultParams{
		JobID:       jobID,
		UnitName:    "yelp",
		Status:      domain.ResultStatusSubmitted,
		Payload:     payload,
		ResponseLog: "listing accepted",
	})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	results, err := s.ListJobResults(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.ResultStatusSubmitted, results[0].Status)
	require.NotNil(t, results[0].ResponseLog)
	assert.Equal(t, "listing accepted", *results[0].ResponseLog)
}

func TestUpsertJobResult_DifferentUnitsGetSeparateRows(t *testing.T) {
	s := newDBStore(t)
	ctx := context.Background()

	jobID := seedJob(t, s, domain.JobStatusInProgress, 0)
	payload := []byte(`{"name":"Acme Plumbing"}`)

	for _, unit := range []string{"yelp", "yellowpages"} {
		_, err := s.UpsertJobResult(ctx, JobResultParams{
			JobID:    jobID,
			UnitName: unit,
			Status:   domain.ResultStatusPending,
			Payload:  payload,
		})
		require.NoError(t, err)
	}

	results, err := s.ListJobResults(ctx, jobID)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestFindStaleJobs_HeartbeatBoundary(t *testing.T) {
	s := newDBStore(t)
	ctx := context.Background()

	fresh := seedJob(t, s, domain.JobStatusInProgress, 20*time.Minute)
	seedHeartbeat(t, s, "worker-fresh", fresh, 10*time.Second)

	stale := seedJob(t, s, domain.JobStatusInProgress, 20*time.Minute)
	seedHeartbeat(t, s, "worker-stale", stale, 15*time.Minute)

	orphan := seedJob(t, s, domain.JobStatusInProgress, 20*time.Minute)

	// Claimed moments ago, no heartbeat written yet: not stale
	seedJob(t, s, domain.JobStatusInProgress, 5*time.Second)

	// Not in_progress at all
	seedJob(t, s, domain.JobStatusPending, 20*time.Minute)

	jobs, err := s.FindStaleJobs(ctx, 10*time.Minute)
	require.NoError(t, err)

	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	assert.ElementsMatch(t, []string{stale, orphan}, ids)
}

func TestFindStaleJobs_DuplicateHeartbeatsYieldOneRow(t *testing.T) {
	s := newDBStore(t)
	ctx := context.Background()

	stale := seedJob(t, s, domain.JobStatusInProgress, 30*time.Minute)
	seedHeartbeat(t, s, "worker-1", stale, 20*time.Minute)
	seedHeartbeat(t, s, "worker-2", stale, 25*time.Minute)

	jobs, err := s.FindStaleJobs(ctx, 10*time.Minute)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, stale, jobs[0].ID)
}

func TestSetJobStatus_TransitionEnforcedInDatabase(t *testing.T) {
	s := newDBStore(t)
	ctx := context.Background()

	jobID := seedJob(t, s, domain.JobStatusPending, 0)

	require.NoError(t, s.SetJobStatus(ctx, jobID, domain.JobStatusInProgress, ""))
	require.NoError(t, s.SetJobStatus(ctx, jobID, domain.JobStatusComplete, ""))

	// Terminal state: no way back onto the queue
	err := s.SetJobStatus(ctx, jobID, domain.JobStatusPending, "")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	job, err := s.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusComplete, job.Status)
	assert.NotNil(t, job.StartedAt)
	assert.NotNil(t, job.CompletedAt)
}
