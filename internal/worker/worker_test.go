package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/metasim/ogcapi/internal/ogc"
	queuememory "github.com/metasim/ogcapi/internal/queue/memory"
	"github.com/metasim/ogcapi/internal/runner"
	storememory "github.com/metasim/ogcapi/internal/storage/memory"
)

type scriptedRunner struct {
	describe ogc.Process
	run      func(ctx context.Context, inputs map[string]json.RawMessage) (json.RawMessage, error)
}

func (r *scriptedRunner) Describe() ogc.Process { return r.describe }

func (r *scriptedRunner) Run(ctx context.Context, inputs map[string]json.RawMessage) (json.RawMessage, error) {
	return r.run(ctx, inputs)
}

func awaitStatus(t *testing.T, store *storememory.JobStore, id string, want ogc.JobStatus) ogc.Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.Get(context.Background(), id)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", id, want)
	return ogc.Job{}
}

func startPool(t *testing.T, store *storememory.JobStore, runners map[string]ogc.Runner) (*Pool, *queuememory.Queue) {
	t.Helper()
	q := queuememory.NewQueue(8)
	pool := New(q, store, runners, Config{Workers: 2, MaxJobDuration: time.Second}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go pool.Run(ctx)
	return pool, q
}

func TestPoolSuccessFlow(t *testing.T) {
	t.Parallel()

	store := storememory.NewJobStore()
	_, q := startPool(t, store, map[string]ogc.Runner{"echo": runner.NewEcho()})

	ctx := context.Background()
	require.NoError(t, store.Create(ctx, ogc.Job{ID: "job-ok", ProcessID: "echo", Status: ogc.StatusAccepted}))
	require.NoError(t, q.Enqueue(ctx, ogc.Task{
		JobID:     "job-ok",
		ProcessID: "echo",
		Inputs:    map[string]json.RawMessage{"value": json.RawMessage(`42`)},
	}))

	job := awaitStatus(t, store, "job-ok", ogc.StatusSuccessful)
	require.JSONEq(t, `{"value":42}`, string(job.Result))
	require.NotNil(t, job.Started)
	require.NotNil(t, job.Finished)
	require.Empty(t, job.Message)
}

func TestPoolFailureFlow(t *testing.T) {
	t.Parallel()

	store := storememory.NewJobStore()
	failing := &scriptedRunner{run: func(context.Context, map[string]json.RawMessage) (json.RawMessage, error) {
		return nil, errors.New("projection mismatch")
	}}
	_, q := startPool(t, store, map[string]ogc.Runner{"reproject": failing})

	ctx := context.Background()
	require.NoError(t, store.Create(ctx, ogc.Job{ID: "job-bad", ProcessID: "reproject", Status: ogc.StatusAccepted}))
	require.NoError(t, q.Enqueue(ctx, ogc.Task{JobID: "job-bad", ProcessID: "reproject"}))

	job := awaitStatus(t, store, "job-bad", ogc.StatusFailed)
	require.Contains(t, job.Message, "projection mismatch")
	require.Nil(t, job.Result)
}

func TestPoolPanicBecomesFailedJob(t *testing.T) {
	t.Parallel()

	store := storememory.NewJobStore()
	panicking := &scriptedRunner{run: func(context.Context, map[string]json.RawMessage) (json.RawMessage, error) {
		panic("index out of range")
	}}
	_, q := startPool(t, store, map[string]ogc.Runner{"crashy": panicking})

	ctx := context.Background()
	require.NoError(t, store.Create(ctx, ogc.Job{ID: "job-panic", ProcessID: "crashy", Status: ogc.StatusAccepted}))
	require.NoError(t, q.Enqueue(ctx, ogc.Task{JobID: "job-panic", ProcessID: "crashy"}))

	job := awaitStatus(t, store, "job-panic", ogc.StatusFailed)
	require.Contains(t, job.Message, "process panicked")
}

func TestPoolMissingRunnerFailsJob(t *testing.T) {
	t.Parallel()

	store := storememory.NewJobStore()
	_, q := startPool(t, store, map[string]ogc.Runner{})

	ctx := context.Background()
	require.NoError(t, store.Create(ctx, ogc.Job{ID: "job-m", ProcessID: "ghost", Status: ogc.StatusAccepted}))
	require.NoError(t, q.Enqueue(ctx, ogc.Task{JobID: "job-m", ProcessID: "ghost"}))

	job := awaitStatus(t, store, "job-m", ogc.StatusFailed)
	require.Contains(t, job.Message, "no runner registered")
}

func TestPoolSkipsDismissedJob(t *testing.T) {
	t.Parallel()

	store := storememory.NewJobStore()
	ran := make(chan struct{}, 1)
	tattler := &scriptedRunner{run: func(context.Context, map[string]json.RawMessage) (json.RawMessage, error) {
		ran <- struct{}{}
		return json.RawMessage(`{}`), nil
	}}
	_, q := startPool(t, store, map[string]ogc.Runner{"echo": tattler})

	// The job record is already gone when the task is picked up.
	require.NoError(t, q.Enqueue(context.Background(), ogc.Task{JobID: "job-gone", ProcessID: "echo"}))

	select {
	case <-ran:
		t.Fatal("runner executed for a deleted job")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPoolDiscardsLateCompletionAfterDismiss(t *testing.T) {
	t.Parallel()

	store := storememory.NewJobStore()
	release := make(chan struct{})
	slow := &scriptedRunner{run: func(ctx context.Context, _ map[string]json.RawMessage) (json.RawMessage, error) {
		<-release
		return json.RawMessage(`{"late":true}`), nil
	}}
	pool, q := startPool(t, store, map[string]ogc.Runner{"slow": slow})

	ctx := context.Background()
	require.NoError(t, store.Create(ctx, ogc.Job{ID: "job-late", ProcessID: "slow", Status: ogc.StatusAccepted}))
	require.NoError(t, q.Enqueue(ctx, ogc.Task{JobID: "job-late", ProcessID: "slow"}))
	awaitStatus(t, store, "job-late", ogc.StatusRunning)

	// Dismiss while the runner is blocked, then let it finish.
	require.NoError(t, store.Delete(ctx, "job-late"))
	close(release)

	// The worker's completion write must observe NotFound and discard,
	// never resurrect the record.
	require.Eventually(t, func() bool {
		_, ok := pool.inflight.Load("job-late")
		return !ok
	}, 2*time.Second, 5*time.Millisecond)
	_, err := store.Get(ctx, "job-late")
	require.ErrorIs(t, err, ogc.ErrNotFound)
}

func TestPoolCancelInFlight(t *testing.T) {
	t.Parallel()

	store := storememory.NewJobStore()
	started := make(chan struct{})
	blocking := &scriptedRunner{run: func(ctx context.Context, _ map[string]json.RawMessage) (json.RawMessage, error) {
		close(started)
		<-ctx.Done()
		return nil, fmt.Errorf("interrupted: %w", ctx.Err())
	}}
	pool, q := startPool(t, store, map[string]ogc.Runner{"block": blocking})

	ctx := context.Background()
	require.NoError(t, store.Create(ctx, ogc.Job{ID: "job-c", ProcessID: "block", Status: ogc.StatusAccepted}))
	require.NoError(t, q.Enqueue(ctx, ogc.Task{JobID: "job-c", ProcessID: "block"}))
	<-started

	require.True(t, pool.Cancel("job-c"))
	job := awaitStatus(t, store, "job-c", ogc.StatusFailed)
	require.Contains(t, job.Message, "interrupted")

	require.False(t, pool.Cancel("job-c"))
}

func TestPoolTimesOutRunawayJob(t *testing.T) {
	t.Parallel()

	store := storememory.NewJobStore()
	q := queuememory.NewQueue(1)
	pool := New(q, store, map[string]ogc.Runner{
		"hang": &scriptedRunner{run: func(ctx context.Context, _ map[string]json.RawMessage) (json.RawMessage, error) {
			<-ctx.Done()
			return nil, fmt.Errorf("deadline: %w", ctx.Err())
		}},
	}, Config{Workers: 1, MaxJobDuration: 30 * time.Millisecond}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go pool.Run(ctx)

	require.NoError(t, store.Create(ctx, ogc.Job{ID: "job-hang", ProcessID: "hang", Status: ogc.StatusAccepted}))
	require.NoError(t, q.Enqueue(ctx, ogc.Task{JobID: "job-hang", ProcessID: "hang"}))

	job := awaitStatus(t, store, "job-hang", ogc.StatusFailed)
	require.Contains(t, job.Message, "deadline")
}
