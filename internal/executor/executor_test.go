package executor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/metasim/ogcapi/internal/ogc"
	queuememory "github.com/metasim/ogcapi/internal/queue/memory"
	"github.com/metasim/ogcapi/internal/registry"
	"github.com/metasim/ogcapi/internal/runner"
	storememory "github.com/metasim/ogcapi/internal/storage/memory"
)

type fakeIDGen struct {
	ids []string
}

func (f *fakeIDGen) NewID() (string, error) {
	id := f.ids[0]
	f.ids = f.ids[1:]
	return id, nil
}

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

type fakeCanceller struct {
	canceled []string
}

func (f *fakeCanceller) Cancel(jobID string) bool {
	f.canceled = append(f.canceled, jobID)
	return true
}

func newTestExecutor(q ogc.Queue, store ogc.JobStore, c Canceller) *Executor {
	reg := registry.FromRunners(runner.NewEcho(), runner.NewSleep())
	return New(
		reg,
		store,
		q,
		&fakeIDGen{ids: []string{"job-1", "job-2", "job-3"}},
		&fakeClock{now: time.Unix(100, 0).UTC()},
		c,
		Config{PollInterval: 5 * time.Millisecond},
		zap.NewNop(),
	)
}

func TestSubmitCreatesAcceptedJobAndEnqueues(t *testing.T) {
	t.Parallel()

	q := queuememory.NewQueue(4)
	store := storememory.NewJobStore()
	exec := newTestExecutor(q, store, nil)

	req := ogc.ExecuteRequest{Inputs: map[string]json.RawMessage{"message": json.RawMessage(`"hi"`)}}
	job, err := exec.Submit(context.Background(), "echo", req)
	require.NoError(t, err)
	require.Equal(t, "job-1", job.ID)
	require.Equal(t, ogc.StatusAccepted, job.Status)
	require.Equal(t, time.Unix(100, 0).UTC(), job.Created)

	stored, err := store.Get(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, ogc.StatusAccepted, stored.Status)

	task, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "job-1", task.JobID)
	require.Equal(t, "echo", task.ProcessID)
	require.JSONEq(t, `"hi"`, string(task.Inputs["message"]))
}

func TestSubmitUnknownProcess(t *testing.T) {
	t.Parallel()

	exec := newTestExecutor(queuememory.NewQueue(1), storememory.NewJobStore(), nil)
	_, err := exec.Submit(context.Background(), "terraform-the-moon", ogc.ExecuteRequest{})
	require.ErrorIs(t, err, ogc.ErrNotFound)
}

func TestSubmitRemovesJobWhenEnqueueFails(t *testing.T) {
	t.Parallel()

	q := queuememory.NewQueue(1)
	require.NoError(t, q.Enqueue(context.Background(), ogc.Task{JobID: "filler"}))
	store := storememory.NewJobStore()
	exec := newTestExecutor(q, store, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := exec.Submit(ctx, "echo", ogc.ExecuteRequest{})
	require.Error(t, err)

	_, err = store.Get(context.Background(), "job-1")
	require.ErrorIs(t, err, ogc.ErrNotFound)
}

func TestWaitReturnsOnTerminalStatus(t *testing.T) {
	t.Parallel()

	store := storememory.NewJobStore()
	exec := newTestExecutor(queuememory.NewQueue(1), store, nil)
	require.NoError(t, store.Create(context.Background(), ogc.Job{ID: "job-w", Status: ogc.StatusRunning}))

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = store.UpdateStatus(context.Background(), "job-w",
			[]ogc.JobStatus{ogc.StatusRunning}, ogc.StatusSuccessful, "", json.RawMessage(`{}`))
	}()

	job, err := exec.Wait(context.Background(), "job-w", time.Second)
	require.NoError(t, err)
	require.Equal(t, ogc.StatusSuccessful, job.Status)
}

func TestWaitTimesOutWithLastObservedJob(t *testing.T) {
	t.Parallel()

	store := storememory.NewJobStore()
	exec := newTestExecutor(queuememory.NewQueue(1), store, nil)
	require.NoError(t, store.Create(context.Background(), ogc.Job{ID: "job-w", Status: ogc.StatusAccepted}))

	job, err := exec.Wait(context.Background(), "job-w", 30*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, ogc.StatusAccepted, job.Status)
}

func TestDismissAcceptedJob(t *testing.T) {
	t.Parallel()

	store := storememory.NewJobStore()
	canceller := &fakeCanceller{}
	exec := newTestExecutor(queuememory.NewQueue(1), store, canceller)
	require.NoError(t, store.Create(context.Background(), ogc.Job{ID: "job-d", Status: ogc.StatusAccepted}))

	require.NoError(t, exec.Dismiss(context.Background(), "job-d"))
	require.Equal(t, []string{"job-d"}, canceller.canceled)

	_, err := store.Get(context.Background(), "job-d")
	require.ErrorIs(t, err, ogc.ErrNotFound)
}

func TestDismissFinishedJobStillDeletes(t *testing.T) {
	t.Parallel()

	store := storememory.NewJobStore()
	exec := newTestExecutor(queuememory.NewQueue(1), store, nil)
	require.NoError(t, store.Create(context.Background(), ogc.Job{ID: "job-f", Status: ogc.StatusRunning}))
	require.NoError(t, store.UpdateStatus(context.Background(), "job-f",
		[]ogc.JobStatus{ogc.StatusRunning}, ogc.StatusSuccessful, "", json.RawMessage(`{}`)))

	// Dismiss after completion must not error merely because the work
	// already finished.
	require.NoError(t, exec.Dismiss(context.Background(), "job-f"))

	_, err := store.Get(context.Background(), "job-f")
	require.ErrorIs(t, err, ogc.ErrNotFound)
}

func TestDismissUnknownJob(t *testing.T) {
	t.Parallel()

	exec := newTestExecutor(queuememory.NewQueue(1), storememory.NewJobStore(), nil)
	err := exec.Dismiss(context.Background(), "never-existed")
	require.ErrorIs(t, err, ogc.ErrNotFound)
}
