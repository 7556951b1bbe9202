// Package executor owns job creation and the hand-off to the worker pool.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/metasim/ogcapi/internal/ogc"
)

const enqueueTimeout = 5 * time.Second

// Canceller requests best-effort cancellation of in-flight work.
type Canceller interface {
	Cancel(jobID string) bool
}

// Config controls Executor behavior.
type Config struct {
	// PollInterval is the status poll cadence used by Wait.
	PollInterval time.Duration
}

// Executor validates execution requests, persists the initial job
// record, and enqueues the work. It never performs the work itself;
// the worker pool owns the accepted→running→terminal transitions.
type Executor struct {
	registry  ogc.Registry
	store     ogc.JobStore
	queue     ogc.Queue
	idGen     ogc.IDGenerator
	clock     ogc.Clock
	canceller Canceller
	logger    *zap.Logger
	cfg       Config
}

// New constructs an Executor. The canceller may be nil when no
// in-flight cancellation channel exists (tests, sync-only setups).
func New(
	registry ogc.Registry,
	store ogc.JobStore,
	queue ogc.Queue,
	idGen ogc.IDGenerator,
	clock ogc.Clock,
	canceller Canceller,
	cfg Config,
	logger *zap.Logger,
) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	return &Executor{
		registry:  registry,
		store:     store,
		queue:     queue,
		idGen:     idGen,
		clock:     clock,
		canceller: canceller,
		logger:    logger,
		cfg:       cfg,
	}
}

// Submit accepts an execution request for the named process and returns
// the freshly created job without waiting for the work to start.
func (e *Executor) Submit(ctx context.Context, processID string, req ogc.ExecuteRequest) (ogc.Job, error) {
	if _, err := e.registry.Get(processID); err != nil {
		return ogc.Job{}, fmt.Errorf("submit execution: %w", err)
	}

	id, err := e.idGen.NewID()
	if err != nil {
		return ogc.Job{}, fmt.Errorf("generate job id: %w", err)
	}
	job := ogc.Job{
		ID:        id,
		ProcessID: processID,
		Status:    ogc.StatusAccepted,
		Created:   e.clock.Now(),
	}
	if err := e.store.Create(ctx, job); err != nil {
		return ogc.Job{}, fmt.Errorf("create job: %w", err)
	}

	queueCtx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()
	task := ogc.Task{
		JobID:     id,
		ProcessID: processID,
		Inputs:    req.Inputs,
		Submitted: job.Created.Unix(),
	}
	if err := e.queue.Enqueue(queueCtx, task); err != nil {
		// An accepted record nobody will ever run is a stuck job;
		// remove it before reporting the failure.
		if delErr := e.store.Delete(ctx, id); delErr != nil {
			e.logger.Error("orphaned job after enqueue failure",
				zap.String("job_id", id), zap.Error(delErr))
		}
		return ogc.Job{}, fmt.Errorf("enqueue job: %w", err)
	}
	return job, nil
}

// Wait polls the store until the job reaches a terminal status or the
// timeout elapses, returning the last observed job either way. Sync
// execution is exactly this: submit, then wait.
func (e *Executor) Wait(ctx context.Context, jobID string, timeout time.Duration) (ogc.Job, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		job, err := e.store.Get(ctx, jobID)
		if err != nil {
			return ogc.Job{}, fmt.Errorf("wait for job: %w", err)
		}
		if job.Status.Terminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, fmt.Errorf("wait for job: %w", ctx.Err())
		case <-deadline.C:
			return job, nil
		case <-ticker.C:
		}
	}
}

// Dismiss cancels in-flight work best-effort, marks the job dismissed
// when it is still non-terminal, and deletes the record. Work that
// already finished is deleted without error; only a record that does
// not exist yields ErrNotFound.
func (e *Executor) Dismiss(ctx context.Context, jobID string) error {
	if e.canceller != nil {
		if e.canceller.Cancel(jobID) {
			e.logger.Info("canceled in-flight job", zap.String("job_id", jobID))
		}
	}

	err := e.store.UpdateStatus(
		ctx,
		jobID,
		[]ogc.JobStatus{ogc.StatusAccepted, ogc.StatusRunning},
		ogc.StatusDismissed,
		"job dismissed",
		nil,
	)
	if err != nil && !errors.Is(err, ogc.ErrInvalidTransition) && !errors.Is(err, ogc.ErrNotFound) {
		return fmt.Errorf("dismiss job: %w", err)
	}

	if err := e.store.Delete(ctx, jobID); err != nil {
		return fmt.Errorf("dismiss job: %w", err)
	}
	return nil
}
