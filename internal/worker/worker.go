// Package worker executes queued process tasks against the job store.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/metasim/ogcapi/internal/metrics"
	"github.com/metasim/ogcapi/internal/ogc"
)

// Config controls Pool behavior.
type Config struct {
	// Workers is the number of concurrent task consumers.
	Workers int
	// MaxJobDuration bounds a single execution. It doubles as the
	// stuck-job guard: a runner that never returns is cancelled and
	// recorded as failed instead of sitting in running forever.
	MaxJobDuration time.Duration
}

// Pool consumes execution tasks and drives each job through the
// accepted → running → successful|failed transitions. Every write is a
// conditional store update, so a dismissal that lands first simply
// makes this pool discard its outcome.
type Pool struct {
	queue    ogc.Queue
	store    ogc.JobStore
	runners  map[string]ogc.Runner
	logger   *zap.Logger
	cfg      Config
	inflight sync.Map // job ID -> context.CancelFunc
}

// New constructs a Pool.
func New(queue ogc.Queue, store ogc.JobStore, runners map[string]ogc.Runner, cfg Config, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxJobDuration <= 0 {
		cfg.MaxJobDuration = 5 * time.Minute
	}
	return &Pool{
		queue:   queue,
		store:   store,
		runners: runners,
		logger:  logger,
		cfg:     cfg,
	}
}

// Run starts all workers and blocks until the context finishes.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.runLoop(ctx)
		}()
	}
	<-ctx.Done()
	wg.Wait()
}

// Cancel requests cancellation of an in-flight job. It reports whether
// the job was actually executing; queued or finished jobs return false.
func (p *Pool) Cancel(jobID string) bool {
	if cancel, ok := p.inflight.Load(jobID); ok {
		cancel.(context.CancelFunc)()
		return true
	}
	return false
}

func (p *Pool) runLoop(ctx context.Context) {
	for {
		task, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		p.execute(ctx, task)
	}
}

func (p *Pool) execute(ctx context.Context, task ogc.Task) {
	logger := p.logger.With(zap.String("job_id", task.JobID), zap.String("process_id", task.ProcessID))

	err := p.store.UpdateStatus(ctx, task.JobID,
		[]ogc.JobStatus{ogc.StatusAccepted}, ogc.StatusRunning, "", nil)
	if err != nil {
		// The job was dismissed (or deleted) before work started.
		if errors.Is(err, ogc.ErrNotFound) || errors.Is(err, ogc.ErrInvalidTransition) {
			logger.Debug("skipping job no longer accepted", zap.Error(err))
			return
		}
		logger.Error("transition to running failed", zap.Error(err))
		return
	}

	metrics.IncActiveJobs()
	defer metrics.DecActiveJobs()

	jobCtx, cancel := context.WithTimeout(ctx, p.cfg.MaxJobDuration)
	p.inflight.Store(task.JobID, cancel)
	defer func() {
		p.inflight.Delete(task.JobID)
		cancel()
	}()

	result, runErr := p.run(jobCtx, task)

	var updateErr error
	status := ogc.StatusSuccessful
	if runErr != nil {
		status = ogc.StatusFailed
		updateErr = p.store.UpdateStatus(ctx, task.JobID,
			[]ogc.JobStatus{ogc.StatusRunning}, ogc.StatusFailed, runErr.Error(), nil)
	} else {
		updateErr = p.store.UpdateStatus(ctx, task.JobID,
			[]ogc.JobStatus{ogc.StatusRunning}, ogc.StatusSuccessful, "", result)
	}
	if updateErr != nil {
		// A dismissal won the race between completion and deletion;
		// the outcome is discarded, never surfaced as an error.
		if errors.Is(updateErr, ogc.ErrNotFound) || errors.Is(updateErr, ogc.ErrInvalidTransition) {
			logger.Debug("discarding outcome of dismissed job", zap.Error(updateErr))
			return
		}
		logger.Error("recording job outcome failed", zap.Error(updateErr))
		return
	}
	metrics.ObserveJob(task.ProcessID, string(status))
	if runErr != nil {
		logger.Info("job failed", zap.Error(runErr))
	} else {
		logger.Info("job completed")
	}
}

// run invokes the runner with panic recovery so a crashing process
// implementation becomes a failed job rather than a lost one.
func (p *Pool) run(ctx context.Context, task ogc.Task) (result json.RawMessage, err error) {
	runner, ok := p.runners[task.ProcessID]
	if !ok {
		return nil, fmt.Errorf("no runner registered for process %q", task.ProcessID)
	}
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("process panicked: %v", rec)
		}
	}()
	result, err = runner.Run(ctx, task.Inputs)
	if err != nil {
		return nil, fmt.Errorf("run process %s: %w", task.ProcessID, err)
	}
	return result, nil
}
