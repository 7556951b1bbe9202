package ogc

import (
	"context"
	"encoding/json"
	"time"
)

// JobStore persists job lifecycle records. It is the only writer of job
// state; every mutation goes through Create, UpdateStatus, or Delete.
type JobStore interface {
	// Create inserts a new job record. Returns ErrConflict when the
	// identifier already exists.
	Create(ctx context.Context, job Job) error

	// Get returns the job or ErrNotFound.
	Get(ctx context.Context, id string) (Job, error)

	// List returns jobs matching the filter, ordered by creation time
	// then identifier ascending and restricted to the page window,
	// plus the total matching count ignoring paging.
	List(ctx context.Context, filter JobFilter, page PageQuery) ([]Job, int, error)

	// UpdateStatus atomically transitions the job to the target status
	// provided its current status is a member of from. Returns
	// ErrInvalidTransition when the precondition does not hold and
	// ErrNotFound when the record is absent. A result payload is only
	// accepted when to is StatusSuccessful.
	UpdateStatus(ctx context.Context, id string, from []JobStatus, to JobStatus, message string, result json.RawMessage) error

	// Delete removes the record regardless of its status, returning
	// ErrNotFound when absent.
	Delete(ctx context.Context, id string) error
}

// Registry is the read-only process catalog.
type Registry interface {
	// List returns process summaries ordered by identifier plus the
	// total catalog size.
	List(page PageQuery) ([]ProcessSummary, int)

	// Get returns the full process description or ErrNotFound.
	Get(id string) (Process, error)
}

// Runner executes one process. Implementations must honor context
// cancellation and may be invoked concurrently.
type Runner interface {
	Describe() Process
	Run(ctx context.Context, inputs map[string]json.RawMessage) (json.RawMessage, error)
}

// Queue provides enqueue/dequeue semantics for execution tasks.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Dequeue(ctx context.Context) (Task, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
