// Package memory provides an in-memory job store for development and testing.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/metasim/ogcapi/internal/ogc"
)

// JobStore keeps job records in a map guarded by a mutex. All five
// store operations take the lock, so conditional transitions are
// linearizable with respect to concurrent dismiss/complete callers.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]ogc.Job
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]ogc.Job),
	}
}

// Create stores a new job record.
func (s *JobStore) Create(_ context.Context, job ogc.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s: %w", job.ID, ogc.ErrConflict)
	}
	s.jobs[job.ID] = job
	return nil
}

// Get fetches a job by ID.
func (s *JobStore) Get(_ context.Context, id string) (ogc.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return ogc.Job{}, fmt.Errorf("job %s: %w", id, ogc.ErrNotFound)
	}
	return job, nil
}

// List returns matching jobs ordered by creation time then ID, plus the
// total matching count ignoring paging.
func (s *JobStore) List(_ context.Context, filter ogc.JobFilter, page ogc.PageQuery) ([]ogc.Job, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]ogc.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if matches(job, filter) {
			matched = append(matched, job)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Created.Equal(matched[j].Created) {
			return matched[i].Created.Before(matched[j].Created)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	if page.Offset >= total {
		return []ogc.Job{}, total, nil
	}
	end := page.Offset + page.Limit
	if end > total {
		end = total
	}
	out := make([]ogc.Job, end-page.Offset)
	copy(out, matched[page.Offset:end])
	return out, total, nil
}

// UpdateStatus performs the conditional transition under the store lock.
func (s *JobStore) UpdateStatus(
	_ context.Context,
	id string,
	from []ogc.JobStatus,
	to ogc.JobStatus,
	message string,
	result json.RawMessage,
) error {
	if result != nil && to != ogc.StatusSuccessful {
		return fmt.Errorf("result payload requires successful status: %w", ogc.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, ogc.ErrNotFound)
	}
	if !statusIn(job.Status, from) {
		return fmt.Errorf("job %s is %s: %w", id, job.Status, ogc.ErrInvalidTransition)
	}

	now := time.Now().UTC()
	job.Status = to
	job.Message = message
	job.Result = result
	if to == ogc.StatusRunning && job.Started == nil {
		job.Started = pointerTime(now)
	}
	if to.Terminal() {
		job.Finished = pointerTime(now)
	}
	s.jobs[id] = job
	return nil
}

// Delete removes the record regardless of its status.
func (s *JobStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return fmt.Errorf("job %s: %w", id, ogc.ErrNotFound)
	}
	delete(s.jobs, id)
	return nil
}

func matches(job ogc.Job, filter ogc.JobFilter) bool {
	if filter.ProcessID != "" && job.ProcessID != filter.ProcessID {
		return false
	}
	if len(filter.Statuses) > 0 && !statusIn(job.Status, filter.Statuses) {
		return false
	}
	return true
}

func statusIn(status ogc.JobStatus, set []ogc.JobStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
