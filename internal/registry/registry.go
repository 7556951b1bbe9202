// Package registry holds the read-only process catalog.
package registry

import (
	"fmt"
	"sort"

	"github.com/metasim/ogcapi/internal/ogc"
)

// Registry is an immutable catalog of process descriptions, assembled
// once during initialization and safely shared without locking.
type Registry struct {
	ids   []string
	procs map[string]ogc.Process
}

// New builds a Registry from the given process descriptions. Later
// entries win on duplicate identifiers.
func New(procs ...ogc.Process) *Registry {
	byID := make(map[string]ogc.Process, len(procs))
	for _, p := range procs {
		byID[p.ID] = p
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return &Registry{ids: ids, procs: byID}
}

// FromRunners builds a Registry from runner self-descriptions.
func FromRunners(runners ...ogc.Runner) *Registry {
	procs := make([]ogc.Process, 0, len(runners))
	for _, r := range runners {
		procs = append(procs, r.Describe())
	}
	return New(procs...)
}

// List returns process summaries ordered by identifier plus the total
// catalog size.
func (r *Registry) List(page ogc.PageQuery) ([]ogc.ProcessSummary, int) {
	total := len(r.ids)
	if page.Offset >= total {
		return []ogc.ProcessSummary{}, total
	}
	end := page.Offset + page.Limit
	if end > total {
		end = total
	}
	out := make([]ogc.ProcessSummary, 0, end-page.Offset)
	for _, id := range r.ids[page.Offset:end] {
		out = append(out, r.procs[id].ProcessSummary)
	}
	return out, total
}

// Get returns the full process description or ogc.ErrNotFound.
func (r *Registry) Get(id string) (ogc.Process, error) {
	p, ok := r.procs[id]
	if !ok {
		return ogc.Process{}, fmt.Errorf("process %s: %w", id, ogc.ErrNotFound)
	}
	return p, nil
}
