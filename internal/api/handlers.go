package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/metasim/ogcapi/internal/ogc"
)

func (s *Server) listProcesses(w http.ResponseWriter, r *http.Request) {
	page, err := s.parsePageQuery(r)
	if err != nil {
		writeException(w, http.StatusBadRequest, excInvalidParameter, err.Error())
		return
	}
	summaries, total := s.registry.List(page)
	for i := range summaries {
		summaries[i].Links = s.processLinks(summaries[i].ID)
	}
	writeJSON(w, http.StatusOK, ogc.ProcessList{
		Processes: summaries,
		Links:     ogc.BuildPageLinks(s.cfg.Server.BaseURL+"/processes", page, total),
	})
}

func (s *Server) getProcess(w http.ResponseWriter, r *http.Request) {
	processID := chi.URLParam(r, "processID")
	proc, err := s.registry.Get(processID)
	if err != nil {
		writeException(w, http.StatusNotFound, excNoSuchProcess, "no process with id "+processID)
		return
	}
	proc.Links = s.processLinks(proc.ID)
	writeJSON(w, http.StatusOK, proc)
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request) {
	processID := chi.URLParam(r, "processID")

	var req ogc.ExecuteRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeException(w, http.StatusBadRequest, excInvalidParameter, "invalid JSON body")
			return
		}
	}

	job, err := s.exec.Submit(r.Context(), processID, req)
	if err != nil {
		if errors.Is(err, ogc.ErrNotFound) {
			writeException(w, http.StatusNotFound, excNoSuchProcess, "no process with id "+processID)
			return
		}
		s.writeStorageError(w, err)
		return
	}

	// Prefer: wait=N turns the submission synchronous for up to N
	// seconds. The job still runs through the queue either way.
	if wait := preferWait(r.Header.Get("Prefer")); wait > 0 {
		if maxWait := s.cfg.SyncWaitMax(); wait > maxWait {
			wait = maxWait
		}
		waited, werr := s.exec.Wait(r.Context(), job.ID, wait)
		if werr == nil && waited.Status.Terminal() {
			waited.Type = "process"
			waited.Links = s.jobLinks(waited)
			writeJSON(w, http.StatusOK, waited)
			return
		}
		if werr == nil {
			job = waited
		}
	}

	job.Type = "process"
	job.Links = s.jobLinks(job)
	w.Header().Set("Location", s.cfg.Server.BaseURL+"/jobs/"+job.ID)
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	page, err := s.parsePageQuery(r)
	if err != nil {
		writeException(w, http.StatusBadRequest, excInvalidParameter, err.Error())
		return
	}

	filter := ogc.JobFilter{ProcessID: r.URL.Query().Get("processID")}
	for _, raw := range r.URL.Query()["status"] {
		status := ogc.JobStatus(raw)
		if !ogc.ValidStatus(status) {
			writeException(w, http.StatusBadRequest, excInvalidParameter, "unknown status: "+raw)
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	jobs, total, err := s.store.List(r.Context(), filter, page)
	if err != nil {
		s.writeStorageError(w, err)
		return
	}
	for i := range jobs {
		jobs[i].Type = "process"
		jobs[i].Links = s.jobLinks(jobs[i])
	}
	if jobs == nil {
		jobs = []ogc.Job{}
	}
	writeJSON(w, http.StatusOK, ogc.JobList{
		Jobs:  jobs,
		Links: ogc.BuildPageLinks(s.cfg.Server.BaseURL+"/jobs", page, total),
	})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, err := s.store.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, ogc.ErrNotFound) {
			writeException(w, http.StatusNotFound, excNoSuchJob, "no job with id "+jobID)
			return
		}
		s.writeStorageError(w, err)
		return
	}
	job.Type = "process"
	job.Links = s.jobLinks(job)
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) dismissJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := s.exec.Dismiss(r.Context(), jobID); err != nil {
		if errors.Is(err, ogc.ErrNotFound) {
			writeException(w, http.StatusNotFound, excNoSuchJob, "no job with id "+jobID)
			return
		}
		s.writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getResults(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, err := s.store.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, ogc.ErrNotFound) {
			writeException(w, http.StatusNotFound, excNoSuchJob, "no job with id "+jobID)
			return
		}
		s.writeStorageError(w, err)
		return
	}
	switch job.Status {
	case ogc.StatusSuccessful:
	case ogc.StatusFailed:
		writeException(w, http.StatusConflict, excResultsNotReady, "job failed: "+job.Message)
		return
	default:
		writeException(w, http.StatusConflict, excResultsNotReady,
			fmt.Sprintf("job is %s, results are not available", job.Status))
		return
	}
	w.Header().Set("Content-Type", ogc.MediaTypeJSON)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(job.Result); err != nil {
		s.logger.Error("write results failed", zap.Error(err))
	}
}

// parsePageQuery extracts limit/offset, applying the configured default
// and cap, and preserves every other parameter so navigation links keep
// active filters.
func (s *Server) parsePageQuery(r *http.Request) (ogc.PageQuery, error) {
	values := r.URL.Query()
	page := ogc.PageQuery{Limit: s.cfg.Paging.DefaultLimit}

	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return ogc.PageQuery{}, fmt.Errorf("limit must be a positive integer")
		}
		if limit > s.cfg.Paging.MaxLimit {
			limit = s.cfg.Paging.MaxLimit
		}
		page.Limit = limit
	}
	if raw := values.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return ogc.PageQuery{}, fmt.Errorf("offset must be a non-negative integer")
		}
		page.Offset = offset
	}

	extra := url.Values{}
	for key, vals := range values {
		if key == "limit" || key == "offset" {
			continue
		}
		extra[key] = vals
	}
	if len(extra) > 0 {
		page.Extra = extra
	}
	return page, nil
}

// preferWait parses the wait preference out of a Prefer header, e.g.
// "wait=10" or "respond-async, wait=5". Zero means no wait requested.
func preferWait(header string) time.Duration {
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(part, "wait=") {
			continue
		}
		seconds, err := strconv.Atoi(strings.TrimPrefix(part, "wait="))
		if err != nil || seconds <= 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	return 0
}

func (s *Server) processLinks(processID string) []ogc.Link {
	base := s.cfg.Server.BaseURL + "/processes/" + processID
	return []ogc.Link{
		{Href: base, Rel: ogc.RelSelf, Type: ogc.MediaTypeJSON},
		{Href: base + "/execution", Rel: "http://www.opengis.net/def/rel/ogc/1.0/execute", Type: ogc.MediaTypeJSON},
	}
}

func (s *Server) jobLinks(job ogc.Job) []ogc.Link {
	base := s.cfg.Server.BaseURL + "/jobs/" + job.ID
	links := []ogc.Link{{Href: base, Rel: ogc.RelSelf, Type: ogc.MediaTypeJSON}}
	if job.Status == ogc.StatusSuccessful {
		links = append(links, ogc.Link{Href: base + "/results", Rel: ogc.RelResults, Type: ogc.MediaTypeJSON})
	}
	return links
}
