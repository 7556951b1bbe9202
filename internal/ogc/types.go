// Package ogc defines core types shared across subsystems.
package ogc

import (
	"encoding/json"
	"time"
)

// JobStatus represents the lifecycle state of a process execution job.
type JobStatus string

// Job status values persisted in the job store.
const (
	StatusAccepted   JobStatus = "accepted"
	StatusRunning    JobStatus = "running"
	StatusSuccessful JobStatus = "successful"
	StatusFailed     JobStatus = "failed"
	StatusDismissed  JobStatus = "dismissed"
)

// Terminal reports whether no further status transition is permitted.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusSuccessful, StatusFailed, StatusDismissed:
		return true
	default:
		return false
	}
}

// ValidStatus reports whether s is one of the known job status values.
func ValidStatus(s JobStatus) bool {
	switch s {
	case StatusAccepted, StatusRunning, StatusSuccessful, StatusFailed, StatusDismissed:
		return true
	default:
		return false
	}
}

// Job is the statusInfo record persisted for each submitted execution.
// Result is only ever non-nil while Status is StatusSuccessful and is
// served by the results endpoint, never inlined into status responses.
type Job struct {
	ID        string          `json:"jobID"`
	ProcessID string          `json:"processID"`
	Type      string          `json:"type,omitempty"`
	Status    JobStatus       `json:"status"`
	Message   string          `json:"message,omitempty"`
	Created   time.Time       `json:"created"`
	Started   *time.Time      `json:"started,omitempty"`
	Finished  *time.Time      `json:"finished,omitempty"`
	Result    json.RawMessage `json:"-"`
	Links     []Link          `json:"links,omitempty"`
}

// JobFilter restricts job listings.
type JobFilter struct {
	ProcessID string
	Statuses  []JobStatus
}

// JobList is the paginated response body for the job listing endpoint.
type JobList struct {
	Jobs  []Job  `json:"jobs"`
	Links []Link `json:"links"`
}

// Link is a typed navigation link attached to response documents.
type Link struct {
	Href  string `json:"href"`
	Rel   string `json:"rel,omitempty"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

// Link relations used across the API surface.
const (
	RelSelf        = "self"
	RelPrev        = "prev"
	RelNext        = "next"
	RelConformance = "http://www.opengis.net/def/rel/ogc/1.0/conformance"
	RelProcesses   = "http://www.opengis.net/def/rel/ogc/1.0/processes"
	RelJobList     = "http://www.opengis.net/def/rel/ogc/1.0/job-list"
	RelResults     = "http://www.opengis.net/def/rel/ogc/1.0/results"
)

// MediaTypeJSON is the content type of every payload the service emits.
const MediaTypeJSON = "application/json"

// ProcessSummary describes a catalog entry without its I/O schema.
type ProcessSummary struct {
	ID                 string   `json:"id"`
	Version            string   `json:"version"`
	Title              string   `json:"title,omitempty"`
	Description        string   `json:"description,omitempty"`
	JobControlOptions  []string `json:"jobControlOptions,omitempty"`
	OutputTransmission []string `json:"outputTransmission,omitempty"`
	Links              []Link   `json:"links,omitempty"`
}

// Process is a full catalog entry including input and output descriptors.
type Process struct {
	ProcessSummary
	Inputs  map[string]InputDescription  `json:"inputs,omitempty"`
	Outputs map[string]OutputDescription `json:"outputs,omitempty"`
}

// InputDescription declares one process input parameter.
type InputDescription struct {
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	Schema      json.RawMessage `json:"schema,omitempty"`
}

// OutputDescription declares one process output.
type OutputDescription struct {
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	Schema      json.RawMessage `json:"schema,omitempty"`
}

// ProcessList is the paginated response body for the process listing endpoint.
type ProcessList struct {
	Processes []ProcessSummary `json:"processes"`
	Links     []Link           `json:"links"`
}

// ExecuteRequest is the body of an execution submission.
type ExecuteRequest struct {
	Inputs   map[string]json.RawMessage `json:"inputs,omitempty"`
	Outputs  map[string]json.RawMessage `json:"outputs,omitempty"`
	Response string                     `json:"response,omitempty"`
}

// Task wraps a job handed off to the worker pool.
type Task struct {
	JobID     string
	ProcessID string
	Inputs    map[string]json.RawMessage
	Submitted int64
}

// LandingPage is the root document, assembled once at startup.
type LandingPage struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Links       []Link `json:"links"`
}

// Conformance lists the conformance classes the service implements.
type Conformance struct {
	ConformsTo []string `json:"conformsTo"`
}
