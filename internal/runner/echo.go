// Package runner provides the built-in process implementations.
package runner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/metasim/ogcapi/internal/ogc"
)

// Echo returns its inputs unchanged. It exists so the execute/status/
// results flow can be exercised without a real computation.
type Echo struct{}

// NewEcho constructs an Echo runner.
func NewEcho() *Echo {
	return &Echo{}
}

// Describe returns the catalog entry for the echo process.
func (Echo) Describe() ogc.Process {
	return ogc.Process{
		ProcessSummary: ogc.ProcessSummary{
			ID:                 "echo",
			Version:            "1.0.0",
			Title:              "Echo",
			Description:        "Returns the execution inputs as the result document.",
			JobControlOptions:  []string{"async-execute", "sync-execute"},
			OutputTransmission: []string{"value"},
		},
		Inputs: map[string]ogc.InputDescription{
			"message": {
				Title:  "Message",
				Schema: json.RawMessage(`{"type":"object"}`),
			},
		},
		Outputs: map[string]ogc.OutputDescription{
			"message": {
				Title:  "Message",
				Schema: json.RawMessage(`{"type":"object"}`),
			},
		},
	}
}

// Run marshals the inputs back as the result document.
func (Echo) Run(_ context.Context, inputs map[string]json.RawMessage) (json.RawMessage, error) {
	if inputs == nil {
		inputs = map[string]json.RawMessage{}
	}
	out, err := json.Marshal(inputs)
	if err != nil {
		return nil, fmt.Errorf("marshal echo result: %w", err)
	}
	return out, nil
}
