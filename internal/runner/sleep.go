package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/metasim/ogcapi/internal/ogc"
)

// Sleep waits for a caller-supplied duration before producing its
// result. It models a long-running process and is the vehicle for
// exercising dismissal of in-flight work.
type Sleep struct{}

// NewSleep constructs a Sleep runner.
func NewSleep() *Sleep {
	return &Sleep{}
}

// Describe returns the catalog entry for the sleep process.
func (Sleep) Describe() ogc.Process {
	return ogc.Process{
		ProcessSummary: ogc.ProcessSummary{
			ID:                 "sleep",
			Version:            "1.0.0",
			Title:              "Sleep",
			Description:        "Waits for the requested number of seconds, honoring cancellation.",
			JobControlOptions:  []string{"async-execute"},
			OutputTransmission: []string{"value"},
		},
		Inputs: map[string]ogc.InputDescription{
			"seconds": {
				Title:  "Seconds",
				Schema: json.RawMessage(`{"type":"number","minimum":0}`),
			},
		},
		Outputs: map[string]ogc.OutputDescription{
			"slept": {
				Title:  "Slept",
				Schema: json.RawMessage(`{"type":"number"}`),
			},
		},
	}
}

// Run waits for the requested duration or until the context ends.
func (Sleep) Run(ctx context.Context, inputs map[string]json.RawMessage) (json.RawMessage, error) {
	var seconds float64
	if raw, ok := inputs["seconds"]; ok {
		if err := json.Unmarshal(raw, &seconds); err != nil {
			return nil, fmt.Errorf("input seconds: %w", err)
		}
	}
	if seconds < 0 {
		return nil, fmt.Errorf("input seconds must be >= 0")
	}

	timer := time.NewTimer(time.Duration(seconds * float64(time.Second)))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("sleep interrupted: %w", ctx.Err())
	case <-timer.C:
	}

	out, err := json.Marshal(map[string]float64{"slept": seconds})
	if err != nil {
		return nil, fmt.Errorf("marshal sleep result: %w", err)
	}
	return out, nil
}
