package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/rfsync/internal/ir"
)

// Snapshot captures every response of a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type Snapshot struct {
	ScenarioName string       `json:"scenario_name"`
	RequestID    string       `json:"request_id,omitempty"`
	Steps        []StepResult `json:"steps"`
}

// MarshalCanonical renders the snapshot as canonical JSON. Responses are
// re-read from their encoded payloads so the snapshot shows exactly what
// a client received.
func (s *Snapshot) MarshalCanonical() ([]byte, error) {
	steps := make(ir.IRArray, len(s.Steps))
	for i, step := range s.Steps {
		resp, err := ir.UnmarshalIRValue(step.Payload)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", step.Name, err)
		}
		steps[i] = ir.IRObject{
			"name":     ir.IRString(step.Name),
			"response": resp,
		}
	}

	obj := ir.IRObject{
		"scenario_name": ir.IRString(s.ScenarioName),
		"steps":         steps,
	}
	if s.RequestID != "" {
		obj["request_id"] = ir.IRString(s.RequestID)
	}
	return ir.MarshalCanonical(obj)
}

// RunWithGolden executes a scenario and compares its responses against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the responses don't match.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against the scenario's golden
// file without re-running it.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	snapshot := Snapshot{
		ScenarioName: scenario.Name,
		RequestID:    scenario.RequestID,
		Steps:        result.Steps,
	}
	data, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)

	return nil
}
