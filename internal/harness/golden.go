package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/achievemint/internal/codec"
)

// TraceSnapshot captures the outcome of every step of a scenario.
// Transaction IDs are left out so a snapshot only changes when behaviour does.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
}

// Canonical returns the snapshot as canonical JSON.
func (s *TraceSnapshot) Canonical() ([]byte, error) {
	events := make(codec.Array, len(s.Trace))
	for i, e := range s.Trace {
		obj := codec.Object{
			"step":   codec.Int(e.Step),
			"op":     codec.String(e.Op),
			"status": codec.String(e.Status),
		}
		if e.Code != "" {
			obj["code"] = codec.String(e.Code)
		}
		events[i] = obj
	}
	return codec.Marshal(codec.Object{
		"scenario_name": codec.String(s.ScenarioName),
		"trace":         events,
	})
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, opts...)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{ScenarioName: scenarioName, Trace: result.Trace}
	traceJSON, err := snapshot.Canonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
