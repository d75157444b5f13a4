package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/quotewire/quotewire/internal/canon"
)

// RunWithGolden executes a scenario and compares the trace against a golden
// file in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Golden files pin the full event stream byte-for-byte: the trace is
// canonical JSON, so any behavioral drift - an extra event, a changed
// field, a reordering - shows up as a diff.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	snapshot, err := TraceSnapshot(scenario.Name, result)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, snapshot)

	return result, nil
}

// TraceSnapshot renders a result's trace as the canonical golden-file
// byte image. The CLI test command uses this for its own golden
// comparison outside of go test.
func TraceSnapshot(scenarioName string, result *Result) ([]byte, error) {
	trace := make(canon.Arr, len(result.Trace))
	for i, ev := range result.Trace {
		trace[i] = canon.Obj{
			"channel": canon.Str(ev.Channel),
			"event":   ev.Event,
		}
	}
	return canon.Marshal(canon.Obj{
		"scenario_name": canon.Str(scenarioName),
		"trace":         trace,
	})
}
