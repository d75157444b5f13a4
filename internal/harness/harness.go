package harness

import (
	"bytes"
	"fmt"

	"github.com/quotewire/quotewire/internal/canon"
	"github.com/quotewire/quotewire/internal/engine"
	"github.com/quotewire/quotewire/internal/rfq"
)

// recordingResponder captures outbound events for the trace. Timer
// registrations are tracked but not traced: scenarios fire timers
// explicitly.
type recordingResponder struct {
	trace *[]TraceEvent
	errs  []string
}

func (r *recordingResponder) Reply(data []byte) {
	r.record(ChannelReply, data)
}

func (r *recordingResponder) Broadcast(data []byte) {
	r.record(ChannelBroadcast, data)
}

func (r *recordingResponder) ScheduleExpiry(notBeforeMs, rfqID int64) {}

func (r *recordingResponder) record(channel string, data []byte) {
	v, err := canon.Unmarshal(data)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("undecodable %s event: %v", channel, err))
		return
	}
	obj, ok := v.(canon.Obj)
	if !ok {
		r.errs = append(r.errs, fmt.Sprintf("%s event is not an object", channel))
		return
	}
	// The content-addressed id is derived from the rest of the payload;
	// dropping it keeps traces and golden files comparable by field.
	delete(obj, "id")
	*r.trace = append(*r.trace, TraceEvent{Channel: channel, Event: obj})
}

// Run executes a scenario against a fresh engine and returns the result.
//
// Execution flow:
//  1. Construct an engine with a recording Responder
//  2. Apply setup commands at cluster time 0 (rejections fail the run)
//  3. Execute steps: apply commands or fire timers at their cluster times,
//     checking each step's emitted events against its expect list
//  4. Evaluate assertions over the trace and final state
func Run(scenario *Scenario) (*Result, error) {
	result := NewResult()

	responder := &recordingResponder{trace: &result.Trace}
	opts := []engine.Option{}
	if scenario.RfqCapacity > 0 {
		opts = append(opts, engine.WithRfqCapacity(scenario.RfqCapacity))
	}
	eng := engine.New(responder, opts...)

	for i, raw := range scenario.Setup {
		cmd, err := decodeStepCommand(raw)
		if err != nil {
			return nil, fmt.Errorf("setup[%d]: %w", i, err)
		}
		if err := eng.Apply(cmd, 0); err != nil {
			if engine.IsReject(err) {
				result.AddError(fmt.Sprintf("setup[%d]: %s rejected: %v", i, cmd.Name(), err))
				continue
			}
			return nil, fmt.Errorf("setup[%d]: %w", i, err)
		}
	}
	// Setup events are scaffolding, not part of the scenario's contract.
	result.Trace = result.Trace[:0]

	for i, step := range scenario.Steps {
		before := len(result.Trace)

		if step.FireTimer != nil {
			eng.OnTimerFire(step.FireTimer.RfqID, step.AtMs)
		} else {
			cmd, err := decodeStepCommand(step.Command)
			if err != nil {
				return nil, fmt.Errorf("steps[%d]: %w", i, err)
			}
			if err := eng.Apply(cmd, step.AtMs); err != nil && !engine.IsReject(err) {
				return nil, fmt.Errorf("steps[%d]: %w", i, err)
			}
		}

		checkStepExpectations(result, i, step, result.Trace[before:])
	}

	for _, msg := range responder.errs {
		result.AddError(msg)
	}

	EvaluateAssertions(result, scenario.Assertions, eng)
	return result, nil
}

// decodeStepCommand converts a YAML command map into a typed command.
func decodeStepCommand(raw map[string]any) (rfq.Command, error) {
	v, err := canon.FromAny(raw)
	if err != nil {
		return nil, fmt.Errorf("command fields: %w", err)
	}
	obj, ok := v.(canon.Obj)
	if !ok {
		return nil, fmt.Errorf("command is not an object")
	}
	return rfq.DecodeCommandObj(obj)
}

// checkStepExpectations verifies that a step emitted exactly the events it
// declared, in order.
func checkStepExpectations(result *Result, stepIndex int, step Step, emitted []TraceEvent) {
	if len(emitted) != len(step.Expect) {
		result.AddError(fmt.Sprintf(
			"steps[%d]: emitted %d events, expected %d",
			stepIndex, len(emitted), len(step.Expect)))
		return
	}

	for j, exp := range step.Expect {
		got := emitted[j]
		if got.Channel != exp.Channel {
			result.AddError(fmt.Sprintf(
				"steps[%d].expect[%d]: channel %q, expected %q",
				stepIndex, j, got.Channel, exp.Channel))
			continue
		}

		want, err := canon.FromAny(exp.Event)
		if err != nil {
			result.AddError(fmt.Sprintf(
				"steps[%d].expect[%d]: bad expected event: %v", stepIndex, j, err))
			continue
		}
		wantObj, ok := want.(canon.Obj)
		if !ok {
			result.AddError(fmt.Sprintf(
				"steps[%d].expect[%d]: expected event is not an object", stepIndex, j))
			continue
		}
		if reason, ok := wantObj["reason"].(canon.Str); ok {
			wantObj["reason"] = canon.Str(reasonFor(string(reason)))
		}

		for _, key := range wantObj.SortedKeys() {
			if err := matchField(got.Event, key, wantObj[key]); err != nil {
				result.AddError(fmt.Sprintf(
					"steps[%d].expect[%d]: %v", stepIndex, j, err))
			}
		}
	}
}

// matchField compares one expected field against the actual event via
// canonical byte equality, which handles nested values uniformly.
func matchField(actual canon.Obj, key string, want canon.Value) error {
	got, ok := actual[key]
	if !ok {
		return fmt.Errorf("field %q missing from event", key)
	}
	wantData, err := canon.Marshal(want)
	if err != nil {
		return fmt.Errorf("field %q: %w", key, err)
	}
	gotData, err := canon.Marshal(got)
	if err != nil {
		return fmt.Errorf("field %q: %w", key, err)
	}
	if !bytes.Equal(wantData, gotData) {
		return fmt.Errorf("field %q = %s, expected %s", key, gotData, wantData)
	}
	return nil
}
