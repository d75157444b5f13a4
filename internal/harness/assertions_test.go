package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotewire/quotewire/internal/canon"
	"github.com/quotewire/quotewire/internal/engine"
	"github.com/quotewire/quotewire/internal/rfq"
)

type silentResponder struct{}

func (silentResponder) Reply([]byte)                {}
func (silentResponder) Broadcast([]byte)            {}
func (silentResponder) ScheduleExpiry(int64, int64) {}

func testEngine(t *testing.T) *engine.Engine {
	t.Helper()
	e := engine.New(silentResponder{})
	require.NoError(t, e.Apply(rfq.AddInstrument{
		Cusip: "912828YK0", SecurityID: 42, Enabled: true, MinSize: 100, Correlation: "s",
	}, 0))
	require.NoError(t, e.Apply(rfq.CreateRfq{
		Cusip: "912828YK0", Side: rfq.SideBuy, Quantity: 200,
		RequesterUserID: 500, ExpireTimeMs: 60_000, Correlation: "c",
	}, 1000))
	return e
}

func evaluate(t *testing.T, eng *engine.Engine, trace []TraceEvent, a Assertion) *Result {
	t.Helper()
	result := NewResult()
	result.Trace = trace
	EvaluateAssertions(result, []Assertion{a}, eng)
	return result
}

func TestAssertRfqStateMatches(t *testing.T) {
	eng := testEngine(t)

	result := evaluate(t, eng, nil, Assertion{
		Type:  AssertRfqState,
		RfqID: 1,
		Expect: map[string]any{
			"state":    "CREATED",
			"quantity": 200,
			"cusip":    "912828YK0",
		},
	})
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestAssertRfqStateMismatch(t *testing.T) {
	eng := testEngine(t)

	result := evaluate(t, eng, nil, Assertion{
		Type:   AssertRfqState,
		RfqID:  1,
		Expect: map[string]any{"state": "QUOTED"},
	})
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], `field "state"`)
}

func TestAssertRfqStateUnknownID(t *testing.T) {
	eng := testEngine(t)

	result := evaluate(t, eng, nil, Assertion{
		Type:   AssertRfqState,
		RfqID:  42,
		Expect: map[string]any{"state": "CREATED"},
	})
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "not found")
}

func TestAssertEventCount(t *testing.T) {
	trace := []TraceEvent{
		{Channel: ChannelBroadcast, Event: canon.Obj{"type": canon.Str("RfqQuoted")}},
		{Channel: ChannelBroadcast, Event: canon.Obj{"type": canon.Str("RfqQuoted")}},
		{Channel: ChannelBroadcast, Event: canon.Obj{"type": canon.Str("RfqAccepted")}},
	}
	eng := testEngine(t)

	assert.True(t, evaluate(t, eng, trace, Assertion{
		Type: AssertEventCount, Event: "RfqQuoted", Count: 2,
	}).Pass)
	assert.False(t, evaluate(t, eng, trace, Assertion{
		Type: AssertEventCount, Event: "RfqQuoted", Count: 1,
	}).Pass)
}

func TestAssertEventOrder(t *testing.T) {
	trace := []TraceEvent{
		{Event: canon.Obj{"type": canon.Str("RfqCreated")}},
		{Event: canon.Obj{"type": canon.Str("CommandRejected")}},
		{Event: canon.Obj{"type": canon.Str("RfqQuoted")}},
		{Event: canon.Obj{"type": canon.Str("RfqAccepted")}},
	}
	eng := testEngine(t)

	// Other events between the named ones are allowed.
	assert.True(t, evaluate(t, eng, trace, Assertion{
		Type: AssertEventOrder, Events: []string{"RfqCreated", "RfqQuoted", "RfqAccepted"},
	}).Pass)
	assert.False(t, evaluate(t, eng, trace, Assertion{
		Type: AssertEventOrder, Events: []string{"RfqQuoted", "RfqCreated"},
	}).Pass)
}

func TestReasonAliases(t *testing.T) {
	assert.Equal(t, rfq.ReasonUnknownCusip, reasonFor("unknown-cusip"))
	assert.Equal(t, rfq.ReasonCapacity, reasonFor("capacity"))
	assert.Equal(t, "Cannot cancel RFQ, no relation to user",
		reasonFor("Cannot cancel RFQ, no relation to user"),
		"verbatim reasons pass through")
}
