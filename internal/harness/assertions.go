package harness

import (
	"fmt"

	"github.com/quotewire/quotewire/internal/canon"
	"github.com/quotewire/quotewire/internal/engine"
	"github.com/quotewire/quotewire/internal/rfq"
)

// EvaluateAssertions checks every assertion against the trace and the
// engine's final state, adding an error to the result for each failure.
func EvaluateAssertions(result *Result, assertions []Assertion, eng *engine.Engine) {
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertRfqState:
			err = assertRfqState(eng, a)
		case AssertRfqCount:
			if got := eng.Rfqs().Count(); got != a.Count {
				err = fmt.Errorf("rfq count = %d, expected %d", got, a.Count)
			}
		case AssertInstrumentCount:
			if got := eng.Instruments().Count(); got != a.Count {
				err = fmt.Errorf("instrument count = %d, expected %d", got, a.Count)
			}
		case AssertEventCount:
			err = assertEventCount(result.Trace, a)
		case AssertEventOrder:
			err = assertEventOrder(result.Trace, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
}

// assertRfqState looks up an RFQ and subset-matches the expected fields
// against its canonical field image.
func assertRfqState(eng *engine.Engine, a Assertion) error {
	_, r, err := eng.Rfqs().GetByKey(a.RfqID)
	if err != nil {
		return fmt.Errorf("rfq %d not found", a.RfqID)
	}

	actual := canon.Obj{
		"id":                canon.Int(r.ID),
		"requester_user_id": canon.Int(r.RequesterUserID),
		"responder_user_id": canon.Int(r.ResponderUserID),
		"cusip":             canon.Str(r.Cusip),
		"security_id":       canon.Int(r.SecurityID),
		"side":              canon.Str(string(r.Side)),
		"quantity":          canon.Int(r.Quantity),
		"correlation":       canon.Str(r.Correlation),
		"state":             canon.Str(string(r.State)),
		"quote_sequence":    canon.Int(r.QuoteSequence),
		"price":             canon.Int(r.Price),
		"expire_time_ms":    canon.Int(r.ExpireTimeMs),
		"created_at_ms":     canon.Int(r.CreatedAtMs),
	}

	want, err := canon.FromAny(a.Expect)
	if err != nil {
		return fmt.Errorf("bad expect clause: %w", err)
	}
	wantObj, ok := want.(canon.Obj)
	if !ok {
		return fmt.Errorf("expect clause is not an object")
	}

	for _, key := range wantObj.SortedKeys() {
		if err := matchField(actual, key, wantObj[key]); err != nil {
			return fmt.Errorf("rfq %d: %w", a.RfqID, err)
		}
	}
	return nil
}

func assertEventCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.typeOf() == a.Event {
			count++
		}
	}
	if count != a.Count {
		return fmt.Errorf("event %s emitted %d times, expected %d", a.Event, count, a.Count)
	}
	return nil
}

// assertEventOrder checks that the event types appear in the trace in the
// given order, allowing other events in between.
func assertEventOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, ev := range trace {
		if next < len(a.Events) && ev.typeOf() == a.Events[next] {
			next++
		}
	}
	if next != len(a.Events) {
		return fmt.Errorf("event order %v not satisfied, matched %d of %d",
			a.Events, next, len(a.Events))
	}
	return nil
}

// reasonFor maps a short reason alias used in scenario files to the wire
// string, so scenarios can say "unknown-cusip" instead of quoting prose.
// Unknown aliases pass through unchanged.
func reasonFor(alias string) string {
	switch alias {
	case "unknown-cusip":
		return rfq.ReasonUnknownCusip
	case "not-enabled":
		return rfq.ReasonInstrumentNotEnabled
	case "below-min":
		return rfq.ReasonQuantityBelowMin
	case "invalid-side":
		return rfq.ReasonInvalidSide
	case "capacity":
		return rfq.ReasonCapacity
	case "unknown-rfq":
		return rfq.ReasonUnknownRfq
	case "illegal-transition":
		return rfq.ReasonIllegalTransition
	default:
		return alias
	}
}
