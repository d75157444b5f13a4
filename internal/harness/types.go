package harness

import "github.com/quotewire/quotewire/internal/canon"

// TraceEvent is one recorded outbound event.
type TraceEvent struct {
	// Channel is "reply" or "broadcast".
	Channel string

	// Event is the decoded canonical payload, content-addressed id
	// stripped for stable comparison.
	Event canon.Obj
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success: every expect clause matched and
	// every assertion held.
	Pass bool

	// Trace contains all emitted events in order, across all steps.
	Trace []TraceEvent

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{Pass: true}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// typeOf returns the event's "type" tag, or "" when absent.
func (e TraceEvent) typeOf() string {
	name, _ := e.Event["type"].(canon.Str)
	return string(name)
}
