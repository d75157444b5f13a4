package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// Scenarios validate the negotiation protocol by applying a sequence of
// commands and asserting on the emitted events and the final state.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// RfqCapacity bounds the RFQ store; 0 means the engine default.
	// Capacity scenarios set this low to hit the boundary cheaply.
	RfqCapacity int `yaml:"rfq_capacity,omitempty"`

	// Setup contains commands applied before the main flow, all at cluster
	// time 0. Setup commands must not be rejected.
	Setup []map[string]any `yaml:"setup,omitempty"`

	// Steps contains the main flow.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state after all steps ran.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one action in the flow: either a command application or a timer
// fire, at an explicit cluster time.
type Step struct {
	// Command is the command to apply, keyed by field name with a "type"
	// tag, e.g. {type: CreateRfq, cusip: ..., quantity: ...}.
	// Exactly one of Command and FireTimer must be set.
	Command map[string]any `yaml:"command,omitempty"`

	// FireTimer simulates the external timer facility firing for an RFQ.
	FireTimer *TimerFire `yaml:"fire_timer,omitempty"`

	// AtMs is the cluster time the step executes at. Steps must carry
	// non-decreasing times.
	AtMs int64 `yaml:"at_ms"`

	// Expect lists the events this step must emit, in order. The step must
	// emit exactly these events; an empty list means the step emits
	// nothing.
	Expect []ExpectedEvent `yaml:"expect"`
}

// TimerFire identifies a timer callback.
type TimerFire struct {
	RfqID int64 `yaml:"rfq_id"`
}

// ExpectedEvent specifies one expected outbound event.
type ExpectedEvent struct {
	// Channel is "reply" or "broadcast".
	Channel string `yaml:"channel"`

	// Event contains the expected fields, keyed by wire name with a
	// "type" tag. Subset match: only listed fields are compared, and the
	// content-addressed id is always ignored.
	Event map[string]any `yaml:"event"`
}

// Assertion validates final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "rfq_state": look up an RFQ and verify field values
	// - "rfq_count": verify the number of stored RFQs
	// - "instrument_count": verify the number of stored instruments
	// - "event_count": verify how many times an event type was emitted
	// - "event_order": verify event types appeared in the given order
	Type string `yaml:"type"`

	// RfqID selects the record (rfq_state).
	RfqID int64 `yaml:"rfq_id,omitempty"`

	// Expect contains expected field values, subset match (rfq_state).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Event is the event type name (event_count).
	Event string `yaml:"event,omitempty"`

	// Count is the expected occurrence count (rfq_count,
	// instrument_count, event_count).
	Count int `yaml:"count"`

	// Events is the expected order of event types (event_order). The
	// trace may contain other events in between.
	Events []string `yaml:"events,omitempty"`
}

// Assertion type constants.
const (
	AssertRfqState        = "rfq_state"
	AssertRfqCount        = "rfq_count"
	AssertInstrumentCount = "instrument_count"
	AssertEventCount      = "event_count"
	AssertEventOrder      = "event_order"
)

// Event channel constants.
const (
	ChannelReply     = "reply"
	ChannelBroadcast = "broadcast"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs
	// "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, cmd := range s.Setup {
		if len(cmd) == 0 {
			return fmt.Errorf("setup[%d]: command is required", i)
		}
	}

	lastMs := int64(0)
	for i, step := range s.Steps {
		hasCommand := len(step.Command) > 0
		hasTimer := step.FireTimer != nil
		if hasCommand == hasTimer {
			return fmt.Errorf("steps[%d]: exactly one of command and fire_timer is required", i)
		}
		if step.AtMs < lastMs {
			return fmt.Errorf("steps[%d]: at_ms %d is before previous step's %d", i, step.AtMs, lastMs)
		}
		lastMs = step.AtMs

		for j, exp := range step.Expect {
			if exp.Channel != ChannelReply && exp.Channel != ChannelBroadcast {
				return fmt.Errorf("steps[%d].expect[%d]: unknown channel %q", i, j, exp.Channel)
			}
			if len(exp.Event) == 0 {
				return fmt.Errorf("steps[%d].expect[%d]: event is required", i, j)
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertRfqState:
		if a.RfqID == 0 {
			return fmt.Errorf("assertions[%d]: rfq_id is required for rfq_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for rfq_state", index)
		}
	case AssertRfqCount, AssertInstrumentCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertEventCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertEventOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for event_order", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
