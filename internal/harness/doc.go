// Package harness provides a conformance testing framework for the RFQ
// engine.
//
// Scenarios are YAML files describing a command sequence with expected
// replies and broadcasts, plus assertions over the final state. The harness
// drives the real engine through its normal Apply path with a recording
// Responder, so a passing scenario certifies actual engine behavior, not a
// re-statement of the expectations.
//
// Determinism: scenarios carry explicit cluster timestamps, and every
// recorded event is canonical JSON, so a scenario's trace is byte-identical
// across runs and across replicas. Golden trace files under testdata/golden
// pin the full event stream; regenerate them with:
//
//	go test ./internal/harness -update
package harness
