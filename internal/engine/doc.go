// Package engine implements the RFQ negotiation state machine.
//
// The engine is the deterministic core behind a consensus-replicated log:
// every replica applies the same ordered commands and must reach
// bit-identical state.
//
// ARCHITECTURE:
//
// Single-Writer Command Application:
// The surrounding cluster runtime guarantees that exactly one command,
// timer callback, or snapshot operation is being applied at any instant,
// and that every replica applies the identical sequence in the identical
// order. The engine therefore holds no locks, spawns no goroutines, and
// never blocks - Apply runs synchronously to completion or rejects with a
// typed reply.
//
// Command Processing Flow:
//  1. The external demultiplexer decodes the wire envelope and hands the
//     engine a flat command plus the cluster timestamp
//  2. Apply() routes to the appropriate handler
//  3. The handler validates, mutates the single-writer record stores, and
//     emits zero or more events through the injected Responder
//  4. Lifecycle transitions schedule or clear expiry timers
//
// CRITICAL PATTERNS:
//
// Cluster Time Only:
// Every comparison against "now" uses the cluster-supplied timestamp
// passed into the command. NEVER read the wall clock - replay on another
// replica or from a snapshot must reach identical decisions.
//
// Errors Are Replies:
// Validation, authorization, sequencing, and reference failures are
// ordinary typed results delivered as reply-only events with the sentinel
// id -1 where an id would otherwise appear. They never affect other RFQs
// and never crash the process.
package engine
