// Package rfq provides the shared types for the quote-negotiation core.
//
// This package contains type definitions only: instruments, RFQ records,
// inbound commands, outbound events, and the reject-reason vocabulary.
// All other internal packages import rfq; rfq imports only canon. This
// keeps it the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere - prices and quantities are int64 ticks
//   - User and RFQ identifiers are int64; -1 is the sentinel for "none"
//   - Cluster time (milliseconds) accompanies every command; the core
//     never reads the wall clock
package rfq
