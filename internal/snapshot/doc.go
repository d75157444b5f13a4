// Package snapshot serializes engine state for replica bootstrap.
//
// The stream is a sequence of canonical JSON lines: every instrument record,
// then every RFQ record (terminal ones included, for audit and idempotent
// replay), then a mandatory end marker carrying the store checksums. A
// stream without the end marker is incomplete; loading logs the condition
// and keeps whatever was restored rather than aborting startup.
package snapshot
