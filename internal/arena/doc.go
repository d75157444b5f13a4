// Package arena implements a fixed-capacity, append-only, indexed record
// store for the negotiation core.
//
// Records live in a preallocated slice and are addressed three ways: by
// primary key, by insertion offset, or by secondary-index lookup. A record's
// offset never changes for the life of the store, and the primary key is
// locked at append time - the store addresses records through its own copy
// of the key, so later writes to a record's embedded key field cannot move
// or re-alias the record.
//
// The store is a single-writer structure. The surrounding cluster runtime
// applies exactly one command at a time, so no locking exists here; any
// concurrency control belongs to the transport layer.
//
// Capacity exhaustion is a normal outcome, reported as ErrAtCapacity, never
// a panic.
package arena
