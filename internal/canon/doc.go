// Package canon provides canonical JSON values and serialization.
//
// Every byte sequence the core emits - outbound events, snapshot records,
// golden traces - goes through canon.Marshal so that all replicas produce
// bit-identical output for identical state.
//
// Key design constraints:
//   - NO float types anywhere - use int64 ticks for prices and quantities
//   - RFC 8785 canonical JSON (UTF-16 key ordering, NFC normalization)
//   - No null values
package canon
