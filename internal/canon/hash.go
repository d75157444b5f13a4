package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. The version suffix
// enables future algorithm migration without colliding with old hashes.
const (
	DomainEvent    = "quotewire/event/v1"
	DomainCommand  = "quotewire/command/v1"
	DomainSnapshot = "quotewire/snapshot/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain || 0x00 || data). The null separator prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// HashEvent computes the content-addressed identity of an outbound event.
// The same event payload always hashes to the same ID on every replica,
// giving operators a cheap per-event comparison handle alongside the
// whole-store checksum.
func HashEvent(payload Obj) (string, error) {
	data, err := Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("HashEvent: marshal: %w", err)
	}
	return hashWithDomain(DomainEvent, data), nil
}

// HashCommand computes the content-addressed identity of a journaled
// command. The journal uses it to deduplicate redelivered commands.
func HashCommand(payload Obj) (string, error) {
	data, err := Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("HashCommand: marshal: %w", err)
	}
	return hashWithDomain(DomainCommand, data), nil
}

// HashSnapshot computes the content-addressed identity of a snapshot record.
func HashSnapshot(payload Obj) (string, error) {
	data, err := Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("HashSnapshot: marshal: %w", err)
	}
	return hashWithDomain(DomainSnapshot, data), nil
}
