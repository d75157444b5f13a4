package rfq

import "github.com/google/uuid"

// CorrelationGenerator mints correlation tokens for locally originated
// commands (CLI tooling, demo drivers). Commands arriving over the wire
// carry the client's own token instead.
type CorrelationGenerator interface {
	Generate() string
}

// UUIDGenerator mints UUIDv7 correlation tokens. V7 embeds a timestamp, so
// tokens sort roughly by creation order, which helps when eyeballing logs.
type UUIDGenerator struct{}

// NewUUIDGenerator creates a UUIDv7 correlation token generator.
func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

// Generate returns a new UUIDv7 token, falling back to UUIDv4 if the
// system's entropy source misbehaves.
func (g *UUIDGenerator) Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
