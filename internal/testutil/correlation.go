package testutil

import (
	"fmt"
	"sync"
)

// SequenceCorrelationGenerator mints correlation tokens "prefix-1",
// "prefix-2", ... in order.
//
// This enables deterministic test execution and golden snapshot comparison:
// the same scenario with the same generator produces byte-identical event
// streams, unlike the production UUIDv7 generator.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequenceCorrelationGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int64
}

// NewSequenceCorrelationGenerator creates a generator with the given
// prefix. An empty prefix defaults to "test".
func NewSequenceCorrelationGenerator(prefix string) *SequenceCorrelationGenerator {
	if prefix == "" {
		prefix = "test"
	}
	return &SequenceCorrelationGenerator{prefix: prefix}
}

// Generate returns the next token in sequence.
//
// Implements rfq.CorrelationGenerator.
func (g *SequenceCorrelationGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
