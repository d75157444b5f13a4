package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoldenFullNegotiation(t *testing.T) {
	scenario := loadTestScenario(t, "full-negotiation")
	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "scenario failed: %v", result.Errors)
}

func TestGoldenUnknownCusip(t *testing.T) {
	scenario := loadTestScenario(t, "unknown-cusip")
	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "scenario failed: %v", result.Errors)
}
