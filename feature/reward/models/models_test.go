package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusSubmitted.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusAnomalous.Terminal())
}

func TestValid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusSubmitted, StatusCompleted, StatusFailed, StatusAnomalous} {
		assert.True(t, s.Valid(), "status %s should be valid", s)
	}
	assert.False(t, Status("").Valid())
	assert.False(t, Status("unknown").Valid())
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		// Normal flow
		{StatusPending, StatusSubmitted, true},
		{StatusSubmitted, StatusCompleted, true},
		// Lookback adoption and explicit rejection skip submitted
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusAnomalous, true},
		// Abandonment and mismatch from submitted
		{StatusSubmitted, StatusFailed, true},
		{StatusSubmitted, StatusAnomalous, true},
		// Manual reopen is the only exit from a terminal state
		{StatusFailed, StatusPending, true},
		{StatusCompleted, StatusPending, false},
		{StatusCompleted, StatusFailed, false},
		{StatusAnomalous, StatusPending, false},
		{StatusAnomalous, StatusCompleted, false},
		// No backwards movement
		{StatusSubmitted, StatusPending, false},
		{StatusFailed, StatusCompleted, false},
		{StatusFailed, StatusSubmitted, false},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.allowed, CanTransition(tc.from, tc.to),
			"transition %s -> %s", tc.from, tc.to)
	}
}
