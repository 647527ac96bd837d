package execution

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycle_Paths(t *testing.T) {
	tests := []struct {
		name    string
		verify  bool
		events  []string
		final   Phase
		entered []Phase
	}{
		{
			name:    "applied with verify",
			verify:  true,
			events:  []string{EventCheck, EventApply, EventVerify, EventSucceed},
			final:   PhaseApplied,
			entered: []Phase{PhaseChecking, PhaseApplying, PhaseVerifying, PhaseApplied},
		},
		{
			name:    "applied without verify",
			events:  []string{EventCheck, EventApply, EventSucceed},
			final:   PhaseApplied,
			entered: []Phase{PhaseChecking, PhaseApplying, PhaseApplied},
		},
		{
			name:    "precondition satisfied",
			verify:  true,
			events:  []string{EventCheck, EventSkip},
			final:   PhaseSkipped,
			entered: []Phase{PhaseChecking, PhaseSkipped},
		},
		{
			name:    "converged",
			verify:  true,
			events:  []string{EventSkip},
			final:   PhaseSkipped,
			entered: []Phase{PhaseSkipped},
		},
		{
			name:    "dry run",
			verify:  true,
			events:  []string{EventCheck, EventDryRun},
			final:   PhaseSkippedDryRun,
			entered: []Phase{PhaseChecking, PhaseSkippedDryRun},
		},
		{
			name:    "verify failed",
			verify:  true,
			events:  []string{EventCheck, EventApply, EventVerify, EventFail},
			final:   PhaseFailed,
			entered: []Phase{PhaseChecking, PhaseApplying, PhaseVerifying, PhaseFailed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lc, err := NewLifecycle("k3s:install", tt.verify, nil)
			require.NoError(t, err)
			defer lc.Stop()

			for _, e := range tt.events {
				require.NoError(t, lc.Require(e))
			}

			assert.Eventually(t, func() bool {
				return lc.Phase() == tt.final
			}, time.Second, 5*time.Millisecond)
			assert.Equal(t, tt.entered, lc.Entered())
		})
	}
}

func TestLifecycle_IgnoresInvalidEvents(t *testing.T) {
	lc, err := NewLifecycle("tools:helm", true, nil)
	require.NoError(t, err)
	defer lc.Stop()

	// Cannot apply before checking, nor succeed after skipping.
	assert.False(t, lc.Send(EventApply))
	assert.True(t, lc.Send(EventSkip))
	assert.False(t, lc.Send(EventSucceed))

	assert.Eventually(t, func() bool {
		return lc.Phase() == PhaseSkipped
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []Phase{PhaseSkipped}, lc.Entered())
}

func TestLifecycle_OnEnterCallback(t *testing.T) {
	var mu sync.Mutex
	var seen []Phase
	lc, err := NewLifecycle("azure:aio", true, func(p Phase) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, p)
	})
	require.NoError(t, err)
	defer lc.Stop()

	assert.Equal(t, PhasePending, lc.Phase())

	lc.Send(EventCheck)
	lc.Send(EventFail)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []Phase{PhaseChecking, PhaseFailed}, seen)
}

func TestLifecycle_VerificationGatesApplied(t *testing.T) {
	lc, err := NewLifecycle("k3s:kubeconfig", true, nil)
	require.NoError(t, err)
	defer lc.Stop()

	err = lc.Require(EventVerify)
	assert.ErrorIs(t, err, ErrInvalidTransition, "verify before apply")

	require.NoError(t, lc.Require(EventCheck))
	require.NoError(t, lc.Require(EventApply))
	assert.ErrorIs(t, lc.Require(EventSucceed), ErrInvalidTransition, "applied without verifying")
	assert.Equal(t, PhaseApplying, lc.Phase())
	assert.Equal(t, StatusPending, lc.Status())

	require.NoError(t, lc.Require(EventVerify))
	require.NoError(t, lc.Require(EventSucceed))
	assert.Equal(t, StatusApplied, lc.Status())
}

func TestLifecycle_VerificationOffSkipsVerifying(t *testing.T) {
	lc, err := NewLifecycle("k3s:kubeconfig", false, nil)
	require.NoError(t, err)
	defer lc.Stop()

	require.NoError(t, lc.Require(EventCheck))
	require.NoError(t, lc.Require(EventApply))
	assert.False(t, lc.Send(EventVerify))
	require.NoError(t, lc.Require(EventSucceed))
	assert.Equal(t, []Phase{PhaseChecking, PhaseApplying, PhaseApplied}, lc.Entered())
}

func TestLifecycle_Status(t *testing.T) {
	tests := []struct {
		events []string
		want   StepStatus
	}{
		{nil, StatusPending},
		{[]string{EventCheck}, StatusPending},
		{[]string{EventSkip}, StatusSkipped},
		{[]string{EventCheck, EventDryRun}, StatusSkippedDryRun},
		{[]string{EventCheck, EventApply, EventVerify, EventSucceed}, StatusApplied},
		{[]string{EventCheck, EventFail}, StatusFailed},
	}

	for _, tt := range tests {
		lc, err := NewLifecycle("host:os-check", true, nil)
		require.NoError(t, err)
		for _, e := range tt.events {
			require.NoError(t, lc.Require(e))
		}
		assert.Equal(t, tt.want, lc.Status(), "events %v", tt.events)
		lc.Stop()
	}
}
