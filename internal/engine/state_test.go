package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(StatePending))
	assert.False(t, IsTerminal(StateRunning))
	assert.True(t, IsTerminal(StateSucceeded))
	assert.True(t, IsTerminal(StateFailed))
	assert.True(t, IsTerminal(StateSkipped))
}

func TestTransitionAllowed(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{StatePending, StateRunning},
		{StatePending, StateSkipped},
		{StateRunning, StateSucceeded},
		{StateRunning, StateFailed},
	}

	for _, tt := range tests {
		states := map[string]State{"a": tt.from}
		err := Transition(states, "a", tt.from, tt.to)
		require.NoError(t, err, "%s -> %s", tt.from, tt.to)
		assert.Equal(t, tt.to, states["a"])
	}
}

func TestTransitionRejected(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{StatePending, StateSucceeded},
		{StatePending, StateFailed},
		{StateRunning, StateSkipped},
		{StateRunning, StatePending},
		{StateSucceeded, StateRunning},
		{StateFailed, StateRunning},
		{StateSkipped, StateRunning},
	}

	for _, tt := range tests {
		states := map[string]State{"a": tt.from}
		err := Transition(states, "a", tt.from, tt.to)
		require.Error(t, err, "%s -> %s", tt.from, tt.to)
		assert.Equal(t, tt.from, states["a"], "state must not change on rejection")
	}
}

func TestTransitionWrongPriorState(t *testing.T) {
	states := map[string]State{"a": StatePending}
	err := Transition(states, "a", StateRunning, StateSucceeded)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected running")
	assert.Equal(t, StatePending, states["a"])
}

func TestTransitionUnknownTask(t *testing.T) {
	states := map[string]State{"a": StatePending}
	err := Transition(states, "b", StatePending, StateRunning)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown task")
}
