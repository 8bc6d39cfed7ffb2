package mqsession

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransitions(t *testing.T) {
	all := []State{StateDisconnected, StateConnecting, StateConnected, StateDisconnecting, StateError}
	allowed := map[[2]State]bool{
		{StateDisconnected, StateConnecting}:    true,
		{StateConnecting, StateConnected}:       true,
		{StateConnecting, StateError}:           true,
		{StateConnected, StateDisconnecting}:    true,
		{StateConnected, StateError}:            true,
		{StateDisconnecting, StateDisconnected}: true,
		{StateDisconnecting, StateError}:        true,
		{StateError, StateDisconnected}:         true,
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]State{from, to}], canTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTransitionError(t *testing.T) {
	err := transitionError(StateConnected, StateConnecting)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Contains(t, err.Error(), "connected -> connecting")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnecting", StateDisconnecting.String())
	assert.Equal(t, "error", StateError.String())
	assert.Equal(t, "state(42)", State(42).String())
}
