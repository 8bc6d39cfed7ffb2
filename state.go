package mqsession

import (
	"errors"
	"fmt"
)

// State is the connection state of a Session.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ErrInvalidTransition is returned when an operation would move the session
// along an edge the state machine does not have, such as Connect while
// already connected.
var ErrInvalidTransition = errors.New("invalid state transition")

// transitions lists the allowed edges. Every active state may fall into
// Error; Error only leads back to Disconnected.
var transitions = map[State][]State{
	StateDisconnected:  {StateConnecting},
	StateConnecting:    {StateConnected, StateError},
	StateConnected:     {StateDisconnecting, StateError},
	StateDisconnecting: {StateDisconnected, StateError},
	StateError:         {StateDisconnected},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func transitionError(from, to State) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
