package packets

import "errors"

var (
	// ErrMalformed is wrapped by every decode error caused by invalid bytes.
	ErrMalformed = errors.New("malformed packet")

	// ErrPacketTooLarge is returned when a packet exceeds the protocol limit
	// or the configured maximum incoming size.
	ErrPacketTooLarge = errors.New("packet too large")
)
