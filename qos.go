package mqsession

// QoS represents the MQTT Quality of Service level.
type QoS uint8

// MQTT Quality of Service levels.
const (
	// AtMostOnce (QoS 0) - Fire and forget delivery.
	// The message is delivered at most once, or it may not be delivered at all.
	// Its handle completes as soon as the packet is written to the socket.
	AtMostOnce QoS = 0

	// AtLeastOnce (QoS 1) - Acknowledged delivery.
	// The broker answers with PUBACK; until then the session retransmits with
	// the DUP flag set. Duplicates may occur.
	AtLeastOnce QoS = 1

	// ExactlyOnce (QoS 2) - Assured delivery.
	// Four-step handshake (PUBLISH, PUBREC, PUBREL, PUBCOMP).
	ExactlyOnce QoS = 2
)

func (q QoS) valid() bool {
	return q <= ExactlyOnce
}

func (q QoS) String() string {
	switch q {
	case AtMostOnce:
		return "at-most-once"
	case AtLeastOnce:
		return "at-least-once"
	case ExactlyOnce:
		return "exactly-once"
	default:
		return "invalid"
	}
}
