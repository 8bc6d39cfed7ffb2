package packets

import (
	"fmt"
	"io"
)

// decodeFunc decodes a packet body once its fixed header is known.
type decodeFunc func(body []byte, header FixedHeader) (Packet, error)

// packetDecoders maps packet types to their decoder functions.
var packetDecoders = map[uint8]decodeFunc{
	CONNECT:     func(b []byte, _ FixedHeader) (Packet, error) { return DecodeConnect(b) },
	CONNACK:     func(b []byte, _ FixedHeader) (Packet, error) { return DecodeConnack(b) },
	PUBLISH:     func(b []byte, h FixedHeader) (Packet, error) { return DecodePublish(b, h) },
	PUBACK:      func(b []byte, _ FixedHeader) (Packet, error) { return DecodePuback(b) },
	PUBREC:      func(b []byte, _ FixedHeader) (Packet, error) { return DecodePubrec(b) },
	PUBREL:      func(b []byte, _ FixedHeader) (Packet, error) { return DecodePubrel(b) },
	PUBCOMP:     func(b []byte, _ FixedHeader) (Packet, error) { return DecodePubcomp(b) },
	SUBSCRIBE:   func(b []byte, _ FixedHeader) (Packet, error) { return DecodeSubscribe(b) },
	SUBACK:      func(b []byte, _ FixedHeader) (Packet, error) { return DecodeSuback(b) },
	UNSUBSCRIBE: func(b []byte, _ FixedHeader) (Packet, error) { return DecodeUnsubscribe(b) },
	UNSUBACK:    func(b []byte, _ FixedHeader) (Packet, error) { return DecodeUnsuback(b) },
	PINGREQ:     func(b []byte, _ FixedHeader) (Packet, error) { return DecodePingreq(b) },
	PINGRESP:    func(b []byte, _ FixedHeader) (Packet, error) { return DecodePingresp(b) },
	DISCONNECT:  func(b []byte, _ FixedHeader) (Packet, error) { return DecodeDisconnect(b) },
}

// decodeBody dispatches a complete packet body to its decoder.
func decodeBody(header FixedHeader, body []byte) (Packet, error) {
	decode, ok := packetDecoders[header.PacketType]
	if !ok {
		return nil, fmt.Errorf("%w: unknown packet type %d", ErrMalformed, header.PacketType)
	}
	return decode(body, header)
}

// limit clamps a configured maximum to the protocol maximum.
func limit(maxIncoming int) int {
	if maxIncoming <= 0 || maxIncoming > MaxRemainingLength {
		return MaxRemainingLength
	}
	return maxIncoming
}

// ReadPacket reads exactly one MQTT packet from r, blocking until it is complete.
// maxIncoming bounds the remaining length; 0 means the protocol maximum.
func ReadPacket(r io.Reader, maxIncoming int) (Packet, error) {
	header, err := DecodeFixedHeader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode fixed header: %w", err)
	}

	if maxLen := limit(maxIncoming); header.RemainingLength > maxLen {
		return nil, fmt.Errorf("%w: remaining length %d exceeds maximum %d", ErrPacketTooLarge, header.RemainingLength, maxLen)
	}

	var body []byte
	if header.RemainingLength > 0 {
		bufPtr := getBuffer(header.RemainingLength)
		defer putBuffer(bufPtr)
		body = (*bufPtr)[:header.RemainingLength]

		if _, err := io.ReadFull(r, body); err != nil {
			return nil, fmt.Errorf("failed to read packet body: %w", err)
		}
	}

	return decodeBody(*header, body)
}
