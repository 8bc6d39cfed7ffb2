package packets

import (
	"fmt"
	"io"
)

// FixedHeader represents the fixed header present in all MQTT control packets.
// Format: [PacketType + Flags (1 byte)][Remaining Length (1-4 bytes)]
type FixedHeader struct {
	PacketType      uint8
	Flags           uint8
	RemainingLength int
}

// appendBytes appends the encoded header to dst.
func (h FixedHeader) appendBytes(dst []byte) ([]byte, error) {
	dst = append(dst, h.PacketType<<4|h.Flags&0x0F)
	return AppendVarInt(dst, h.RemainingLength)
}

// Size is the encoded length of the header.
func (h FixedHeader) Size() int {
	return 1 + varIntSize(h.RemainingLength)
}

// validate checks the fixed-header flags against the values MQTT 3.1.1
// reserves for each packet type.
func (h FixedHeader) validate() error {
	switch h.PacketType {
	case PUBLISH:
		if (h.Flags>>1)&0x03 == 3 {
			return fmt.Errorf("%w: PUBLISH with QoS 3", ErrMalformed)
		}
		if h.Flags&0x08 != 0 && (h.Flags>>1)&0x03 == 0 {
			return fmt.Errorf("%w: DUP set on QoS 0 PUBLISH", ErrMalformed)
		}
		return nil
	case PUBREL, SUBSCRIBE, UNSUBSCRIBE:
		if h.Flags != 0x02 {
			return fmt.Errorf("%w: %s flags 0x%X, want 0x2", ErrMalformed, Name(h.PacketType), h.Flags)
		}
		return nil
	case CONNECT, CONNACK, PUBACK, PUBREC, PUBCOMP, SUBACK, UNSUBACK, PINGREQ, PINGRESP, DISCONNECT:
		if h.Flags != 0 {
			return fmt.Errorf("%w: %s flags 0x%X, want 0x0", ErrMalformed, Name(h.PacketType), h.Flags)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown packet type %d", ErrMalformed, h.PacketType)
	}
}

// parseFixedHeader decodes a fixed header from the start of buf.
// n == 0 with a nil error means more bytes are needed.
func parseFixedHeader(buf []byte) (h FixedHeader, n int, err error) {
	if len(buf) < 2 {
		return h, 0, nil
	}
	length, ln, err := DecodeVarInt(buf[1:])
	if err != nil || ln == 0 {
		return h, 0, err
	}
	h = FixedHeader{
		PacketType:      buf[0] >> 4,
		Flags:           buf[0] & 0x0F,
		RemainingLength: length,
	}
	if err := h.validate(); err != nil {
		return h, 0, err
	}
	return h, 1 + ln, nil
}

// DecodeFixedHeader reads and decodes a fixed header from the reader.
func DecodeFixedHeader(r io.Reader) (*FixedHeader, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, err
	}

	remainingLength, err := readVarInt(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode remaining length: %w", err)
	}

	h := &FixedHeader{
		PacketType:      buf[0] >> 4,
		Flags:           buf[0] & 0x0F,
		RemainingLength: remainingLength,
	}
	if err := h.validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// encodePacket builds a full packet from its header fields and body.
func encodePacket(dst []byte, packetType, flags uint8, body []byte) ([]byte, error) {
	dst, err := FixedHeader{PacketType: packetType, Flags: flags, RemainingLength: len(body)}.appendBytes(dst)
	if err != nil {
		return dst, err
	}
	return append(dst, body...), nil
}
