package packets

import (
	"fmt"
	"io"
)

// PublishPacket represents an MQTT PUBLISH control packet.
type PublishPacket struct {
	Dup    bool
	QoS    uint8
	Retain bool

	Topic string
	// PacketID is only present for QoS 1 and 2.
	PacketID uint16
	Payload  []byte
}

// Type returns the packet type.
func (p *PublishPacket) Type() uint8 { return PUBLISH }

// ID returns the packet identifier.
func (p *PublishPacket) ID() uint16 { return p.PacketID }

func (p *PublishPacket) flags() uint8 {
	f := (p.QoS & 0x03) << 1
	if p.Dup {
		f |= 0x08
	}
	if p.Retain {
		f |= 0x01
	}
	return f
}

// Encode appends the PUBLISH packet to dst.
func (p *PublishPacket) Encode(dst []byte) ([]byte, error) {
	if p.QoS > QoS2 {
		return dst, fmt.Errorf("invalid QoS %d", p.QoS)
	}
	if p.QoS > QoS0 && p.PacketID == 0 {
		return dst, fmt.Errorf("QoS %d PUBLISH requires a packet identifier", p.QoS)
	}
	if len(p.Topic) > maxStringLength {
		return dst, fmt.Errorf("topic of %d bytes exceeds %d", len(p.Topic), maxStringLength)
	}

	remaining := 2 + len(p.Topic) + len(p.Payload)
	if p.QoS > QoS0 {
		remaining += 2
	}

	dst, err := FixedHeader{PacketType: PUBLISH, Flags: p.flags(), RemainingLength: remaining}.appendBytes(dst)
	if err != nil {
		return dst, err
	}
	// Topic length checked above; appendString cannot fail.
	dst, _ = appendString(dst, p.Topic)
	if p.QoS > QoS0 {
		dst = appendUint16(dst, p.PacketID)
	}
	return append(dst, p.Payload...), nil
}

// WriteTo writes the PUBLISH packet to the writer.
func (p *PublishPacket) WriteTo(w io.Writer) (int64, error) { return writePacket(w, p) }

// DecodePublish decodes a PUBLISH packet body. The payload is copied so the
// packet stays valid after buf is reused.
func DecodePublish(buf []byte, header FixedHeader) (*PublishPacket, error) {
	p := &PublishPacket{
		Dup:    header.Flags&0x08 != 0,
		QoS:    (header.Flags >> 1) & 0x03,
		Retain: header.Flags&0x01 != 0,
	}
	if p.QoS > QoS2 {
		return nil, fmt.Errorf("%w: PUBLISH with QoS 3", ErrMalformed)
	}

	topic, n, err := decodeString(buf)
	if err != nil {
		return nil, fmt.Errorf("topic: %w", err)
	}
	p.Topic = topic
	offset := n

	if p.QoS > QoS0 {
		if p.PacketID, err = decodeUint16(buf[offset:]); err != nil {
			return nil, err
		}
		if p.PacketID == 0 {
			return nil, fmt.Errorf("%w: PUBLISH with packet identifier 0", ErrMalformed)
		}
		offset += 2
	}

	if offset < len(buf) {
		p.Payload = append([]byte(nil), buf[offset:]...)
	}
	return p, nil
}
