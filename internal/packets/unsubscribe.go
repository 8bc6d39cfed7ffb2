package packets

import (
	"fmt"
	"io"
)

// UnsubscribePacket represents an MQTT UNSUBSCRIBE control packet.
type UnsubscribePacket struct {
	PacketID uint16
	Topics   []string
}

// Type returns the packet type.
func (p *UnsubscribePacket) Type() uint8 { return UNSUBSCRIBE }

// ID returns the packet identifier.
func (p *UnsubscribePacket) ID() uint16 { return p.PacketID }

// Encode appends the UNSUBSCRIBE packet to dst.
func (p *UnsubscribePacket) Encode(dst []byte) ([]byte, error) {
	if p.PacketID == 0 {
		return dst, fmt.Errorf("UNSUBSCRIBE requires a non-zero packet identifier")
	}
	if len(p.Topics) == 0 {
		return dst, fmt.Errorf("UNSUBSCRIBE requires at least one topic filter")
	}
	body := appendUint16(make([]byte, 0, 64), p.PacketID)
	var err error
	for _, topic := range p.Topics {
		if body, err = appendString(body, topic); err != nil {
			return dst, err
		}
	}
	return encodePacket(dst, UNSUBSCRIBE, 0x02, body)
}

// WriteTo writes the UNSUBSCRIBE packet to the writer.
func (p *UnsubscribePacket) WriteTo(w io.Writer) (int64, error) { return writePacket(w, p) }

// DecodeUnsubscribe decodes an UNSUBSCRIBE packet body.
func DecodeUnsubscribe(buf []byte) (*UnsubscribePacket, error) {
	id, err := decodeUint16(buf)
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, fmt.Errorf("%w: UNSUBSCRIBE with packet identifier 0", ErrMalformed)
	}
	p := &UnsubscribePacket{PacketID: id}
	for offset := 2; offset < len(buf); {
		topic, n, err := decodeString(buf[offset:])
		if err != nil {
			return nil, fmt.Errorf("topic filter: %w", err)
		}
		p.Topics = append(p.Topics, topic)
		offset += n
	}
	if len(p.Topics) == 0 {
		return nil, fmt.Errorf("%w: UNSUBSCRIBE without topic filters", ErrMalformed)
	}
	return p, nil
}
