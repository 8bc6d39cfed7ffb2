package packets

import (
	"fmt"
	"io"
)

// SubscribePacket represents an MQTT SUBSCRIBE control packet.
// Topics and QoS are parallel slices, one entry per topic filter.
type SubscribePacket struct {
	PacketID uint16
	Topics   []string
	QoS      []uint8
}

// Type returns the packet type.
func (p *SubscribePacket) Type() uint8 { return SUBSCRIBE }

// ID returns the packet identifier.
func (p *SubscribePacket) ID() uint16 { return p.PacketID }

// Encode appends the SUBSCRIBE packet to dst.
func (p *SubscribePacket) Encode(dst []byte) ([]byte, error) {
	if p.PacketID == 0 {
		return dst, fmt.Errorf("SUBSCRIBE requires a non-zero packet identifier")
	}
	if len(p.Topics) == 0 {
		return dst, fmt.Errorf("SUBSCRIBE requires at least one topic filter")
	}
	if len(p.Topics) != len(p.QoS) {
		return dst, fmt.Errorf("SUBSCRIBE has %d topics but %d QoS values", len(p.Topics), len(p.QoS))
	}

	body := appendUint16(make([]byte, 0, 64), p.PacketID)
	var err error
	for i, topic := range p.Topics {
		if p.QoS[i] > QoS2 {
			return dst, fmt.Errorf("invalid QoS %d for %q", p.QoS[i], topic)
		}
		if body, err = appendString(body, topic); err != nil {
			return dst, err
		}
		body = append(body, p.QoS[i])
	}
	return encodePacket(dst, SUBSCRIBE, 0x02, body)
}

// WriteTo writes the SUBSCRIBE packet to the writer.
func (p *SubscribePacket) WriteTo(w io.Writer) (int64, error) { return writePacket(w, p) }

// DecodeSubscribe decodes a SUBSCRIBE packet body.
func DecodeSubscribe(buf []byte) (*SubscribePacket, error) {
	id, err := decodeUint16(buf)
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, fmt.Errorf("%w: SUBSCRIBE with packet identifier 0", ErrMalformed)
	}
	p := &SubscribePacket{PacketID: id}

	offset := 2
	for offset < len(buf) {
		topic, n, err := decodeString(buf[offset:])
		if err != nil {
			return nil, fmt.Errorf("topic filter: %w", err)
		}
		offset += n
		if offset >= len(buf) {
			return nil, fmt.Errorf("%w: missing requested QoS for %q", ErrMalformed, topic)
		}
		qos := buf[offset]
		if qos > QoS2 {
			return nil, fmt.Errorf("%w: requested QoS byte 0x%X", ErrMalformed, qos)
		}
		offset++
		p.Topics = append(p.Topics, topic)
		p.QoS = append(p.QoS, qos)
	}
	if len(p.Topics) == 0 {
		return nil, fmt.Errorf("%w: SUBSCRIBE without topic filters", ErrMalformed)
	}
	return p, nil
}
