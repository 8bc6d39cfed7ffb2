package packets

import (
	"fmt"
	"io"
)

// SubackPacket represents an MQTT SUBACK control packet.
// ReturnCodes has one entry per requested filter: the granted QoS or 0x80.
type SubackPacket struct {
	PacketID    uint16
	ReturnCodes []uint8
}

// Type returns the packet type.
func (p *SubackPacket) Type() uint8 { return SUBACK }

// ID returns the packet identifier.
func (p *SubackPacket) ID() uint16 { return p.PacketID }

// Encode appends the SUBACK packet to dst.
func (p *SubackPacket) Encode(dst []byte) ([]byte, error) {
	if p.PacketID == 0 {
		return dst, fmt.Errorf("SUBACK requires a non-zero packet identifier")
	}
	body := appendUint16(make([]byte, 0, 2+len(p.ReturnCodes)), p.PacketID)
	body = append(body, p.ReturnCodes...)
	return encodePacket(dst, SUBACK, 0, body)
}

// WriteTo writes the SUBACK packet to the writer.
func (p *SubackPacket) WriteTo(w io.Writer) (int64, error) { return writePacket(w, p) }

// DecodeSuback decodes a SUBACK packet body.
func DecodeSuback(buf []byte) (*SubackPacket, error) {
	if len(buf) < 3 {
		return nil, fmt.Errorf("%w: SUBACK length %d, want at least 3", ErrMalformed, len(buf))
	}
	id := uint16(buf[0])<<8 | uint16(buf[1])
	if id == 0 {
		return nil, fmt.Errorf("%w: SUBACK with packet identifier 0", ErrMalformed)
	}
	codes := make([]uint8, len(buf)-2)
	for i, c := range buf[2:] {
		switch c {
		case SubackQoS0, SubackQoS1, SubackQoS2, SubackFailure:
			codes[i] = c
		default:
			return nil, fmt.Errorf("%w: SUBACK return code 0x%X", ErrMalformed, c)
		}
	}
	return &SubackPacket{PacketID: id, ReturnCodes: codes}, nil
}
