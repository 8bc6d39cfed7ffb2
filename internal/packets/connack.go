package packets

import (
	"fmt"
	"io"
)

// ConnackPacket represents an MQTT CONNACK control packet.
type ConnackPacket struct {
	SessionPresent bool
	ReturnCode     uint8
}

// Type returns the packet type.
func (p *ConnackPacket) Type() uint8 { return CONNACK }

// Encode appends the CONNACK packet to dst.
func (p *ConnackPacket) Encode(dst []byte) ([]byte, error) {
	var ack uint8
	if p.SessionPresent {
		ack = 0x01
	}
	return append(dst, CONNACK<<4, 2, ack, p.ReturnCode), nil
}

// WriteTo writes the CONNACK packet to the writer.
func (p *ConnackPacket) WriteTo(w io.Writer) (int64, error) { return writePacket(w, p) }

// DecodeConnack decodes a CONNACK packet body.
func DecodeConnack(buf []byte) (*ConnackPacket, error) {
	if len(buf) != 2 {
		return nil, fmt.Errorf("%w: CONNACK length %d, want 2", ErrMalformed, len(buf))
	}
	if buf[0]&0xFE != 0 {
		return nil, fmt.Errorf("%w: CONNACK reserved acknowledge flags 0x%X", ErrMalformed, buf[0])
	}
	if buf[1] > ConnRefusedNotAuthorized {
		return nil, fmt.Errorf("%w: CONNACK return code %d", ErrMalformed, buf[1])
	}
	p := &ConnackPacket{
		SessionPresent: buf[0]&0x01 != 0,
		ReturnCode:     buf[1],
	}
	if p.SessionPresent && p.ReturnCode != ConnAccepted {
		return nil, fmt.Errorf("%w: session present on refused CONNACK", ErrMalformed)
	}
	return p, nil
}
