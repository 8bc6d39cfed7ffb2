package packets

import (
	"fmt"
	"io"
)

// DisconnectPacket represents an MQTT DISCONNECT control packet, sent to announce a clean disconnect.
// It has no variable header or payload.
type DisconnectPacket struct{}

// Type returns the packet type.
func (p *DisconnectPacket) Type() uint8 { return DISCONNECT }

// Encode appends the DISCONNECT packet to dst.
func (p *DisconnectPacket) Encode(dst []byte) ([]byte, error) {
	return append(dst, DISCONNECT<<4, 0), nil
}

// WriteTo writes the DISCONNECT packet to the writer.
func (p *DisconnectPacket) WriteTo(w io.Writer) (int64, error) { return writePacket(w, p) }

// DecodeDisconnect checks that a DISCONNECT body is empty.
func DecodeDisconnect(buf []byte) (*DisconnectPacket, error) {
	if len(buf) != 0 {
		return nil, fmt.Errorf("%w: DISCONNECT with %d byte body", ErrMalformed, len(buf))
	}
	return &DisconnectPacket{}, nil
}
