package packets

import (
	"fmt"
	"io"
)

// PingrespPacket represents an MQTT PINGRESP control packet, sent to answer a PINGREQ.
// It has no variable header or payload.
type PingrespPacket struct{}

// Type returns the packet type.
func (p *PingrespPacket) Type() uint8 { return PINGRESP }

// Encode appends the PINGRESP packet to dst.
func (p *PingrespPacket) Encode(dst []byte) ([]byte, error) {
	return append(dst, PINGRESP<<4, 0), nil
}

// WriteTo writes the PINGRESP packet to the writer.
func (p *PingrespPacket) WriteTo(w io.Writer) (int64, error) { return writePacket(w, p) }

// DecodePingresp checks that a PINGRESP body is empty.
func DecodePingresp(buf []byte) (*PingrespPacket, error) {
	if len(buf) != 0 {
		return nil, fmt.Errorf("%w: PINGRESP with %d byte body", ErrMalformed, len(buf))
	}
	return &PingrespPacket{}, nil
}
