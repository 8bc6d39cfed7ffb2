package packets

import (
	"fmt"
	"io"
)

// PingreqPacket represents an MQTT PINGREQ control packet, sent to keep the connection alive.
// It has no variable header or payload.
type PingreqPacket struct{}

// Type returns the packet type.
func (p *PingreqPacket) Type() uint8 { return PINGREQ }

// Encode appends the PINGREQ packet to dst.
func (p *PingreqPacket) Encode(dst []byte) ([]byte, error) {
	return append(dst, PINGREQ<<4, 0), nil
}

// WriteTo writes the PINGREQ packet to the writer.
func (p *PingreqPacket) WriteTo(w io.Writer) (int64, error) { return writePacket(w, p) }

// DecodePingreq checks that a PINGREQ body is empty.
func DecodePingreq(buf []byte) (*PingreqPacket, error) {
	if len(buf) != 0 {
		return nil, fmt.Errorf("%w: PINGREQ with %d byte body", ErrMalformed, len(buf))
	}
	return &PingreqPacket{}, nil
}
