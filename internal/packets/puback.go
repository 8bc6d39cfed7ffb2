package packets

import "io"

// PubackPacket represents an MQTT PUBACK control packet, the response to QoS 1 PUBLISH.
type PubackPacket struct {
	PacketID uint16
}

// Type returns the packet type.
func (p *PubackPacket) Type() uint8 { return PUBACK }

// ID returns the packet identifier.
func (p *PubackPacket) ID() uint16 { return p.PacketID }

// Encode appends the PUBACK packet to dst.
func (p *PubackPacket) Encode(dst []byte) ([]byte, error) {
	return appendAck(dst, PUBACK, 0, p.PacketID)
}

// WriteTo writes the PUBACK packet to the writer.
func (p *PubackPacket) WriteTo(w io.Writer) (int64, error) { return writePacket(w, p) }

// DecodePuback decodes a PUBACK packet body.
func DecodePuback(buf []byte) (*PubackPacket, error) {
	id, err := decodeAck(buf, PUBACK)
	if err != nil {
		return nil, err
	}
	return &PubackPacket{PacketID: id}, nil
}
