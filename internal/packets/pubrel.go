package packets

import "io"

// PubrelPacket represents an MQTT PUBREL control packet, the response to PUBREC (second step of QoS 2).
type PubrelPacket struct {
	PacketID uint16
}

// Type returns the packet type.
func (p *PubrelPacket) Type() uint8 { return PUBREL }

// ID returns the packet identifier.
func (p *PubrelPacket) ID() uint16 { return p.PacketID }

// Encode appends the PUBREL packet to dst.
func (p *PubrelPacket) Encode(dst []byte) ([]byte, error) {
	return appendAck(dst, PUBREL, 0x02, p.PacketID)
}

// WriteTo writes the PUBREL packet to the writer.
func (p *PubrelPacket) WriteTo(w io.Writer) (int64, error) { return writePacket(w, p) }

// DecodePubrel decodes a PUBREL packet body.
func DecodePubrel(buf []byte) (*PubrelPacket, error) {
	id, err := decodeAck(buf, PUBREL)
	if err != nil {
		return nil, err
	}
	return &PubrelPacket{PacketID: id}, nil
}
