package packets

import "io"

// PubcompPacket represents an MQTT PUBCOMP control packet, the response to PUBREL (final step of QoS 2).
type PubcompPacket struct {
	PacketID uint16
}

// Type returns the packet type.
func (p *PubcompPacket) Type() uint8 { return PUBCOMP }

// ID returns the packet identifier.
func (p *PubcompPacket) ID() uint16 { return p.PacketID }

// Encode appends the PUBCOMP packet to dst.
func (p *PubcompPacket) Encode(dst []byte) ([]byte, error) {
	return appendAck(dst, PUBCOMP, 0, p.PacketID)
}

// WriteTo writes the PUBCOMP packet to the writer.
func (p *PubcompPacket) WriteTo(w io.Writer) (int64, error) { return writePacket(w, p) }

// DecodePubcomp decodes a PUBCOMP packet body.
func DecodePubcomp(buf []byte) (*PubcompPacket, error) {
	id, err := decodeAck(buf, PUBCOMP)
	if err != nil {
		return nil, err
	}
	return &PubcompPacket{PacketID: id}, nil
}
