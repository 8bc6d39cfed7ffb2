package packets

import "io"

// PubrecPacket represents an MQTT PUBREC control packet, the response to QoS 2 PUBLISH (first step).
type PubrecPacket struct {
	PacketID uint16
}

// Type returns the packet type.
func (p *PubrecPacket) Type() uint8 { return PUBREC }

// ID returns the packet identifier.
func (p *PubrecPacket) ID() uint16 { return p.PacketID }

// Encode appends the PUBREC packet to dst.
func (p *PubrecPacket) Encode(dst []byte) ([]byte, error) {
	return appendAck(dst, PUBREC, 0, p.PacketID)
}

// WriteTo writes the PUBREC packet to the writer.
func (p *PubrecPacket) WriteTo(w io.Writer) (int64, error) { return writePacket(w, p) }

// DecodePubrec decodes a PUBREC packet body.
func DecodePubrec(buf []byte) (*PubrecPacket, error) {
	id, err := decodeAck(buf, PUBREC)
	if err != nil {
		return nil, err
	}
	return &PubrecPacket{PacketID: id}, nil
}
