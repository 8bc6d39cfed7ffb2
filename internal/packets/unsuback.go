package packets

import "io"

// UnsubackPacket represents an MQTT UNSUBACK control packet, the response to UNSUBSCRIBE.
type UnsubackPacket struct {
	PacketID uint16
}

// Type returns the packet type.
func (p *UnsubackPacket) Type() uint8 { return UNSUBACK }

// ID returns the packet identifier.
func (p *UnsubackPacket) ID() uint16 { return p.PacketID }

// Encode appends the UNSUBACK packet to dst.
func (p *UnsubackPacket) Encode(dst []byte) ([]byte, error) {
	return appendAck(dst, UNSUBACK, 0, p.PacketID)
}

// WriteTo writes the UNSUBACK packet to the writer.
func (p *UnsubackPacket) WriteTo(w io.Writer) (int64, error) { return writePacket(w, p) }

// DecodeUnsuback decodes a UNSUBACK packet body.
func DecodeUnsuback(buf []byte) (*UnsubackPacket, error) {
	id, err := decodeAck(buf, UNSUBACK)
	if err != nil {
		return nil, err
	}
	return &UnsubackPacket{PacketID: id}, nil
}
