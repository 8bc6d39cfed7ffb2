package packets

import "io"

// Packet is the interface that all MQTT control packets implement.
type Packet interface {
	// Type returns the MQTT control packet type.
	Type() uint8

	// Encode appends the serialized packet bytes to dst and returns the resulting slice.
	Encode(dst []byte) ([]byte, error)

	// WriteTo writes the packet to the writer.
	// It returns the number of bytes written and any error encountered.
	WriteTo(w io.Writer) (int64, error)
}

// IdentifiedPacket is implemented by packets that carry a packet identifier.
type IdentifiedPacket interface {
	Packet
	ID() uint16
}

// writePacket encodes p into a pooled buffer and writes it in a single call.
func writePacket(w io.Writer, p Packet) (int64, error) {
	bufPtr := getBuffer(defaultBufferSize)
	defer putBuffer(bufPtr)

	data, err := p.Encode((*bufPtr)[:0])
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// Size returns the encoded size of p in bytes.
func Size(p Packet) (int, error) {
	data, err := p.Encode(nil)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}
