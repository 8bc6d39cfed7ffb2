package packets

import "fmt"

// appendAck encodes the four-byte packets that carry only a packet identifier.
func appendAck(dst []byte, packetType, flags uint8, id uint16) ([]byte, error) {
	if id == 0 {
		return dst, fmt.Errorf("%s requires a non-zero packet identifier", Name(packetType))
	}
	return append(dst, packetType<<4|flags, 2, byte(id>>8), byte(id)), nil
}

// decodeAck decodes the body of a packet that carries only a packet identifier.
func decodeAck(buf []byte, packetType uint8) (uint16, error) {
	if len(buf) != 2 {
		return 0, fmt.Errorf("%w: %s length %d, want 2", ErrMalformed, Name(packetType), len(buf))
	}
	id := uint16(buf[0])<<8 | uint16(buf[1])
	if id == 0 {
		return 0, fmt.Errorf("%w: %s with packet identifier 0", ErrMalformed, Name(packetType))
	}
	return id, nil
}
