package packets

import (
	"fmt"
	"io"
)

// maxVarIntBytes is the longest legal Remaining Length encoding.
const maxVarIntBytes = 4

// AppendVarInt appends the Variable Byte Integer encoding of value to dst.
// Values outside 0..MaxRemainingLength are rejected with ErrPacketTooLarge.
func AppendVarInt(dst []byte, value int) ([]byte, error) {
	if value < 0 || value > MaxRemainingLength {
		return dst, fmt.Errorf("%w: remaining length %d", ErrPacketTooLarge, value)
	}

	for {
		digit := byte(value % 128)
		value /= 128
		if value > 0 {
			digit |= 0x80
		}
		dst = append(dst, digit)
		if value == 0 {
			return dst, nil
		}
	}
}

// varIntSize returns how many bytes the encoding of value takes.
func varIntSize(value int) int {
	switch {
	case value < 1<<7:
		return 1
	case value < 1<<14:
		return 2
	case value < 1<<21:
		return 3
	default:
		return 4
	}
}

// DecodeVarInt decodes a Variable Byte Integer from the start of buf.
// It returns the value and the number of bytes consumed. n == 0 with a nil
// error means buf ends before the last length byte.
func DecodeVarInt(buf []byte) (value int, n int, err error) {
	multiplier := 1
	for i := 0; i < maxVarIntBytes; i++ {
		if i >= len(buf) {
			return 0, 0, nil
		}
		b := buf[i]
		value += int(b&0x7F) * multiplier
		if b&0x80 == 0 {
			return value, i + 1, nil
		}
		multiplier *= 128
	}
	return 0, 0, fmt.Errorf("%w: remaining length exceeds %d bytes", ErrMalformed, maxVarIntBytes)
}

// readVarInt reads a Variable Byte Integer one byte at a time from r.
func readVarInt(r io.Reader) (int, error) {
	var (
		b          [1]byte
		value      int
		multiplier = 1
	)
	for i := 0; i < maxVarIntBytes; i++ {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		value += int(b[0]&0x7F) * multiplier
		if b[0]&0x80 == 0 {
			return value, nil
		}
		multiplier *= 128
	}
	return 0, fmt.Errorf("%w: remaining length exceeds %d bytes", ErrMalformed, maxVarIntBytes)
}
