package packets

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxStringLength is the largest length a two-byte prefix can express.
const maxStringLength = 65535

// appendString appends a length-prefixed UTF-8 string to dst.
func appendString(dst []byte, s string) ([]byte, error) {
	if len(s) > maxStringLength {
		return dst, fmt.Errorf("string of %d bytes exceeds %d", len(s), maxStringLength)
	}
	dst = append(dst, byte(len(s)>>8), byte(len(s)))
	return append(dst, s...), nil
}

// appendBinary appends length-prefixed binary data to dst.
func appendBinary(dst []byte, data []byte) ([]byte, error) {
	if len(data) > maxStringLength {
		return dst, fmt.Errorf("binary field of %d bytes exceeds %d", len(data), maxStringLength)
	}
	dst = append(dst, byte(len(data)>>8), byte(len(data)))
	return append(dst, data...), nil
}

func appendUint16(dst []byte, v uint16) []byte {
	return append(dst, byte(v>>8), byte(v))
}

func decodeUint16(buf []byte) (uint16, error) {
	if len(buf) < 2 {
		return 0, fmt.Errorf("%w: buffer too short for uint16", ErrMalformed)
	}
	return uint16(buf[0])<<8 | uint16(buf[1]), nil
}

// decodeString decodes an MQTT UTF-8 string (2-byte length + data).
// Returns the string, number of bytes consumed, and any error.
func decodeString(buf []byte) (string, int, error) {
	data, n, err := decodeBinary(buf)
	if err != nil {
		return "", 0, err
	}
	s := string(data)
	if strings.IndexByte(s, 0) >= 0 {
		return "", 0, fmt.Errorf("%w: string contains null character", ErrMalformed)
	}
	if !utf8.ValidString(s) {
		return "", 0, fmt.Errorf("%w: invalid UTF-8 string", ErrMalformed)
	}
	return s, n, nil
}

// decodeBinary reads length-prefixed binary data from the buffer.
// The returned slice aliases buf.
func decodeBinary(buf []byte) ([]byte, int, error) {
	if len(buf) < 2 {
		return nil, 0, fmt.Errorf("%w: buffer too short for length prefix", ErrMalformed)
	}

	length := int(buf[0])<<8 | int(buf[1])
	if len(buf) < 2+length {
		return nil, 0, fmt.Errorf("%w: need %d bytes, have %d", ErrMalformed, 2+length, len(buf))
	}

	return buf[2 : 2+length], 2 + length, nil
}
