package packets

import "fmt"

// Decoder turns a byte stream into packets without blocking. Bytes arrive
// through Feed in whatever chunks the transport produced; Next returns one
// complete packet at a time. A Decoder is not safe for concurrent use.
type Decoder struct {
	buf         []byte
	maxIncoming int
	err         error
}

// NewDecoder returns a Decoder that rejects packets whose remaining length
// exceeds maxIncoming. 0 means the protocol maximum.
func NewDecoder(maxIncoming int) *Decoder {
	return &Decoder{maxIncoming: limit(maxIncoming)}
}

// Feed appends data to the decoder's buffer. data is copied.
func (d *Decoder) Feed(data []byte) {
	d.buf = append(d.buf, data...)
}

// Buffered reports how many bytes are waiting to be decoded.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Next returns the next complete packet, or (nil, nil) when more input is
// needed. After an error the stream is unrecoverable and every later call
// returns the same error.
func (d *Decoder) Next() (Packet, error) {
	if d.err != nil {
		return nil, d.err
	}

	header, n, err := parseFixedHeader(d.buf)
	if err != nil {
		d.err = err
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	if header.RemainingLength > d.maxIncoming {
		d.err = fmt.Errorf("%w: remaining length %d exceeds maximum %d", ErrPacketTooLarge, header.RemainingLength, d.maxIncoming)
		return nil, d.err
	}

	total := n + header.RemainingLength
	if len(d.buf) < total {
		return nil, nil
	}

	pkt, err := decodeBody(header, d.buf[n:total])
	if err != nil {
		d.err = err
		return nil, err
	}
	d.consume(total)
	return pkt, nil
}

// consume drops n decoded bytes, compacting the buffer so it does not grow
// without bound on a long-lived connection.
func (d *Decoder) consume(n int) {
	rest := copy(d.buf, d.buf[n:])
	d.buf = d.buf[:rest]
	if rest == 0 && cap(d.buf) > 64*1024 {
		d.buf = nil
	}
}

// Reset discards buffered input and any sticky error.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
	d.err = nil
}
