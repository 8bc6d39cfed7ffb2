package packets

import (
	"fmt"
	"io"
)

// ConnectPacket represents an MQTT CONNECT control packet.
type ConnectPacket struct {
	// Protocol name and level. Encode fills in "MQTT" / 4 when left empty.
	ProtocolName  string
	ProtocolLevel uint8

	CleanSession bool
	WillFlag     bool
	WillQoS      uint8
	WillRetain   bool
	UsernameFlag bool
	PasswordFlag bool

	// Keep alive timer in seconds
	KeepAlive uint16

	ClientID    string
	WillTopic   string
	WillMessage []byte
	Username    string
	Password    []byte
}

// Type returns the packet type.
func (p *ConnectPacket) Type() uint8 { return CONNECT }

func (p *ConnectPacket) flags() uint8 {
	var f uint8
	if p.CleanSession {
		f |= 0x02
	}
	if p.WillFlag {
		f |= 0x04
		f |= (p.WillQoS & 0x03) << 3
		if p.WillRetain {
			f |= 0x20
		}
	}
	if p.PasswordFlag {
		f |= 0x40
	}
	if p.UsernameFlag {
		f |= 0x80
	}
	return f
}

// Encode appends the CONNECT packet to dst.
func (p *ConnectPacket) Encode(dst []byte) ([]byte, error) {
	if p.WillQoS > QoS2 {
		return dst, fmt.Errorf("invalid will QoS %d", p.WillQoS)
	}
	if p.PasswordFlag && !p.UsernameFlag {
		return dst, fmt.Errorf("password set without username")
	}

	name := p.ProtocolName
	if name == "" {
		name = ProtocolName
	}
	level := p.ProtocolLevel
	if level == 0 {
		level = ProtocolLevel
	}

	body := make([]byte, 0, 10+len(p.ClientID)+len(p.WillTopic)+len(p.WillMessage)+len(p.Username)+len(p.Password)+8)
	body, err := appendString(body, name)
	if err != nil {
		return dst, err
	}
	body = append(body, level, p.flags())
	body = appendUint16(body, p.KeepAlive)

	if body, err = appendString(body, p.ClientID); err != nil {
		return dst, fmt.Errorf("client id: %w", err)
	}
	if p.WillFlag {
		if body, err = appendString(body, p.WillTopic); err != nil {
			return dst, fmt.Errorf("will topic: %w", err)
		}
		if body, err = appendBinary(body, p.WillMessage); err != nil {
			return dst, fmt.Errorf("will message: %w", err)
		}
	}
	if p.UsernameFlag {
		if body, err = appendString(body, p.Username); err != nil {
			return dst, fmt.Errorf("username: %w", err)
		}
	}
	if p.PasswordFlag {
		if body, err = appendBinary(body, p.Password); err != nil {
			return dst, fmt.Errorf("password: %w", err)
		}
	}

	return encodePacket(dst, CONNECT, 0, body)
}

// WriteTo writes the CONNECT packet to the writer.
func (p *ConnectPacket) WriteTo(w io.Writer) (int64, error) { return writePacket(w, p) }

// DecodeConnect decodes a CONNECT packet body. Clients never receive CONNECT;
// this exists for test brokers.
func DecodeConnect(buf []byte) (*ConnectPacket, error) {
	p := &ConnectPacket{}
	var err error
	offset := 0

	name, n, err := decodeString(buf)
	if err != nil {
		return nil, fmt.Errorf("protocol name: %w", err)
	}
	p.ProtocolName = name
	offset += n

	if len(buf) < offset+4 {
		return nil, fmt.Errorf("%w: CONNECT variable header truncated", ErrMalformed)
	}
	p.ProtocolLevel = buf[offset]
	flags := buf[offset+1]
	p.KeepAlive = uint16(buf[offset+2])<<8 | uint16(buf[offset+3])
	offset += 4

	if flags&0x01 != 0 {
		return nil, fmt.Errorf("%w: CONNECT reserved flag set", ErrMalformed)
	}
	p.CleanSession = flags&0x02 != 0
	p.WillFlag = flags&0x04 != 0
	p.WillQoS = (flags >> 3) & 0x03
	p.WillRetain = flags&0x20 != 0
	p.PasswordFlag = flags&0x40 != 0
	p.UsernameFlag = flags&0x80 != 0
	if p.WillQoS > QoS2 {
		return nil, fmt.Errorf("%w: will QoS 3", ErrMalformed)
	}
	if !p.WillFlag && (p.WillQoS != 0 || p.WillRetain) {
		return nil, fmt.Errorf("%w: will QoS/retain without will flag", ErrMalformed)
	}

	if p.ClientID, n, err = decodeString(buf[offset:]); err != nil {
		return nil, fmt.Errorf("client id: %w", err)
	}
	offset += n

	if p.WillFlag {
		if p.WillTopic, n, err = decodeString(buf[offset:]); err != nil {
			return nil, fmt.Errorf("will topic: %w", err)
		}
		offset += n
		msg, n, err := decodeBinary(buf[offset:])
		if err != nil {
			return nil, fmt.Errorf("will message: %w", err)
		}
		p.WillMessage = append([]byte(nil), msg...)
		offset += n
	}
	if p.UsernameFlag {
		if p.Username, n, err = decodeString(buf[offset:]); err != nil {
			return nil, fmt.Errorf("username: %w", err)
		}
		offset += n
	}
	if p.PasswordFlag {
		pw, n, err := decodeBinary(buf[offset:])
		if err != nil {
			return nil, fmt.Errorf("password: %w", err)
		}
		p.Password = append([]byte(nil), pw...)
		offset += n
	}
	if offset != len(buf) {
		return nil, fmt.Errorf("%w: %d trailing bytes in CONNECT", ErrMalformed, len(buf)-offset)
	}
	return p, nil
}
