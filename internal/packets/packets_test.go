package packets

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeToBytes(t *testing.T, pkt Packet) []byte {
	t.Helper()
	var buf bytes.Buffer
	_, err := pkt.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestPacketRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		pkt  Packet
	}{
		{"connect minimal", &ConnectPacket{ProtocolName: ProtocolName, ProtocolLevel: ProtocolLevel, CleanSession: true, KeepAlive: 60, ClientID: "dev-1"}},
		{"connect full", &ConnectPacket{
			ProtocolName: ProtocolName, ProtocolLevel: ProtocolLevel,
			KeepAlive: 120, ClientID: "esp32",
			WillFlag: true, WillQoS: QoS1, WillTopic: "dev/status", WillMessage: []byte("0"),
			UsernameFlag: true, Username: "user", PasswordFlag: true, Password: []byte("pass"),
		}},
		{"connack", &ConnackPacket{SessionPresent: true, ReturnCode: ConnAccepted}},
		{"connack refused", &ConnackPacket{ReturnCode: ConnRefusedNotAuthorized}},
		{"publish qos0", &PublishPacket{Topic: "a/b", Payload: []byte("hello")}},
		{"publish qos1 dup", &PublishPacket{Topic: "a/b", QoS: QoS1, Dup: true, PacketID: 7, Payload: []byte("x")}},
		{"publish qos2 retain empty", &PublishPacket{Topic: "a", QoS: QoS2, Retain: true, PacketID: 65535}},
		{"puback", &PubackPacket{PacketID: 1}},
		{"pubrec", &PubrecPacket{PacketID: 2}},
		{"pubrel", &PubrelPacket{PacketID: 3}},
		{"pubcomp", &PubcompPacket{PacketID: 4}},
		{"subscribe", &SubscribePacket{PacketID: 10, Topics: []string{"cmd/#", "a/+/c"}, QoS: []uint8{1, 2}}},
		{"suback", &SubackPacket{PacketID: 10, ReturnCodes: []uint8{SubackQoS1, SubackFailure}}},
		{"unsubscribe", &UnsubscribePacket{PacketID: 11, Topics: []string{"cmd/#"}}},
		{"unsuback", &UnsubackPacket{PacketID: 11}},
		{"pingreq", &PingreqPacket{}},
		{"pingresp", &PingrespPacket{}},
		{"disconnect", &DisconnectPacket{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := encodeToBytes(t, tt.pkt)

			got, err := ReadPacket(bytes.NewReader(data), 0)
			require.NoError(t, err)
			assert.Equal(t, tt.pkt, got)

			size, err := Size(tt.pkt)
			require.NoError(t, err)
			assert.Equal(t, len(data), size)
		})
	}
}

func TestEncodeRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		pkt  Packet
	}{
		{"publish qos1 without id", &PublishPacket{Topic: "a", QoS: QoS1}},
		{"publish qos3", &PublishPacket{Topic: "a", QoS: 3, PacketID: 1}},
		{"puback zero id", &PubackPacket{}},
		{"subscribe empty", &SubscribePacket{PacketID: 1}},
		{"subscribe mismatched qos", &SubscribePacket{PacketID: 1, Topics: []string{"a"}}},
		{"subscribe qos3", &SubscribePacket{PacketID: 1, Topics: []string{"a"}, QoS: []uint8{3}}},
		{"unsubscribe empty", &UnsubscribePacket{PacketID: 1}},
		{"connect password without username", &ConnectPacket{ClientID: "c", PasswordFlag: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.pkt.Encode(nil)
			assert.Error(t, err)
		})
	}
}

func TestConnectDefaultsProtocol(t *testing.T) {
	data, err := (&ConnectPacket{ClientID: "c"}).Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x10, 13, 0, 4, 'M', 'Q', 'T', 'T', 4, 0, 0, 0, 0, 1, 'c'}, data)
}

func TestPublishEncodingLayout(t *testing.T) {
	data, err := (&PublishPacket{Topic: "a/b", QoS: QoS1, Dup: true, Retain: true, PacketID: 0x0102, Payload: []byte("hi")}).Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x3B, 9, 0, 3, 'a', '/', 'b', 0x01, 0x02, 'h', 'i'}, data)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"connack long", []byte{0x20, 0x03, 0x00, 0x00, 0x00}},
		{"connack reserved bits", []byte{0x20, 0x02, 0x02, 0x00}},
		{"connack unknown code", []byte{0x20, 0x02, 0x00, 0x06}},
		{"connack session present on refusal", []byte{0x20, 0x02, 0x01, 0x05}},
		{"puback zero id", []byte{0x40, 0x02, 0x00, 0x00}},
		{"puback short", []byte{0x40, 0x01, 0x01}},
		{"pubrel wrong flags", []byte{0x60, 0x02, 0x00, 0x01}},
		{"publish qos1 zero id", []byte{0x32, 0x05, 0x00, 0x01, 'a', 0x00, 0x00}},
		{"publish topic truncated", []byte{0x30, 0x02, 0x00, 0x05}},
		{"suback bad code", []byte{0x90, 0x03, 0x00, 0x01, 0x03}},
		{"suback no codes", []byte{0x90, 0x02, 0x00, 0x01}},
		{"unsuback long", []byte{0xB0, 0x03, 0x00, 0x01, 0x00}},
		{"pingresp body", []byte{0xD0, 0x01, 0x00}},
		{"subscribe no filters", []byte{0x82, 0x02, 0x00, 0x01}},
		{"subscribe missing qos", []byte{0x82, 0x05, 0x00, 0x01, 0x00, 0x01, 'a'}},
		{"reserved type", []byte{0xF0, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadPacket(bytes.NewReader(tt.data), 0)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestReadPacketMaxIncoming(t *testing.T) {
	data := encodeToBytes(t, &PublishPacket{Topic: "big", Payload: make([]byte, 200)})

	_, err := ReadPacket(bytes.NewReader(data), 100)
	assert.ErrorIs(t, err, ErrPacketTooLarge)

	_, err = ReadPacket(bytes.NewReader(data), 1000)
	assert.NoError(t, err)
}

func TestReadPacketTruncatedBody(t *testing.T) {
	data := encodeToBytes(t, &PublishPacket{Topic: "a/b", Payload: []byte("payload")})
	_, err := ReadPacket(bytes.NewReader(data[:len(data)-2]), 0)
	assert.Error(t, err)
}

func TestDecodedPayloadDoesNotAliasBuffer(t *testing.T) {
	data := encodeToBytes(t, &PublishPacket{Topic: "a", Payload: []byte("keep")})
	d := NewDecoder(0)
	d.Feed(data)
	pkt, err := d.Next()
	require.NoError(t, err)

	d.Feed(encodeToBytes(t, &PublishPacket{Topic: "a", Payload: []byte("XXXX")}))
	_, err = d.Next()
	require.NoError(t, err)

	assert.Equal(t, []byte("keep"), pkt.(*PublishPacket).Payload)
}
