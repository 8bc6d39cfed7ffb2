package mqsession

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gonzalop/mqsession/internal/packets"
)

const waitTimeout = 2 * time.Second

func encodeToBytes(pkt packets.Packet) []byte {
	var buf bytes.Buffer
	if _, err := pkt.WriteTo(&buf); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// fakeBroker hands out in-memory connections through WithDialer. Every dial
// produces a brokerConn on conns.
type fakeBroker struct {
	conns   chan *brokerConn
	dialErr error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{conns: make(chan *brokerConn, 8)}
}

func (b *fakeBroker) option() Option {
	return WithDialer(DialFunc(func(ctx context.Context, network, addr string) (net.Conn, error) {
		if b.dialErr != nil {
			return nil, b.dialErr
		}
		server, client := net.Pipe()
		b.conns <- newBrokerConn(server)
		return client, nil
	}))
}

func (b *fakeBroker) accept(t *testing.T) *brokerConn {
	t.Helper()
	select {
	case c := <-b.conns:
		t.Cleanup(func() { _ = c.conn.Close() })
		return c
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for dial")
		return nil
	}
}

// brokerConn is the broker end of one connection. A reader goroutine
// decodes everything the session writes.
type brokerConn struct {
	conn    net.Conn
	packets chan packets.Packet
}

func newBrokerConn(conn net.Conn) *brokerConn {
	c := &brokerConn{
		conn:    conn,
		packets: make(chan packets.Packet, 256),
	}
	go func() {
		defer close(c.packets)
		for {
			pkt, err := packets.ReadPacket(conn, 0)
			if err != nil {
				return
			}
			c.packets <- pkt
		}
	}()
	return c
}

func (c *brokerConn) next(t *testing.T) packets.Packet {
	t.Helper()
	select {
	case pkt, ok := <-c.packets:
		require.True(t, ok, "connection closed while waiting for a packet")
		return pkt
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a packet")
		return nil
	}
}

func (c *brokerConn) send(t *testing.T, pkt packets.Packet) {
	t.Helper()
	_, err := pkt.WriteTo(c.conn)
	require.NoError(t, err)
}

func (c *brokerConn) sendRaw(t *testing.T, data []byte) {
	t.Helper()
	_, err := c.conn.Write(data)
	require.NoError(t, err)
}

// expectSilence fails if the session writes anything within d.
func (c *brokerConn) expectSilence(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case pkt, ok := <-c.packets:
		if ok {
			t.Fatalf("unexpected %s", packets.Name(pkt.Type()))
		}
	case <-time.After(d):
	}
}

// expectClosed waits for the session to close the connection.
func (c *brokerConn) expectClosed(t *testing.T) {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case _, ok := <-c.packets:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("connection was not closed")
		}
	}
}

func expectPacket[T packets.Packet](t *testing.T, c *brokerConn) T {
	t.Helper()
	pkt := c.next(t)
	got, ok := pkt.(T)
	require.Truef(t, ok, "expected %T, got %s", *new(T), packets.Name(pkt.Type()))
	return got
}

func nextEvent(t *testing.T, s *Session) Event {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		require.True(t, ok, "event channel closed")
		return ev
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for an event")
		return nil
	}
}

func expectEvent[T Event](t *testing.T, s *Session) T {
	t.Helper()
	ev := nextEvent(t, s)
	got, ok := ev.(T)
	require.Truef(t, ok, "expected %T, got %T (%+v)", *new(T), ev, ev)
	return got
}

func waitHandle(t *testing.T, h *Handle) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	err := h.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "handle did not complete")
	return err
}

// newTestSession creates a session wired to a fake broker. Close runs on
// cleanup and the event channel is drained so nothing leaks.
func newTestSession(t *testing.T, opts ...Option) (*Session, *fakeBroker) {
	t.Helper()
	b := newFakeBroker()
	s, err := New("tcp://broker.test:1883", append([]Option{b.option()}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
		for range s.Events() {
		}
	})
	return s, b
}

// connect runs the CONNECT / CONNACK exchange and consumes the Connected event.
func connect(t *testing.T, s *Session, b *fakeBroker) (*brokerConn, *packets.ConnectPacket) {
	t.Helper()
	require.NoError(t, s.Connect(context.Background()))
	c := b.accept(t)
	pkt := expectPacket[*packets.ConnectPacket](t, c)
	c.send(t, &packets.ConnackPacket{ReturnCode: packets.ConnAccepted})
	expectEvent[Connected](t, s)
	require.Equal(t, StateConnected, s.State())
	return c, pkt
}

func connectedSession(t *testing.T, opts ...Option) (*Session, *brokerConn) {
	t.Helper()
	s, b := newTestSession(t, opts...)
	c, _ := connect(t, s, b)
	return s, c
}
