package mqsession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gonzalop/mqsession/internal/packets"
)

// Session is one MQTT 3.1.1 client session.
//
// A single worker goroutine owns the connection, the state machine, the
// keepalive timer and every in-flight request; all public methods hand their
// work to it. Outcomes are reported in order on Events and on the Handle
// returned by each request.
//
// Sessions do not reconnect on their own. Watch for Disconnected and call
// Connect again, with whatever backoff suits the application.
type Session struct {
	opts   *clientOptions
	logger *slog.Logger

	cmds     chan func()
	inbound  chan inbound
	events   *eventQueue
	stop     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once

	publicState atomic.Int32
	requestSeq  atomic.Uint64

	// liveConn mirrors conn so Close can unblock a worker stuck in Write.
	connMu   sync.Mutex
	liveConn net.Conn

	// Stats (atomic)
	packetsSent     atomic.Uint64
	packetsReceived atomic.Uint64
	bytesSent       atomic.Uint64
	bytesReceived   atomic.Uint64
	connectCount    atomic.Uint64

	// Worker-owned state. Nothing below is touched outside logicLoop.
	state           State
	conn            net.Conn
	gen             uint64
	decoder         *packets.Decoder
	wbuf            []byte
	connectDeadline time.Time
	keepAlive       keepAlive
	tracker         *tracker
	subscriptions   map[string]*Subscription
	queue           []*request
	receivedQoS2    map[uint16]struct{}
}

// inbound carries bytes or a read error from a connection's reader
// goroutine. gen identifies the connection so stale reads are ignored.
type inbound struct {
	gen  uint64
	data []byte
	err  error
}

// Subscription is an entry of the subscription table: a filter the broker
// has acknowledged.
type Subscription struct {
	Filter       string
	RequestedQoS QoS
	GrantedQoS   QoS
}

// Stats holds connection and throughput statistics.
type Stats struct {
	State           State
	PacketsSent     uint64
	PacketsReceived uint64
	BytesSent       uint64
	BytesReceived   uint64
	// ConnectCount is the number of accepted CONNACKs.
	ConnectCount uint64
	Outstanding  int
	Queued       int
}

// New creates a session for server and starts its worker. It does not
// connect; call Connect.
//
// Supported server URLs:
//   - tcp://host:port or mqtt://host:port (default port 1883)
//   - tls://, ssl:// or mqtts:// (default port 8883)
//   - ws://host:port/path or wss://host:port/path
//
// Example:
//
//	s, err := mqsession.New("tcp://localhost:1883",
//	    mqsession.WithClientID("sensor-1"),
//	    mqsession.WithKeepAlive(120*time.Second))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
func New(server string, opts ...Option) (*Session, error) {
	o := defaultOptions(server)
	for _, opt := range opts {
		opt(o)
	}
	if o.Dialer == nil {
		if _, err := url.Parse(server); err != nil {
			return nil, fmt.Errorf("invalid server URL: %w", err)
		}
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	s := &Session{
		opts:          o,
		logger:        o.Logger.With("lib", "mqsession"),
		cmds:          make(chan func()),
		inbound:       make(chan inbound, 64),
		events:        newEventQueue(eventDrainTimeout),
		stop:          make(chan struct{}),
		stopped:       make(chan struct{}),
		state:         StateDisconnected,
		decoder:       packets.NewDecoder(o.MaxIncomingPacket),
		tracker:       newTracker(o.RetryCount, o.RetryInterval),
		subscriptions: make(map[string]*Subscription),
		receivedQoS2:  make(map[uint16]struct{}),
		keepAlive: keepAlive{
			interval: o.KeepAlive,
			timeout:  o.pingTimeout(),
		},
	}

	go s.logicLoop()
	return s, nil
}

// Events returns the channel on which the session reports what happens.
// Events are delivered in the order they occur and the channel is closed
// after Close. The session never waits for the consumer, so events queue up
// in memory until read; drain the channel until it is closed. Events still
// pending after Close are dropped once the consumer stops taking them.
func (s *Session) Events() <-chan Event {
	return s.events.out
}

// State returns the current connection state.
func (s *Session) State() State {
	return State(s.publicState.Load())
}

// Connect dials the broker and sends CONNECT. It returns once CONNECT has
// been written; the broker's answer arrives as a Connected event or as
// Error followed by Disconnected.
//
// A failed dial is returned as a *ConnectError and also reported as events.
// Connect is only valid from StateDisconnected.
func (s *Session) Connect(ctx context.Context) error {
	var gen uint64
	err := s.do(ctx, func() error {
		if err := s.setState(StateConnecting); err != nil {
			return err
		}
		s.gen++
		gen = s.gen
		return nil
	})
	if err != nil {
		return err
	}

	dialCtx := ctx
	if s.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, s.opts.ConnectTimeout)
		defer cancel()
	}

	s.logger.Debug("dialing", "server", s.opts.Server)
	conn, dialErr := dialServer(dialCtx, s.opts)
	if dialErr != nil {
		cerr := &ConnectError{Reason: ConnectDialFailed, Err: &TransportError{Op: "dial", Err: dialErr}}
		if errors.Is(dialErr, context.DeadlineExceeded) && ctx.Err() == nil {
			cerr.Reason = ConnectTimeout
		}
		_ = s.do(context.Background(), func() error {
			if s.gen == gen && s.state == StateConnecting {
				s.fail(cerr)
			}
			return nil
		})
		return cerr
	}

	if err := s.do(context.Background(), func() error { return s.attach(gen, conn) }); err != nil {
		_ = conn.Close()
		return err
	}
	return nil
}

// attach installs a freshly dialed connection and writes CONNECT.
func (s *Session) attach(gen uint64, conn net.Conn) error {
	if gen != s.gen || s.state != StateConnecting {
		return &ConnectError{Reason: ConnectAborted, Err: ErrConnectAborted}
	}

	now := time.Now()
	s.conn = conn
	s.setLiveConn(conn)
	s.decoder.Reset()
	s.keepAlive.reset(now)
	if s.opts.ConnectTimeout > 0 {
		s.connectDeadline = now.Add(s.opts.ConnectTimeout)
	}
	go s.readLoop(conn, gen)

	if err := s.send(s.connectPacket()); err != nil {
		return &ConnectError{Reason: ConnectDialFailed, Err: err}
	}
	return nil
}

// connectPacket creates a CONNECT packet from the session configuration.
func (s *Session) connectPacket() *packets.ConnectPacket {
	pkt := &packets.ConnectPacket{
		ProtocolName:  packets.ProtocolName,
		ProtocolLevel: packets.ProtocolLevel,
		CleanSession:  s.opts.CleanSession,
		KeepAlive:     s.opts.keepAliveSeconds(),
		ClientID:      s.opts.ClientID,
	}
	if w := s.opts.will; w != nil {
		pkt.WillFlag = true
		pkt.WillTopic = w.Topic
		pkt.WillMessage = w.Payload
		pkt.WillQoS = uint8(w.QoS)
		pkt.WillRetain = w.Retained
	}
	if s.opts.Username != "" {
		pkt.UsernameFlag = true
		pkt.Username = s.opts.Username
	}
	if s.opts.Password != "" {
		pkt.PasswordFlag = true
		pkt.Password = []byte(s.opts.Password)
	}
	return pkt
}

// Disconnect sends DISCONNECT and closes the connection. Requests still
// awaiting acknowledgement fail with ErrDisconnected. Called while
// connecting, it aborts the attempt.
func (s *Session) Disconnect(ctx context.Context) error {
	return s.do(ctx, func() error {
		switch s.state {
		case StateConnected:
			s.disconnect()
			return nil
		case StateConnecting:
			s.fail(&ConnectError{Reason: ConnectAborted, Err: ErrConnectAborted})
			return nil
		default:
			return transitionError(s.state, StateDisconnecting)
		}
	})
}

// disconnect is the graceful Connected -> Disconnecting -> Disconnected path.
func (s *Session) disconnect() {
	_ = s.setState(StateDisconnecting)
	if err := s.send(&packets.DisconnectPacket{}); err != nil {
		// send already moved the session through Error.
		return
	}
	s.teardown()
	_ = s.setState(StateDisconnected)
	s.logger.Info("disconnected")
	s.events.push(Disconnected{})
}

// eventDrainTimeout is how long each event left after Close waits for a
// consumer before the remainder is dropped.
const eventDrainTimeout = 5 * time.Second

// closeGrace is how long Close waits for the worker before closing the
// connection underneath it.
const closeGrace = 500 * time.Millisecond

// Close disconnects if needed, fails queued and in-flight requests with
// ErrDisconnected, stops the worker and closes the event channel. Calls made
// after Close fail with ErrSessionClosed.
//
// If the worker is stuck writing to a broker that stopped reading, Close
// closes the connection so the write fails and shutdown can proceed.
func (s *Session) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	select {
	case <-s.stopped:
		return nil
	case <-time.After(closeGrace):
	}

	s.connMu.Lock()
	if s.liveConn != nil {
		s.logger.Warn("worker busy on close, dropping connection")
		_ = s.liveConn.Close()
	}
	s.connMu.Unlock()
	<-s.stopped
	return nil
}

func (s *Session) setLiveConn(conn net.Conn) {
	s.connMu.Lock()
	s.liveConn = conn
	s.connMu.Unlock()
}

// shutdown runs on the worker when Close is called.
func (s *Session) shutdown() {
	switch s.state {
	case StateConnected:
		s.disconnect()
	case StateConnecting:
		s.fail(&ConnectError{Reason: ConnectAborted, Err: ErrSessionClosed})
	}
	for _, req := range s.queue {
		s.failRequest(req, ErrDisconnected)
	}
	s.queue = nil
	s.logger.Debug("session closed")
	s.events.close()
}

// Subscriptions returns the filters the broker has acknowledged, sorted.
func (s *Session) Subscriptions() []Subscription {
	var subs []Subscription
	_ = s.do(context.Background(), func() error {
		subs = s.subscriptionList()
		return nil
	})
	return subs
}

func (s *Session) subscriptionList() []Subscription {
	subs := make([]Subscription, 0, len(s.subscriptions))
	for _, sub := range s.subscriptions {
		subs = append(subs, *sub)
	}
	slices.SortFunc(subs, func(a, b Subscription) int { return strings.Compare(a.Filter, b.Filter) })
	return subs
}

// Stats returns the current session statistics.
func (s *Session) Stats() Stats {
	st := Stats{
		State:           s.State(),
		PacketsSent:     s.packetsSent.Load(),
		PacketsReceived: s.packetsReceived.Load(),
		BytesSent:       s.bytesSent.Load(),
		BytesReceived:   s.bytesReceived.Load(),
		ConnectCount:    s.connectCount.Load(),
	}
	_ = s.do(context.Background(), func() error {
		st.Outstanding = s.tracker.len()
		st.Queued = len(s.queue)
		return nil
	})
	return st
}

// do runs fn on the worker and returns its result.
func (s *Session) do(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	select {
	case s.cmds <- func() { reply <- fn() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return ErrSessionClosed
	}
	return <-reply
}

func (s *Session) nextRequestID() uint64 {
	return s.requestSeq.Add(1)
}

// setState moves the state machine along one edge.
func (s *Session) setState(to State) error {
	from := s.state
	if !canTransition(from, to) {
		return transitionError(from, to)
	}
	s.state = to
	s.publicState.Store(int32(to))
	s.logger.Debug("state transition", "from", from, "to", to)
	return nil
}

// send encodes pkt and writes it to the connection. A write failure takes
// the session through Error to Disconnected and is returned as a
// *TransportError.
func (s *Session) send(pkt packets.Packet) error {
	if s.conn == nil {
		return &TransportError{Op: "write", Err: net.ErrClosed}
	}
	data, err := pkt.Encode(s.wbuf[:0])
	if err != nil {
		return err
	}
	s.wbuf = data

	_ = s.conn.SetWriteDeadline(time.Now().Add(s.opts.writeTimeout()))
	n, err := s.conn.Write(data)
	s.bytesSent.Add(uint64(n))
	if err != nil {
		terr := &TransportError{Op: "write", Err: err}
		s.fail(terr)
		return terr
	}
	s.packetsSent.Add(1)
	s.keepAlive.sent(time.Now())
	s.logger.Debug("sent packet", "type", packets.Name(pkt.Type()), "bytes", n)
	return nil
}

// fail handles an unrecoverable connection problem: the session moves to
// Error, reports cause, cleans up and settles in Disconnected.
func (s *Session) fail(cause error) {
	switch s.state {
	case StateConnecting, StateConnected, StateDisconnecting:
	default:
		return
	}
	s.logger.Warn("connection failed", "state", s.state, "error", cause)
	_ = s.setState(StateError)
	s.events.push(Error{Err: cause})
	s.teardown()
	_ = s.setState(StateDisconnected)
	s.events.push(Disconnected{Err: cause})
}

// teardown releases the connection and fails everything in flight.
func (s *Session) teardown() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
		s.setLiveConn(nil)
	}
	// Bumping the generation makes the old reader's leftovers stale.
	s.gen++
	s.decoder.Reset()
	s.connectDeadline = time.Time{}
	s.keepAlive.pong()

	for _, o := range s.tracker.drain() {
		s.failRequest(o.req, ErrDisconnected)
	}
}

// readLoop forwards raw bytes from conn to the worker until the connection
// fails or is closed.
func (s *Session) readLoop(conn net.Conn, gen uint64) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			s.bytesReceived.Add(uint64(n))
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.inbound <- inbound{gen: gen, data: chunk}:
			case <-s.stopped:
				return
			}
		}
		if err != nil {
			select {
			case s.inbound <- inbound{gen: gen, err: err}:
			case <-s.stopped:
			}
			return
		}
	}
}
