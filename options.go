package mqsession

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// ContextDialer is an interface for custom network dialing logic.
// It matches the signature of net.Dialer.DialContext.
type ContextDialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// DialFunc is a helper to convert a function to the ContextDialer interface.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// DialContext implements ContextDialer.
func (f DialFunc) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	return f(ctx, network, addr)
}

// OfflinePolicy decides what happens to Publish, Subscribe and Unsubscribe
// calls made while the session is not Connected.
type OfflinePolicy int

const (
	// OfflineFailFast completes the handle immediately with ErrNotConnected.
	OfflineFailFast OfflinePolicy = iota

	// OfflineQueue holds the request and sends it, in call order, once the
	// session reaches Connected.
	OfflineQueue
)

func (p OfflinePolicy) String() string {
	switch p {
	case OfflineFailFast:
		return "fail-fast"
	case OfflineQueue:
		return "queue"
	default:
		return "unknown"
	}
}

// clientOptions holds configuration for a Session.
type clientOptions struct {
	// MQTT server address (e.g., "tcp://localhost:1883")
	Server string

	ClientID string

	// Username for authentication (optional)
	Username string
	Password string

	// Keep alive interval. Zero disables keepalive.
	KeepAlive time.Duration

	// How long to wait for PINGRESP. Zero means half the keepalive.
	PingTimeout time.Duration

	CleanSession bool

	// Bounds both the dial and the wait for CONNACK.
	ConnectTimeout time.Duration

	// TLS configuration (optional)
	TLSConfig *tls.Config

	// Extra headers sent on the WebSocket upgrade request.
	WebSocketHeader http.Header

	// Custom dialer (optional)
	Dialer ContextDialer

	// Retransmission of unacknowledged requests.
	RetryCount    int
	RetryInterval time.Duration

	OfflinePolicy OfflinePolicy

	// Re-send SUBSCRIBE for known filters when the broker reports no session.
	Resubscribe bool

	// Maximum incoming packet size (0 = protocol maximum)
	MaxIncomingPacket int

	// Logger for session events (optional, defaults to discarding logs)
	Logger *slog.Logger

	// Will message (optional)
	will *willMessage
}

// willMessage represents the Last Will and Testament message.
type willMessage struct {
	Topic    string
	Payload  []byte
	QoS      QoS
	Retained bool
}

// Option is a functional option for configuring a Session.
type Option func(*clientOptions)

// WithClientID sets the client identifier.
//
// With an empty client ID and CleanSession=true the broker assigns one.
// With CleanSession=false the broker rejects an empty ID (identifier rejected).
func WithClientID(id string) Option {
	return func(o *clientOptions) {
		o.ClientID = id
	}
}

// WithCredentials sets the username and password for authentication.
// An empty password sends the username only.
func WithCredentials(username, password string) Option {
	return func(o *clientOptions) {
		o.Username = username
		o.Password = password
	}
}

// WithKeepAlive sets the MQTT keep alive interval (default: 60s).
//
// When nothing has been sent or received for this long the session sends a
// PINGREQ. The value sent in CONNECT is rounded up to whole seconds. Zero
// turns keepalive off.
func WithKeepAlive(duration time.Duration) Option {
	return func(o *clientOptions) {
		o.KeepAlive = duration
	}
}

// WithPingTimeout sets how long to wait for PINGRESP before treating the
// connection as dead (default: half the keep alive interval).
func WithPingTimeout(duration time.Duration) Option {
	return func(o *clientOptions) {
		o.PingTimeout = duration
	}
}

// WithCleanSession sets the clean session flag (default: true).
//
// When false, the broker keeps subscriptions and queued QoS 1/2 messages
// across connections, and the client ID must be set.
func WithCleanSession(clean bool) Option {
	return func(o *clientOptions) {
		o.CleanSession = clean
	}
}

// WithConnectTimeout sets the connection timeout (default: 30s).
// It covers dialing and waiting for CONNACK.
func WithConnectTimeout(duration time.Duration) Option {
	return func(o *clientOptions) {
		o.ConnectTimeout = duration
	}
}

// WithTLS sets the TLS configuration for secure connections.
// The server URL should use "tls://", "ssl://", "mqtts://" or "wss://", or
// this option will enable TLS for "tcp://" URLs as well.
func WithTLS(config *tls.Config) Option {
	return func(o *clientOptions) {
		o.TLSConfig = config
	}
}

// WithWebSocketHeader adds HTTP headers to the WebSocket handshake used for
// "ws://" and "wss://" servers.
func WithWebSocketHeader(header http.Header) Option {
	return func(o *clientOptions) {
		o.WebSocketHeader = header
	}
}

// WithDialer sets a custom dialer for establishing the network connection.
//
// If provided, the library skips its own scheme handling. The dialer receives
// the URL scheme as network and the original server string as addr.
func WithDialer(dialer ContextDialer) Option {
	return func(o *clientOptions) {
		o.Dialer = dialer
	}
}

// WithRetry sets how many times an unacknowledged request is retransmitted
// and how long to wait for an acknowledgement each time (default: 3, 10s).
//
// A request that is still unacknowledged after the last retransmission fails
// with ErrRequestTimeout.
func WithRetry(count int, interval time.Duration) Option {
	return func(o *clientOptions) {
		o.RetryCount = count
		o.RetryInterval = interval
	}
}

// WithOfflinePolicy sets the behaviour for requests made while not connected
// (default: OfflineFailFast).
func WithOfflinePolicy(policy OfflinePolicy) Option {
	return func(o *clientOptions) {
		o.OfflinePolicy = policy
	}
}

// WithResubscribe controls whether known subscriptions are sent again after
// a reconnect where the broker had no session for us (default: true).
func WithResubscribe(enable bool) Option {
	return func(o *clientOptions) {
		o.Resubscribe = enable
	}
}

// WithMaxIncomingPacket limits the size of packets accepted from the broker.
// A larger packet is a protocol error and drops the connection.
func WithMaxIncomingPacket(size int) Option {
	return func(o *clientOptions) {
		o.MaxIncomingPacket = size
	}
}

// WithLogger sets the logger for session events.
//
// If not provided, the session uses a logger that discards all output.
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	}))
//	s, _ := mqsession.New("tcp://localhost:1883", mqsession.WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) {
		o.Logger = logger
	}
}

// WithWill sets the Last Will and Testament message.
//
// The broker publishes it on our behalf if the connection drops without a
// DISCONNECT (network failure, keepalive expiry, power loss). It is not sent
// after Disconnect.
//
//	s, err := mqsession.New("tcp://localhost:1883",
//	    mqsession.WithClientID("sensor-1"),
//	    mqsession.WithWill("devices/sensor-1/status", []byte("0"), mqsession.AtLeastOnce, false))
func WithWill(topic string, payload []byte, qos QoS, retained bool) Option {
	return func(o *clientOptions) {
		o.will = &willMessage{
			Topic:    topic,
			Payload:  payload,
			QoS:      qos,
			Retained: retained,
		}
	}
}

// defaultOptions returns the default session options.
func defaultOptions(server string) *clientOptions {
	return &clientOptions{
		Server:         server,
		KeepAlive:      60 * time.Second,
		CleanSession:   true,
		ConnectTimeout: 30 * time.Second,
		RetryCount:     3,
		RetryInterval:  10 * time.Second,
		OfflinePolicy:  OfflineFailFast,
		Resubscribe:    true,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// pingTimeout returns the effective PINGRESP deadline.
func (o *clientOptions) pingTimeout() time.Duration {
	if o.PingTimeout > 0 {
		return o.PingTimeout
	}
	return o.KeepAlive / 2
}

// defaultWriteTimeout bounds a socket write when neither keepalive nor a
// connect timeout is configured.
const defaultWriteTimeout = 10 * time.Second

// writeTimeout bounds every socket write: a broker that stops reading must
// not hold the worker longer than the keepalive machinery would allow.
func (o *clientOptions) writeTimeout() time.Duration {
	timeout := time.Duration(0)
	for _, d := range []time.Duration{o.pingTimeout(), o.ConnectTimeout} {
		if d > 0 && (timeout == 0 || d < timeout) {
			timeout = d
		}
	}
	if timeout == 0 {
		return defaultWriteTimeout
	}
	return timeout
}

// keepAliveSeconds is the value sent in CONNECT: rounded up, at least 1 when
// keepalive is enabled, capped at the 16-bit field.
func (o *clientOptions) keepAliveSeconds() uint16 {
	if o.KeepAlive <= 0 {
		return 0
	}
	secs := (o.KeepAlive + time.Second - 1) / time.Second
	if secs > 65535 {
		return 65535
	}
	return uint16(secs)
}

// tickInterval is how often the worker checks its timers. It is fine enough
// to resolve the shortest configured deadline.
func (o *clientOptions) tickInterval() time.Duration {
	tick := time.Second
	for _, d := range []time.Duration{o.RetryInterval, o.KeepAlive, o.pingTimeout(), o.ConnectTimeout} {
		if d > 0 && d/4 < tick {
			tick = d / 4
		}
	}
	if tick < 5*time.Millisecond {
		tick = 5 * time.Millisecond
	}
	return tick
}

// validate reports option combinations that can never work.
func (o *clientOptions) validate() error {
	if o.RetryCount < 0 {
		return fmt.Errorf("retry count must not be negative, got %d", o.RetryCount)
	}
	if o.RetryInterval <= 0 {
		return fmt.Errorf("retry interval must be positive, got %v", o.RetryInterval)
	}
	if o.will != nil {
		if err := validatePublishTopic(o.will.Topic, 0); err != nil {
			return fmt.Errorf("will: %w", err)
		}
		if !o.will.QoS.valid() {
			return fmt.Errorf("will: %w", ErrInvalidQoS)
		}
	}
	if o.Password != "" && o.Username == "" {
		return fmt.Errorf("password requires a username")
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return nil
}
