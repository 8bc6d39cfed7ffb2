package mqsession

import (
	"errors"
	"fmt"

	"github.com/gonzalop/mqsession/internal/packets"
)

// Standard errors returned by the session
var (
	// ErrConnectionRefused is returned when the broker rejects the connection.
	// Unwrap the error to find the specific reason.
	ErrConnectionRefused = errors.New("connection refused")

	// Specific connection refusal reasons (CONNACK return codes 1-5)
	ErrUnacceptableProtocolVersion = errors.New("unacceptable protocol version")
	ErrIdentifierRejected          = errors.New("identifier rejected")
	ErrServerUnavailable           = errors.New("server unavailable")
	ErrBadUsernameOrPassword       = errors.New("bad username or password")
	ErrNotAuthorized               = errors.New("not authorized")

	ErrConnectTimeout = errors.New("timed out waiting for CONNACK")
	ErrConnectAborted = errors.New("connect aborted")

	// ErrSubscriptionFailed is returned when the broker answers a SUBSCRIBE
	// with the failure return code (0x80).
	ErrSubscriptionFailed = errors.New("subscription failed")

	// ErrRequestTimeout is returned when a request was retransmitted the
	// configured number of times without an acknowledgement.
	ErrRequestTimeout = errors.New("request timed out")

	// ErrNotConnected is returned for requests made while the session is not
	// connected and the offline policy is OfflineFailFast.
	ErrNotConnected = errors.New("not connected")

	// ErrDisconnected is returned for requests that were in flight or queued
	// when the connection was lost or the session was closed.
	ErrDisconnected = errors.New("disconnected")

	// ErrSessionClosed is returned by calls made after Close.
	ErrSessionClosed = errors.New("session closed")

	// ErrNoPacketID is returned when all 65535 packet identifiers are in use.
	ErrNoPacketID = errors.New("no packet identifier available")

	ErrInvalidTopic = errors.New("invalid topic")
	ErrInvalidQoS   = errors.New("invalid QoS")
)

// refusalErrors maps CONNACK return codes to their sentinel errors.
var refusalErrors = map[uint8]error{
	packets.ConnRefusedUnacceptableProtocol:  ErrUnacceptableProtocolVersion,
	packets.ConnRefusedIdentifierRejected:    ErrIdentifierRejected,
	packets.ConnRefusedServerUnavailable:     ErrServerUnavailable,
	packets.ConnRefusedBadUsernameOrPassword: ErrBadUsernameOrPassword,
	packets.ConnRefusedNotAuthorized:         ErrNotAuthorized,
}

// ConnectReason classifies a failed connection attempt.
type ConnectReason int

const (
	// ConnectRefused means the broker sent a CONNACK with a non-zero return code.
	ConnectRefused ConnectReason = iota + 1
	// ConnectTimeout means no CONNACK arrived within the connect timeout.
	ConnectTimeout
	// ConnectMalformed means the broker answered with something other than a valid CONNACK.
	ConnectMalformed
	// ConnectAborted means Disconnect or Close was called while connecting.
	ConnectAborted
	// ConnectDialFailed means the transport could not be established.
	ConnectDialFailed
)

func (r ConnectReason) String() string {
	switch r {
	case ConnectRefused:
		return "refused"
	case ConnectTimeout:
		return "timeout"
	case ConnectMalformed:
		return "malformed connack"
	case ConnectAborted:
		return "aborted"
	case ConnectDialFailed:
		return "dial failed"
	default:
		return "unknown"
	}
}

// ConnectError reports why a connection attempt failed.
type ConnectError struct {
	Reason ConnectReason
	// Code is the CONNACK return code when Reason is ConnectRefused.
	Code uint8
	Err  error
}

func newRefusedError(code uint8) *ConnectError {
	reason, ok := refusalErrors[code]
	if !ok {
		reason = fmt.Errorf("return code %d", code)
	}
	return &ConnectError{
		Reason: ConnectRefused,
		Code:   code,
		Err:    fmt.Errorf("%w: %w", ErrConnectionRefused, reason),
	}
}

func (e *ConnectError) Error() string {
	if e.Err == nil {
		return "mqsession: connect " + e.Reason.String()
	}
	return fmt.Sprintf("mqsession: connect %s: %v", e.Reason, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// TransportError wraps a failure of the underlying connection.
type TransportError struct {
	// Op is "dial", "read" or "write".
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mqsession: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError reports a packet the session could not accept: malformed
// bytes, an unexpected packet type, or an acknowledgement for an unknown
// packet identifier.
type ProtocolError struct {
	Packet   string
	PacketID uint16
	Err      error
}

func (e *ProtocolError) Error() string {
	switch {
	case e.Packet == "":
		return fmt.Sprintf("mqsession: protocol error: %v", e.Err)
	case e.PacketID != 0:
		return fmt.Sprintf("mqsession: protocol error in %s (id %d): %v", e.Packet, e.PacketID, e.Err)
	default:
		return fmt.Sprintf("mqsession: protocol error in %s: %v", e.Packet, e.Err)
	}
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

var (
	errUnexpectedPacket = errors.New("unexpected packet")
	errUnknownPacketID  = errors.New("unknown packet identifier")
)
