package mqsession

import (
	"errors"
	"time"
)

// ErrPingTimeout is the cause reported when the broker does not answer a
// PINGREQ within the ping timeout.
var ErrPingTimeout = errors.New("no PINGRESP within ping timeout")

type keepAliveAction int

const (
	keepAliveIdle keepAliveAction = iota
	keepAlivePing
	keepAliveExpired
)

// keepAlive tracks traffic on the current connection. Any packet sent or
// received counts as traffic; a PINGREQ goes out once either direction has
// been silent for the interval.
type keepAlive struct {
	interval time.Duration
	timeout  time.Duration

	lastSent     time.Time
	lastReceived time.Time

	// pingSent is zero unless a PINGREQ is awaiting its PINGRESP.
	pingSent time.Time
}

func (k *keepAlive) reset(now time.Time) {
	k.lastSent = now
	k.lastReceived = now
	k.pingSent = time.Time{}
}

func (k *keepAlive) sent(now time.Time)     { k.lastSent = now }
func (k *keepAlive) received(now time.Time) { k.lastReceived = now }

func (k *keepAlive) pinged(now time.Time) {
	k.pingSent = now
	k.lastSent = now
}

func (k *keepAlive) pong() {
	k.pingSent = time.Time{}
}

func (k *keepAlive) check(now time.Time) keepAliveAction {
	if k.interval <= 0 {
		return keepAliveIdle
	}
	if !k.pingSent.IsZero() {
		if now.Sub(k.pingSent) >= k.timeout {
			return keepAliveExpired
		}
		return keepAliveIdle
	}
	if now.Sub(k.lastSent) >= k.interval || now.Sub(k.lastReceived) >= k.interval {
		return keepAlivePing
	}
	return keepAliveIdle
}
