package mqsession

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultOptions(t *testing.T) {
	o := defaultOptions("tcp://localhost:1883")
	assert.Equal(t, 60*time.Second, o.KeepAlive)
	assert.Equal(t, 30*time.Second, o.pingTimeout())
	assert.True(t, o.CleanSession)
	assert.Equal(t, 3, o.RetryCount)
	assert.Equal(t, 10*time.Second, o.RetryInterval)
	assert.Equal(t, OfflineFailFast, o.OfflinePolicy)
	assert.True(t, o.Resubscribe)
	assert.NoError(t, o.validate())
}

func TestKeepAliveSeconds(t *testing.T) {
	tests := []struct {
		keepAlive time.Duration
		want      uint16
	}{
		{0, 0},
		{-time.Second, 0},
		{100 * time.Millisecond, 1},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{60 * time.Second, 60},
		{100000 * time.Second, 65535},
	}
	for _, tt := range tests {
		o := defaultOptions("")
		o.KeepAlive = tt.keepAlive
		assert.Equal(t, tt.want, o.keepAliveSeconds(), "keepalive %v", tt.keepAlive)
	}
}

func TestPingTimeout(t *testing.T) {
	o := defaultOptions("")
	WithKeepAlive(10 * time.Second)(o)
	assert.Equal(t, 5*time.Second, o.pingTimeout())

	WithPingTimeout(2 * time.Second)(o)
	assert.Equal(t, 2*time.Second, o.pingTimeout())
}

func TestWriteTimeout(t *testing.T) {
	o := defaultOptions("")
	assert.Equal(t, 30*time.Second, o.writeTimeout())

	WithKeepAlive(200 * time.Millisecond)(o)
	assert.Equal(t, 100*time.Millisecond, o.writeTimeout(), "ping timeout is shorter")

	WithConnectTimeout(50 * time.Millisecond)(o)
	assert.Equal(t, 50*time.Millisecond, o.writeTimeout(), "connect timeout is shorter")

	WithKeepAlive(0)(o)
	WithConnectTimeout(0)(o)
	assert.Equal(t, defaultWriteTimeout, o.writeTimeout())
}

func TestTickInterval(t *testing.T) {
	o := defaultOptions("")
	assert.Equal(t, time.Second, o.tickInterval())

	WithRetry(3, 200*time.Millisecond)(o)
	assert.Equal(t, 50*time.Millisecond, o.tickInterval())

	WithRetry(3, time.Millisecond)(o)
	assert.Equal(t, 5*time.Millisecond, o.tickInterval())
}

func TestOptionsValidate(t *testing.T) {
	o := defaultOptions("")
	WithRetry(3, 0)(o)
	assert.Error(t, o.validate())

	o = defaultOptions("")
	WithWill("status", nil, QoS(3), false)(o)
	assert.ErrorIs(t, o.validate(), ErrInvalidQoS)

	o = defaultOptions("")
	WithLogger(nil)(o)
	assert.NoError(t, o.validate())
	assert.NotNil(t, o.Logger)
}

func TestOfflinePolicyString(t *testing.T) {
	assert.Equal(t, "fail-fast", OfflineFailFast.String())
	assert.Equal(t, "queue", OfflineQueue.String())
}
