// Package mqsession is an MQTT 3.1.1 client session engine for Go.
//
// A Session owns one broker connection at a time and drives it with a
// single worker goroutine: the connection state machine, keepalive, packet
// identifier allocation, QoS 1/2 flight tracking with retransmission, and
// the subscription table all live there. Callers talk to it through
// non-blocking request methods and read what happened from one ordered
// event channel.
//
// # Quick Start
//
//	s, err := mqsession.New("tcp://localhost:1883",
//	    mqsession.WithClientID("sensor-1"),
//	    mqsession.WithWill("sensor-1/status", []byte("0"), mqsession.AtLeastOnce, false))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	if err := s.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	for ev := range s.Events() {
//	    switch ev := ev.(type) {
//	    case mqsession.Connected:
//	        s.Publish("sensor-1/status", []byte("1"), mqsession.WithQoS(mqsession.AtLeastOnce))
//	        s.Subscribe("sensor-1/cmd", mqsession.AtLeastOnce)
//	    case mqsession.MessageReceived:
//	        fmt.Printf("%s: %s\n", ev.Topic, ev.Payload)
//	    case mqsession.Disconnected:
//	        // reconnect with backoff
//	    }
//	}
//
// # Connection States
//
// A session moves Disconnected -> Connecting -> Connected -> Disconnecting ->
// Disconnected. I/O failures, malformed packets, keepalive expiry, CONNACK
// refusals and connect timeouts move an active session to Error, which
// always settles back in Disconnected with a Disconnected event carrying
// the cause. Sessions never reconnect by themselves.
//
// # Requests
//
// Publish, Subscribe and Unsubscribe return a *Handle immediately. QoS 0
// publishes complete when written; everything else completes on its
// acknowledgement. Unacknowledged requests are retransmitted (PUBLISH with
// the DUP flag) every retry interval, and fail with ErrRequestTimeout once
// the retry count is used up. When the connection drops, in-flight requests
// fail with ErrDisconnected.
//
// Requests made while not connected are either rejected with
// ErrNotConnected (OfflineFailFast, the default) or queued and sent on the
// next Connected (OfflineQueue).
//
// # Transports
//
//   - tcp://, mqtt:// (default port 1883)
//   - tls://, ssl://, mqtts:// (default port 8883)
//   - ws://, wss:// using the "mqtt" WebSocket subprotocol
//   - any scheme through WithDialer
//
// # Errors
//
// Connection failures are *ConnectError, *TransportError or *ProtocolError
// values; request failures wrap the sentinel errors in this package. Use
// errors.Is and errors.As:
//
//	var cerr *mqsession.ConnectError
//	if errors.As(err, &cerr) && errors.Is(err, mqsession.ErrNotAuthorized) {
//	    // wrong credentials
//	}
package mqsession
