package mqsession

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"

	"github.com/gonzalop/mqsession/internal/transport"
)

// dialServer opens the transport for opts.Server.
func dialServer(ctx context.Context, opts *clientOptions) (net.Conn, error) {
	// A custom dialer handles the scheme and address itself. It gets the raw
	// server string so paths and query parameters survive.
	if opts.Dialer != nil {
		network := "tcp"
		if u, err := url.Parse(opts.Server); err == nil && u.Scheme != "" {
			network = u.Scheme
		}
		conn, err := opts.Dialer.DialContext(ctx, network, opts.Server)
		if err != nil {
			return nil, fmt.Errorf("custom dialer failed: %w", err)
		}
		return conn, nil
	}

	u, err := url.Parse(opts.Server)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
		tlsConfig := opts.TLSConfig
		if u.Scheme == "wss" && tlsConfig == nil {
			tlsConfig = &tls.Config{}
		}
		return transport.DialWebSocket(ctx, u.String(), tlsConfig, opts.WebSocketHeader)
	case "tls", "ssl", "mqtts", "tcp", "mqtt":
	default:
		return nil, fmt.Errorf("unsupported scheme: %q (supported: tcp, mqtt, tls, ssl, mqtts, ws, wss)", u.Scheme)
	}

	useTLS := u.Scheme == "tls" || u.Scheme == "ssl" || u.Scheme == "mqtts" || opts.TLSConfig != nil

	host := u.Host
	if u.Port() == "" {
		port := "1883"
		if useTLS {
			port = "8883"
		}
		host = net.JoinHostPort(u.Hostname(), port)
	}

	var conn net.Conn
	if useTLS {
		tlsConfig := opts.TLSConfig
		if tlsConfig == nil {
			tlsConfig = &tls.Config{}
		}
		dialer := &tls.Dialer{
			NetDialer: &net.Dialer{},
			Config:    tlsConfig,
		}
		conn, err = dialer.DialContext(ctx, "tcp", host)
	} else {
		var d net.Dialer
		conn, err = d.DialContext(ctx, "tcp", host)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	return conn, nil
}
