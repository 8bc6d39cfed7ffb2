package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/mqtt"
}

// newServer starts a WebSocket endpoint that hands each connection to fn.
func newServer(t *testing.T, subprotocols []string, fn func(ws *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{Subprotocols: subprotocols}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		fn(ws)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDialWebSocketStream(t *testing.T) {
	received := make(chan []byte, 1)
	srv := newServer(t, []string{Subprotocol}, func(ws *websocket.Conn) {
		typ, msg, err := ws.ReadMessage()
		if err != nil || typ != websocket.BinaryMessage {
			return
		}
		received <- msg

		// One packet split across two messages, then two packets in one.
		_ = ws.WriteMessage(websocket.BinaryMessage, []byte{0x20})
		_ = ws.WriteMessage(websocket.BinaryMessage, []byte{0x02, 0x00, 0x00})
		_ = ws.WriteMessage(websocket.BinaryMessage, []byte{0xd0, 0x00, 0xd0, 0x00})
		_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_, _, _ = ws.ReadMessage()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := DialWebSocket(ctx, wsURL(srv), nil, http.Header{"X-Device": []string{"sensor-1"}})
	require.NoError(t, err)
	defer conn.Close()

	n, err := conn.Write([]byte{0xc0, 0x00})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	select {
	case msg := <-received:
		assert.Equal(t, []byte{0xc0, 0x00}, msg)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not receive the message")
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, 8)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x20, 0x02, 0x00, 0x00, 0xd0, 0x00, 0xd0, 0x00}, buf)

	_, err = conn.Read(buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestDialWebSocketHeader(t *testing.T) {
	got := make(chan string, 1)
	upgrader := websocket.Upgrader{Subprotocols: []string{Subprotocol}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("Authorization")
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = ws.Close()
	}))
	defer srv.Close()

	conn, err := DialWebSocket(context.Background(), wsURL(srv), nil, http.Header{"Authorization": []string{"Bearer abc"}})
	require.NoError(t, err)
	_ = conn.Close()
	assert.Equal(t, "Bearer abc", <-got)
}

func TestDialWebSocketRequiresSubprotocol(t *testing.T) {
	srv := newServer(t, nil, func(ws *websocket.Conn) {
		_, _, _ = ws.ReadMessage()
	})

	_, err := DialWebSocket(context.Background(), wsURL(srv), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subprotocol")
}

func TestDialWebSocketNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := DialWebSocket(context.Background(), wsURL(srv), nil, nil)
	assert.Error(t, err)
}

func TestConnRejectsTextMessages(t *testing.T) {
	srv := newServer(t, []string{Subprotocol}, func(ws *websocket.Conn) {
		_ = ws.WriteMessage(websocket.TextMessage, []byte("hello"))
		_, _, _ = ws.ReadMessage()
	})

	conn, err := DialWebSocket(context.Background(), wsURL(srv), nil, nil)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Read(make([]byte, 8))
	assert.Error(t, err)
}
