package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/room4-2/interactive-avatar/messages"
)

func TestURLFromPage(t *testing.T) {
	tests := []struct {
		page string
		want string
	}{
		{"https://example.com/", "wss://example.com/ws"},
		{"https://example.com:8443/app/index.html", "wss://example.com:8443/ws"},
		{"http://localhost:8765", "ws://localhost:8765/ws"},
		{"http://10.0.0.5:8765/?debug=1", "ws://10.0.0.5:8765/ws"},
		{"wss://avatar.test", "wss://avatar.test/ws"},
	}
	for _, tt := range tests {
		t.Run(tt.page, func(t *testing.T) {
			got, err := URLFromPage(tt.page)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestURLFromPage_Invalid(t *testing.T) {
	for _, page := range []string{"", "localhost", "://bad", "/index.html"} {
		_, err := URLFromPage(page)
		assert.Error(t, err, page)
	}
}

// echoServer greets like the session endpoint and reports what it received
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		greeting, _ := messages.Encode(messages.NewConnectionMessage("session_t", "ready"))
		conn.WriteMessage(websocket.TextMessage, greeting)

		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind == websocket.BinaryMessage {
				// A binary frame is never surfaced to the reader
				conn.WriteMessage(websocket.BinaryMessage, []byte{0x01})
				reply, _ := messages.Encode(messages.NewTranscriptionMessage(strings.Repeat("b", len(data))))
				conn.WriteMessage(websocket.TextMessage, reply)
				continue
			}
			msg, err := messages.DecodeClientMessage(data)
			if err != nil {
				return
			}
			reply, _ := messages.Encode(messages.NewResponseMessage("echo: " + msg.Text))
			conn.WriteMessage(websocket.TextMessage, reply)
		}
	}))
}

func TestWebSocketTransport_RoundTrip(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := NewWebSocketTransport().Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+WebSocketPath)
	require.NoError(t, err)
	defer conn.Close()

	read := func() *messages.ServerMessage {
		data, err := conn.ReadMessage()
		require.NoError(t, err)
		msg, err := messages.DecodeServerMessage(data)
		require.NoError(t, err)
		return msg
	}

	hello := read()
	assert.Equal(t, messages.TypeConnection, hello.Type)
	assert.Equal(t, "session_t", hello.SessionID)

	require.NoError(t, conn.WriteJSON(messages.NewTextInputMessage("hi")))
	assert.Equal(t, "echo: hi", read().Text)

	require.NoError(t, conn.WriteBinary(make([]byte, 4)))
	got := read()
	assert.Equal(t, messages.TypeTranscription, got.Type)
	assert.Equal(t, "bbbb", got.Text)
}

func TestWebSocketTransport_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewWebSocketTransport().Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestWebSocketTransport_ReadAfterServerClose(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	conn, err := NewWebSocketTransport().Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.ReadMessage()
	assert.Error(t, err)
}
