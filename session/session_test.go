package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/room4-2/interactive-avatar/config"
	"github.com/room4-2/interactive-avatar/messages"
	"github.com/room4-2/interactive-avatar/pipeline"
)

// fakeHandler answers every request with a status and a terminal event.
// When gate is set, requests block until it is closed.
type fakeHandler struct {
	mu    sync.Mutex
	audio [][]byte
	texts []string
	gate  chan struct{}
}

func (h *fakeHandler) wait(ctx context.Context) {
	if h.gate == nil {
		return
	}
	select {
	case <-h.gate:
	case <-ctx.Done():
	}
}

func (h *fakeHandler) HandleAudio(ctx context.Context, conv *pipeline.Conversation, audio []byte, emit pipeline.Emitter) error {
	h.mu.Lock()
	h.audio = append(h.audio, audio)
	h.mu.Unlock()
	emit(messages.NewStatusMessage(messages.StatusTranscribing, "Transcribing your speech..."))
	h.wait(ctx)
	emit(messages.NewVideoReadyMessage("/video/a.mp4"))
	return nil
}

func (h *fakeHandler) HandleText(ctx context.Context, conv *pipeline.Conversation, text string, emit pipeline.Emitter) error {
	h.mu.Lock()
	h.texts = append(h.texts, text)
	h.mu.Unlock()
	emit(messages.NewStatusMessage(messages.StatusThinking, "Generating response..."))
	h.wait(ctx)
	conv.Append(text, "reply")
	emit(messages.NewVideoReadyMessage("/video/t.mp4"))
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		MaxSessions:    2,
		SessionTimeout: time.Minute,
		MaxAudioBytes:  1024,
		HistoryLimit:   10,
	}
}

type harness struct {
	manager *Manager
	server  *httptest.Server
	url     string
}

func newHarness(t *testing.T, cfg *config.Config, handler Handler) *harness {
	t.Helper()
	return newHarnessWith(t, cfg, handler, nil)
}

// newHarnessWith runs onCreate on every new session before it starts
func newHarnessWith(t *testing.T, cfg *config.Config, handler Handler, onCreate func(*ClientSession)) *harness {
	t.Helper()
	m := NewManager(cfg, handler, zerolog.Nop())
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		cs, err := m.CreateSession(r.Context(), conn)
		if err != nil {
			data, _ := messages.Encode(messages.NewErrorMessage(messages.ErrCodeSessionFailed, err.Error()))
			_ = conn.WriteMessage(websocket.TextMessage, data)
			conn.Close()
			return
		}
		if onCreate != nil {
			onCreate(cs)
		}
		cs.Start()
		<-cs.CloseChan
		_ = m.RemoveSession(context.Background(), cs.ID)
	}))
	t.Cleanup(func() {
		m.Shutdown(context.Background())
		srv.Close()
	})

	return &harness{manager: m, server: srv, url: "ws" + strings.TrimPrefix(srv.URL, "http")}
}

func (h *harness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(h.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) *messages.ServerMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := messages.DecodeServerMessage(data)
	require.NoError(t, err)
	return msg
}

func sendText(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()
	data, err := messages.Encode(messages.NewTextInputMessage(text))
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func TestSession_ConnectionEventFirst(t *testing.T) {
	h := newHarness(t, testConfig(), &fakeHandler{})

	first := readEvent(t, h.dial(t))
	assert.Equal(t, messages.TypeConnection, first.Type)
	assert.True(t, strings.HasPrefix(first.SessionID, IDPrefix))
	assert.Equal(t, ConnectedMessage, first.Message)
}

func TestSession_UniqueIDs(t *testing.T) {
	h := newHarness(t, testConfig(), &fakeHandler{})

	a := readEvent(t, h.dial(t))
	b := readEvent(t, h.dial(t))
	assert.NotEqual(t, a.SessionID, b.SessionID)
}

func TestSession_MaxSessions(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSessions = 1
	h := newHarness(t, cfg, &fakeHandler{})

	readEvent(t, h.dial(t))
	rejected := readEvent(t, h.dial(t))
	assert.Equal(t, messages.TypeError, rejected.Type)
	assert.Equal(t, messages.ErrCodeSessionFailed, rejected.Code)
	assert.Equal(t, ErrMaxSessions.Error(), rejected.Message)
}

func TestSession_TextRequest(t *testing.T) {
	handler := &fakeHandler{}
	h := newHarness(t, testConfig(), handler)
	conn := h.dial(t)
	hello := readEvent(t, conn)

	sendText(t, conn, "Hello")
	status := readEvent(t, conn)
	assert.Equal(t, messages.StatusThinking, status.Status)
	done := readEvent(t, conn)
	assert.Equal(t, messages.TypeVideoReady, done.Type)

	cs, ok := h.manager.GetSession(hello.SessionID)
	require.True(t, ok)
	cs.Wait()
	assert.Equal(t, 2, cs.Conversation.Len())
	assert.Equal(t, []string{"Hello"}, handler.texts)
}

func TestSession_BinaryFrameIsAudio(t *testing.T) {
	handler := &fakeHandler{}
	h := newHarness(t, testConfig(), handler)
	conn := h.dial(t)
	readEvent(t, conn)

	payload := make([]byte, 500)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, payload))
	assert.Equal(t, messages.StatusTranscribing, readEvent(t, conn).Status)
	assert.Equal(t, messages.TypeVideoReady, readEvent(t, conn).Type)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	require.Len(t, handler.audio, 1)
	assert.Len(t, handler.audio[0], 500)
}

func TestSession_OverlappingRequestIsBusy(t *testing.T) {
	handler := &fakeHandler{gate: make(chan struct{})}
	h := newHarness(t, testConfig(), handler)
	conn := h.dial(t)
	readEvent(t, conn)

	sendText(t, conn, "first")
	assert.Equal(t, messages.StatusThinking, readEvent(t, conn).Status)

	sendText(t, conn, "second")
	busy := readEvent(t, conn)
	assert.Equal(t, messages.TypeError, busy.Type)
	assert.Equal(t, messages.ErrCodeBusy, busy.Code)

	close(handler.gate)
	done := readEvent(t, conn)
	assert.Equal(t, messages.TypeVideoReady, done.Type)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	assert.Equal(t, []string{"first"}, handler.texts)
}

func TestSession_NextRequestWhileHistoryIsMirrored(t *testing.T) {
	handler := &fakeHandler{}
	h := newHarnessWith(t, testConfig(), handler, func(cs *ClientSession) {
		mirror := cs.onRequestDone
		cs.onRequestDone = func(cs *ClientSession) {
			time.Sleep(150 * time.Millisecond)
			if mirror != nil {
				mirror(cs)
			}
		}
	})
	conn := h.dial(t)
	readEvent(t, conn)

	sendText(t, conn, "one")
	assert.Equal(t, messages.StatusThinking, readEvent(t, conn).Status)
	assert.Equal(t, messages.TypeVideoReady, readEvent(t, conn).Type)

	sendText(t, conn, "two")
	next := readEvent(t, conn)
	assert.Equal(t, messages.TypeStatus, next.Type, "got %s %s", next.Type, next.Code)
	assert.Equal(t, messages.StatusThinking, next.Status)
	assert.Equal(t, messages.TypeVideoReady, readEvent(t, conn).Type)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	assert.Equal(t, []string{"one", "two"}, handler.texts)
}

func TestSession_ConfigFrame(t *testing.T) {
	h := newHarness(t, testConfig(), &fakeHandler{})
	conn := h.dial(t)
	readEvent(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"config","voice":"nova"}`)))
	assert.Equal(t, messages.TypeConfigUpdated, readEvent(t, conn).Type)
}

func TestSession_InvalidJSON(t *testing.T) {
	h := newHarness(t, testConfig(), &fakeHandler{})
	conn := h.dial(t)
	readEvent(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{not json`)))
	msg := readEvent(t, conn)
	assert.Equal(t, messages.TypeError, msg.Type)
	assert.Equal(t, messages.ErrCodeInvalidMessage, msg.Code)
}

func TestSession_UnknownTypeIgnored(t *testing.T) {
	h := newHarness(t, testConfig(), &fakeHandler{})
	conn := h.dial(t)
	readEvent(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"config"}`)))
	// The first event after the unknown frame answers the config frame
	assert.Equal(t, messages.TypeConfigUpdated, readEvent(t, conn).Type)
}

func TestSession_OversizedFrameClosesSession(t *testing.T) {
	h := newHarness(t, testConfig(), &fakeHandler{})
	conn := h.dial(t)
	readEvent(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, make([]byte, 4096)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	assert.Eventually(t, func() bool {
		return h.manager.GetActiveSessionCount() == 0
	}, 3*time.Second, 20*time.Millisecond)
}

func TestManager_RemoveOnDisconnect(t *testing.T) {
	h := newHarness(t, testConfig(), &fakeHandler{})
	conn := h.dial(t)
	readEvent(t, conn)
	assert.Equal(t, 1, h.manager.GetActiveSessionCount())

	conn.Close()
	assert.Eventually(t, func() bool {
		return h.manager.GetActiveSessionCount() == 0
	}, 3*time.Second, 20*time.Millisecond)
}

func TestManager_CleanupInactive(t *testing.T) {
	cfg := testConfig()
	cfg.SessionTimeout = 10 * time.Millisecond
	h := newHarness(t, cfg, &fakeHandler{})
	conn := h.dial(t)
	readEvent(t, conn)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, h.manager.CleanupInactiveSessions(context.Background()))
	assert.Equal(t, 0, h.manager.GetActiveSessionCount())
}

func TestManager_CleanupSkipsBusySessions(t *testing.T) {
	cfg := testConfig()
	cfg.SessionTimeout = 10 * time.Millisecond
	handler := &fakeHandler{gate: make(chan struct{})}
	defer close(handler.gate)
	h := newHarness(t, cfg, handler)
	conn := h.dial(t)
	readEvent(t, conn)

	sendText(t, conn, "slow")
	readEvent(t, conn)
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, 0, h.manager.CleanupInactiveSessions(context.Background()))
	assert.Equal(t, 1, h.manager.GetActiveSessionCount())
}

// lingerHandler keeps working for a while after its request is cancelled
type lingerHandler struct {
	fakeHandler
	linger   time.Duration
	finished atomic.Bool
}

func (h *lingerHandler) HandleText(ctx context.Context, conv *pipeline.Conversation, text string, emit pipeline.Emitter) error {
	emit(messages.NewStatusMessage(messages.StatusThinking, "Generating response..."))
	<-ctx.Done()
	time.Sleep(h.linger)
	h.finished.Store(true)
	return ctx.Err()
}

func TestManager_ShutdownWaitsForRunningRequest(t *testing.T) {
	handler := &lingerHandler{linger: 100 * time.Millisecond}
	h := newHarness(t, testConfig(), handler)
	conn := h.dial(t)
	readEvent(t, conn)

	sendText(t, conn, "slow")
	assert.Equal(t, messages.StatusThinking, readEvent(t, conn).Status)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	h.manager.Shutdown(ctx)

	assert.True(t, handler.finished.Load())
	assert.Equal(t, 0, h.manager.GetActiveSessionCount())
}

func TestManager_ShutdownIsBounded(t *testing.T) {
	handler := &lingerHandler{linger: time.Second}
	h := newHarness(t, testConfig(), handler)
	conn := h.dial(t)
	readEvent(t, conn)

	sendText(t, conn, "stuck")
	assert.Equal(t, messages.StatusThinking, readEvent(t, conn).Status)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	h.manager.Shutdown(ctx)

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.False(t, handler.finished.Load())
}

func TestNewID(t *testing.T) {
	id := NewID()
	assert.True(t, strings.HasPrefix(id, IDPrefix))
	assert.NotEqual(t, id, NewID())
}
