package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/room4-2/interactive-avatar/messages"
	"github.com/room4-2/interactive-avatar/metrics"
	"github.com/room4-2/interactive-avatar/pipeline"
)

const (
	writeBufferSize = 64
	writeTimeout    = 10 * time.Second

	// ConnectedMessage greets every new session
	ConnectedMessage = "Connected to Interactive Avatar"
	busyMessage      = "A request is already being processed"
)

// Handler runs requests for a session. *pipeline.Pipeline implements it.
type Handler interface {
	HandleAudio(ctx context.Context, conv *pipeline.Conversation, audio []byte, emit pipeline.Emitter) error
	HandleText(ctx context.Context, conv *pipeline.Conversation, text string, emit pipeline.Emitter) error
}

// ClientSession represents a single user's connection
type ClientSession struct {
	ID           string
	ClientConn   *websocket.Conn
	Conversation *pipeline.Conversation
	CreatedAt    time.Time
	LastActivity time.Time

	handler Handler
	logger  zerolog.Logger

	// Called after every finished request so the manager can persist history
	onRequestDone func(*ClientSession)

	// Use channels for non-blocking writes
	writeChan chan *messages.ServerMessage

	busy     atomic.Bool
	requests sync.WaitGroup

	mu        sync.RWMutex
	closed    bool
	CloseChan chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClientSession wraps an upgraded connection
func NewClientSession(id string, clientConn *websocket.Conn, handler Handler, historyLimit int,
	maxFrameBytes int64, logger zerolog.Logger) *ClientSession {
	ctx, cancel := context.WithCancel(context.Background())

	if maxFrameBytes > 0 {
		clientConn.SetReadLimit(maxFrameBytes)
	}

	now := time.Now()
	return &ClientSession{
		ID:           id,
		ClientConn:   clientConn,
		Conversation: pipeline.NewConversation(historyLimit),
		CreatedAt:    now,
		LastActivity: now,
		handler:      handler,
		logger:       logger,
		writeChan:    make(chan *messages.ServerMessage, writeBufferSize),
		CloseChan:    make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start announces the session and begins handling frames
func (cs *ClientSession) Start() {
	go cs.writePump()
	cs.queueMessage(messages.NewConnectionMessage(cs.ID, ConnectedMessage))
	go cs.handleClientMessages()
}

// writePump handles all outgoing messages in a single goroutine
func (cs *ClientSession) writePump() {
	defer func() {
		cs.ClientConn.SetWriteDeadline(time.Now().Add(writeTimeout))
		cs.ClientConn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
	}()

	for {
		select {
		case <-cs.CloseChan:
			return
		case msg := <-cs.writeChan:
			data, err := messages.Encode(msg)
			if err != nil {
				cs.logger.Error().Err(err).Str("type", msg.Type).Msg("❌ Failed to encode event")
				continue
			}
			cs.ClientConn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cs.ClientConn.WriteMessage(websocket.TextMessage, data); err != nil {
				cs.logger.Warn().Err(err).Msg("Write failed, closing session")
				go cs.Close()
				return
			}
		}
	}
}

// queueMessage adds a message to the write queue (non-blocking)
func (cs *ClientSession) queueMessage(msg *messages.ServerMessage) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	if cs.closed {
		return
	}

	select {
	case cs.writeChan <- msg:
	default:
		cs.logger.Warn().Str("type", msg.Type).Msg("⚠️ Write queue full, dropping event")
	}
}

func (cs *ClientSession) touch() {
	cs.mu.Lock()
	cs.LastActivity = time.Now()
	cs.mu.Unlock()
}

// Activity returns the last time the client sent a frame
func (cs *ClientSession) Activity() time.Time {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.LastActivity
}

// Busy reports whether a request is in flight
func (cs *ClientSession) Busy() bool {
	return cs.busy.Load()
}

func (cs *ClientSession) handleClientMessages() {
	defer cs.Close()

	for {
		messageType, data, err := cs.ClientConn.ReadMessage()
		if err != nil {
			if !cs.IsClosed() && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				cs.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}
		cs.touch()

		if messageType == websocket.BinaryMessage {
			cs.logger.Info().Int("bytes", len(data)).Msg("🎤 Received audio")
			audio := data
			cs.dispatch(pipeline.KindAudio, func(ctx context.Context) error {
				return cs.handler.HandleAudio(ctx, cs.Conversation, audio, cs.queueMessage)
			})
			continue
		}

		msg, err := messages.DecodeClientMessage(data)
		if err != nil {
			cs.queueMessage(messages.NewErrorMessage(messages.ErrCodeInvalidMessage, "Invalid message format"))
			continue
		}
		cs.processClientMessage(msg)
	}
}

func (cs *ClientSession) processClientMessage(msg *messages.ClientMessage) {
	switch msg.Type {
	case messages.TypeTextInput:
		cs.logger.Info().Str("text", msg.Text).Msg("💬 Received text")
		text := msg.Text
		cs.dispatch(pipeline.KindText, func(ctx context.Context) error {
			return cs.handler.HandleText(ctx, cs.Conversation, text, cs.queueMessage)
		})

	case messages.TypeConfig:
		cs.logger.Info().RawJSON("config", msg.Raw).Msg("⚙️ Config update")
		cs.queueMessage(messages.NewConfigUpdatedMessage())

	default:
		cs.logger.Debug().Str("type", msg.Type).Msg("Ignoring unknown message type")
	}
}

// dispatch runs one request at a time. Overlapping requests are refused
// with BUSY while the first keeps running.
func (cs *ClientSession) dispatch(kind string, run func(context.Context) error) {
	if !cs.busy.CompareAndSwap(false, true) {
		cs.logger.Warn().Str("kind", kind).Msg("⏳ Request rejected, session busy")
		metrics.Requests.WithLabelValues(kind, "busy").Inc()
		cs.queueMessage(messages.NewErrorMessage(messages.ErrCodeBusy, busyMessage))
		return
	}

	cs.requests.Add(1)
	go func() {
		defer cs.requests.Done()

		start := time.Now()
		err := run(cs.ctx)
		// The terminal event is already queued; the client may send its next
		// request before the history is mirrored.
		cs.busy.Store(false)

		if err != nil {
			cs.logger.Warn().Err(err).Str("kind", kind).Dur("time", time.Since(start)).Msg("Request failed")
		} else {
			cs.logger.Info().Str("kind", kind).Dur("time", time.Since(start)).Msg("✅ Request complete")
		}
		if cs.onRequestDone != nil {
			cs.onRequestDone(cs)
		}
	}()
}

// IsClosed reports whether Close has been called
func (cs *ClientSession) IsClosed() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.closed
}

// Close terminates the session and cancels any running request
func (cs *ClientSession) Close() error {
	cs.mu.Lock()
	if cs.closed {
		cs.mu.Unlock()
		return nil
	}
	cs.closed = true
	cs.mu.Unlock()

	cs.cancel()
	close(cs.CloseChan)

	if cs.ClientConn != nil {
		cs.ClientConn.Close()
	}
	return nil
}

// Wait blocks until the in-flight request, if any, has returned
func (cs *ClientSession) Wait() {
	cs.requests.Wait()
}

// WaitContext is Wait bounded by ctx
func (cs *ClientSession) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		cs.requests.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
