package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const deepgramListenURL = "wss://api.deepgram.com/v1/listen"

// DeepgramConfig configures the live listen socket
type DeepgramConfig struct {
	APIKey   string
	Model    string // "nova-3"
	Language string
	URL      string
	Timeout  time.Duration
}

// DeepgramProvider streams a finished recording through Deepgram's live
// listen socket and joins the final transcripts.
type DeepgramProvider struct {
	logger zerolog.Logger
	config DeepgramConfig
	dialer *websocket.Dialer
}

// NewDeepgramProvider creates a Deepgram transcriber
func NewDeepgramProvider(logger zerolog.Logger, config DeepgramConfig) *DeepgramProvider {
	if config.Model == "" {
		config.Model = "nova-3"
	}
	if config.Language == "" {
		config.Language = "en-US"
	}
	if config.URL == "" {
		config.URL = deepgramListenURL
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	return &DeepgramProvider{
		logger: logger.With().Str("provider", "deepgram-stt").Logger(),
		config: config,
		dialer: websocket.DefaultDialer,
	}
}

// Name returns the provider identifier
func (p *DeepgramProvider) Name() string {
	return "deepgram"
}

// Transcribe sends the whole blob, asks Deepgram to flush with CloseStream and
// collects final results until the server closes the socket.
func (p *DeepgramProvider) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", ErrEmptyAudio
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	conn, err := p.connect(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	// Unblock ReadMessage when the caller gives up.
	var closeOnce sync.Once
	stop := context.AfterFunc(ctx, func() { closeOnce.Do(func() { conn.Close() }) })
	defer stop()

	if err := conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return "", fmt.Errorf("failed to write to deepgram: %w", err)
	}
	if err := conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		return "", fmt.Errorf("failed to close deepgram stream: %w", err)
	}

	var parts []string
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				break
			}
			if ctx.Err() != nil {
				return "", fmt.Errorf("deepgram transcription aborted: %w", ctx.Err())
			}
			return "", fmt.Errorf("failed to read deepgram message: %w", err)
		}
		if msgType == websocket.BinaryMessage {
			continue
		}
		if text, ok := p.finalTranscript(msg); ok {
			parts = append(parts, text)
		}
	}

	transcript := strings.Join(parts, " ")
	p.logger.Info().Str("text", transcript).Msg("Transcription complete")
	return transcript, nil
}

func (p *DeepgramProvider) connect(ctx context.Context) (*websocket.Conn, error) {
	listenURL, err := url.Parse(p.config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid deepgram url: %w", err)
	}
	query := listenURL.Query()
	query.Set("model", p.config.Model)
	query.Set("language", p.config.Language)
	query.Set("smart_format", "true")
	query.Set("punctuate", "true")
	listenURL.RawQuery = query.Encode()

	conn, _, err := p.dialer.DialContext(ctx, listenURL.String(),
		http.Header{"Authorization": {"Token " + p.config.APIKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}
	return conn, nil
}

func (p *DeepgramProvider) finalTranscript(msg []byte) (string, bool) {
	var parsed struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsed); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to unmarshal deepgram message")
		return "", false
	}
	if api.TypeResponse(parsed.Type) != api.TypeMessageResponse {
		return "", false
	}

	var resp api.MessageResponse
	if err := json.Unmarshal(msg, &resp); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to unmarshal deepgram result")
		return "", false
	}
	if !resp.IsFinal || len(resp.Channel.Alternatives) == 0 {
		return "", false
	}
	text := strings.TrimSpace(resp.Channel.Alternatives[0].Transcript)
	return text, text != ""
}
