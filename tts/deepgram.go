package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// DeepgramConfig configures Deepgram speak
type DeepgramConfig struct {
	APIKey  string
	Model   string // aura voice, e.g. "aura-2-thalia-en"
	BaseURL string
	Timeout time.Duration
}

// DeepgramProvider implements Synthesizer with the Deepgram speak REST API
type DeepgramProvider struct {
	client *http.Client
	logger zerolog.Logger
	config DeepgramConfig
}

// NewDeepgramProvider creates a Deepgram TTS provider
func NewDeepgramProvider(logger zerolog.Logger, config DeepgramConfig) *DeepgramProvider {
	if config.Model == "" {
		config.Model = "aura-2-thalia-en"
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.deepgram.com/v1"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	logger.Info().Str("voice", config.Model).Msg("TTS provider initialized")
	return &DeepgramProvider{
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With().Str("provider", "deepgram-tts").Logger(),
		config: config,
	}
}

// Name returns the provider identifier
func (p *DeepgramProvider) Name() string {
	return "deepgram"
}

// Synthesize converts text to mp3 audio
func (p *DeepgramProvider) Synthesize(ctx context.Context, text string) (*Audio, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	body, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	query := url.Values{}
	query.Set("model", p.config.Model)
	query.Set("encoding", "mp3")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.config.BaseURL+"/speak?"+query.Encode(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Token "+p.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("TTS request failed: %w", err)
	}
	data, err := readAudio(resp, "deepgram")
	if err != nil {
		return nil, err
	}

	p.logger.Info().Int("bytes", len(data)).Msg("TTS synthesis complete")
	return &Audio{Data: data, Extension: ".mp3"}, nil
}
