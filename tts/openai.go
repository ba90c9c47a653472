package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// OpenAIConfig holds OpenAI TTS configuration
type OpenAIConfig struct {
	APIKey  string
	Model   string // tts-1 or tts-1-hd
	Voice   string // alloy, echo, fable, onyx, nova, shimmer
	Speed   float64
	BaseURL string
	Timeout time.Duration
}

// OpenAIProvider implements Synthesizer using OpenAI's speech API
type OpenAIProvider struct {
	client *http.Client
	logger zerolog.Logger
	config OpenAIConfig
}

// NewOpenAIProvider creates a new OpenAI TTS provider
func NewOpenAIProvider(logger zerolog.Logger, config OpenAIConfig) *OpenAIProvider {
	if config.Model == "" {
		config.Model = "tts-1"
	}
	if config.Voice == "" {
		config.Voice = "alloy"
	}
	if config.Speed == 0 {
		config.Speed = 1.0
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	logger.Info().Str("voice", config.Voice).Str("model", config.Model).Msg("TTS provider initialized")
	return &OpenAIProvider{
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With().Str("provider", "openai-tts").Logger(),
		config: config,
	}
}

// Name returns the provider identifier
func (p *OpenAIProvider) Name() string {
	return "openai"
}

type openAITTSRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format,omitempty"`
	Speed          float64 `json:"speed,omitempty"`
}

// Synthesize converts text to mp3 audio
func (p *OpenAIProvider) Synthesize(ctx context.Context, text string) (*Audio, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	startTime := time.Now()

	body, err := json.Marshal(openAITTSRequest{
		Model:          p.config.Model,
		Input:          text,
		Voice:          p.config.Voice,
		ResponseFormat: "mp3",
		Speed:          p.config.Speed,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	p.logger.Debug().Int("textLen", len(text)).Msg("Sending TTS request to OpenAI")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("TTS request failed: %w", err)
	}
	data, err := readAudio(resp, "openai")
	if err != nil {
		return nil, err
	}

	p.logger.Info().Int("bytes", len(data)).Dur("time", time.Since(startTime)).Msg("TTS synthesis complete")
	return &Audio{Data: data, Extension: ".mp3"}, nil
}
