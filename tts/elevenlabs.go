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

const (
	ElevenLabsAPIEndpoint  = "https://api.elevenlabs.io/v1"
	ElevenLabsDefaultVoice = "21m00Tcm4TlvDq8ikWAM" // Rachel
)

type ElevenLabsConfig struct {
	APIKey     string
	VoiceID    string
	ModelID    string
	Stability  float64
	Similarity float64
	BaseURL    string
	Timeout    time.Duration
}

type ElevenLabsProvider struct {
	client *http.Client
	logger zerolog.Logger
	config ElevenLabsConfig
}

func NewElevenLabsProvider(logger zerolog.Logger, config ElevenLabsConfig) *ElevenLabsProvider {
	if config.VoiceID == "" {
		config.VoiceID = ElevenLabsDefaultVoice
	}
	if config.ModelID == "" {
		config.ModelID = "eleven_turbo_v2_5"
	}
	if config.Stability == 0 {
		config.Stability = 0.5
	}
	if config.Similarity == 0 {
		config.Similarity = 0.75
	}
	if config.BaseURL == "" {
		config.BaseURL = ElevenLabsAPIEndpoint
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	logger.Info().Str("voice", config.VoiceID).Msg("TTS provider initialized")
	return &ElevenLabsProvider{
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With().Str("provider", "elevenlabs-tts").Logger(),
		config: config,
	}
}

func (p *ElevenLabsProvider) Name() string {
	return "elevenlabs"
}

type elevenLabsRequest struct {
	Text          string             `json:"text"`
	ModelID       string             `json:"model_id"`
	VoiceSettings elevenLabsSettings `json:"voice_settings"`
}

type elevenLabsSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

func (p *ElevenLabsProvider) Synthesize(ctx context.Context, text string) (*Audio, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	body, err := json.Marshal(elevenLabsRequest{
		Text:    text,
		ModelID: p.config.ModelID,
		VoiceSettings: elevenLabsSettings{
			Stability:       p.config.Stability,
			SimilarityBoost: p.config.Similarity,
			UseSpeakerBoost: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s?output_format=mp3_44100_128",
		p.config.BaseURL, url.PathEscape(p.config.VoiceID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", p.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("TTS request failed: %w", err)
	}
	data, err := readAudio(resp, "elevenlabs")
	if err != nil {
		return nil, err
	}

	p.logger.Info().Int("bytes", len(data)).Msg("TTS synthesis complete")
	return &Audio{Data: data, Extension: ".mp3"}, nil
}
