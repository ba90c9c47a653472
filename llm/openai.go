package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAIConfig configures the chat completions provider
type OpenAIConfig struct {
	Options
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// OpenAIProvider implements Responder with the chat completions API
type OpenAIProvider struct {
	client *http.Client
	logger zerolog.Logger
	config OpenAIConfig
}

// NewOpenAIProvider creates a chat completions provider
func NewOpenAIProvider(logger zerolog.Logger, config OpenAIConfig) *OpenAIProvider {
	config.applyDefaults("gpt-3.5-turbo")
	if config.BaseURL == "" {
		config.BaseURL = openAIBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	logger.Info().Str("model", config.Model).Msg("LLM provider initialized")
	return &OpenAIProvider{
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With().Str("provider", "openai-chat").Logger(),
		config: config,
	}
}

// Name returns the provider identifier
func (p *OpenAIProvider) Name() string {
	return "openai"
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float32   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Respond sends system prompt, history and the new user turn
func (p *OpenAIProvider) Respond(ctx context.Context, history []Message, userText string) (string, error) {
	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: p.config.SystemPrompt})
	messages = append(messages, history...)
	messages = append(messages, Message{Role: RoleUser, Content: userText})

	body, err := json.Marshal(chatRequest{
		Model:       p.config.Model,
		Messages:    messages,
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.config.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		p.logger.Error().Int("status", resp.StatusCode).Str("body", string(respBody)).Msg("Chat API error")
		return "", fmt.Errorf("chat API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	reply := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if reply == "" {
		return "", ErrEmptyResponse
	}

	p.logger.Debug().Int("history", len(history)).Int("chars", len(reply)).Msg("LLM response generated")
	return reply, nil
}
