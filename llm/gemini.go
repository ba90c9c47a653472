package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// GeminiConfig configures the genai provider
type GeminiConfig struct {
	Options
	APIKey string
}

// GeminiProvider implements Responder with the Gemini API
type GeminiProvider struct {
	client *genai.Client
	logger zerolog.Logger
	config GeminiConfig
}

// NewGeminiProvider creates the GenAI client
func NewGeminiProvider(ctx context.Context, logger zerolog.Logger, config GeminiConfig) (*GeminiProvider, error) {
	config.applyDefaults("gemini-2.5-flash")

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	logger.Info().Str("model", config.Model).Msg("LLM provider initialized")
	return &GeminiProvider{
		client: client,
		logger: logger.With().Str("provider", "gemini").Logger(),
		config: config,
	}, nil
}

// Name returns the provider identifier
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Respond runs a single GenerateContent call over the whole conversation
func (p *GeminiProvider) Respond(ctx context.Context, history []Message, userText string) (string, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.config.Model,
		geminiContents(history, userText), p.generateConfig())
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}

	reply := strings.TrimSpace(resp.Text())
	if reply == "" {
		return "", ErrEmptyResponse
	}
	p.logger.Debug().Int("history", len(history)).Int("chars", len(reply)).Msg("LLM response generated")
	return reply, nil
}

func (p *GeminiProvider) generateConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				{Text: p.config.SystemPrompt},
			},
		},
		MaxOutputTokens: int32(p.config.MaxTokens),
		Temperature:     genai.Ptr(p.config.Temperature),
	}
}

// geminiContents maps chat roles onto genai roles; Gemini calls the assistant "model".
func geminiContents(history []Message, userText string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		var role genai.Role = genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return append(contents, genai.NewContentFromText(userText, genai.RoleUser))
}
