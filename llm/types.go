// Package llm generates the avatar's reply to a user turn.
package llm

import (
	"context"
	"errors"
)

// DefaultSystemPrompt sets the avatar personality
const DefaultSystemPrompt = "You are a friendly and helpful AI assistant appearing as a virtual avatar. " +
	"Keep your responses concise (2-3 sentences max) and conversational. " +
	"Be warm, engaging, and natural in your interactions."

// Roles used in conversation history
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Message is one turn of conversation history
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Responder produces a reply to userText given the previous turns.
type Responder interface {
	Name() string
	Respond(ctx context.Context, history []Message, userText string) (string, error)
}

// Options shared by every provider
type Options struct {
	Model        string
	SystemPrompt string
	MaxTokens    int
	Temperature  float32
}

func (o *Options) applyDefaults(model string) {
	if o.Model == "" {
		o.Model = model
	}
	if o.SystemPrompt == "" {
		o.SystemPrompt = DefaultSystemPrompt
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = 150
	}
	if o.Temperature == 0 {
		o.Temperature = 0.7
	}
}
