package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestOpenAIProvider_Respond(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-3.5-turbo", req.Model)
		assert.Equal(t, 150, req.MaxTokens)
		assert.InDelta(t, 0.7, req.Temperature, 0.001)
		require.Len(t, req.Messages, 4)
		assert.Equal(t, RoleSystem, req.Messages[0].Role)
		assert.Equal(t, DefaultSystemPrompt, req.Messages[0].Content)
		assert.Equal(t, Message{Role: RoleUser, Content: "Hi"}, req.Messages[1])
		assert.Equal(t, Message{Role: RoleAssistant, Content: "Hello!"}, req.Messages[2])
		assert.Equal(t, Message{Role: RoleUser, Content: "How are you?"}, req.Messages[3])

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Doing great. "}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(zerolog.Nop(), OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL})
	history := []Message{
		{Role: RoleUser, Content: "Hi"},
		{Role: RoleAssistant, Content: "Hello!"},
	}
	reply, err := p.Respond(context.Background(), history, "How are you?")
	require.NoError(t, err)
	assert.Equal(t, "Doing great.", reply)
}

func TestOpenAIProvider_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(zerolog.Nop(), OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL})
	_, err := p.Respond(context.Background(), nil, "Hi")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAIProvider_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(zerolog.Nop(), OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL})
	_, err := p.Respond(context.Background(), nil, "Hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestGeminiContents_MapsRoles(t *testing.T) {
	contents := geminiContents([]Message{
		{Role: RoleUser, Content: "Hi"},
		{Role: RoleAssistant, Content: "Hello!"},
	}, "Bye")

	require.Len(t, contents, 3)
	assert.Equal(t, string(genai.RoleUser), contents[0].Role)
	assert.Equal(t, string(genai.RoleModel), contents[1].Role)
	assert.Equal(t, "Hello!", contents[1].Parts[0].Text)
	assert.Equal(t, string(genai.RoleUser), contents[2].Role)
	assert.Equal(t, "Bye", contents[2].Parts[0].Text)
}
