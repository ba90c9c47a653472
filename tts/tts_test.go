package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fakeMP3 = []byte("ID3\x04fake-mp3")

func TestOpenAIProvider_Synthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/speech", r.URL.Path)
		var req openAITTSRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tts-1", req.Model)
		assert.Equal(t, "alloy", req.Voice)
		assert.Equal(t, "Hi there", req.Input)
		assert.Equal(t, "mp3", req.ResponseFormat)
		_, _ = w.Write(fakeMP3)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(zerolog.Nop(), OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL})
	audio, err := p.Synthesize(context.Background(), "Hi there")
	require.NoError(t, err)
	assert.Equal(t, fakeMP3, audio.Data)
	assert.Equal(t, ".mp3", audio.Extension)
}

func TestOpenAIProvider_EmptyText(t *testing.T) {
	p := NewOpenAIProvider(zerolog.Nop(), OpenAIConfig{APIKey: "sk-test"})
	_, err := p.Synthesize(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestElevenLabsProvider_Synthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/text-to-speech/voice-1", r.URL.Path)
		assert.Equal(t, "el-test", r.Header.Get("xi-api-key"))
		var req elevenLabsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Hi there", req.Text)
		assert.InDelta(t, 0.75, req.VoiceSettings.SimilarityBoost, 0.001)
		_, _ = w.Write(fakeMP3)
	}))
	defer srv.Close()

	p := NewElevenLabsProvider(zerolog.Nop(), ElevenLabsConfig{APIKey: "el-test", VoiceID: "voice-1", BaseURL: srv.URL})
	audio, err := p.Synthesize(context.Background(), "Hi there")
	require.NoError(t, err)
	assert.Equal(t, fakeMP3, audio.Data)
}

func TestDeepgramProvider_Synthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/speak", r.URL.Path)
		assert.Equal(t, "aura-2-thalia-en", r.URL.Query().Get("model"))
		assert.Equal(t, "Token dg-test", r.Header.Get("Authorization"))
		_, _ = w.Write(fakeMP3)
	}))
	defer srv.Close()

	p := NewDeepgramProvider(zerolog.Nop(), DeepgramConfig{APIKey: "dg-test", BaseURL: srv.URL})
	audio, err := p.Synthesize(context.Background(), "Hi there")
	require.NoError(t, err)
	assert.Equal(t, fakeMP3, audio.Data)
}

func TestReadAudio_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusPaymentRequired)
	}))
	defer srv.Close()

	p := NewDeepgramProvider(zerolog.Nop(), DeepgramConfig{APIKey: "dg-test", BaseURL: srv.URL})
	_, err := p.Synthesize(context.Background(), "Hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "402")
	assert.Contains(t, err.Error(), "quota exceeded")
}
