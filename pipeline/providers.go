package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/room4-2/interactive-avatar/avatar"
	"github.com/room4-2/interactive-avatar/config"
	"github.com/room4-2/interactive-avatar/llm"
	"github.com/room4-2/interactive-avatar/stt"
	"github.com/room4-2/interactive-avatar/tts"
)

// FromConfig builds the providers selected by cfg and wires them into a
// pipeline.
func FromConfig(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Pipeline, error) {
	transcriber, err := newTranscriber(cfg, logger)
	if err != nil {
		return nil, err
	}
	responder, err := newResponder(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	synthesizer, err := newSynthesizer(cfg, logger)
	if err != nil {
		return nil, err
	}
	generator, err := newGenerator(cfg, logger)
	if err != nil {
		return nil, err
	}

	p := New(logger, Config{}, transcriber, responder, synthesizer, generator)
	logger.Info().
		Str("stt", transcriber.Name()).
		Str("llm", responder.Name()).
		Str("tts", synthesizer.Name()).
		Str("avatar", generator.Name()).
		Msg("🧩 Pipeline ready")
	return p, nil
}

func newTranscriber(cfg *config.Config, logger zerolog.Logger) (stt.Transcriber, error) {
	switch cfg.STTProvider {
	case config.ProviderOpenAI:
		return stt.NewOpenAIProvider(logger, stt.OpenAIConfig{
			APIKey: cfg.OpenAI.APIKey,
			Model:  cfg.OpenAI.WhisperModel,
		}), nil
	case config.ProviderDeepgram:
		return stt.NewDeepgramProvider(logger, stt.DeepgramConfig{
			APIKey: cfg.Deepgram.APIKey,
			Model:  cfg.Deepgram.STTModel,
		}), nil
	}
	return nil, fmt.Errorf("unknown STT provider %q", cfg.STTProvider)
}

func newResponder(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (llm.Responder, error) {
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		return llm.NewOpenAIProvider(logger, llm.OpenAIConfig{
			Options: llm.Options{Model: cfg.OpenAI.Model, MaxTokens: cfg.OpenAI.MaxTokens},
			APIKey:  cfg.OpenAI.APIKey,
		}), nil
	case config.ProviderGemini:
		p, err := llm.NewGeminiProvider(ctx, logger, llm.GeminiConfig{
			Options: llm.Options{Model: cfg.Gemini.Model},
			APIKey:  cfg.Gemini.APIKey,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
}

func newSynthesizer(cfg *config.Config, logger zerolog.Logger) (tts.Synthesizer, error) {
	switch cfg.TTSProvider {
	case config.ProviderOpenAI:
		return tts.NewOpenAIProvider(logger, tts.OpenAIConfig{
			APIKey: cfg.OpenAI.APIKey,
			Model:  cfg.OpenAI.TTSModel,
			Voice:  cfg.OpenAI.TTSVoice,
		}), nil
	case config.ProviderElevenLabs:
		return tts.NewElevenLabsProvider(logger, tts.ElevenLabsConfig{
			APIKey:  cfg.ElevenLabs.APIKey,
			VoiceID: cfg.ElevenLabs.VoiceID,
			ModelID: cfg.ElevenLabs.ModelID,
		}), nil
	case config.ProviderDeepgram:
		return tts.NewDeepgramProvider(logger, tts.DeepgramConfig{
			APIKey: cfg.Deepgram.APIKey,
			Model:  cfg.Deepgram.TTSModel,
		}), nil
	}
	return nil, fmt.Errorf("unknown TTS provider %q", cfg.TTSProvider)
}

func newGenerator(cfg *config.Config, logger zerolog.Logger) (avatar.Generator, error) {
	a := cfg.Avatar
	settings := avatar.Settings{
		CheckpointDir: a.CheckpointDir,
		LoRAPath:      a.LoRAPath,
		Size:          a.Size,
		InferFrames:   a.InferFrames,
		SampleSteps:   a.SampleSteps,
		EnableFP8:     a.EnableFP8,
		EnableCompile: a.EnableCompile,
		Prompt:        a.Prompt,
		Image:         a.Image,
	}

	switch cfg.AvatarProvider {
	case config.ProviderCommand:
		p, err := avatar.NewCommandProvider(logger, avatar.CommandConfig{
			Command:   a.Command,
			OutputDir: cfg.OutputDir,
			Settings:  settings,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.ProviderHTTP:
		return avatar.NewHTTPProvider(logger, avatar.HTTPConfig{
			URL:       a.URL,
			OutputDir: cfg.OutputDir,
			Settings:  settings,
		}), nil
	}
	return nil, fmt.Errorf("unknown avatar provider %q", cfg.AvatarProvider)
}
