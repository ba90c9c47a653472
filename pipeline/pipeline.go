// Package pipeline turns one client request into avatar video, reporting
// progress through server events.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/room4-2/interactive-avatar/avatar"
	"github.com/room4-2/interactive-avatar/llm"
	"github.com/room4-2/interactive-avatar/messages"
	"github.com/room4-2/interactive-avatar/metrics"
	"github.com/room4-2/interactive-avatar/stt"
	"github.com/room4-2/interactive-avatar/telemetry"
	"github.com/room4-2/interactive-avatar/tts"
)

// VideoRoute is the URL prefix the server serves generated videos under
const VideoRoute = "/video/"

var (
	// ErrNoSpeech is reported when transcription yields no text
	ErrNoSpeech = errors.New("no speech detected")
	// ErrEmptyInput is reported for blank text requests
	ErrEmptyInput = errors.New("empty text input")
)

// Request kinds used as metric labels
const (
	KindAudio = "audio"
	KindText  = "text"
)

// Emitter delivers one event to the client. It must not block for long.
type Emitter func(*messages.ServerMessage)

// Config tunes the pipeline
type Config struct {
	TempDir string // Where synthesized speech is staged; os.TempDir() when empty
	Breaker BreakerConfig
}

// Pipeline runs STT, LLM, TTS and avatar generation in sequence
type Pipeline struct {
	logger zerolog.Logger
	config Config

	transcribe *stage[string]
	respond    *stage[string]
	synthesize *stage[*tts.Audio]
	generate   *stage[string]

	transcriber stt.Transcriber
	responder   llm.Responder
	synthesizer tts.Synthesizer
	generator   avatar.Generator
}

// New wires the four providers into a pipeline
func New(logger zerolog.Logger, config Config, transcriber stt.Transcriber, responder llm.Responder,
	synthesizer tts.Synthesizer, generator avatar.Generator) *Pipeline {
	logger = logger.With().Str("component", "pipeline").Logger()

	return &Pipeline{
		logger:      logger,
		config:      config,
		transcribe:  newStage[string]("stt", transcriber.Name(), config.Breaker, logger),
		respond:     newStage[string]("llm", responder.Name(), config.Breaker, logger),
		synthesize:  newStage[*tts.Audio]("tts", synthesizer.Name(), config.Breaker, logger),
		generate:    newStage[string]("avatar", generator.Name(), config.Breaker, logger),
		transcriber: transcriber,
		responder:   responder,
		synthesizer: synthesizer,
		generator:   generator,
	}
}

// Services reports the configured provider per stage, for health checks
func (p *Pipeline) Services() map[string]string {
	return map[string]string{
		"stt":    p.transcriber.Name(),
		"llm":    p.responder.Name(),
		"tts":    p.synthesizer.Name(),
		"avatar": p.generator.Name(),
	}
}

// HandleAudio transcribes a recorded clip and continues with the text flow.
// Every call emits exactly one terminal event.
func (p *Pipeline) HandleAudio(ctx context.Context, conv *Conversation, audio []byte, emit Emitter) error {
	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.audio_request")
	span.SetAttributes(attribute.Int("audio.bytes", len(audio)))
	defer span.End()

	emit(messages.NewStatusMessage(messages.StatusTranscribing, "Transcribing your speech..."))

	text, err := p.transcribe.run(ctx, func(ctx context.Context) (string, error) {
		return p.transcriber.Transcribe(ctx, audio)
	})
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrNoSpeech
	}
	if err != nil {
		p.logger.Error().Err(err).Int("bytes", len(audio)).Msg("❌ Audio processing failed")
		emit(messages.NewErrorMessage(messages.ErrCodeAudioFailed, fmt.Sprintf("Audio processing failed: %v", err)))
		metrics.Requests.WithLabelValues(KindAudio, "error").Inc()
		return fmt.Errorf("transcribe: %w", err)
	}

	p.logger.Info().Str("text", text).Msg("📝 Transcribed")
	emit(messages.NewTranscriptionMessage(text))

	err = p.process(ctx, conv, text, emit)
	metrics.Requests.WithLabelValues(KindAudio, outcome(err)).Inc()
	return err
}

// HandleText answers a typed message. Every call emits exactly one terminal event.
func (p *Pipeline) HandleText(ctx context.Context, conv *Conversation, text string, emit Emitter) error {
	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.text_request")
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		emit(messages.NewErrorMessage(messages.ErrCodeInvalidMessage, "Processing failed: "+ErrEmptyInput.Error()))
		metrics.Requests.WithLabelValues(KindText, "error").Inc()
		return ErrEmptyInput
	}

	err := p.process(ctx, conv, text, emit)
	metrics.Requests.WithLabelValues(KindText, outcome(err)).Inc()
	return err
}

func (p *Pipeline) process(ctx context.Context, conv *Conversation, userText string, emit Emitter) error {
	videoURL, err := p.run(ctx, conv, userText, emit)
	if err != nil {
		p.logger.Error().Err(err).Msg("❌ Processing failed")
		emit(messages.NewErrorMessage(messages.ErrCodeProcessing, fmt.Sprintf("Processing failed: %v", err)))
		return err
	}
	emit(messages.NewVideoReadyMessage(videoURL))
	return nil
}

func (p *Pipeline) run(ctx context.Context, conv *Conversation, userText string, emit Emitter) (string, error) {
	emit(messages.NewStatusMessage(messages.StatusThinking, "Generating response..."))

	history := conv.Messages()
	reply, err := p.respond.run(ctx, func(ctx context.Context) (string, error) {
		return p.responder.Respond(ctx, history, userText)
	})
	if err != nil {
		return "", fmt.Errorf("generate response: %w", err)
	}
	emit(messages.NewResponseMessage(reply))
	conv.Append(userText, reply)

	emit(messages.NewStatusMessage(messages.StatusSynthesizing, "Synthesizing speech..."))
	speech, err := p.synthesize.run(ctx, func(ctx context.Context) (*tts.Audio, error) {
		return p.synthesizer.Synthesize(ctx, reply)
	})
	if err != nil {
		return "", fmt.Errorf("synthesize speech: %w", err)
	}

	audioPath, err := p.stageAudio(speech)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := os.Remove(audioPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			p.logger.Warn().Err(err).Str("path", audioPath).Msg("Failed to remove temp audio")
		}
	}()

	emit(messages.NewStatusMessage(messages.StatusGeneratingVideo, "Generating avatar video..."))
	videoPath, err := p.generate.run(ctx, func(ctx context.Context) (string, error) {
		return p.generator.Generate(ctx, audioPath)
	})
	if err != nil {
		return "", fmt.Errorf("generate video: %w", err)
	}

	p.logger.Info().Str("video", videoPath).Msg("🎬 Avatar video ready")
	return VideoRoute + filepath.Base(videoPath), nil
}

// stageAudio writes synthesized speech to a temp file for the generator
func (p *Pipeline) stageAudio(speech *tts.Audio) (string, error) {
	ext := speech.Extension
	if ext == "" {
		ext = ".mp3"
	}
	f, err := os.CreateTemp(p.config.TempDir, "speech-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp audio: %w", err)
	}
	if _, err := f.Write(speech.Data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write temp audio: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close temp audio: %w", err)
	}
	return f.Name(), nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
