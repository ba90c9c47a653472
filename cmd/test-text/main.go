// Command test-text runs a single request through the configured pipeline
// in-process, with no server in between.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"

	"github.com/room4-2/interactive-avatar/config"
	"github.com/room4-2/interactive-avatar/logging"
	"github.com/room4-2/interactive-avatar/messages"
	"github.com/room4-2/interactive-avatar/pipeline"
	"github.com/room4-2/interactive-avatar/telemetry"
)

func main() {
	text := flag.String("text", "Hello! Introduce yourself in one sentence.", "Text to send")
	audioFile := flag.String("file", "", "Audio file to transcribe instead of -text")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logger := logging.New(cfg.LogLevel)

	shutdownTracing, err := telemetry.Setup(cfg.TraceStdout, os.Stderr)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to set up tracing")
	}
	defer shutdownTracing(context.Background())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	pipe, err := pipeline.FromConfig(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create pipeline")
	}

	conv := pipeline.NewConversation(cfg.HistoryLimit)
	emit := func(msg *messages.ServerMessage) {
		data, err := messages.Encode(msg)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to encode event")
			return
		}
		fmt.Println(string(data))
	}

	if *audioFile != "" {
		audio, err := os.ReadFile(*audioFile)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to load audio")
		}
		err = pipe.HandleAudio(ctx, conv, audio, emit)
	} else {
		err = pipe.HandleText(ctx, conv, *text, emit)
	}
	if err != nil {
		logger.Error().Err(err).Msg("❌ Request failed")
		os.Exit(1)
	}
	logger.Info().Msg("✅ Done")
}
