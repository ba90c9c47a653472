package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/room4-2/interactive-avatar/config"
	"github.com/room4-2/interactive-avatar/logging"
	"github.com/room4-2/interactive-avatar/pipeline"
	"github.com/room4-2/interactive-avatar/server"
	"github.com/room4-2/interactive-avatar/session"
	"github.com/room4-2/interactive-avatar/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger := logging.New(cfg.LogLevel)

	shutdownTracing, err := telemetry.Setup(cfg.TraceStdout, os.Stderr)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to set up tracing")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Build the STT -> LLM -> TTS -> avatar pipeline
	pipe, err := pipeline.FromConfig(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create pipeline")
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.OutputDir).Msg("Failed to create output directory")
	}

	sessionManager := session.NewManager(cfg, pipe, logger)
	go sessionManager.StartCleanupRoutine(ctx)

	srv := server.NewServer(cfg, sessionManager, pipe.Services(), logger)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-sigChan
		logger.Info().Msg("Received shutdown signal...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	if err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Server error")
	}
	<-shutdownDone

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if err := shutdownTracing(flushCtx); err != nil {
		logger.Warn().Err(err).Msg("Failed to flush traces")
	}

	logger.Info().Msg("Server stopped")
}
