// Command test drives one request through a running server without a
// terminal UI: it connects, sends a recording or a line of text and waits
// for the video.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/room4-2/interactive-avatar/client"
	"github.com/room4-2/interactive-avatar/logging"
)

// consoleView logs every view update and reports the first session and the
// first terminal outcome.
type consoleView struct {
	logger  zerolog.Logger
	session chan string
	outcome chan client.Outcome
	once    sync.Once
	ready   sync.Once
}

func (v *consoleView) SetStatus(text string, connected bool) {
	v.logger.Info().Bool("connected", connected).Msgf("📊 %s", text)
}

func (v *consoleView) SetSession(id string) {
	if id == "" {
		return
	}
	v.logger.Info().Str("session", id).Msg("🔌 Session established")
	v.ready.Do(func() { v.session <- id })
}

func (v *consoleView) AppendMessage(role client.Role, text string) {
	fmt.Printf("[%s] %s\n", role, text)
}

func (v *consoleView) ShowLoading(text string) { v.logger.Info().Msgf("⏳ %s", text) }

func (v *consoleView) HideLoading() {}

func (v *consoleView) ShowVideo(url string) {
	v.once.Do(func() { v.outcome <- client.Outcome{VideoURL: url} })
}

func (v *consoleView) ShowError(text string) {
	v.once.Do(func() { v.outcome <- client.Outcome{Error: text} })
}

func (v *consoleView) SetRecording(bool) {}

func main() {
	serverURL := flag.String("server", "ws://localhost:8000/ws", "WebSocket server URL")
	audioFile := flag.String("file", "", "Audio file to send as one binary frame")
	text := flag.String("text", "", "Text to send instead of audio")
	timeout := flag.Duration("timeout", 5*time.Minute, "How long to wait for the video")
	level := flag.String("log-level", "info", "Log level")
	flag.Parse()

	logger := logging.New(*level)

	if (*audioFile == "") == (*text == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -file or -text is required")
		os.Exit(2)
	}

	var audio []byte
	if *audioFile != "" {
		data, err := os.ReadFile(*audioFile)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to load audio")
		}
		audio = data
	}

	view := &consoleView{
		logger:  logger,
		session: make(chan string, 1),
		outcome: make(chan client.Outcome, 1),
	}
	ctrl := client.NewController(client.Options{
		URL:    *serverURL,
		Policy: client.Policy{ReconnectDelay: client.DefaultReconnectDelay, MaxAttempts: 3},
	}, client.NewWebSocketTransport(), view, nil, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	go ctrl.Run(ctx)

	select {
	case <-view.session:
	case <-ctx.Done():
		logger.Fatal().Err(ctx.Err()).Msg("No session")
	}

	start := time.Now()
	if audio != nil {
		logger.Info().Int("bytes", len(audio)).Str("file", *audioFile).Msg("📤 Sending audio")
		ctrl.SendAudio(audio)
	} else {
		logger.Info().Str("text", *text).Msg("📤 Sending text")
		ctrl.SendText(*text)
	}

	select {
	case out := <-view.outcome:
		if out.Error != "" {
			logger.Error().Dur("elapsed", time.Since(start)).Msgf("❌ %s", out.Error)
			os.Exit(1)
		}
		logger.Info().Dur("elapsed", time.Since(start)).Str("video", out.VideoURL).Msg("✅ Video ready")
	case <-ctx.Done():
		logger.Error().Err(ctx.Err()).Msg("⏰ Timed out waiting for the video")
		os.Exit(1)
	}
}
