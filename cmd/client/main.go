// Command client is the terminal front end: it connects to the server,
// records from the microphone and shows the conversation and video links.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/room4-2/interactive-avatar/client"
	"github.com/room4-2/interactive-avatar/client/mic"
	"github.com/room4-2/interactive-avatar/client/tui"
	"github.com/room4-2/interactive-avatar/logging"
)

func main() {
	page := flag.String("page", "http://localhost:8000/", "Page URL the server is reachable at")
	wsURL := flag.String("url", "", "WebSocket URL, overrides the one derived from -page")
	reconnect := flag.Duration("reconnect", client.DefaultReconnectDelay, "Delay between reconnect attempts")
	maxAttempts := flag.Int("max-attempts", 0, "Give up after this many failed connections (0 retries forever)")
	maxAudio := flag.Int("max-audio-bytes", 10*1024*1024, "Largest recording to send, matching the server's MAX_AUDIO_BYTES")
	logFile := flag.String("log", "", "Write logs to this file")
	level := flag.String("log-level", "info", "Log level")
	flag.Parse()

	endpoint := *wsURL
	if endpoint == "" {
		u, err := client.URLFromPage(*page)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		endpoint = u
	}

	// The TUI owns the terminal, so logs go to a file or nowhere
	var sink io.Writer = io.Discard
	closeLog := func() error { return nil }
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
			os.Exit(1)
		}
		closeLog = f.Close
		sink = f
	}
	logger := logging.NewWithWriter(sink, *level)

	// The bridge is built before the program it forwards to. Send blocks
	// until program.Run starts reading.
	var program *tea.Program
	view := tui.NewBridge(func(msg tea.Msg) { program.Send(msg) })

	ctrl := client.NewController(client.Options{
		URL:    endpoint,
		Policy: client.Policy{ReconnectDelay: *reconnect, MaxAttempts: *maxAttempts},
	}, client.NewWebSocketTransport(), view, mic.New(logger, *maxAudio), logger)
	program = tea.NewProgram(tui.NewModel(ctrl, *page), tea.WithAltScreen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = ctrl.Run(ctx)
	}()

	_, err := program.Run()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
	// os.Exit skips deferred calls
	closeLog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "client: %v\n", err)
		os.Exit(1)
	}
}
