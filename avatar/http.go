package avatar

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// HTTPConfig configures a remote generator service. The service receives a
// multipart form (audio file plus settings) and answers with the mp4 body.
type HTTPConfig struct {
	URL       string
	OutputDir string
	Settings  Settings
	Timeout   time.Duration
}

type HTTPProvider struct {
	client *http.Client
	logger zerolog.Logger
	config HTTPConfig
	now    func() time.Time
}

func NewHTTPProvider(logger zerolog.Logger, config HTTPConfig) *HTTPProvider {
	if config.OutputDir == "" {
		config.OutputDir = "output/interactive"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Minute
	}
	config.Settings.applyDefaults()

	logger.Info().Str("url", config.URL).Msg("Avatar generator initialized")
	return &HTTPProvider{
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With().Str("provider", "avatar-http").Logger(),
		config: config,
		now:    time.Now,
	}
}

func (p *HTTPProvider) Name() string {
	return "http"
}

func (p *HTTPProvider) Generate(ctx context.Context, audioPath string) (string, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("audio", filepath.Base(audioPath))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	for _, kv := range p.config.Settings.fields() {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return "", fmt.Errorf("write field %s: %w", kv[0], err)
		}
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.URL, &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("avatar request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("avatar service error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := os.MkdirAll(p.config.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	outPath := OutputPath(p.config.OutputDir, p.now())
	f, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("create video file: %w", err)
	}
	n, err := io.Copy(f, resp.Body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(outPath)
		return "", fmt.Errorf("save video: %w", err)
	}
	if n == 0 {
		_ = os.Remove(outPath)
		return "", ErrNoVideo
	}

	p.logger.Info().Str("output", outPath).Int64("bytes", n).Dur("time", time.Since(start)).Msg("Avatar video saved")
	return outPath, nil
}
