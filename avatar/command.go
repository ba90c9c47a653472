package avatar

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// CommandConfig configures the subprocess generator. Command may carry
// leading arguments ("python generate.py").
type CommandConfig struct {
	Command   string
	OutputDir string
	Settings  Settings
}

// CommandProvider runs a local generator script once per request
type CommandProvider struct {
	argv   []string
	logger zerolog.Logger
	config CommandConfig
	now    func() time.Time
}

// NewCommandProvider creates the subprocess generator
func NewCommandProvider(logger zerolog.Logger, config CommandConfig) (*CommandProvider, error) {
	argv := strings.Fields(config.Command)
	if len(argv) == 0 {
		return nil, fmt.Errorf("avatar command is empty")
	}
	if config.OutputDir == "" {
		config.OutputDir = "output/interactive"
	}
	config.Settings.applyDefaults()

	logger.Info().Str("command", argv[0]).Str("size", config.Settings.Size).Msg("Avatar generator initialized")
	return &CommandProvider{
		argv:   argv,
		logger: logger.With().Str("provider", "avatar-command").Logger(),
		config: config,
		now:    time.Now,
	}, nil
}

func (p *CommandProvider) Name() string {
	return "command"
}

// Generate invokes the command with --audio, --output and one --<setting>
// flag per model knob, then checks the output file exists.
func (p *CommandProvider) Generate(ctx context.Context, audioPath string) (string, error) {
	if err := os.MkdirAll(p.config.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	outPath := OutputPath(p.config.OutputDir, p.now())

	args := append([]string{}, p.argv[1:]...)
	args = append(args, "--audio", audioPath, "--output", outPath)
	for _, kv := range p.config.Settings.fields() {
		args = append(args, "--"+kv[0], kv[1])
	}

	cmd := exec.CommandContext(ctx, p.argv[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	p.logger.Info().Str("audio", audioPath).Str("output", outPath).Msg("Generating avatar video")
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("avatar command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if err := checkVideo(outPath); err != nil {
		return "", err
	}

	p.logger.Info().Str("output", outPath).Dur("time", time.Since(start)).Msg("Avatar video saved")
	return outPath, nil
}
