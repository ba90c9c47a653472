// Package avatar drives the external talking-head video generator.
package avatar

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ErrNoVideo is returned when the generator finished without producing a file.
var ErrNoVideo = errors.New("generator produced no video")

// Generator turns a speech clip into a lip-synced avatar video and returns the
// path of the written mp4.
type Generator interface {
	Name() string
	Generate(ctx context.Context, audioPath string) (string, error)
}

// Settings are the model knobs forwarded to the generator
type Settings struct {
	CheckpointDir string
	LoRAPath      string
	Size          string
	InferFrames   int
	SampleSteps   int
	EnableFP8     bool
	EnableCompile bool
	Prompt        string
	Image         string
	Seed          int
}

func (s *Settings) applyDefaults() {
	if s.Size == "" {
		s.Size = "704*384"
	}
	if s.InferFrames == 0 {
		s.InferFrames = 32
	}
	if s.SampleSteps == 0 {
		s.SampleSteps = 2
	}
	if s.Prompt == "" {
		s.Prompt = "A person speaking naturally"
	}
	if s.Seed == 0 {
		s.Seed = 420
	}
}

// fields flattens the settings into name/value pairs shared by both generators
func (s Settings) fields() [][2]string {
	f := [][2]string{
		{"size", s.Size},
		{"infer_frames", strconv.Itoa(s.InferFrames)},
		{"sample_steps", strconv.Itoa(s.SampleSteps)},
		{"prompt", s.Prompt},
		{"seed", strconv.Itoa(s.Seed)},
		{"fp8", strconv.FormatBool(s.EnableFP8)},
		{"compile", strconv.FormatBool(s.EnableCompile)},
	}
	if s.Image != "" {
		f = append(f, [2]string{"image", s.Image})
	}
	if s.CheckpointDir != "" {
		f = append(f, [2]string{"ckpt_dir", s.CheckpointDir})
	}
	if s.LoRAPath != "" {
		f = append(f, [2]string{"lora_path", s.LoRAPath})
	}
	return f
}

// OutputPath names a fresh video file in dir, e.g. avatar_20250101_120000_042.mp4.
func OutputPath(dir string, now time.Time) string {
	name := fmt.Sprintf("avatar_%s_%03d.mp4", now.Format("20060102_150405"), now.Nanosecond()/int(time.Millisecond))
	return filepath.Join(dir, name)
}

func checkVideo(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNoVideo
		}
		return fmt.Errorf("stat video: %w", err)
	}
	if info.Size() == 0 {
		return ErrNoVideo
	}
	return nil
}
