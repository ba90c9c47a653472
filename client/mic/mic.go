// Package mic records from the default capture device with miniaudio.
package mic

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"
)

const (
	SampleRate = 16000
	Channels   = 1
)

var ErrNotRecording = errors.New("microphone is not recording")

// Device holds the capture device only between Start and Stop
type Device struct {
	logger   zerolog.Logger
	maxBytes int

	mu      sync.Mutex
	context *malgo.AllocatedContext
	device  *malgo.Device
	buffer  *pcmBuffer
	full    atomic.Bool
}

// New returns a microphone whose recordings, WAV header included, fit in
// maxBytes. Zero leaves recordings unbounded.
func New(logger zerolog.Logger, maxBytes int) *Device {
	return &Device{
		logger:   logger.With().Str("component", "mic").Logger(),
		maxBytes: maxBytes,
	}
}

// Start opens the default capture device and begins buffering audio
func (d *Device) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device != nil {
		return nil
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		d.logger.Debug().Str("malgo", message).Send()
	})
	if err != nil {
		return fmt.Errorf("failed to initialize audio context: %w", err)
	}

	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * Channels

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.SampleRate = SampleRate
	cfg.Capture.Format = format
	cfg.Capture.Channels = Channels
	cfg.Alsa.NoMMap = 1

	capacity := 0
	if d.maxBytes > 0 {
		capacity = max(d.maxBytes-wavHeaderSize, 0)
	}
	buffer := newPCMBuffer(capacity)
	d.full.Store(false)

	device, err := malgo.InitDevice(ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if n == 0 || len(input) < n {
				return
			}
			if err := buffer.Append(input[:n]); err != nil && !d.full.Swap(true) {
				d.logger.Warn().Int("bytes", buffer.Size()).Msg("⚠️ Recording limit reached, dropping audio")
			}
		},
	})
	if err != nil {
		release(ctx)
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		release(ctx)
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	d.context = ctx
	d.device = device
	d.buffer = buffer
	d.logger.Info().Msg("🎤 Recording started")
	return nil
}

// Stop releases the device and returns the recording as WAV
func (d *Device) Stop() ([]byte, error) {
	d.mu.Lock()
	device, ctx, buffer := d.device, d.context, d.buffer
	d.device, d.context, d.buffer = nil, nil, nil
	d.mu.Unlock()

	if device == nil {
		return nil, ErrNotRecording
	}

	stopErr := device.Stop()
	device.Uninit()
	release(ctx)

	pcm := buffer.Flush()
	if stopErr != nil {
		return nil, fmt.Errorf("failed to stop capture device: %w", stopErr)
	}
	d.logger.Info().Int("bytes", len(pcm)).Msg("🎤 Recording stopped")
	if len(pcm) == 0 {
		return nil, nil
	}
	return EncodeWAV(pcm, SampleRate, Channels), nil
}

func release(ctx *malgo.AllocatedContext) {
	if ctx == nil {
		return
	}
	_ = ctx.Uninit()
	ctx.Free()
}
