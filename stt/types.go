// Package stt turns a recorded utterance into text.
package stt

import (
	"bytes"
	"context"
	"errors"
)

// ErrEmptyAudio is returned when there is nothing to transcribe.
var ErrEmptyAudio = errors.New("audio is empty")

// Transcriber converts one complete audio blob to text. The blob is whatever
// container the client recorded (WAV from the Go client, WebM/Ogg from a
// browser).
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// FileName guesses an upload name from the container magic bytes. Providers
// that take multipart uploads use the extension to pick a decoder.
func FileName(audio []byte) string {
	switch {
	case bytes.HasPrefix(audio, []byte("RIFF")):
		return "audio.wav"
	case bytes.HasPrefix(audio, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return "audio.webm"
	case bytes.HasPrefix(audio, []byte("OggS")):
		return "audio.ogg"
	case bytes.HasPrefix(audio, []byte("ID3")),
		len(audio) > 1 && audio[0] == 0xFF && audio[1]&0xE0 == 0xE0:
		return "audio.mp3"
	case len(audio) > 8 && bytes.Equal(audio[4:8], []byte("ftyp")):
		return "audio.mp4"
	default:
		return "audio.wav"
	}
}
