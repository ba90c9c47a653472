// Package tts renders reply text as speech audio.
package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrEmptyText is returned when there is nothing to speak.
var ErrEmptyText = errors.New("text is empty")

// Audio is a synthesized clip. Extension names the container (".mp3").
type Audio struct {
	Data      []byte
	Extension string
}

// Synthesizer converts text to a complete audio clip
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text string) (*Audio, error)
}

// readAudio drains a provider response, turning non-200 replies into errors.
func readAudio(resp *http.Response, provider string) ([]byte, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", provider, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s API error (status %d): %s", provider, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%s returned no audio", provider)
	}
	return body, nil
}
