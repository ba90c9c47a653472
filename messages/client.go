package messages

import "encoding/json"

// Client frame types
const (
	TypeTextInput = "text_input"
	TypeConfig    = "config"
)

// ClientMessage represents a JSON frame from the client. Audio is never
// wrapped in JSON; it travels as a bare binary frame.
type ClientMessage struct {
	Type string `json:"type"` // "text_input", "config"
	Text string `json:"text,omitempty"`

	// Raw keeps the whole frame so config frames can be logged as sent.
	Raw json.RawMessage `json:"-"`
}

// NewTextInputMessage builds a text_input frame
func NewTextInputMessage(text string) *ClientMessage {
	return &ClientMessage{
		Type: TypeTextInput,
		Text: text,
	}
}
