package messages

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// ErrMissingType is returned when a frame decodes but has no type field.
var ErrMissingType = errors.New("message has no type")

// api matches encoding/json behaviour (escaping, sorted map keys) so frames
// stay byte-compatible with browser clients.
var api = sonic.ConfigStd

// Encode serializes any protocol message to a JSON frame.
func Encode(msg any) ([]byte, error) {
	data, err := api.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return data, nil
}

// DecodeClientMessage parses a JSON text frame sent by a client.
func DecodeClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := api.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode client message: %w", err)
	}
	if msg.Type == "" {
		return nil, ErrMissingType
	}
	msg.Raw = append(msg.Raw[:0], data...)
	return &msg, nil
}

// DecodeServerMessage parses a JSON event sent by the server.
func DecodeServerMessage(data []byte) (*ServerMessage, error) {
	var msg ServerMessage
	if err := api.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode server message: %w", err)
	}
	if msg.Type == "" {
		return nil, ErrMissingType
	}
	return &msg, nil
}
