package messages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_TextInput(t *testing.T) {
	data, err := Encode(NewTextInputMessage("Hello"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"text_input","text":"Hello"}`, string(data))
}

func TestEncode_OmitsUnusedFields(t *testing.T) {
	data, err := Encode(NewVideoReadyMessage("/video/avatar_1.mp4"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"video_ready","video_url":"/video/avatar_1.mp4","message":"Avatar video ready!"}`, string(data))

	data, err = Encode(NewConnectionMessage("abc123", "ready"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"connection","session_id":"abc123","message":"ready"}`, string(data))
}

func TestDecodeServerMessage(t *testing.T) {
	msg, err := DecodeServerMessage([]byte(`{"type":"status","status":"thinking","message":"Generating response..."}`))
	require.NoError(t, err)
	assert.Equal(t, TypeStatus, msg.Type)
	assert.Equal(t, StatusThinking, msg.Status)
	assert.False(t, msg.IsTerminal())

	msg, err = DecodeServerMessage([]byte(`{"type":"error","message":"boom"}`))
	require.NoError(t, err)
	assert.True(t, msg.IsTerminal())
	assert.Equal(t, "boom", msg.Message)
}

func TestDecodeServerMessage_Malformed(t *testing.T) {
	_, err := DecodeServerMessage([]byte(`{"type":`))
	assert.Error(t, err)

	_, err = DecodeServerMessage([]byte(`{"text":"no type"}`))
	assert.ErrorIs(t, err, ErrMissingType)
}

func TestDecodeClientMessage_KeepsRaw(t *testing.T) {
	raw := `{"type":"config","voice":"alloy"}`
	msg, err := DecodeClientMessage([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, TypeConfig, msg.Type)
	assert.JSONEq(t, raw, string(msg.Raw))
}
