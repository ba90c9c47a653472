package mic

import (
	"encoding/binary"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWAV_Header(t *testing.T) {
	pcm := make([]byte, 3200)
	for i := range pcm {
		pcm[i] = byte(i)
	}

	out := EncodeWAV(pcm, SampleRate, Channels)
	require.Len(t, out, wavHeaderSize+len(pcm))

	assert.Equal(t, "RIFF", string(out[0:4]))
	assert.Equal(t, uint32(36+len(pcm)), binary.LittleEndian.Uint32(out[4:]))
	assert.Equal(t, "WAVE", string(out[8:12]))
	assert.Equal(t, "fmt ", string(out[12:16]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(out[20:]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(out[22:]))
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(out[24:]))
	assert.Equal(t, uint32(32000), binary.LittleEndian.Uint32(out[28:]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(out[32:]))
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(out[34:]))
	assert.Equal(t, "data", string(out[36:40]))
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(out[40:]))
	assert.Equal(t, pcm, out[wavHeaderSize:])
}

func TestEncodeWAV_Stereo(t *testing.T) {
	out := EncodeWAV(nil, 48000, 2)
	require.Len(t, out, wavHeaderSize)
	assert.Equal(t, uint32(48000*4), binary.LittleEndian.Uint32(out[28:]))
	assert.Equal(t, uint16(4), binary.LittleEndian.Uint16(out[32:]))
	assert.Zero(t, binary.LittleEndian.Uint32(out[40:]))
}

func TestStopWithoutStart(t *testing.T) {
	_, err := New(zerolog.Nop(), 0).Stop()
	assert.ErrorIs(t, err, ErrNotRecording)
}
