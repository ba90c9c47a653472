package mic

import (
	"errors"
	"sync"
)

// ErrBufferFull is returned when a chunk would push the recording past its cap
var ErrBufferFull = errors.New("recording buffer full")

// pcmBuffer accumulates capture callbacks until the recording stops
type pcmBuffer struct {
	chunks    [][]byte
	totalSize int
	maxSize   int // zero means unbounded
	mu        sync.Mutex
}

func newPCMBuffer(maxSize int) *pcmBuffer {
	return &pcmBuffer{maxSize: maxSize}
}

// Append copies chunk into the buffer. The device reuses its callback
// memory, so the caller's slice is never retained.
func (b *pcmBuffer) Append(chunk []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	newSize := b.totalSize + len(chunk)
	if b.maxSize > 0 && newSize > b.maxSize {
		return ErrBufferFull
	}

	b.chunks = append(b.chunks, append([]byte(nil), chunk...))
	b.totalSize = newSize
	return nil
}

// Flush concatenates all chunks in order and clears the buffer
func (b *pcmBuffer) Flush() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.chunks) == 0 {
		return nil
	}

	result := make([]byte, 0, b.totalSize)
	for _, chunk := range b.chunks {
		result = append(result, chunk...)
	}
	b.chunks = nil
	b.totalSize = 0
	return result
}

// Size returns the buffered byte count
func (b *pcmBuffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalSize
}
