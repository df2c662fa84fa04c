// Package audiosource provides capture-side adapters that satisfy
// audio.Source. It is a thin I/O shim per spec.md §1's "platform audio
// capture drivers are out of scope, provide a blocking read_chunk()" —
// no batching, VAD, or framing logic lives here.
package audiosource

import (
	"context"
	"errors"

	"github.com/lokutor-ai/live-transcripts/pkg/audio"
)

// ErrClosed is returned by Read once a Source has been closed.
var ErrClosed = errors.New("audiosource: source closed")

// FixedSource replays a fixed slice of chunks, one per Read call, then
// returns ErrClosed. Useful for tests and for feeding recorded audio
// through the same pipeline a live microphone would use.
type FixedSource struct {
	chunks []audio.Chunk
	pos    int
}

// NewFixedSource builds a FixedSource over the given chunks, in order.
func NewFixedSource(chunks []audio.Chunk) *FixedSource {
	return &FixedSource{chunks: chunks}
}

func (f *FixedSource) Read(ctx context.Context) (audio.Chunk, error) {
	if f.pos >= len(f.chunks) {
		return audio.Chunk{}, ErrClosed
	}
	c := f.chunks[f.pos]
	f.pos++
	select {
	case <-ctx.Done():
		return audio.Chunk{}, ctx.Err()
	default:
		return c, nil
	}
}

// pcmToInt16 converts little-endian S16 PCM bytes, as malgo's capture
// callback hands them over, into samples.
func pcmToInt16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(b[2*i]) | int16(b[2*i+1])<<8
	}
	return out
}
