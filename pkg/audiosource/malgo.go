package audiosource

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/lokutor-ai/live-transcripts/pkg/audio"
)

// MalgoSource captures live microphone audio via github.com/gen2brain/malgo,
// the same capture library the teacher's cmd/agent/main.go wires up for
// its duplex voice agent device. Unlike the teacher, this source is
// capture-only (malgo.Capture, not malgo.Duplex) — Live Transcripts has
// no TTS output to play back over the same device.
type MalgoSource struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	chunks chan audio.Chunk
	seq    uint64
	closed int32
}

// NewMalgoSource opens the default capture device at sampleRate, mono,
// 16-bit PCM, and starts streaming immediately. Callers must call
// Close when done.
func NewMalgoSource(sampleRate int) (*MalgoSource, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audiosource: init malgo context: %w", err)
	}

	s := &MalgoSource{
		ctx:    mctx,
		chunks: make(chan audio.Chunk, 32),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: s.onSamples,
	})
	if err != nil {
		mctx.Uninit()
		return nil, fmt.Errorf("audiosource: init capture device: %w", err)
	}
	s.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		return nil, fmt.Errorf("audiosource: start capture device: %w", err)
	}

	return s, nil
}

func (s *MalgoSource) onSamples(_, pInput []byte, _ uint32) {
	if len(pInput) == 0 || atomic.LoadInt32(&s.closed) != 0 {
		return
	}
	seq := atomic.AddUint64(&s.seq, 1)
	chunk := audio.Chunk{
		Samples:    pcmToInt16(pInput),
		Seq:        seq,
		CapturedAt: time.Now(),
	}
	select {
	case s.chunks <- chunk:
	default:
		// Consumer fell behind a device callback tick; drop rather than
		// block the audio thread.
	}
}

// Read blocks until the next captured chunk, ctx is cancelled, or the
// source is closed.
func (s *MalgoSource) Read(ctx context.Context) (audio.Chunk, error) {
	select {
	case c, ok := <-s.chunks:
		if !ok {
			return audio.Chunk{}, ErrClosed
		}
		return c, nil
	case <-ctx.Done():
		return audio.Chunk{}, ctx.Err()
	}
}

// Close stops capture and releases the device and context.
func (s *MalgoSource) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	// Stop the capture callback before closing chunks so onSamples can
	// never send on a closed channel.
	if s.device != nil {
		s.device.Uninit()
	}
	close(s.chunks)
	if s.ctx != nil {
		return s.ctx.Uninit()
	}
	return nil
}
