// Package batcher converts a continuous audio stream into
// utterance-sized segments under the dual duration/silence bounds of
// spec.md §4.3, grounded on the teacher's ManagedStream turn-taking
// state machine (pkg/orchestrator/managed_stream.go) generalized from
// a spoken-dialogue turn detector into a passive batching pipeline
// stage.
package batcher

import (
	"context"
	"sync"
	"time"

	"github.com/lokutor-ai/live-transcripts/pkg/audio"
	"github.com/lokutor-ai/live-transcripts/pkg/logging"
	"github.com/lokutor-ai/live-transcripts/pkg/vad"
)

// Config carries the batcher's duration policy, all expressed as
// durations; converted to sample counts at construction using
// SampleRate.
type Config struct {
	SampleRate       int
	FrameDuration    time.Duration // VAD frame size, default 20ms
	MinBatch         time.Duration
	MaxBatch         time.Duration
	SilenceThreshold time.Duration
	Overlap          time.Duration
	EnqueueTimeout   time.Duration // bounded block against a full BatchQueue
	QueueSize        int
}

// DefaultConfig returns spec.md §6's defaults.
func DefaultConfig(sampleRate int) Config {
	return Config{
		SampleRate:       sampleRate,
		FrameDuration:    20 * time.Millisecond,
		MinBatch:         3 * time.Second,
		MaxBatch:         30 * time.Second,
		SilenceThreshold: 500 * time.Millisecond,
		Overlap:          500 * time.Millisecond,
		EnqueueTimeout:   2 * time.Second,
		QueueSize:        16,
	}
}

func (c Config) frameSamples() int {
	n := int(c.SampleRate) * int(c.FrameDuration) / int(time.Second)
	if n <= 0 {
		n = 1
	}
	return n
}

func durSamples(sampleRate int, d time.Duration) int {
	return int(d) * sampleRate / int(time.Second)
}

// Batcher implements the spec.md §4.3 state machine. It is fed either
// by Run (pulling from an audio.Ring on a frame-duration ticker) or
// directly by Feed (used by tests and by callers with their own
// framing loop).
type Batcher struct {
	cfg    Config
	ring   *audio.Ring
	vad    *vad.Detector
	out    chan Utterance
	logger logging.Logger

	minBatchSamples int
	maxBatchSamples int
	silenceSamples  int
	overlapSamples  int

	mu           sync.Mutex
	state        State
	buf          []int16
	overlapCarry []int16
	unvoicedRun  int
	leftover     []int16 // sub-frame remainder between Feed calls
	cursor       uint64
	nextBatchSeq uint64
	startedAt    time.Time
}

// New creates a Batcher reading from ring (may be nil if the caller
// drives Feed directly, e.g. in tests).
func New(ring *audio.Ring, cfg Config, logger logging.Logger) *Batcher {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	b := &Batcher{
		cfg:             cfg,
		ring:            ring,
		vad:             vad.New(vad.DefaultConfig()),
		out:             make(chan Utterance, cfg.QueueSize),
		logger:          logger,
		minBatchSamples: durSamples(cfg.SampleRate, cfg.MinBatch),
		maxBatchSamples: durSamples(cfg.SampleRate, cfg.MaxBatch),
		silenceSamples:  durSamples(cfg.SampleRate, cfg.SilenceThreshold),
		overlapSamples:  durSamples(cfg.SampleRate, cfg.Overlap),
		state:           WaitingForVoice,
		nextBatchSeq:    1,
	}
	if ring != nil {
		b.cursor = ring.Cursor()
	}
	return b
}

// Out returns the bounded BatchQueue of emitted utterances.
func (b *Batcher) Out() <-chan Utterance {
	return b.out
}

// Pause drops any in-flight accumulation and moves to PAUSED.
func (b *Batcher) Pause() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Paused
	b.buf = nil
	b.overlapCarry = nil
	b.unvoicedRun = 0
	b.vad.Reset()
}

// Resume returns the batcher to WAITING_FOR_VOICE.
func (b *Batcher) Resume() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = WaitingForVoice
	b.vad.Reset()
}

// State reports the current state machine position.
func (b *Batcher) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Run pulls new samples from the ring on a frame-duration tick until
// ctx is cancelled.
func (b *Batcher) Run(ctx context.Context) error {
	if b.ring == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(b.cfg.FrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			b.mu.Lock()
			paused := b.state == Paused
			cursor := b.cursor
			b.mu.Unlock()
			if paused {
				continue
			}

			samples, newCursor, truncated := b.ring.ReadSince(cursor)
			b.mu.Lock()
			b.cursor = newCursor
			b.mu.Unlock()

			if truncated {
				b.handleTruncation()
				continue
			}
			if len(samples) > 0 {
				b.feed(ctx, samples)
			}
		}
	}
}

// Feed processes samples directly, framing them at the configured
// FrameDuration. Intended for tests and for callers that already frame
// their own audio; production use goes through Run.
func (b *Batcher) Feed(ctx context.Context, samples []int16) {
	b.feed(ctx, samples)
}

func (b *Batcher) feed(ctx context.Context, samples []int16) {
	frameLen := b.cfg.frameSamples()

	b.mu.Lock()
	all := append(b.leftover, samples...)
	b.leftover = nil
	b.mu.Unlock()

	for len(all) >= frameLen {
		frame := all[:frameLen]
		all = all[frameLen:]
		b.processFrame(ctx, frame)
	}

	b.mu.Lock()
	b.leftover = append(b.leftover, all...)
	b.mu.Unlock()
}

func (b *Batcher) processFrame(ctx context.Context, frame []int16) {
	b.mu.Lock()

	var toEmit []int16
	emit := false

	switch b.state {
	case Paused:
		b.mu.Unlock()
		return

	case WaitingForVoice:
		voiced := b.vad.Process(frame)
		if voiced {
			b.state = Accumulating
			b.startedAt = time.Now()
			b.buf = append(append([]int16{}, b.overlapCarry...), frame...)
			b.overlapCarry = nil
			b.unvoicedRun = 0
		}
		b.mu.Unlock()
		return

	case Accumulating:
		wasVoiced := b.vad.Voiced()
		voiced := b.vad.Process(frame)
		b.buf = append(b.buf, frame...)
		if voiced {
			b.unvoicedRun = 0
		} else if wasVoiced {
			// The detector reported its hangover frames as voiced; those
			// quiet frames are the start of this silence run.
			b.unvoicedRun = vad.DefaultMinUnvoiceFrames * len(frame)
		} else {
			b.unvoicedRun += len(frame)
		}

		switch {
		case len(b.buf) >= b.maxBatchSamples:
			toEmit = b.forceEmitLocked()
			emit = true
		case len(b.buf)-b.unvoicedRun >= b.minBatchSamples && b.unvoicedRun >= b.silenceSamples:
			toEmit = b.silenceEmitLocked()
			emit = true
		}
	}

	b.mu.Unlock()

	if emit {
		b.enqueue(ctx, toEmit)
	}
}

// silenceEmitLocked ends the utterance at the start of the silence run
// (word-boundary preservation), discarding the silence itself except
// for the carried overlap. Caller holds b.mu.
func (b *Batcher) silenceEmitLocked() []int16 {
	emitLen := len(b.buf) - b.unvoicedRun
	emitted := append([]int16{}, b.buf[:emitLen]...)

	carry := tailOverlap(emitted, b.overlapSamples)
	b.buf = append([]int16{}, carry...)
	b.overlapCarry = nil
	b.unvoicedRun = 0
	b.state = Accumulating
	b.startedAt = time.Now()
	b.vad.Reset()
	return emitted
}

// forceEmitLocked cuts at exactly maxBatchSamples, carrying overlap and
// any genuine excess (audio captured past the cut in the same frame)
// into the next utterance. Caller holds b.mu.
func (b *Batcher) forceEmitLocked() []int16 {
	emitted := append([]int16{}, b.buf[:b.maxBatchSamples]...)
	leftoverTail := append([]int16{}, b.buf[b.maxBatchSamples:]...)

	carry := tailOverlap(emitted, b.overlapSamples)
	b.buf = append(append([]int16{}, carry...), leftoverTail...)
	b.overlapCarry = nil
	b.unvoicedRun = 0
	b.state = Accumulating
	b.startedAt = time.Now()
	b.vad.Reset()
	return emitted
}

func tailOverlap(samples []int16, overlapSamples int) []int16 {
	if overlapSamples <= 0 || overlapSamples >= len(samples) {
		return append([]int16{}, samples...)
	}
	return append([]int16{}, samples[len(samples)-overlapSamples:]...)
}

// enqueue hands an utterance to the BatchQueue. It blocks cooperatively
// (the dispatcher is the rate limiter); on EnqueueTimeout it drops the
// oldest queued utterance — never the newest — to preserve recency,
// then retries the send.
func (b *Batcher) enqueue(ctx context.Context, samples []int16) {
	b.mu.Lock()
	seq := b.nextBatchSeq
	b.nextBatchSeq++
	startedAt := b.startedAt
	b.mu.Unlock()

	u := Utterance{
		Samples:    samples,
		BatchSeq:   seq,
		StartTime:  startedAt,
		EndTime:    time.Now(),
		SampleRate: b.cfg.SampleRate,
	}

	timer := time.NewTimer(b.cfg.EnqueueTimeout)
	defer timer.Stop()

	select {
	case b.out <- u:
		return
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	select {
	case <-b.out:
		b.logger.Warn("batch queue full, dropped oldest utterance", "batch_seq", seq)
	default:
	}

	select {
	case b.out <- u:
	case <-ctx.Done():
	default:
		b.logger.Warn("batch queue still full after drop, dropping newest utterance", "batch_seq", seq)
	}
}

func (b *Batcher) handleTruncation() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger.Warn("audio ring truncated, resetting batcher state")
	b.buf = nil
	b.overlapCarry = nil
	b.unvoicedRun = 0
	b.leftover = nil
	b.state = WaitingForVoice
	b.vad.Reset()
}
