// Package dispatcher consumes Utterances in batch_seq order and
// produces Transcriptions via a primary model / fallback-chain policy
// with retry and bounded-parallelism ordering guarantees, per
// spec.md §4.4. Grounded on the teacher's STT provider clients
// (pkg/providers/stt/*.go), adapted behind the Transcriber port with
// typed, classified errors instead of bare error strings.
package dispatcher

import (
	"context"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/lokutor-ai/live-transcripts/pkg/batcher"
	"github.com/lokutor-ai/live-transcripts/pkg/logging"
	"github.com/lokutor-ai/live-transcripts/pkg/transcript"
)

// Config carries the dispatcher's retry and concurrency policy.
type Config struct {
	APITimeout  time.Duration // default 30s
	RetryDelay  time.Duration // default 1s; backoff is RetryDelay * 2^k
	MaxRetries  int           // default 3
	Parallelism int           // default 1 for strict ordering

	// OnAppend, if set, is called synchronously after each Transcription
	// commits to the Transcript in order. The hub uses this to broadcast
	// a transcription event per spec.md §4.7 without polling the
	// Transcript for new versions.
	OnAppend func(transcript.Transcription)
}

// DefaultConfig returns spec.md §6's dispatcher defaults.
func DefaultConfig() Config {
	return Config{
		APITimeout:  30 * time.Second,
		RetryDelay:  1 * time.Second,
		MaxRetries:  3,
		Parallelism: 1,
	}
}

// Dispatcher walks a primary + fallback chain of Transcribers for
// each Utterance and appends the result to a Transcript in strict
// batch_seq order, even when Parallelism > 1.
type Dispatcher struct {
	cfg        Config
	models     []Transcriber // models[0] is primary, rest are model_fallback in order
	transcript *transcript.Transcript
	stats      *Stats
	logger     logging.Logger
}

// New builds a Dispatcher. models must have at least one entry; the
// first is the primary model, the rest the fallback chain.
func New(models []Transcriber, tr *transcript.Transcript, stats *Stats, cfg Config, logger logging.Logger) *Dispatcher {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	return &Dispatcher{cfg: cfg, models: models, transcript: tr, stats: stats, logger: logger}
}

// Run consumes from in until it is closed or ctx is cancelled, feeding
// completed Transcriptions to the Transcript strictly in batch_seq
// order regardless of completion order when Parallelism > 1.
func (d *Dispatcher) Run(ctx context.Context, in <-chan batcher.Utterance) error {
	results := make(chan transcript.Transcription, d.cfg.Parallelism*2)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.sequence(gctx, results)
	})

	// workers is its own errgroup so its Wait() (and therefore the
	// close(results) below) only completes once every in-flight
	// transcribeUtterance call has either sent its result or observed
	// cancellation — closing results any earlier would risk a worker
	// sending on a closed channel.
	workers, workerCtx := errgroup.WithContext(gctx)
	sem := make(chan struct{}, d.cfg.Parallelism)

	g.Go(func() error {
		defer close(results)
	feed:
		for {
			select {
			case <-workerCtx.Done():
				break feed
			case u, ok := <-in:
				if !ok {
					break feed
				}
				u := u
				sem <- struct{}{}
				workers.Go(func() error {
					defer func() { <-sem }()
					t := d.transcribeUtterance(workerCtx, u)
					select {
					case results <- t:
					case <-workerCtx.Done():
					}
					return nil
				})
			}
		}
		return workers.Wait()
	})

	return g.Wait()
}

// sequence holds out-of-order completions in a reorder buffer (at
// most Parallelism entries) until their predecessor has been
// appended, per spec.md §4.4's ordering guarantee.
func (d *Dispatcher) sequence(ctx context.Context, results <-chan transcript.Transcription) error {
	pending := make(map[uint64]transcript.Transcription)
	next := uint64(1)

	flush := func() {
		for {
			t, ok := pending[next]
			if !ok {
				return
			}
			if err := d.transcript.Append(t); err != nil {
				d.logger.Error("transcript append failed", "batch_seq", t.BatchSeq, "err", err)
			} else if d.cfg.OnAppend != nil {
				d.cfg.OnAppend(t)
			}
			delete(pending, next)
			next++
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t, ok := <-results:
			if !ok {
				return nil
			}
			pending[t.BatchSeq] = t
			flush()
		}
	}
}

// transcribeUtterance walks the model chain, returning the first
// success or, if every model fails, an errored Transcription.
func (d *Dispatcher) transcribeUtterance(ctx context.Context, u batcher.Utterance) transcript.Transcription {
	pcm := u.PCM()

	for _, m := range d.models {
		text, confidence, latency, err := d.tryModel(ctx, m, pcm, u.SampleRate)
		if err == nil {
			return transcript.Transcription{
				BatchSeq:   u.BatchSeq,
				Text:       text,
				ModelUsed:  m.Name(),
				Latency:    latency,
				Confidence: confidence,
			}
		}
		d.logger.Warn("model exhausted retries, falling back", "model", m.Name(), "batch_seq", u.BatchSeq, "err", err)
	}

	return transcript.Transcription{
		BatchSeq: u.BatchSeq,
		Err:      ErrAllModelsFailed.Error(),
	}
}

// tryModel attempts a single model up to MaxRetries times in total,
// waiting between attempts with exponential backoff (RetryDelay * 2^k) plus jitter, honoring a
// rate-limit response's retry-after when it exceeds the computed
// backoff. Returns on first success, on a non-retryable failure, or
// once retries are exhausted.
func (d *Dispatcher) tryModel(ctx context.Context, m Transcriber, pcm []byte, sampleRate int) (text string, confidence float64, latency time.Duration, err error) {
	var lastErr error
	for attempt := 0; attempt < d.cfg.MaxRetries; attempt++ {
		if d.stats != nil {
			d.stats.Attempts.WithLabelValues(m.Name()).Inc()
		}

		attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.APITimeout)
		start := time.Now()
		text, confidence, cerr := m.Transcribe(attemptCtx, pcm, sampleRate)
		latency = time.Since(start)
		cancel()

		if cerr == nil {
			if d.stats != nil {
				d.stats.Successes.WithLabelValues(m.Name()).Inc()
				d.stats.Latency.WithLabelValues(m.Name()).Observe(latency.Seconds())
			}
			return text, confidence, latency, nil
		}

		te, ok := cerr.(*TranscribeError)
		if !ok {
			kind := KindNetwork
			if attemptCtx.Err() == context.DeadlineExceeded {
				kind = KindTimeout
			}
			te = NewTranscribeError(m.Name(), kind, 0, cerr)
		}
		if d.stats != nil {
			d.stats.Failures.WithLabelValues(m.Name(), te.Kind.String()).Inc()
		}
		lastErr = te

		if ctx.Err() != nil {
			return "", 0, latency, ctx.Err()
		}
		if !te.Retryable() || attempt == d.cfg.MaxRetries-1 {
			return "", 0, latency, te
		}

		if waitErr := d.wait(ctx, attempt, te); waitErr != nil {
			return "", 0, latency, waitErr
		}
	}
	return "", 0, latency, lastErr
}

// wait sleeps for RetryDelay*2^attempt plus jitter (via
// backoff.ExponentialBackOff's randomization), or the server's
// retry-after if longer, unless ctx is cancelled first.
func (d *Dispatcher) wait(ctx context.Context, attempt int, te *TranscribeError) error {
	base := d.cfg.RetryDelay * time.Duration(1<<uint(attempt))
	jittered := time.Duration(float64(base) * (1 + (rand.Float64()*2-1)*backoff.DefaultRandomizationFactor))
	if te.Kind == KindRateLimited && te.RetryAfter > jittered {
		jittered = te.RetryAfter
	}

	timer := time.NewTimer(jittered)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
