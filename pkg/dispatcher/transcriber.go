package dispatcher

import "context"

// Transcriber is the speech-to-text port a model adapter implements.
// Audio is always 16-bit PCM little-endian at sampleRate, mono.
// Implementations return a *TranscribeError for classified failures;
// the dispatcher treats any other error as a network error, or as a
// timeout when the attempt's deadline has passed.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, pcm []byte, sampleRate int) (text string, confidence float64, err error)
}
