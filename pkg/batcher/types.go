package batcher

import (
	"time"

	"github.com/lokutor-ai/live-transcripts/pkg/audio"
)

// State is the batcher's state-machine position, per spec.md §4.3.
type State int

const (
	WaitingForVoice State = iota
	Accumulating
	OverlapCarry
	Paused
)

func (s State) String() string {
	switch s {
	case WaitingForVoice:
		return "WAITING_FOR_VOICE"
	case Accumulating:
		return "ACCUMULATING"
	case OverlapCarry:
		return "OVERLAP_CARRY"
	case Paused:
		return "PAUSED"
	default:
		return "UNKNOWN"
	}
}

// Utterance is one batched segment of audio handed to the dispatcher.
type Utterance struct {
	Samples   []int16
	BatchSeq  uint64
	StartTime time.Time
	EndTime   time.Time
	SampleRate int
}

// Duration reports the utterance's length.
func (u Utterance) Duration() time.Duration {
	if u.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(u.Samples)) * time.Second / time.Duration(u.SampleRate)
}

// PCM returns the utterance audio as little-endian 16-bit PCM bytes.
func (u Utterance) PCM() []byte {
	return audio.SamplesToPCMBytes(u.Samples)
}
