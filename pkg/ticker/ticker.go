// Package ticker runs the two periodic background tasks a session
// drives against its Context Manager — InsightTicker and
// DynamicQuestionTicker — per spec.md §4.6. Grounded on the teacher's
// time.Timer/time.After + select idiom for the grace-period hold in
// pkg/orchestrator/managed_stream.go, generalized from a one-shot
// grace timer into a recurring time.Ticker loop.
package ticker

import (
	"context"
	"time"

	"github.com/lokutor-ai/live-transcripts/pkg/contextmgr"
	"github.com/lokutor-ai/live-transcripts/pkg/logging"
	"github.com/lokutor-ai/live-transcripts/pkg/transcript"
)

// RecordingState mirrors the hub's SessionState.Recording value. Kept
// as its own small type here (rather than importing pkg/hub) so hub
// can depend on ticker without a cycle.
type RecordingState int

const (
	Paused RecordingState = iota
	Recording
	Stopped
)

func (s RecordingState) String() string {
	switch s {
	case Recording:
		return "RECORDING"
	case Stopped:
		return "STOPPED"
	default:
		return "PAUSED"
	}
}

// DefaultInsightInterval is spec.md §4.6's insight_interval default.
const DefaultInsightInterval = 60 * time.Second

// DefaultQuestionInterval is spec.md §4.6's question_update_interval
// default.
const DefaultQuestionInterval = 15 * time.Second

// StateFunc reports the session's current recording state. Tickers
// poll it on every tick rather than holding a reference to the hub's
// internal state directly.
type StateFunc func() RecordingState

// InsightTicker fires GenerateInsights every interval, skipping a tick
// if the transcript hasn't advanced since the last successful one.
type InsightTicker struct {
	Manager  *contextmgr.Manager
	Tr       *transcript.Transcript
	Interval time.Duration
	State    StateFunc
	OnResult func(insights []contextmgr.Insight)
	Logger   logging.Logger

	lastVersion uint64
}

// Run blocks until ctx is cancelled (the session's teardown signal) or
// the session transitions to Stopped. Pauses (skips ticks) while
// State() reports Paused and resumes on the next tick after returning
// to Recording. An in-flight AI call is allowed to finish even if the
// session stops mid-call; its result is then discarded rather than
// delivered.
func (t *InsightTicker) Run(ctx context.Context) error {
	interval := t.Interval
	if interval <= 0 {
		interval = DefaultInsightInterval
	}
	logger := t.Logger
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}

	tk := time.NewTicker(interval)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tk.C:
			switch t.State() {
			case Stopped:
				return nil
			case Paused:
				continue
			}

			snap := t.Tr.Snapshot()
			if snap.Version == t.lastVersion {
				continue
			}

			insights, err := t.Manager.GenerateInsights(context.Background())
			if err != nil {
				logger.Warn("insight ticker: generate_insights failed", "error", err)
				continue
			}
			if t.State() == Stopped {
				continue
			}
			t.lastVersion = snap.Version
			if t.OnResult != nil {
				t.OnResult(insights)
			}
		}
	}
}

// QuestionResult is one DynamicQuestionTicker tick's output.
type QuestionResult struct {
	Questions    []string
	RotatedIndex int
}

// DynamicQuestionTicker fires SuggestQuestions every interval, skipping
// a tick entirely while the transcript is empty.
type DynamicQuestionTicker struct {
	Manager  *contextmgr.Manager
	Tr       *transcript.Transcript
	Interval time.Duration
	State    StateFunc
	OnResult func(QuestionResult)
	Logger   logging.Logger
}

func (t *DynamicQuestionTicker) Run(ctx context.Context) error {
	interval := t.Interval
	if interval <= 0 {
		interval = DefaultQuestionInterval
	}
	logger := t.Logger
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}

	tk := time.NewTicker(interval)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tk.C:
			switch t.State() {
			case Stopped:
				return nil
			case Paused:
				continue
			}

			if t.Tr.Text() == "" {
				continue
			}

			questions, idx, err := t.Manager.SuggestQuestions(context.Background())
			if err != nil {
				logger.Warn("question ticker: suggest_questions failed", "error", err)
				continue
			}
			if t.State() == Stopped {
				continue
			}
			if t.OnResult != nil {
				t.OnResult(QuestionResult{Questions: questions, RotatedIndex: idx})
			}
		}
	}
}
