// Package contextmgr owns a session's Transcript-derived AI
// operations — answer_question, generate_insights, and
// suggest_questions — as pure functions of (Transcript, SessionFocus,
// KnowledgeItems, now), per spec.md §4.5. Grounded on the teacher's
// LLM provider clients (pkg/providers/llm/*.go), adapted behind the
// llm.Generator port.
package contextmgr

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/lokutor-ai/live-transcripts/pkg/llm"
	"github.com/lokutor-ai/live-transcripts/pkg/transcript"
)

// Config bounds the knowledge and transcript text included in
// prompts. TranscriptByteBudget of 0 means no truncation: the full
// transcript is always sent, per spec.md §4.5's explicit preference
// for full-transcript prompts over a rolling window.
type Config struct {
	KnowledgeByteBudget  int
	TranscriptByteBudget int
	QuestionCount        int // k in suggest_questions(k); default DefaultQuestionCount
}

func DefaultConfig() Config {
	return Config{
		KnowledgeByteBudget:  4000,
		TranscriptByteBudget: 0,
		QuestionCount:        DefaultQuestionCount,
	}
}

// Manager holds the mutable session context (focus, knowledge, the
// rotating question pool) that the three pure operations read a
// consistent snapshot of before calling out to the Generator.
type Manager struct {
	gen        llm.Generator
	transcript *transcript.Transcript
	cfg        Config

	mu        sync.Mutex
	focus     string
	knowledge []KnowledgeItem
	rotating  []string
	cursor    int
}

// New builds a Manager whose rotating question slots start from the
// static default list (spec.md §4.5's fresh-session behavior).
func New(gen llm.Generator, tr *transcript.Transcript, cfg Config) *Manager {
	if cfg.QuestionCount <= 0 {
		cfg.QuestionCount = DefaultQuestionCount
	}
	m := &Manager{gen: gen, transcript: tr, cfg: cfg}
	m.rotating = seedDefaultQuestions(cfg.QuestionCount)
	return m
}

func seedDefaultQuestions(k int) []string {
	out := make([]string, k)
	for i := range out {
		out[i] = defaultQuestions[i%len(defaultQuestions)]
	}
	return out
}

// SetFocus updates the session's AI-biasing focus string.
func (m *Manager) SetFocus(focus string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.focus = focus
}

// SetKnowledge replaces the attached knowledge items.
func (m *Manager) SetKnowledge(items []KnowledgeItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.knowledge = items
}

func (m *Manager) snapshotContext() (focus string, knowledge []KnowledgeItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.focus, append([]KnowledgeItem{}, m.knowledge...)
}

// AnswerQuestion answers q using the session focus, knowledge items,
// and the entire transcript text as of the call. Safe to call
// concurrently with Transcript appends and with the tickers.
func (m *Manager) AnswerQuestion(ctx context.Context, q string) Answer {
	focus, knowledge := m.snapshotContext()
	snap := m.transcript.Snapshot()

	kText, kTruncated := knowledgeText(knowledge, m.cfg.KnowledgeByteBudget)
	transcriptText := snap.Text
	var transcriptTruncated bool
	if m.cfg.TranscriptByteBudget > 0 {
		transcriptText, transcriptTruncated = m.transcript.TruncatedText(m.cfg.TranscriptByteBudget)
	}
	var truncationErr error
	if kTruncated || transcriptTruncated {
		truncationErr = ErrPromptTruncated
	}

	messages := buildAnswerPrompt(focus, kText, transcriptText, q)

	start := time.Now()
	text, err := m.gen.Complete(ctx, messages)
	latency := time.Since(start)

	if err != nil {
		return Answer{
			Text:              "Sorry, I couldn't generate an answer right now.",
			Latency:           latency,
			CoversUpToVersion: snap.Version,
			Err:               err,
			TruncationErr:     truncationErr,
		}
	}
	return Answer{
		Text:              text,
		Latency:           latency,
		CoversUpToVersion: snap.Version,
		TruncationErr:     truncationErr,
	}
}

// GenerateInsights produces a mixed-kind list of Insights over the
// full transcript. Returns an error (no partial results) on AI
// failure; the caller (InsightTicker) logs and retries next tick.
func (m *Manager) GenerateInsights(ctx context.Context) ([]Insight, error) {
	focus, _ := m.snapshotContext()
	snap := m.transcript.Snapshot()

	messages := buildInsightsPrompt(focus, snap.Text)
	raw, err := m.gen.Complete(ctx, messages)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var insights []Insight
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		kind, text := parseInsightLine(line)
		if text == "" {
			continue
		}
		insights = append(insights, Insight{
			Kind:              kind,
			Text:              text,
			GeneratedAt:       now,
			CoversUpToVersion: snap.Version,
		})
	}
	return insights, nil
}

// SuggestQuestions returns exactly QuestionCount+1 strings: a fixed
// first slot, followed by QuestionCount rotating slots. Each call
// regenerates exactly one rotating slot (round-robin), preserving the
// rest from the previous call. On an empty transcript, the rotating
// slots retain their static defaults instead of being regenerated.
//
// rotatedIndex is the position (within the returned slice) of the slot
// that was just regenerated, or -1 if no rotation happened (empty
// transcript). Callers broadcasting a suggested_questions event use it
// as the event's rotated_index field.
func (m *Manager) SuggestQuestions(ctx context.Context) (questions []string, rotatedIndex int, err error) {
	focus, _ := m.snapshotContext()
	snap := m.transcript.Snapshot()

	if snap.Text == "" {
		m.mu.Lock()
		rotating := append([]string{}, m.rotating...)
		m.mu.Unlock()
		return append([]string{FirstSuggestedQuestion}, rotating...), -1, nil
	}

	messages := buildQuestionPrompt(focus, snap.Text)
	question, err := m.gen.Complete(ctx, messages)
	if err != nil {
		return nil, -1, err
	}
	question = strings.TrimSpace(strings.SplitN(question, "\n", 2)[0])

	m.mu.Lock()
	idx := m.cursor % len(m.rotating)
	if question != "" {
		m.rotating[idx] = question
	}
	m.cursor = (m.cursor + 1) % len(m.rotating)
	rotating := append([]string{}, m.rotating...)
	m.mu.Unlock()

	return append([]string{FirstSuggestedQuestion}, rotating...), idx + 1, nil
}
