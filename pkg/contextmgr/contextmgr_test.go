package contextmgr

import (
	"context"
	"errors"
	"testing"

	"github.com/lokutor-ai/live-transcripts/pkg/llm"
	"github.com/lokutor-ai/live-transcripts/pkg/transcript"
)

type stubGenerator struct {
	response string
	err      error
	calls    int
	lastMsgs []llm.Message
}

func (g *stubGenerator) Name() string { return "stub" }

func (g *stubGenerator) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	g.calls++
	g.lastMsgs = messages
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

func seedTranscript(t *testing.T, tr *transcript.Transcript, texts ...string) {
	t.Helper()
	for i, text := range texts {
		if err := tr.Append(transcript.Transcription{BatchSeq: uint64(i + 1), Text: text}); err != nil {
			t.Fatalf("seed append failed: %v", err)
		}
	}
}

func TestAnswerQuestionIncludesFocusAndTranscript(t *testing.T) {
	tr := transcript.New()
	seedTranscript(t, tr, "we discussed the roadmap")
	gen := &stubGenerator{response: "the roadmap was discussed"}
	m := New(gen, tr, DefaultConfig())
	m.SetFocus("quarterly planning")

	ans := m.AnswerQuestion(context.Background(), "what did we discuss?")
	if ans.Err != nil {
		t.Fatalf("unexpected error: %v", ans.Err)
	}
	if ans.Text != "the roadmap was discussed" {
		t.Fatalf("unexpected answer: %q", ans.Text)
	}
	if ans.CoversUpToVersion != 1 {
		t.Fatalf("expected covers_up_to_version 1, got %d", ans.CoversUpToVersion)
	}

	found := false
	for _, msg := range gen.lastMsgs {
		if msg.Role == "system" && containsAll(msg.Content, "quarterly planning") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected focus to appear in system prompt, got %+v", gen.lastMsgs)
	}
}

func TestAnswerQuestionOnGeneratorFailureReturnsApology(t *testing.T) {
	tr := transcript.New()
	gen := &stubGenerator{err: errors.New("rate limited")}
	m := New(gen, tr, DefaultConfig())

	ans := m.AnswerQuestion(context.Background(), "anything?")
	if ans.Err == nil {
		t.Fatalf("expected error to be propagated")
	}
	if ans.Text == "" {
		t.Fatalf("expected a non-empty apology text")
	}
}

func TestAnswerQuestionSetsTruncationErrWhenTranscriptBudgetExceeded(t *testing.T) {
	tr := transcript.New()
	seedTranscript(t, tr, "this transcript text is long enough to exceed a tiny byte budget")
	gen := &stubGenerator{response: "an answer"}
	cfg := DefaultConfig()
	cfg.TranscriptByteBudget = 10
	m := New(gen, tr, cfg)

	ans := m.AnswerQuestion(context.Background(), "what happened?")
	if ans.Err != nil {
		t.Fatalf("unexpected error: %v", ans.Err)
	}
	if !errors.Is(ans.TruncationErr, ErrPromptTruncated) {
		t.Fatalf("expected TruncationErr to be ErrPromptTruncated, got %v", ans.TruncationErr)
	}
}

func TestAnswerQuestionSetsTruncationErrWhenKnowledgeBudgetExceeded(t *testing.T) {
	tr := transcript.New()
	seedTranscript(t, tr, "short transcript")
	gen := &stubGenerator{response: "an answer"}
	cfg := DefaultConfig()
	cfg.KnowledgeByteBudget = 5
	m := New(gen, tr, cfg)
	m.SetKnowledge([]KnowledgeItem{{ID: "1", Name: "doc", Text: "this knowledge item is far longer than the budget"}})

	ans := m.AnswerQuestion(context.Background(), "what happened?")
	if !errors.Is(ans.TruncationErr, ErrPromptTruncated) {
		t.Fatalf("expected TruncationErr to be ErrPromptTruncated, got %v", ans.TruncationErr)
	}
}

func TestAnswerQuestionLeavesTruncationErrNilWithinBudget(t *testing.T) {
	tr := transcript.New()
	seedTranscript(t, tr, "short transcript")
	gen := &stubGenerator{response: "an answer"}
	m := New(gen, tr, DefaultConfig()) // default budgets are generous / unbounded

	ans := m.AnswerQuestion(context.Background(), "what happened?")
	if ans.TruncationErr != nil {
		t.Fatalf("expected no truncation, got %v", ans.TruncationErr)
	}
}

func TestGenerateInsightsParsesMixedKinds(t *testing.T) {
	tr := transcript.New()
	seedTranscript(t, tr, "kickoff meeting notes")
	gen := &stubGenerator{response: "The team reviewed Q3 goals.\n- Ship the new onboarding flow\nWhat is the launch date?\nQ: who owns the migration"}
	m := New(gen, tr, DefaultConfig())

	insights, err := m.GenerateInsights(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(insights) != 4 {
		t.Fatalf("expected 4 insights, got %d: %+v", len(insights), insights)
	}
	if insights[0].Kind != Summary {
		t.Errorf("expected insight 0 to be SUMMARY, got %v", insights[0].Kind)
	}
	if insights[1].Kind != ActionItem || insights[1].Text != "Ship the new onboarding flow" {
		t.Errorf("expected insight 1 to be a clean ACTION_ITEM, got %+v", insights[1])
	}
	if insights[2].Kind != Question {
		t.Errorf("expected insight 2 to be QUESTION, got %v", insights[2].Kind)
	}
	if insights[3].Kind != Question || insights[3].Text != "who owns the migration" {
		t.Errorf("expected insight 3 to be a clean QUESTION, got %+v", insights[3])
	}
	for _, ins := range insights {
		if ins.CoversUpToVersion != 1 {
			t.Errorf("expected covers_up_to_version 1, got %d", ins.CoversUpToVersion)
		}
	}
}

func TestGenerateInsightsPropagatesGeneratorError(t *testing.T) {
	tr := transcript.New()
	gen := &stubGenerator{err: errors.New("down")}
	m := New(gen, tr, DefaultConfig())

	_, err := m.GenerateInsights(context.Background())
	if err == nil {
		t.Fatalf("expected error to propagate")
	}
}

func TestSuggestQuestionsFreshSessionUsesStaticDefaults(t *testing.T) {
	tr := transcript.New()
	gen := &stubGenerator{response: "should never be called"}
	cfg := DefaultConfig()
	cfg.QuestionCount = 3
	m := New(gen, tr, cfg)

	qs, idx, err := m.SuggestQuestions(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(qs) != 4 {
		t.Fatalf("expected K+1=4 questions, got %d", len(qs))
	}
	if qs[0] != FirstSuggestedQuestion {
		t.Fatalf("expected first slot to be the fixed question, got %q", qs[0])
	}
	if idx != -1 {
		t.Fatalf("expected rotatedIndex -1 on an empty transcript, got %d", idx)
	}
	if gen.calls != 0 {
		t.Fatalf("expected no generator calls on an empty transcript, got %d", gen.calls)
	}
}

func TestSuggestQuestionsRotatesOneSlotPerCall(t *testing.T) {
	tr := transcript.New()
	seedTranscript(t, tr, "some discussion happened")
	gen := &stubGenerator{response: "What happens next?"}
	cfg := DefaultConfig()
	cfg.QuestionCount = 2
	m := New(gen, tr, cfg)

	first, idx1, err := m.SuggestQuestions(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("expected K+1=3 questions, got %d", len(first))
	}
	if first[0] != FirstSuggestedQuestion {
		t.Fatalf("expected fixed first slot, got %q", first[0])
	}
	if idx1 != 1 {
		t.Fatalf("expected rotatedIndex 1, got %d", idx1)
	}
	if first[1] != "What happens next?" {
		t.Fatalf("expected slot 1 to be regenerated, got %q", first[1])
	}
	preservedSlot := first[1]

	second, idx2, err := m.SuggestQuestions(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx2 != 2 {
		t.Fatalf("expected rotatedIndex 2, got %d", idx2)
	}
	if second[1] != preservedSlot {
		t.Fatalf("expected slot 1 to be preserved on the next call, got %q vs %q", second[1], preservedSlot)
	}
	if second[2] != "What happens next?" {
		t.Fatalf("expected slot 2 to be regenerated on the next call, got %q", second[2])
	}
}

func containsAll(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}
