package contextmgr

import "time"

// InsightKind classifies one line of a generate_insights response.
type InsightKind int

const (
	Summary InsightKind = iota
	ActionItem
	Question
)

func (k InsightKind) String() string {
	switch k {
	case ActionItem:
		return "ACTION_ITEM"
	case Question:
		return "QUESTION"
	default:
		return "SUMMARY"
	}
}

// Insight is one parsed line from a generate_insights response.
type Insight struct {
	Kind              InsightKind
	Text              string
	GeneratedAt       time.Time
	CoversUpToVersion uint64
}

// KnowledgeItem is an external reference document attached to a
// session, included (budget-truncated) in every AI prompt.
type KnowledgeItem struct {
	ID   string
	Name string
	Text string
}

// Answer is the result of answer_question.
type Answer struct {
	Text              string
	Latency           time.Duration
	CoversUpToVersion uint64
	Err               error

	// TruncationErr is ErrPromptTruncated when the knowledge or
	// transcript text included in the prompt was cut down to fit its
	// configured byte budget, and nil otherwise. It is informational:
	// it is set alongside a successful answer, not in place of one.
	TruncationErr error
}

// DefaultQuestionCount is spec.md §4.5's default k for suggest_questions.
const DefaultQuestionCount = 4

// FirstSuggestedQuestion is the fixed first slot of every
// SuggestedQuestions result.
const FirstSuggestedQuestion = "Summarize recent discussion"

// defaultQuestions seeds a fresh session's rotating slots before any
// transcript content exists.
var defaultQuestions = []string{
	"What are the main topics discussed so far?",
	"Are there any decisions that need to be made?",
	"What action items have come up?",
	"Who are the key participants in this discussion?",
	"What questions remain unanswered?",
}
