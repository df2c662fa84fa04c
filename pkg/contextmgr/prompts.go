package contextmgr

import (
	"strings"

	"github.com/lokutor-ai/live-transcripts/pkg/llm"
)

const insightsSystemPrompt = `You are analyzing a live meeting transcript. Produce, one per line:
a short summary of the discussion so far, bulletized action items (prefix each with "- "),
and follow-up questions (each ending in "?" or prefixed "Q:"). Do not use headings.`

func buildAnswerPrompt(focus string, knowledgeText string, transcriptText string, question string) []llm.Message {
	var sys strings.Builder
	sys.WriteString("You are answering a question about an ongoing live meeting. ")
	sys.WriteString("Use only the transcript and any provided context below; if the answer isn't there, say so.")
	if focus != "" {
		sys.WriteString("\n\nSession focus: ")
		sys.WriteString(focus)
	}
	if knowledgeText != "" {
		sys.WriteString("\n\nBackground knowledge:\n")
		sys.WriteString(knowledgeText)
	}

	var user strings.Builder
	user.WriteString("Transcript so far:\n")
	user.WriteString(transcriptText)
	user.WriteString("\n\nQuestion: ")
	user.WriteString(question)

	return []llm.Message{
		{Role: "system", Content: sys.String()},
		{Role: "user", Content: user.String()},
	}
}

func buildInsightsPrompt(focus, transcriptText string) []llm.Message {
	sys := insightsSystemPrompt
	if focus != "" {
		sys += "\n\nSession focus: " + focus
	}
	return []llm.Message{
		{Role: "system", Content: sys},
		{Role: "user", Content: "Transcript so far:\n" + transcriptText},
	}
}

func buildQuestionPrompt(focus, transcriptText string) []llm.Message {
	sys := "You suggest one short, specific follow-up question a meeting participant might ask next. " +
		"Reply with the question only, on a single line, ending in a question mark."
	if focus != "" {
		sys += "\n\nSession focus: " + focus
	}
	return []llm.Message{
		{Role: "system", Content: sys},
		{Role: "user", Content: "Transcript so far:\n" + transcriptText},
	}
}

func knowledgeText(items []KnowledgeItem, byteBudget int) (string, bool) {
	if len(items) == 0 {
		return "", false
	}
	var b strings.Builder
	for _, it := range items {
		b.WriteString("[")
		b.WriteString(it.Name)
		b.WriteString("] ")
		b.WriteString(it.Text)
		b.WriteString("\n")
	}
	full := b.String()
	if byteBudget <= 0 || len(full) <= byteBudget {
		return full, false
	}
	return full[:byteBudget], true
}
