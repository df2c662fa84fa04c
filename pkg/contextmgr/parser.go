package contextmgr

import "strings"

// parseInsightLine classifies one line of a generate_insights response
// by its leading marker, the lenient grammar spec.md §4.5 leaves as an
// open question:
//
//   - a line ending in "?" or starting with "Q:" (case-insensitive) is
//     a QUESTION;
//   - a line opening with a bullet marker ("- ", "* ", or "<digits>. ")
//     is an ACTION_ITEM (bulleted lines that are themselves questions
//     are still caught by the "?" rule first);
//   - anything else is SUMMARY, including unmarked prose.
func parseInsightLine(line string) (InsightKind, string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Summary, trimmed
	}

	if strings.HasSuffix(trimmed, "?") {
		return Question, trimmed
	}
	if rest, ok := stripPrefixFold(trimmed, "Q:"); ok {
		return Question, strings.TrimSpace(rest)
	}

	if rest, ok := stripBullet(trimmed); ok {
		return ActionItem, rest
	}

	return Summary, trimmed
}

func stripPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}

// stripBullet recognizes "- ", "* ", and "<digits>. " leading markers.
func stripBullet(s string) (string, bool) {
	if rest, ok := stripPrefixFold(s, "- "); ok {
		return strings.TrimSpace(rest), true
	}
	if rest, ok := stripPrefixFold(s, "* "); ok {
		return strings.TrimSpace(rest), true
	}

	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > 0 && i+1 < len(s) && s[i] == '.' && s[i+1] == ' ' {
		return strings.TrimSpace(s[i+2:]), true
	}
	return s, false
}
