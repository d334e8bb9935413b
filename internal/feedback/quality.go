package feedback

import (
	"strings"
	"unicode"
)

const (
	minMessageLen = 10
	maxMessageLen = 2000
)

// CheckQuality applies cheap spam and effort heuristics to a feedback
// message. It returns the first applicable rejection reason, or "" when the
// message passes. Pure and deterministic.
func CheckQuality(message string) string {
	trimmed := strings.TrimSpace(message)

	if len([]rune(trimmed)) < minMessageLen {
		return "Please provide more detail (at least 10 characters)."
	}
	if len([]rune(trimmed)) > maxMessageLen {
		return "Message is too long (2000 characters max)."
	}

	distinct := map[rune]struct{}{}
	for _, r := range strings.ToLower(trimmed) {
		if !unicode.IsSpace(r) {
			distinct[r] = struct{}{}
		}
	}
	if len(distinct) < 3 {
		return "Please write a more descriptive message."
	}

	if len(strings.Fields(trimmed)) < 2 {
		return "Please write a more descriptive message."
	}

	return ""
}
