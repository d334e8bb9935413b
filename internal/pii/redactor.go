// Package pii strips personal data from free text before it is stored.
//
// DESIGN: An ordered list of category patterns (email, phone, ssn,
// credit_card), each with its own replacement token. Categories are
// non-overlapping by construction, so running them in any order yields the
// same result and re-redacting already-redacted text is a no-op.
package pii

import "regexp"

type category struct {
	name        string
	pattern     *regexp.Regexp
	replacement string
}

var categories = []category{
	{
		name:        "email",
		pattern:     regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`),
		replacement: "[EMAIL REDACTED]",
	},
	{
		name:        "phone",
		pattern:     regexp.MustCompile(`\b(?:\+?1[\s\-.]?)?\(?\d{3}\)?[\s\-.]?\d{3}[\s\-.]?\d{4}\b`),
		replacement: "[PHONE REDACTED]",
	},
	{
		name:        "ssn",
		pattern:     regexp.MustCompile(`\b\d{3}[\s\-]?\d{2}[\s\-]?\d{4}\b`),
		replacement: "[SSN REDACTED]",
	},
	{
		name:        "credit_card",
		pattern:     regexp.MustCompile(`\b(?:\d{4}[\s\-]?){3}\d{4}\b`),
		replacement: "[CARD REDACTED]",
	},
}

// Redact removes PII from text. It returns the cleaned text and the names of
// the categories that matched, each reported once regardless of occurrence
// count. Empty input degenerates to ("", nil).
func Redact(text string) (string, []string) {
	if text == "" {
		return "", nil
	}

	cleaned := text
	var found []string
	for _, c := range categories {
		if !c.pattern.MatchString(cleaned) {
			continue
		}
		found = append(found, c.name)
		cleaned = c.pattern.ReplaceAllString(cleaned, c.replacement)
	}
	return cleaned, found
}
