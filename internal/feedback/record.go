// Package feedback implements the feedback intake pipeline and the
// pending/acked queue that a separate puller drains.
//
// DESIGN: A submission passes six gates in order (honeypot, timing,
// passphrase, rate limit, content quality, PII redaction) and is then
// persisted as a pending record. Records are never mutated in place: the
// acknowledger copies pending:<id> to acked:<id> and deletes the original, so
// a partial failure leaves at worst a recoverable duplicate.
package feedback

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Store key namespaces for the two record states.
const (
	PendingPrefix = "pending:"
	AckedPrefix   = "acked:"
)

const (
	defaultPriority = "medium"
	issueType       = "feedback"
	originMarker    = "web-feedback"
	maxTitleLen     = 60
)

// Source describes where a feedback record came from.
type Source struct {
	Origin      string `json:"origin"`
	PageURL     string `json:"pageUrl"`
	PIIRedacted bool   `json:"piiRedacted"`
}

// Record is a queued feedback issue as stored under pending:<id>.
type Record struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	IssueType   string   `json:"issueType"`
	CreatedAt   string   `json:"createdAt"`
	Tags        []string `json:"tags"`
	Source      Source   `json:"source"`
}

// typeLabels maps a feedback type to the category shown in the title.
var typeLabels = map[string]string{
	"bug":        "Bug",
	"suggestion": "Enhancement",
	"question":   "Question",
	"general":    "Feedback",
}

// NormalizeType returns a known feedback type, falling back to "general".
func NormalizeType(feedbackType string) string {
	if _, ok := typeLabels[feedbackType]; ok {
		return feedbackType
	}
	return "general"
}

// NewRecord builds a record from an already-redacted message.
func NewRecord(id, redactedMessage, feedbackType, pageURL string, piiRedacted bool, createdAt time.Time) Record {
	feedbackType = NormalizeType(feedbackType)
	if pageURL == "" {
		pageURL = "not specified"
	}
	return Record{
		ID:          id,
		Title:       fmt.Sprintf("[%s] %s", typeLabels[feedbackType], truncate(redactedMessage, maxTitleLen)),
		Description: redactedMessage,
		Status:      "open",
		Priority:    defaultPriority,
		IssueType:   issueType,
		CreatedAt:   createdAt.UTC().Format(time.RFC3339),
		Tags:        []string{originMarker, feedbackType},
		Source: Source{
			Origin:      originMarker,
			PageURL:     pageURL,
			PIIRedacted: piiRedacted,
		},
	}
}

// NewID synthesizes a feedback id: "fb" + compact date + 3 hex digits.
// Collisions are possible but rare; a colliding store write is last-write-wins
// with semantically similar content, which is acceptable here.
func NewID(now time.Time) string {
	buf := make([]byte, 2)
	_, _ = rand.Read(buf)
	return "fb" + now.UTC().Format("20060102") + hex.EncodeToString(buf)[:3]
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
