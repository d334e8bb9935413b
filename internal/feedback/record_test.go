package feedback

import (
	"regexp"
	"strings"
	"testing"
	"time"
)

var idPattern = regexp.MustCompile(`^fb\d{8}[0-9a-f]{3}$`)

func TestNewID(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	id := NewID(now)
	if !idPattern.MatchString(id) {
		t.Fatalf("id %q does not match fb<YYYYMMDD><3hex>", id)
	}
	if !strings.HasPrefix(id, "fb20250601") {
		t.Errorf("id %q does not embed the date", id)
	}
}

func TestNewRecord(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := NewRecord("fb20250601abc", "the lessons page 404s", "bug", "https://example.com/lessons", false, now)

	if rec.Status != "open" {
		t.Errorf("status = %q, want open", rec.Status)
	}
	if rec.IssueType != "feedback" {
		t.Errorf("issueType = %q", rec.IssueType)
	}
	if rec.Title != "[Bug] the lessons page 404s" {
		t.Errorf("title = %q", rec.Title)
	}
	if rec.CreatedAt != "2025-06-01T12:00:00Z" {
		t.Errorf("createdAt = %q", rec.CreatedAt)
	}
	if len(rec.Tags) != 2 || rec.Tags[0] != "web-feedback" || rec.Tags[1] != "bug" {
		t.Errorf("tags = %v", rec.Tags)
	}
	if rec.Source.PageURL != "https://example.com/lessons" {
		t.Errorf("pageUrl = %q", rec.Source.PageURL)
	}
}

func TestNewRecordDefaults(t *testing.T) {
	now := time.Now()
	rec := NewRecord("fbx", "message body here", "weird-type", "", true, now)

	// Unknown types fall back to general feedback.
	if !strings.HasPrefix(rec.Title, "[Feedback]") {
		t.Errorf("title = %q, want [Feedback] prefix", rec.Title)
	}
	if rec.Tags[1] != "general" {
		t.Errorf("tags = %v, want general type tag", rec.Tags)
	}
	if rec.Source.PageURL != "not specified" {
		t.Errorf("pageUrl = %q, want placeholder", rec.Source.PageURL)
	}
	if !rec.Source.PIIRedacted {
		t.Error("piiRedacted flag lost")
	}
}

func TestNewRecordTitleTruncation(t *testing.T) {
	long := strings.Repeat("x", 100)
	rec := NewRecord("fbx", long, "general", "", false, time.Now())

	want := "[Feedback] " + strings.Repeat("x", 60) + "..."
	if rec.Title != want {
		t.Errorf("title = %q, want %q", rec.Title, want)
	}
	// Description keeps the full message.
	if rec.Description != long {
		t.Errorf("description truncated")
	}
}
