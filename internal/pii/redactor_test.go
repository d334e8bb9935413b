package pii

import (
	"strings"
	"testing"
)

func TestRedactCategories(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantClean string
		wantFound []string
	}{
		{
			"email",
			"reach me at bob@example.com thanks",
			"reach me at [EMAIL REDACTED] thanks",
			[]string{"email"},
		},
		{
			"phone",
			"call 555-123-4567 tomorrow",
			"call [PHONE REDACTED] tomorrow",
			[]string{"phone"},
		},
		{
			"ssn",
			"my ssn is 123-45-6789 ok",
			"my ssn is [SSN REDACTED] ok",
			[]string{"ssn"},
		},
		{
			"credit card",
			"card 4111 1111 1111 1111 expired",
			"card [CARD REDACTED] expired",
			[]string{"credit_card"},
		},
		{
			"no pii",
			"the lesson page is broken",
			"the lesson page is broken",
			nil,
		},
		{
			"empty",
			"",
			"",
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clean, found := Redact(tt.input)
			if clean != tt.wantClean {
				t.Errorf("Redact(%q) = %q, want %q", tt.input, clean, tt.wantClean)
			}
			if len(found) != len(tt.wantFound) {
				t.Fatalf("found = %v, want %v", found, tt.wantFound)
			}
			for i := range found {
				if found[i] != tt.wantFound[i] {
					t.Errorf("found[%d] = %q, want %q", i, found[i], tt.wantFound[i])
				}
			}
		})
	}
}

func TestRedactAllOccurrences(t *testing.T) {
	clean, found := Redact("a@b.com wrote to c@d.org and e@f.net")
	if strings.Contains(clean, "@") {
		t.Errorf("unredacted email remains: %q", clean)
	}
	if got := strings.Count(clean, "[EMAIL REDACTED]"); got != 3 {
		t.Errorf("replacements = %d, want 3", got)
	}
	// Category reported once regardless of occurrence count.
	if len(found) != 1 || found[0] != "email" {
		t.Errorf("found = %v, want [email]", found)
	}
}

func TestRedactMultipleCategories(t *testing.T) {
	clean, found := Redact("email a@b.com ssn 123-45-6789")
	if strings.Contains(clean, "a@b.com") || strings.Contains(clean, "123-45-6789") {
		t.Errorf("pii remains: %q", clean)
	}
	if len(found) != 2 {
		t.Fatalf("found = %v, want two categories", found)
	}
}

func TestRedactIdempotent(t *testing.T) {
	inputs := []string{
		"a@b.com and 555-123-4567 and 123-45-6789 and 4111 1111 1111 1111",
		"plain text, nothing sensitive",
		"",
	}
	for _, in := range inputs {
		once, _ := Redact(in)
		twice, foundAgain := Redact(once)
		if twice != once {
			t.Errorf("Redact not idempotent: %q -> %q", once, twice)
		}
		if len(foundAgain) != 0 {
			t.Errorf("re-redaction reported categories %v for %q", foundAgain, once)
		}
	}
}

func TestRedactorReusableAcrossCalls(t *testing.T) {
	// Same input must redact identically on repeated calls.
	in := "a@b.com a@b.com"
	first, _ := Redact(in)
	second, _ := Redact(in)
	if first != second {
		t.Errorf("redactor not reusable: %q vs %q", first, second)
	}
}
