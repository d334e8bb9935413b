package proxy

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// StripThink removes <think>...</think> blocks that some upstream models emit
// before the actual answer. An unclosed block drops everything from <think>
// onwards. The result is whitespace-trimmed.
func StripThink(s string) string {
	const open, close = "<think>", "</think>"
	for {
		start := strings.Index(s, open)
		if start < 0 {
			return strings.TrimSpace(s)
		}
		end := strings.Index(s[start:], close)
		if end < 0 {
			return strings.TrimSpace(s[:start])
		}
		s = s[:start] + s[start+end+len(close):]
	}
}

// stripChoices rewrites every choice's message content with its think
// segments removed. The rest of the upstream payload is left untouched. If
// the body does not look like a completion response it is returned as-is.
func stripChoices(body []byte) []byte {
	choices := gjson.GetBytes(body, "choices")
	if !choices.IsArray() {
		return body
	}

	out := body
	for i, choice := range choices.Array() {
		content := choice.Get("message.content")
		if !content.Exists() || !strings.Contains(content.String(), "<think>") {
			continue
		}
		path := "choices." + strconv.Itoa(i) + ".message.content"
		if updated, err := sjson.SetBytes(out, path, StripThink(content.String())); err == nil {
			out = updated
		}
	}
	return out
}
