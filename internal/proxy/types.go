// Package proxy forwards chat-completion requests to the upstream LLM API
// under rate limits and a model allow-list.
//
// DESIGN: Request flow in Complete():
//   - configuration check (missing credential is a server fault, not client)
//   - rate limiter consult (429 + Retry-After on denial)
//   - message and model validation (400)
//   - forward upstream with a bounded timeout
//   - post-process: strip <think> reasoning segments from every choice
//
// Upstream non-success responses pass through with status and body verbatim;
// the gateway does not reinterpret upstream errors. Transport failure is the
// one distinct outcome (service temporarily unavailable).
package proxy

import (
	"fmt"
	"strings"

	"github.com/aiworkshop/edge-gateway/internal/ratelimit"
)

// Message is one turn of a chat history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the validated client-facing completion request.
type Request struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

// Result carries the upstream response (already post-processed on success)
// plus rate-limit telemetry for the response headers.
type Result struct {
	StatusCode            int
	Body                  []byte
	Decision              ratelimit.Decision
	EstimatedPromptTokens int
}

// ErrNotConfigured means the upstream credential is missing. A deployment
// fault, reported as a server error without internal detail.
type ErrNotConfigured struct{}

func (ErrNotConfigured) Error() string { return "upstream API credential not configured" }

// RateLimitError carries the denial decision for Retry-After reporting.
type RateLimitError struct {
	Decision ratelimit.Decision
}

func (e *RateLimitError) Error() string { return e.Decision.Reason }

// ValidationError is a malformed or disallowed client request.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// UnavailableError means the upstream could not be reached at the transport
// level, distinct from an upstream 4xx/5xx which passes through.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string { return "upstream service temporarily unavailable" }
func (e *UnavailableError) Unwrap() error { return e.Err }

// ValidateModel checks membership in the configured allow-list. The rejection
// lists the full allow-list so callers can self-correct.
func ValidateModel(model string, allowed []string) error {
	for _, m := range allowed {
		if model == m {
			return nil
		}
	}
	return &ValidationError{
		Reason: fmt.Sprintf("model %q is not allowed; allowed models: %s", model, strings.Join(allowed, ", ")),
	}
}
