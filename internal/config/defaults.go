// Package config - defaults.go centralizes magic numbers and default values.
//
// DESIGN: All default values that appear in multiple places should be defined
// here. This makes configuration more maintainable and auditable.
package config

import "time"

// =============================================================================
// SERVER
// =============================================================================

// DefaultPort is the HTTP listen port for the gateway.
const DefaultPort = 8787

// DefaultReadTimeout for the HTTP server.
const DefaultReadTimeout = 30 * time.Second

// DefaultWriteTimeout for the HTTP server. Generous because a completion
// round-trip can take most of the upstream timeout.
const DefaultWriteTimeout = 60 * time.Second

// MaxRequestBodySize is the maximum allowed request body (1MB). Chat histories
// from the workshop UI stay well under this.
const MaxRequestBodySize = 1 * 1024 * 1024

// =============================================================================
// UPSTREAM COMPLETION API
// =============================================================================

// DefaultUpstreamBaseURL is the OpenAI-compatible completions endpoint base.
const DefaultUpstreamBaseURL = "https://api.groq.com/openai/v1"

// DefaultModel is used when the client omits a model.
const DefaultModel = "qwen-qwq-32b"

// DefaultTemperature when the client omits one.
const DefaultTemperature = 0.7

// DefaultMaxTokens caps completion length when the client omits a budget.
const DefaultMaxTokens = 500

// DefaultUpstreamTimeout bounds a hung upstream call. Transport failure or
// timeout surfaces as "service temporarily unavailable" (502), never a hang.
const DefaultUpstreamTimeout = 30 * time.Second

// =============================================================================
// RATE LIMITING
// =============================================================================

// DefaultPerMinuteLimit is completion requests per client per minute.
const DefaultPerMinuteLimit = 10

// DefaultPerDayLimit is completion requests per client per day.
const DefaultPerDayLimit = 200

// DefaultFeedbackPerMinute is feedback submissions per client per minute.
// Deliberately small: a human writes at most a handful per minute.
const DefaultFeedbackPerMinute = 3

// =============================================================================
// FEEDBACK INTAKE
// =============================================================================

// DefaultFeedbackTTL is how long pending and acked feedback records live in
// the store before expiring.
const DefaultFeedbackTTL = 90 * 24 * time.Hour

// DefaultMinDwell is the minimum time between the feedback form opening and
// submission. Instant submissions are scripted.
const DefaultMinDwell = 3 * time.Second

// =============================================================================
// STORE
// =============================================================================

// DefaultRedisURL is the shared key-value store for counters and feedback.
const DefaultRedisURL = "redis://localhost:6379"
