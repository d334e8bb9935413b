package feedback

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aiworkshop/edge-gateway/internal/pii"
	"github.com/aiworkshop/edge-gateway/internal/ratelimit"
	"github.com/aiworkshop/edge-gateway/internal/store"
)

// Rejection is a gate failure. Each gate reports a distinct status and a
// user-safe reason; the gateway maps it straight onto the response envelope.
type Rejection struct {
	Status     int
	Gate       string // which gate rejected, for metrics
	Reason     string
	RetryAfter int // seconds, only for rate-limit rejections
}

func (r *Rejection) Error() string { return r.Reason }

// Submission is a validated-at-the-boundary feedback request.
type Submission struct {
	Identity     string
	Message      string
	FeedbackType string
	PageURL      string
	Passphrase   string
	Honeypot     string
	OpenedAtMs   float64 // unix milliseconds when the form opened; 0 if unknown
}

// Accepted is the successful intake result.
type Accepted struct {
	ID                 string
	Message            string
	RedactedCategories []string
}

// Intake runs submissions through the anti-abuse gates and persists accepted
// records to the pending queue.
type Intake struct {
	store      store.Store
	limiter    *ratelimit.Limiter
	passphrase string
	minDwell   time.Duration
	recordTTL  time.Duration
	now        func() time.Time
}

// NewIntake wires the intake pipeline. The limiter must be dedicated to
// feedback; it is independent of the completion proxy's limiter.
func NewIntake(s store.Store, limiter *ratelimit.Limiter, passphrase string, minDwell, recordTTL time.Duration) *Intake {
	return &Intake{
		store:      s,
		limiter:    limiter,
		passphrase: passphrase,
		minDwell:   minDwell,
		recordTTL:  recordTTL,
		now:        time.Now,
	}
}

// Submit applies the six gates in order, short-circuiting on the first
// failure. Only a fully passed submission is redacted, recorded, and stored.
func (i *Intake) Submit(ctx context.Context, sub Submission) (*Accepted, error) {
	// Gate 1: honeypot. Bots fill hidden fields; the error stays vague on
	// purpose so it teaches them nothing.
	if sub.Honeypot != "" {
		return nil, &Rejection{Status: http.StatusBadRequest, Gate: "honeypot", Reason: "Invalid submission."}
	}

	// Gate 2: minimum dwell time between form open and submit.
	if sub.OpenedAtMs > 0 {
		opened := time.UnixMilli(int64(sub.OpenedAtMs))
		if i.now().Sub(opened) < i.minDwell {
			return nil, &Rejection{Status: http.StatusBadRequest, Gate: "dwell", Reason: "Please take a moment to write your feedback."}
		}
	}

	// Gate 3: shared passphrase. Missing and wrong are indistinguishable.
	if subtle.ConstantTimeCompare([]byte(sub.Passphrase), []byte(i.passphrase)) != 1 {
		return nil, &Rejection{Status: http.StatusForbidden, Gate: "passphrase", Reason: "Invalid passphrase."}
	}

	// Gate 4: feedback-specific rate limit.
	if d := i.limiter.CheckAndConsume(ctx, sub.Identity); !d.Allowed {
		return nil, &Rejection{
			Status:     http.StatusTooManyRequests,
			Gate:       "rate_limit",
			Reason:     "Please wait before submitting again.",
			RetryAfter: d.RetryAfter,
		}
	}

	// Gate 5: content quality.
	if reason := CheckQuality(sub.Message); reason != "" {
		return nil, &Rejection{Status: http.StatusBadRequest, Gate: "quality", Reason: reason}
	}

	// Gate 6: PII redaction, before anything is persisted or titled.
	redacted, categories := pii.Redact(sub.Message)

	now := i.now()
	id := NewID(now)
	record := NewRecord(id, redacted, sub.FeedbackType, sub.PageURL, len(categories) > 0, now)

	if i.store == nil {
		return nil, fmt.Errorf("feedback store not configured")
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	if err := i.store.Put(ctx, PendingPrefix+id, string(payload), i.recordTTL); err != nil {
		return nil, fmt.Errorf("store feedback: %w", err)
	}

	log.Info().
		Str("id", id).
		Str("type", NormalizeType(sub.FeedbackType)).
		Int("pii_categories", len(categories)).
		Msg("feedback accepted")

	return &Accepted{
		ID:                 id,
		Message:            "Thank you for your feedback!",
		RedactedCategories: categories,
	}, nil
}
