package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiworkshop/edge-gateway/internal/ratelimit"
	"github.com/aiworkshop/edge-gateway/internal/store"
)

const testPassphrase = "workshop-secret"

func newTestIntake(t *testing.T) (*Intake, store.Store) {
	t.Helper()
	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("miniredis unavailable: %v", err)
	}
	t.Cleanup(srv.Close)

	s, err := store.NewRedisStore("redis://" + srv.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	limiter := ratelimit.New(s, "rl:feedback", 100, 0)
	return NewIntake(s, limiter, testPassphrase, 3*time.Second, 90*24*time.Hour), s
}

func validSubmission(now time.Time) Submission {
	return Submission{
		Identity:     "1.2.3.4",
		Message:      "the search results page keeps timing out",
		FeedbackType: "bug",
		PageURL:      "/search",
		Passphrase:   testPassphrase,
		OpenedAtMs:   float64(now.Add(-10 * time.Second).UnixMilli()),
	}
}

func rejection(t *testing.T, err error) *Rejection {
	t.Helper()
	var rej *Rejection
	require.True(t, errors.As(err, &rej), "expected Rejection, got %v", err)
	return rej
}

func TestSubmitAccepted(t *testing.T) {
	intake, s := newTestIntake(t)
	ctx := context.Background()

	acc, err := intake.Submit(ctx, validSubmission(time.Now()))
	require.NoError(t, err)
	assert.Regexp(t, `^fb\d{8}[0-9a-f]{3}$`, acc.ID)
	assert.Equal(t, "Thank you for your feedback!", acc.Message)
	assert.Empty(t, acc.RedactedCategories)

	// Record lands under pending:<id> with status open.
	val, err := s.Get(ctx, PendingPrefix+acc.ID)
	require.NoError(t, err)
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(val), &rec))
	assert.Equal(t, "open", rec.Status)
	assert.False(t, rec.Source.PIIRedacted)
}

func TestSubmitHoneypotRejected(t *testing.T) {
	intake, _ := newTestIntake(t)

	sub := validSubmission(time.Now())
	sub.Honeypot = "gotcha"
	_, err := intake.Submit(context.Background(), sub)

	rej := rejection(t, err)
	assert.Equal(t, http.StatusBadRequest, rej.Status)
	// Deliberately vague.
	assert.Equal(t, "Invalid submission.", rej.Reason)
}

func TestSubmitTimingGate(t *testing.T) {
	intake, _ := newTestIntake(t)
	ctx := context.Background()
	now := time.Now()

	// Opened 500ms ago: scripted-fast, rejected.
	sub := validSubmission(now)
	sub.OpenedAtMs = float64(now.Add(-500 * time.Millisecond).UnixMilli())
	_, err := intake.Submit(ctx, sub)
	rej := rejection(t, err)
	assert.Equal(t, http.StatusBadRequest, rej.Status)

	// Opened 3.5s ago: accepted.
	sub = validSubmission(now)
	sub.OpenedAtMs = float64(now.Add(-3500 * time.Millisecond).UnixMilli())
	_, err = intake.Submit(ctx, sub)
	assert.NoError(t, err)

	// Timestamp absent: gate does not apply.
	sub = validSubmission(now)
	sub.OpenedAtMs = 0
	_, err = intake.Submit(ctx, sub)
	assert.NoError(t, err)
}

func TestSubmitBadPassphrase(t *testing.T) {
	intake, _ := newTestIntake(t)

	for _, phrase := range []string{"", "wrong"} {
		sub := validSubmission(time.Now())
		sub.Passphrase = phrase
		_, err := intake.Submit(context.Background(), sub)
		rej := rejection(t, err)
		// Missing and wrong are indistinguishable.
		assert.Equal(t, http.StatusForbidden, rej.Status)
		assert.Equal(t, "Invalid passphrase.", rej.Reason)
	}
}

func TestSubmitRateLimited(t *testing.T) {
	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("miniredis unavailable: %v", err)
	}
	t.Cleanup(srv.Close)
	s, err := store.NewRedisStore("redis://" + srv.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	limiter := ratelimit.New(s, "rl:feedback", 1, 0)
	intake := NewIntake(s, limiter, testPassphrase, 3*time.Second, time.Hour)
	ctx := context.Background()

	_, err = intake.Submit(ctx, validSubmission(time.Now()))
	require.NoError(t, err)
	limiter.Flush()

	_, err = intake.Submit(ctx, validSubmission(time.Now()))
	rej := rejection(t, err)
	assert.Equal(t, http.StatusTooManyRequests, rej.Status)
	assert.Equal(t, ratelimit.RetryAfterMinute, rej.RetryAfter)
}

func TestSubmitQualityRejected(t *testing.T) {
	intake, _ := newTestIntake(t)

	sub := validSubmission(time.Now())
	sub.Message = "short"
	_, err := intake.Submit(context.Background(), sub)
	rej := rejection(t, err)
	assert.Equal(t, http.StatusBadRequest, rej.Status)
}

func TestSubmitRedactsPII(t *testing.T) {
	intake, s := newTestIntake(t)
	ctx := context.Background()

	sub := validSubmission(time.Now())
	sub.Message = "contact me at student@example.com about the broken quiz"
	acc, err := intake.Submit(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, []string{"email"}, acc.RedactedCategories)

	val, err := s.Get(ctx, PendingPrefix+acc.ID)
	require.NoError(t, err)
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(val), &rec))
	assert.NotContains(t, rec.Description, "student@example.com")
	assert.Contains(t, rec.Description, "[EMAIL REDACTED]")
	assert.True(t, rec.Source.PIIRedacted)
	// The title is derived from the redacted message, never the original.
	assert.NotContains(t, rec.Title, "student@example.com")
}

func TestSubmitStoreFailureIsNotRejection(t *testing.T) {
	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("miniredis unavailable: %v", err)
	}
	s, err := store.NewRedisStore("redis://" + srv.Addr())
	require.NoError(t, err)

	// Limiter without a store fails open, so only the final Put can fail.
	limiter := ratelimit.New(nil, "rl:feedback", 0, 0)
	intake := NewIntake(s, limiter, testPassphrase, 3*time.Second, time.Hour)

	srv.Close()
	_, err = intake.Submit(context.Background(), validSubmission(time.Now()))
	require.Error(t, err)
	var rej *Rejection
	assert.False(t, errors.As(err, &rej), "store failure must be distinguishable from a gate rejection")
}
