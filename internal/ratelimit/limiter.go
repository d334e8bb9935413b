// Package ratelimit enforces per-client request budgets using counters in the
// shared key-value store.
//
// DESIGN: Two counters per client, keyed by minute and day buckets. Bucket
// boundaries reset counts implicitly through key rotation; stale buckets
// expire via TTL, so no cleanup pass is needed. Counter increments are
// fire-and-forget: a write failure is logged, never surfaced to the request.
//
// Concurrent requests from one client in the same bucket may read the same
// pre-increment count before either write lands, permitting limited
// over-admission. That bounded inaccuracy is accepted; cross-request locking
// at the edge would cost more than it buys.
//
// If the store is unreachable the limiter fails open: enforcement degrades to
// "always allow" with counts reported as zero, favoring availability over
// strict limits.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aiworkshop/edge-gateway/internal/store"
)

const (
	minuteBucketTTL = 2 * time.Minute
	dayBucketTTL    = 25 * time.Hour

	// RetryAfterMinute and RetryAfterDay are the back-off hints returned on
	// denial, in seconds.
	RetryAfterMinute = 60
	RetryAfterDay    = 86400
)

// Decision is the outcome of a single checkAndConsume call. Ephemeral, never
// persisted.
type Decision struct {
	Allowed     bool
	MinuteCount int64
	DayCount    int64
	Reason      string
	RetryAfter  int // seconds; zero when allowed
}

// Limiter counts requests per client identity against minute and day budgets.
// Safe for concurrent use; all shared state lives in the store.
type Limiter struct {
	store     store.Store
	prefix    string
	perMinute int
	perDay    int
	now       func() time.Time

	writes sync.WaitGroup
}

// New creates a limiter. prefix namespaces its counters so independent
// limiters (completions vs feedback) never share budgets. A non-positive
// budget disables that window's enforcement.
func New(s store.Store, prefix string, perMinute, perDay int) *Limiter {
	return &Limiter{
		store:     s,
		prefix:    prefix,
		perMinute: perMinute,
		perDay:    perDay,
		now:       time.Now,
	}
}

// Mode reports how limiting is operating, for the health endpoint.
func (l *Limiter) Mode() string {
	if l.store == nil {
		return "disabled"
	}
	return "distributed"
}

// CheckAndConsume reads the client's counters and, when the request is
// admitted, increments both in the background.
func (l *Limiter) CheckAndConsume(ctx context.Context, identity string) Decision {
	if l.store == nil {
		return Decision{Allowed: true}
	}

	now := l.now().UTC()
	minuteKey := l.key("minute", identity, now.Format("200601021504"))
	dayKey := l.key("day", identity, now.Format("20060102"))

	minuteCount, err := l.readCount(ctx, minuteKey)
	if err != nil {
		// Fail open: the store is unavailable, not the client misbehaving.
		log.Warn().Err(err).Str("identity", identity).Msg("ratelimit: store unavailable, failing open")
		return Decision{Allowed: true}
	}
	dayCount, err := l.readCount(ctx, dayKey)
	if err != nil {
		log.Warn().Err(err).Str("identity", identity).Msg("ratelimit: store unavailable, failing open")
		return Decision{Allowed: true}
	}

	if l.perMinute > 0 && minuteCount >= int64(l.perMinute) {
		return Decision{
			MinuteCount: minuteCount,
			DayCount:    dayCount,
			Reason:      fmt.Sprintf("per-minute limit of %d reached", l.perMinute),
			RetryAfter:  RetryAfterMinute,
		}
	}
	if l.perDay > 0 && dayCount >= int64(l.perDay) {
		return Decision{
			MinuteCount: minuteCount,
			DayCount:    dayCount,
			Reason:      fmt.Sprintf("daily limit of %d reached", l.perDay),
			RetryAfter:  RetryAfterDay,
		}
	}

	l.consume(minuteKey, dayKey, identity)

	return Decision{
		Allowed:     true,
		MinuteCount: minuteCount + 1,
		DayCount:    dayCount + 1,
	}
}

// consume increments both counters detached from the request. The caller has
// already been admitted; a failed write only loosens enforcement slightly.
func (l *Limiter) consume(minuteKey, dayKey, identity string) {
	l.writes.Add(1)
	go func() {
		defer l.writes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := l.store.Incr(ctx, minuteKey, minuteBucketTTL); err != nil {
			log.Warn().Err(err).Str("identity", identity).Msg("ratelimit: minute counter write failed")
		}
		if _, err := l.store.Incr(ctx, dayKey, dayBucketTTL); err != nil {
			log.Warn().Err(err).Str("identity", identity).Msg("ratelimit: day counter write failed")
		}
	}()
}

// Flush waits for in-flight counter writes. Used by tests and shutdown.
func (l *Limiter) Flush() {
	l.writes.Wait()
}

func (l *Limiter) readCount(ctx context.Context, key string) (int64, error) {
	val, err := l.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		// A mangled counter is treated as empty rather than blocking traffic.
		return 0, nil
	}
	return n, nil
}

func (l *Limiter) key(scope, identity, bucket string) string {
	return l.prefix + ":" + scope + ":" + identity + ":" + bucket
}
