// Package store provides the shared key-value store used by every gateway
// instance for rate counters and the feedback queue.
//
// DESIGN: Per-key operations are atomic; multi-key sequences are not. Callers
// (the feedback acknowledger in particular) must tolerate partial execution of
// copy-then-delete transitions. List may lag a Put on an eventually consistent
// backend; nothing here assumes read-your-writes across keys.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("store: key not found")

// Store is the persistence contract for feedback records and rate counters.
type Store interface {
	// Put writes value under key with a TTL. A zero TTL means no expiry.
	Put(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// List returns all keys with the given prefix in lexicographic order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Incr atomically increments the integer counter at key and refreshes its
	// TTL, returning the new count. Used by the rate limiter.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Close releases the underlying client.
	Close() error
}
