package feedback

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aiworkshop/edge-gateway/internal/store"
)

// Item pairs a store key with its parsed record, as returned by Pull.
type Item struct {
	Key    string `json:"key"`
	Record Record `json:"issue"`
}

// Queue exposes the pending feedback queue to the puller/acknowledger.
type Queue struct {
	store      store.Store
	passphrase string
	recordTTL  time.Duration
}

// NewQueue creates a passphrase-gated view over the pending/acked namespaces.
func NewQueue(s store.Store, passphrase string, recordTTL time.Duration) *Queue {
	return &Queue{store: s, passphrase: passphrase, recordTTL: recordTTL}
}

func (q *Queue) authorize(passphrase string) error {
	if subtle.ConstantTimeCompare([]byte(passphrase), []byte(q.passphrase)) != 1 {
		return &Rejection{Status: http.StatusForbidden, Gate: "passphrase", Reason: "Invalid passphrase."}
	}
	return nil
}

// Pull lists every pending record in key order. Entries that fail to parse
// are skipped: store corruption must not take the puller down.
func (q *Queue) Pull(ctx context.Context, passphrase string) ([]Item, error) {
	if err := q.authorize(passphrase); err != nil {
		return nil, err
	}
	if q.store == nil {
		return nil, errors.New("feedback store not configured")
	}

	keys, err := q.store.List(ctx, PendingPrefix)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(keys))
	for _, key := range keys {
		val, err := q.store.Get(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			// Expired or acked between List and Get.
			continue
		}
		if err != nil {
			return nil, err
		}
		var rec Record
		if err := json.Unmarshal([]byte(val), &rec); err != nil {
			log.Warn().Str("key", key).Msg("feedback: skipping unparseable record")
			continue
		}
		items = append(items, Item{Key: key, Record: rec})
	}
	return items, nil
}

// Acknowledge transitions each pending key to the acked namespace by
// copy-then-delete. The two writes are not atomic as a unit: a copy that
// lands without its delete leaves a duplicate, which the next pull surfaces
// and a repeat ack resolves. Keys outside pending:* and keys with no value
// are skipped, not errored. Returns exactly the keys that transitioned.
func (q *Queue) Acknowledge(ctx context.Context, passphrase string, keys []string) ([]string, error) {
	if err := q.authorize(passphrase); err != nil {
		return nil, err
	}
	if q.store == nil {
		return nil, errors.New("feedback store not configured")
	}

	acked := make([]string, 0, len(keys))
	for _, key := range keys {
		if !strings.HasPrefix(key, PendingPrefix) {
			continue
		}
		val, err := q.store.Get(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			// Already acked or expired: a repeat ack is a no-op.
			continue
		}
		if err != nil {
			return acked, err
		}

		ackedKey := AckedPrefix + strings.TrimPrefix(key, PendingPrefix)
		if err := q.store.Put(ctx, ackedKey, val, q.recordTTL); err != nil {
			log.Error().Err(err).Str("key", key).Msg("feedback: ack copy failed")
			continue
		}
		if err := q.store.Delete(ctx, key); err != nil {
			// Copy landed; the duplicate pending record is recoverable.
			log.Warn().Err(err).Str("key", key).Msg("feedback: ack delete failed, duplicate remains")
		}
		acked = append(acked, key)
	}
	return acked, nil
}
