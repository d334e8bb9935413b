package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiworkshop/edge-gateway/internal/store"
)

func newTestQueue(t *testing.T) (*Queue, store.Store) {
	t.Helper()
	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("miniredis unavailable: %v", err)
	}
	t.Cleanup(srv.Close)

	s, err := store.NewRedisStore("redis://" + srv.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return NewQueue(s, testPassphrase, time.Hour), s
}

func seedRecord(t *testing.T, s store.Store, id string) Record {
	t.Helper()
	rec := NewRecord(id, "seeded feedback message", "general", "", false, time.Now())
	payload, err := json.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), PendingPrefix+id, string(payload), time.Hour))
	return rec
}

func TestPullRequiresPassphrase(t *testing.T) {
	q, _ := newTestQueue(t)
	_, err := q.Pull(context.Background(), "wrong")
	var rej *Rejection
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, 403, rej.Status)
}

func TestPullOrderedItems(t *testing.T) {
	q, s := newTestQueue(t)
	ctx := context.Background()

	seedRecord(t, s, "fb20250601bbb")
	seedRecord(t, s, "fb20250601aaa")

	items, err := q.Pull(ctx, testPassphrase)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, PendingPrefix+"fb20250601aaa", items[0].Key)
	assert.Equal(t, PendingPrefix+"fb20250601bbb", items[1].Key)
	assert.Equal(t, "open", items[0].Record.Status)
}

func TestPullSkipsCorruptRecords(t *testing.T) {
	q, s := newTestQueue(t)
	ctx := context.Background()

	seedRecord(t, s, "fb20250601aaa")
	require.NoError(t, s.Put(ctx, PendingPrefix+"fb20250601zzz", "{not json", time.Hour))

	items, err := q.Pull(ctx, testPassphrase)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "fb20250601aaa", items[0].Record.ID)
}

func TestAcknowledgeTransition(t *testing.T) {
	q, s := newTestQueue(t)
	ctx := context.Background()

	seedRecord(t, s, "fb20250601aaa")
	key := PendingPrefix + "fb20250601aaa"

	acked, err := q.Acknowledge(ctx, testPassphrase, []string{key})
	require.NoError(t, err)
	assert.Equal(t, []string{key}, acked)

	// Record copied verbatim to acked:, pending key gone.
	val, err := s.Get(ctx, AckedPrefix+"fb20250601aaa")
	require.NoError(t, err)
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(val), &rec))
	assert.Equal(t, "fb20250601aaa", rec.ID)

	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Second pull no longer lists it.
	items, err := q.Pull(ctx, testPassphrase)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestAcknowledgeSkipsForeignAndMissingKeys(t *testing.T) {
	q, s := newTestQueue(t)
	ctx := context.Background()

	seedRecord(t, s, "fb20250601aaa")

	acked, err := q.Acknowledge(ctx, testPassphrase, []string{
		AckedPrefix + "fb20250601aaa", // outside pending:, ignored
		PendingPrefix + "fbmissing",   // no value, skipped
		PendingPrefix + "fb20250601aaa",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{PendingPrefix + "fb20250601aaa"}, acked)
}

func TestAcknowledgeRepeatIsNoOp(t *testing.T) {
	q, s := newTestQueue(t)
	ctx := context.Background()

	seedRecord(t, s, "fb20250601aaa")
	key := PendingPrefix + "fb20250601aaa"

	first, err := q.Acknowledge(ctx, testPassphrase, []string{key})
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := q.Acknowledge(ctx, testPassphrase, []string{key})
	require.NoError(t, err)
	assert.Empty(t, second)
}
