package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"blackout.chat/internal/models"
	"blackout.chat/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seed(t *testing.T, st store.Store, handle string, expiresAt time.Time) {
	t.Helper()
	require.NoError(t, st.Create(context.Background(), &models.ProtectedMessage{
		Handle:        handle,
		OriginChannel: "chan-1",
		OriginSender:  "user-1",
		CipherText:    "00:11",
		Question:      "q",
		AnswerDigest:  "d",
		CreatedAt:     time.Now(),
		ExpiresAt:     expiresAt,
	}))
}

func TestSweepRetiresExpiredRecords(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()
	ctx := context.Background()

	seed(t, st, "pro_expired", time.Now().Add(-time.Minute))
	seed(t, st, "pro_fresh", time.Now().Add(15*time.Minute))

	s := New(st, time.Minute, discardLogger())
	s.Sweep(ctx)

	_, err := st.Get(ctx, "pro_expired")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.Get(ctx, "pro_fresh")
	assert.NoError(t, err)
}

func TestSweepDeletesLockedRecordsWithoutUnlocking(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()
	ctx := context.Background()

	seed(t, st, "pro_locked", time.Now().Add(-time.Minute))
	for i := 0; i < 3; i++ {
		_, err := st.IncrementAttempts(ctx, "pro_locked")
		require.NoError(t, err)
	}

	New(st, time.Minute, discardLogger()).Sweep(ctx)

	// Locked and expired compose: the record is gone, not reset.
	_, err := st.Get(ctx, "pro_locked")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// failingStore wraps a Store and fails MarkDeleted for one handle.
type failingStore struct {
	store.Store
	failHandle string
}

func (f *failingStore) MarkDeleted(ctx context.Context, handle string) error {
	if handle == f.failHandle {
		return errors.New("simulated store failure")
	}
	return f.Store.MarkDeleted(ctx, handle)
}

func TestSweepSkipsFailingRecord(t *testing.T) {
	mem := store.NewMemoryStore()
	defer mem.Close()
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	seed(t, mem, "pro_bad", past)
	seed(t, mem, "pro_good_a", past)
	seed(t, mem, "pro_good_b", past)

	s := New(&failingStore{Store: mem, failHandle: "pro_bad"}, time.Minute, discardLogger())
	s.Sweep(ctx)

	// The failing record does not stall the rest of the sweep.
	_, err := mem.Get(ctx, "pro_good_a")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = mem.Get(ctx, "pro_good_b")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = mem.Get(ctx, "pro_bad")
	assert.NoError(t, err, "failed record survives until a later sweep")
}

func TestStartStopLifecycle(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()

	s := New(st, 10*time.Millisecond, discardLogger())

	// Stop before Start is safe.
	s.Stop()

	s.Start()
	s.Start() // second Start is a no-op

	seed(t, st, "pro_expired", time.Now().Add(-time.Minute))
	assert.Eventually(t, func() bool {
		_, err := st.Get(context.Background(), "pro_expired")
		return errors.Is(err, store.ErrNotFound)
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop() // double Stop is safe
}
