package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"blackout.chat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMessage(handle string, expiresAt time.Time) *models.ProtectedMessage {
	now := time.Now()
	return &models.ProtectedMessage{
		Handle:        handle,
		OriginChannel: "chan-1",
		OriginSender:  "user-1",
		CipherText:    "00112233445566778899aabbccddeeff:deadbeefdeadbeefdeadbeefdeadbeef",
		Question:      "favorite color?",
		AnswerDigest:  "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		CreatedAt:     now,
		ExpiresAt:     expiresAt,
	}
}

// testStore runs the contract battery every Store implementation must pass.
func testStore(t *testing.T, st Store) {
	ctx := context.Background()
	future := time.Now().Add(15 * time.Minute)

	t.Run("create and get", func(t *testing.T) {
		msg := newMessage("pro_create", future)
		require.NoError(t, st.Create(ctx, msg))

		got, err := st.Get(ctx, "pro_create")
		require.NoError(t, err)
		assert.Equal(t, msg.Handle, got.Handle)
		assert.Equal(t, msg.OriginChannel, got.OriginChannel)
		assert.Equal(t, msg.OriginSender, got.OriginSender)
		assert.Equal(t, msg.CipherText, got.CipherText)
		assert.Equal(t, msg.Question, got.Question)
		assert.Equal(t, msg.AnswerDigest, got.AnswerDigest)
		assert.Equal(t, 0, got.AttemptCount)
		assert.Nil(t, got.RevealedAt)
	})

	t.Run("create duplicate handle", func(t *testing.T) {
		msg := newMessage("pro_dup", future)
		require.NoError(t, st.Create(ctx, msg))
		assert.ErrorIs(t, st.Create(ctx, newMessage("pro_dup", future)), ErrDuplicate)
	})

	t.Run("get unknown handle", func(t *testing.T) {
		_, err := st.Get(ctx, "pro_missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("increment attempts", func(t *testing.T) {
		require.NoError(t, st.Create(ctx, newMessage("pro_attempts", future)))

		n, err := st.IncrementAttempts(ctx, "pro_attempts")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = st.IncrementAttempts(ctx, "pro_attempts")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		got, err := st.Get(ctx, "pro_attempts")
		require.NoError(t, err)
		assert.Equal(t, 2, got.AttemptCount)
	})

	t.Run("increment attempts unknown handle", func(t *testing.T) {
		_, err := st.IncrementAttempts(ctx, "pro_missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("mark revealed keeps first timestamp", func(t *testing.T) {
		require.NoError(t, st.Create(ctx, newMessage("pro_reveal", future)))

		first := time.Now().Add(-time.Minute).Truncate(time.Millisecond)
		require.NoError(t, st.MarkRevealed(ctx, "pro_reveal", first))

		// Second mark is a no-op, not an error.
		require.NoError(t, st.MarkRevealed(ctx, "pro_reveal", time.Now()))

		got, err := st.Get(ctx, "pro_reveal")
		require.NoError(t, err)
		require.NotNil(t, got.RevealedAt)
		assert.Equal(t, first.UnixMilli(), got.RevealedAt.UnixMilli())
	})

	t.Run("mark revealed unknown handle", func(t *testing.T) {
		assert.ErrorIs(t, st.MarkRevealed(ctx, "pro_missing", time.Now()), ErrNotFound)
	})

	t.Run("soft delete hides record", func(t *testing.T) {
		require.NoError(t, st.Create(ctx, newMessage("pro_delete", future)))
		require.NoError(t, st.MarkDeleted(ctx, "pro_delete"))

		_, err := st.Get(ctx, "pro_delete")
		assert.ErrorIs(t, err, ErrNotFound)

		// Re-marking an already-deleted record is a no-op.
		assert.NoError(t, st.MarkDeleted(ctx, "pro_delete"))
	})

	t.Run("list expired", func(t *testing.T) {
		past := time.Now().Add(-time.Minute)
		require.NoError(t, st.Create(ctx, newMessage("pro_expired", past)))
		require.NoError(t, st.Create(ctx, newMessage("pro_expired_deleted", past)))
		require.NoError(t, st.MarkDeleted(ctx, "pro_expired_deleted"))
		require.NoError(t, st.Create(ctx, newMessage("pro_fresh", future)))

		handles, err := st.ListExpired(ctx, time.Now())
		require.NoError(t, err)
		assert.Contains(t, handles, "pro_expired")
		assert.NotContains(t, handles, "pro_expired_deleted")
		assert.NotContains(t, handles, "pro_fresh")
	})

	t.Run("expired but unswept record is still fetchable", func(t *testing.T) {
		past := time.Now().Add(-time.Minute)
		require.NoError(t, st.Create(ctx, newMessage("pro_past_ttl", past)))

		got, err := st.Get(ctx, "pro_past_ttl")
		require.NoError(t, err)
		assert.True(t, got.Expired(time.Now()))
	})
}

func TestMemoryStore(t *testing.T) {
	st := NewMemoryStore()
	defer st.Close()
	testStore(t, st)
}

func TestSQLiteStore(t *testing.T) {
	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "blackout.db"))
	require.NoError(t, err)
	defer st.Close()
	testStore(t, st)
}
