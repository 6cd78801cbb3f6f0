package store

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"time"

	"blackout.chat/internal/models"
	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

const redisKeyPrefix = "blackout:"

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(options *redis.Options) (*RedisStore, error) {
	client := redis.NewClient(options)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Create(ctx context.Context, msg *models.ProtectedMessage) error {
	data, err := encodeMessage(msg)
	if err != nil {
		return err
	}

	// No redis TTL: expiry is the sweeper's job and deleted records stay
	// visible to it as tombstones. Physical purge is out of scope.
	ok, err := r.client.SetNX(ctx, messageKey(msg.Handle), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrDuplicate
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, handle string) (*models.ProtectedMessage, error) {
	data, err := r.client.Get(ctx, messageKey(handle)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	msg, err := decodeMessage(data)
	if err != nil {
		return nil, err
	}
	if msg.Deleted {
		return nil, ErrNotFound
	}
	return msg, nil
}

func (r *RedisStore) IncrementAttempts(ctx context.Context, handle string) (int, error) {
	var newCount int
	err := r.update(ctx, handle, func(msg *models.ProtectedMessage) error {
		msg.AttemptCount++
		newCount = msg.AttemptCount
		return nil
	})
	if err != nil {
		return 0, err
	}
	return newCount, nil
}

func (r *RedisStore) MarkRevealed(ctx context.Context, handle string, at time.Time) error {
	return r.update(ctx, handle, func(msg *models.ProtectedMessage) error {
		if msg.RevealedAt == nil {
			msg.RevealedAt = &at
		}
		return nil
	})
}

func (r *RedisStore) ListExpired(ctx context.Context, now time.Time) ([]string, error) {
	var handles []string

	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := r.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		msg, err := decodeMessage(data)
		if err != nil {
			return nil, err
		}
		if !msg.Deleted && msg.ExpiresAt.Before(now) {
			handles = append(handles, msg.Handle)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return handles, nil
}

func (r *RedisStore) MarkDeleted(ctx context.Context, handle string) error {
	err := r.updateAny(ctx, handle, func(msg *models.ProtectedMessage) error {
		msg.Deleted = true
		return nil
	})
	return err
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// update applies fn to a non-deleted record inside a WATCH transaction:
// read, mutate, write back atomically, retrying on contention.
func (r *RedisStore) update(ctx context.Context, handle string, fn func(*models.ProtectedMessage) error) error {
	return r.watchUpdate(ctx, handle, false, fn)
}

// updateAny is update without the soft-delete filter; the sweeper uses it so
// re-marking an already-deleted record stays a no-op.
func (r *RedisStore) updateAny(ctx context.Context, handle string, fn func(*models.ProtectedMessage) error) error {
	return r.watchUpdate(ctx, handle, true, fn)
}

func (r *RedisStore) watchUpdate(ctx context.Context, handle string, includeDeleted bool, fn func(*models.ProtectedMessage) error) error {
	key := messageKey(handle)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}

		msg, err := decodeMessage(data)
		if err != nil {
			return err
		}
		if msg.Deleted && !includeDeleted {
			return ErrNotFound
		}

		if err := fn(msg); err != nil {
			return err
		}

		newData, err := encodeMessage(msg)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newData, redis.KeepTTL)
			return nil
		})
		return err
	}

	for i := 0; i < 3; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}

	return redis.TxFailedErr
}

// Helpers

func messageKey(handle string) string {
	return redisKeyPrefix + handle
}

func encodeMessage(msg *models.ProtectedMessage) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeMessage(data []byte) (*models.ProtectedMessage, error) {
	var msg models.ProtectedMessage
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
