package store

import (
	"context"
	"errors"
	"time"

	"blackout.chat/internal/models"
)

var (
	ErrNotFound  = errors.New("protected message not found")
	ErrDuplicate = errors.New("handle already exists")
)

// Store persists protected-message records. Get excludes soft-deleted
// records; flag mutations are idempotent at the record level. ListExpired
// returns handles only so sweeps never hold message content.
type Store interface {
	Create(ctx context.Context, msg *models.ProtectedMessage) error
	Get(ctx context.Context, handle string) (*models.ProtectedMessage, error)
	IncrementAttempts(ctx context.Context, handle string) (newCount int, err error)
	MarkRevealed(ctx context.Context, handle string, at time.Time) error
	ListExpired(ctx context.Context, now time.Time) ([]string, error)
	MarkDeleted(ctx context.Context, handle string) error
	Close() error
}
