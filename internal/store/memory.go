package store

import (
	"context"
	"sync"
	"time"

	"blackout.chat/internal/models"
)

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

type MemoryStore struct {
	mu       sync.RWMutex
	messages map[string]*models.ProtectedMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string]*models.ProtectedMessage),
	}
}

func (s *MemoryStore) Create(ctx context.Context, msg *models.ProtectedMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[msg.Handle]; ok {
		return ErrDuplicate
	}

	cp := *msg
	s.messages[msg.Handle] = &cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, handle string) (*models.ProtectedMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[handle]
	if !ok || msg.Deleted {
		return nil, ErrNotFound
	}

	cp := *msg
	return &cp, nil
}

func (s *MemoryStore) IncrementAttempts(ctx context.Context, handle string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[handle]
	if !ok || msg.Deleted {
		return 0, ErrNotFound
	}

	msg.AttemptCount++
	return msg.AttemptCount, nil
}

func (s *MemoryStore) MarkRevealed(ctx context.Context, handle string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[handle]
	if !ok || msg.Deleted {
		return ErrNotFound
	}

	// First reveal wins; re-marking is a no-op.
	if msg.RevealedAt == nil {
		msg.RevealedAt = &at
	}
	return nil
}

func (s *MemoryStore) ListExpired(ctx context.Context, now time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var handles []string
	for handle, msg := range s.messages {
		if !msg.Deleted && msg.ExpiresAt.Before(now) {
			handles = append(handles, handle)
		}
	}
	return handles, nil
}

func (s *MemoryStore) MarkDeleted(ctx context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[handle]
	if !ok {
		return ErrNotFound
	}

	msg.Deleted = true
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = nil
	return nil
}
