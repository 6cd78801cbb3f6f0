// Package protect orchestrates the protected-message lifecycle: detection,
// staging, encrypted creation, challenge-gated reveal, and lockout.
package protect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"blackout.chat/config"
	"blackout.chat/internal/crypto"
	"blackout.chat/internal/detector"
	"blackout.chat/internal/models"
	"blackout.chat/internal/store"
)

var (
	// ErrSessionExpired means staged content is missing or already consumed.
	ErrSessionExpired = errors.New("staging session expired")
	// ErrLocked means reveal attempts are exhausted. Lockout is permanent;
	// no unlock path exists.
	ErrLocked = errors.New("message locked after too many attempts")
)

// Outcome is the result of a reveal attempt. A wrong answer is a normal
// negative outcome, not an error: Revealed is false and AttemptsLeft carries
// the remaining budget.
type Outcome struct {
	Revealed     bool
	Content      string
	AttemptsLeft int
}

// Status is reveal/lock/expiry metadata for a record, without its content.
type Status struct {
	Handle    string
	Locked    bool
	Revealed  bool
	Expired   bool
	ExpiresAt time.Time
}

type Engine struct {
	store       store.Store
	sessions    *sessionCache
	secret      string
	ttl         time.Duration
	maxAttempts int
	logger      *slog.Logger
	now         func() time.Time
}

func NewEngine(st store.Store, cfg *config.Config, logger *slog.Logger) *Engine {
	return &Engine{
		store:       st,
		sessions:    newSessionCache(),
		secret:      cfg.Crypto.Secret,
		ttl:         cfg.Protect.TTL,
		maxAttempts: cfg.Protect.MaxAttempts,
		logger:      logger,
		now:         time.Now,
	}
}

// Scan classifies produced content. A nil result means the text is clean and
// no protection flow applies. Logged text is always masked first.
func (e *Engine) Scan(text, originChannel, originSender string) *detector.Result {
	res := detector.Detect(text)
	if !res.Detected {
		return nil
	}

	e.logger.Info("sensitive content detected",
		"channel", originChannel,
		"sender", originSender,
		"categories", res.Categories,
		"text", detector.Mask(text))
	return &res
}

// Stage holds raw content pending the author's confirmation and returns the
// ephemeral session id referencing it.
func (e *Engine) Stage(text, originChannel, originSender string) string {
	return e.sessions.put(stagedContent{
		Text:          text,
		OriginChannel: originChannel,
		OriginSender:  originSender,
	})
}

// CreateProtected turns staged content into a persisted protected message:
// content encrypted, answer digested, fresh handle, TTL-based expiry. The
// staged content is discarded only after the record is stored.
func (e *Engine) CreateProtected(ctx context.Context, sessionID, question, answer string) (*models.ProtectedMessage, error) {
	staged, ok := e.sessions.get(sessionID)
	if !ok {
		return nil, ErrSessionExpired
	}

	envelope, err := crypto.Encrypt(staged.Text, e.secret)
	if err != nil {
		return nil, fmt.Errorf("encrypting content: %w", err)
	}

	now := e.now()
	msg := &models.ProtectedMessage{
		Handle:        crypto.GenerateHandle(),
		OriginChannel: staged.OriginChannel,
		OriginSender:  staged.OriginSender,
		CipherText:    envelope,
		Question:      question,
		AnswerDigest:  crypto.DigestAnswer(answer),
		CreatedAt:     now,
		ExpiresAt:     now.Add(e.ttl),
	}

	if err := e.store.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("storing protected message: %w", err)
	}
	e.sessions.remove(sessionID)

	e.logger.Info("protected message created",
		"handle", msg.Handle,
		"channel", msg.OriginChannel,
		"expires_at", msg.ExpiresAt)
	return msg, nil
}

// GetChallenge returns the question a viewer must answer to reveal the
// message behind handle.
func (e *Engine) GetChallenge(ctx context.Context, handle string) (string, error) {
	msg, err := e.store.Get(ctx, handle)
	if err != nil {
		return "", err
	}
	if msg.Locked(e.maxAttempts) {
		return "", ErrLocked
	}
	return msg.Question, nil
}

// SubmitAnswer validates a candidate answer against the record's digest.
// The lock check runs before any digest comparison so a correct answer
// arriving after lockout cannot be distinguished from any other locked
// attempt, and never unlocks the record.
func (e *Engine) SubmitAnswer(ctx context.Context, handle, candidate string) (*Outcome, error) {
	msg, err := e.store.Get(ctx, handle)
	if err != nil {
		return nil, err
	}
	if msg.Locked(e.maxAttempts) {
		return nil, ErrLocked
	}

	if !crypto.VerifyAnswer(candidate, msg.AnswerDigest) {
		count, err := e.store.IncrementAttempts(ctx, handle)
		if err != nil {
			return nil, fmt.Errorf("recording failed attempt: %w", err)
		}
		left := e.maxAttempts - count
		if left < 0 {
			left = 0
		}
		e.logger.Info("wrong answer", "handle", handle, "attempts_left", left)
		return &Outcome{AttemptsLeft: left}, nil
	}

	if err := e.store.MarkRevealed(ctx, handle, e.now()); err != nil {
		return nil, fmt.Errorf("marking revealed: %w", err)
	}

	content, err := crypto.Decrypt(msg.CipherText, e.secret)
	if err != nil {
		return nil, err
	}

	e.logger.Info("message revealed", "handle", handle)
	return &Outcome{Revealed: true, Content: content}, nil
}

// Status reports lifecycle metadata for a record without touching its
// content. Derived from the stored fields at call time.
func (e *Engine) Status(ctx context.Context, handle string) (*Status, error) {
	msg, err := e.store.Get(ctx, handle)
	if err != nil {
		return nil, err
	}
	return &Status{
		Handle:    msg.Handle,
		Locked:    msg.Locked(e.maxAttempts),
		Revealed:  msg.Revealed(),
		Expired:   msg.Expired(e.now()),
		ExpiresAt: msg.ExpiresAt,
	}, nil
}
