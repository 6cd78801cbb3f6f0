package models

import "time"

// ProtectedMessage is a flagged chat message held encrypted at rest until a
// viewer answers its challenge question or the sweeper retires it.
type ProtectedMessage struct {
	Handle        string     `json:"handle"`
	OriginChannel string     `json:"origin_channel"`
	OriginSender  string     `json:"origin_sender"`
	CipherText    string     `json:"-"` // hex(iv):hex(ciphertext)
	Question      string     `json:"question"`
	AnswerDigest  string     `json:"-"`
	AttemptCount  int        `json:"attempt_count"`
	RevealedAt    *time.Time `json:"revealed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	Deleted       bool       `json:"-"`
}

// Locked reports whether reveal attempts are exhausted. Lock state is derived,
// never stored.
func (m *ProtectedMessage) Locked(maxAttempts int) bool {
	return m.AttemptCount >= maxAttempts
}

// Expired reports whether the record is past its TTL. An expired record stays
// fetchable until the sweeper marks it deleted.
func (m *ProtectedMessage) Expired(now time.Time) bool {
	return m.ExpiresAt.Before(now)
}

// Revealed reports whether a correct answer has been submitted at least once.
func (m *ProtectedMessage) Revealed() bool {
	return m.RevealedAt != nil
}
