package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"blackout.chat/internal/models"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

var _ Store = (*SQLiteStore)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS blackout_messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	handle TEXT UNIQUE NOT NULL,
	origin_channel TEXT NOT NULL,
	origin_sender TEXT NOT NULL,
	cipher_text TEXT NOT NULL,
	question TEXT NOT NULL,
	answer_digest TEXT NOT NULL,
	attempt_count INTEGER NOT NULL DEFAULT 0,
	revealed_at INTEGER,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL,
	is_deleted INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_blackout_expiry ON blackout_messages (expires_at, is_deleted);
`

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Create(ctx context.Context, msg *models.ProtectedMessage) error {
	var revealedAt sql.NullInt64
	if msg.RevealedAt != nil {
		revealedAt = sql.NullInt64{Int64: msg.RevealedAt.UnixMilli(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blackout_messages
		 (handle, origin_channel, origin_sender, cipher_text, question, answer_digest,
		  attempt_count, revealed_at, created_at, expires_at, is_deleted)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.Handle, msg.OriginChannel, msg.OriginSender, msg.CipherText, msg.Question,
		msg.AnswerDigest, msg.AttemptCount, revealedAt,
		msg.CreatedAt.UnixMilli(), msg.ExpiresAt.UnixMilli(), boolToInt(msg.Deleted))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, handle string) (*models.ProtectedMessage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT handle, origin_channel, origin_sender, cipher_text, question, answer_digest,
		        attempt_count, revealed_at, created_at, expires_at
		 FROM blackout_messages
		 WHERE handle = ? AND is_deleted = 0`, handle)

	var msg models.ProtectedMessage
	var revealedAt sql.NullInt64
	var createdAt, expiresAt int64
	err := row.Scan(&msg.Handle, &msg.OriginChannel, &msg.OriginSender, &msg.CipherText,
		&msg.Question, &msg.AnswerDigest, &msg.AttemptCount, &revealedAt, &createdAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning message: %w", err)
	}

	if revealedAt.Valid {
		t := time.UnixMilli(revealedAt.Int64)
		msg.RevealedAt = &t
	}
	msg.CreatedAt = time.UnixMilli(createdAt)
	msg.ExpiresAt = time.UnixMilli(expiresAt)
	return &msg, nil
}

func (s *SQLiteStore) IncrementAttempts(ctx context.Context, handle string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE blackout_messages
		 SET attempt_count = attempt_count + 1
		 WHERE handle = ? AND is_deleted = 0`, handle)
	if err != nil {
		return 0, fmt.Errorf("incrementing attempts: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, fmt.Errorf("incrementing attempts: %w", err)
	} else if n == 0 {
		return 0, ErrNotFound
	}

	var count int
	err = s.db.QueryRowContext(ctx,
		`SELECT attempt_count FROM blackout_messages WHERE handle = ?`, handle).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("reading attempt count: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) MarkRevealed(ctx context.Context, handle string, at time.Time) error {
	// revealed_at IS NULL keeps the first reveal timestamp.
	res, err := s.db.ExecContext(ctx,
		`UPDATE blackout_messages
		 SET revealed_at = ?
		 WHERE handle = ? AND is_deleted = 0 AND revealed_at IS NULL`,
		at.UnixMilli(), handle)
	if err != nil {
		return fmt.Errorf("marking revealed: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("marking revealed: %w", err)
	} else if n > 0 {
		return nil
	}

	// No row updated: either already revealed (a no-op) or missing.
	var exists int
	err = s.db.QueryRowContext(ctx,
		`SELECT 1 FROM blackout_messages WHERE handle = ? AND is_deleted = 0`, handle).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *SQLiteStore) ListExpired(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT handle FROM blackout_messages WHERE expires_at < ? AND is_deleted = 0`,
		now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("listing expired messages: %w", err)
	}
	defer rows.Close()

	var handles []string
	for rows.Next() {
		var handle string
		if err := rows.Scan(&handle); err != nil {
			return nil, fmt.Errorf("scanning handle: %w", err)
		}
		handles = append(handles, handle)
	}
	return handles, rows.Err()
}

func (s *SQLiteStore) MarkDeleted(ctx context.Context, handle string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE blackout_messages SET is_deleted = 1 WHERE handle = ?`, handle)
	if err != nil {
		return fmt.Errorf("marking deleted: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("marking deleted: %w", err)
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
