// AngelaMos | 2026
// session.go

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/pocketree/internal/core"
)

// Session is one issued refresh token, stored only as its hash. A session
// is spent the moment it is rotated.
type Session struct {
	TokenHash string     `db:"token_hash"`
	UserID    string     `db:"user_id"`
	IssuedAt  time.Time  `db:"issued_at"`
	ExpiresAt time.Time  `db:"expires_at"`
	RotatedAt *time.Time `db:"rotated_at"`
	RevokedAt *time.Time `db:"revoked_at"`
}

type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	// Rotate spends a live session and returns it. ErrNotFound means the
	// hash is unknown, already spent, revoked or expired.
	Rotate(ctx context.Context, tokenHash string, at time.Time) (*Session, error)
	Lookup(ctx context.Context, tokenHash string) (*Session, error)
	Revoke(ctx context.Context, tokenHash, userID string, at time.Time) error
	RevokeUser(ctx context.Context, userID string, at time.Time) error
	Purge(ctx context.Context, before time.Time) (int64, error)
}

type sessionStore struct {
	db core.DBTX
}

func NewSessionStore(db core.DBTX) SessionStore {
	return &sessionStore{db: db}
}

const sessionColumns = `token_hash, user_id, issued_at, expires_at, rotated_at, revoked_at`

func (s *sessionStore) Create(ctx context.Context, sess *Session) error {
	query := `
		INSERT INTO refresh_tokens (token_hash, user_id, issued_at, expires_at)
		VALUES ($1, $2, $3, $4)`

	_, err := s.db.ExecContext(ctx, query,
		sess.TokenHash, sess.UserID, sess.IssuedAt, sess.ExpiresAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	return nil
}

func (s *sessionStore) Rotate(
	ctx context.Context,
	tokenHash string,
	at time.Time,
) (*Session, error) {
	query := `
		UPDATE refresh_tokens
		SET rotated_at = $2
		WHERE token_hash = $1
		  AND rotated_at IS NULL
		  AND revoked_at IS NULL
		  AND expires_at > $2
		RETURNING ` + sessionColumns

	var sess Session
	err := s.db.GetContext(ctx, &sess, query, tokenHash, at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rotate session: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("rotate session: %w", err)
	}

	return &sess, nil
}

func (s *sessionStore) Lookup(ctx context.Context, tokenHash string) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM refresh_tokens WHERE token_hash = $1`

	var sess Session
	err := s.db.GetContext(ctx, &sess, query, tokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lookup session: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}

	return &sess, nil
}

func (s *sessionStore) Revoke(
	ctx context.Context,
	tokenHash, userID string,
	at time.Time,
) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $3
		WHERE token_hash = $1 AND user_id = $2 AND revoked_at IS NULL`

	if _, err := s.db.ExecContext(ctx, query, tokenHash, userID, at); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	return nil
}

func (s *sessionStore) RevokeUser(ctx context.Context, userID string, at time.Time) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $2
		WHERE user_id = $1 AND revoked_at IS NULL`

	if _, err := s.db.ExecContext(ctx, query, userID, at); err != nil {
		return fmt.Errorf("revoke user sessions: %w", err)
	}

	return nil
}

func (s *sessionStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM refresh_tokens WHERE expires_at < $1`

	result, err := s.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}

	return result.RowsAffected()
}
