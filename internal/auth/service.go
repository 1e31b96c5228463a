// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/carterperez-dev/pocketree/internal/core"
	"github.com/carterperez-dev/pocketree/internal/middleware"
)

const (
	refreshTokenBytes = 32

	// Spent and expired sessions are kept this long so a late replay is
	// still recognised as one.
	sessionRetention = 24 * time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrSessionReplayed    = errors.New("refresh token replayed")
)

// Account is the slice of a user that sign-in needs.
type Account struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	Role         string
	TokenVersion int
	CreatedAt    time.Time
}

type Accounts interface {
	AccountByEmail(ctx context.Context, email string) (*Account, error)
	AccountByID(ctx context.Context, id string) (*Account, error)
	// OpenAccount creates the user together with its settings and first
	// tree.
	OpenAccount(ctx context.Context, email, passwordHash, username string) (*Account, error)
	RecordLogin(ctx context.Context, userID string) error
	SetPassword(ctx context.Context, userID, passwordHash string) error
	BumpTokenVersion(ctx context.Context, userID string) error
}

type ServiceConfig struct {
	RefreshTTL time.Duration
	Clock      core.Clock
	Logger     *slog.Logger
}

type Service struct {
	sessions   SessionStore
	signer     *Signer
	accounts   Accounts
	denied     Denylist
	refreshTTL time.Duration
	clock      core.Clock
	logger     *slog.Logger
}

func NewService(
	sessions SessionStore,
	signer *Signer,
	accounts Accounts,
	denied Denylist,
	cfg ServiceConfig,
) *Service {
	if cfg.Clock == nil {
		cfg.Clock = core.SystemClock
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		sessions:   sessions,
		signer:     signer,
		accounts:   accounts,
		denied:     denied,
		refreshTTL: cfg.RefreshTTL,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
	}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Grant, error) {
	hash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	acct, err := s.accounts.OpenAccount(ctx, req.Email, hash, req.Username)
	if errors.Is(err, core.ErrDuplicateKey) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("open account: %w", err)
	}

	return s.grant(ctx, acct)
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*Grant, error) {
	acct, err := s.accounts.AccountByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("find account: %w", err)
	}

	var stored *string
	if acct != nil {
		stored = &acct.PasswordHash
	}

	ok, err := core.VerifyPasswordTimingSafe(req.Password, stored)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok || acct == nil {
		return nil, ErrInvalidCredentials
	}

	s.recordLogin(ctx, acct.ID)
	return s.grant(ctx, acct)
}

// Refresh spends a refresh token and issues a new pair. Presenting a token
// that was already spent revokes every session of its owner.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Grant, error) {
	hash := core.HashToken(refreshToken)
	now := s.clock()

	sess, err := s.sessions.Rotate(ctx, hash, now)
	if errors.Is(err, core.ErrNotFound) {
		return nil, s.refuseRefresh(ctx, hash, now)
	}
	if err != nil {
		return nil, err
	}

	acct, err := s.accounts.AccountByID(ctx, sess.UserID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}

	s.recordLogin(ctx, acct.ID)
	return s.grant(ctx, acct)
}

func (s *Service) refuseRefresh(ctx context.Context, hash string, now time.Time) error {
	sess, err := s.sessions.Lookup(ctx, hash)
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
	}
	if err != nil {
		return err
	}

	switch {
	case sess.RevokedAt != nil:
		return fmt.Errorf("refresh: %w", core.ErrTokenRevoked)
	case sess.RotatedAt != nil:
		s.logger.Warn("refresh token replayed, revoking sessions", "user_id", sess.UserID)
		if err := s.signOutEverywhere(ctx, sess.UserID, now); err != nil {
			return err
		}
		return fmt.Errorf("refresh: %w: %w", ErrSessionReplayed, core.ErrTokenRevoked)
	default:
		return fmt.Errorf("refresh: %w", core.ErrTokenExpired)
	}
}

// Logout ends the caller's session and denies the access token it used for
// the rest of that token's life. A refresh token owned by someone else is
// ignored.
func (s *Service) Logout(ctx context.Context, p *middleware.Principal, refreshToken string) error {
	now := s.clock()

	if refreshToken != "" {
		if err := s.sessions.Revoke(ctx, core.HashToken(refreshToken), p.UserID, now); err != nil {
			return err
		}
	}

	if p.TokenID != "" {
		if err := s.denied.Deny(ctx, p.TokenID, p.ExpiresAt.Sub(now)); err != nil {
			s.logger.Warn("access token not denylisted", "user_id", p.UserID, "error", err)
		}
	}

	return nil
}

func (s *Service) ChangePassword(
	ctx context.Context,
	userID string,
	req ChangePasswordRequest,
) error {
	acct, err := s.accounts.AccountByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("find account: %w", err)
	}

	ok, err := core.VerifyPassword(req.CurrentPassword, acct.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return ErrInvalidCredentials
	}

	hash, err := core.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.accounts.SetPassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("set password: %w", err)
	}

	return s.signOutEverywhere(ctx, userID, s.clock())
}

// VerifyAccessToken accepts a token only while it is unexpired, not
// denylisted, and minted at the account's current token version. An
// unreachable denylist is skipped rather than locking everyone out.
func (s *Service) VerifyAccessToken(ctx context.Context, token string) (*middleware.Principal, error) {
	p, err := s.signer.Verify(token)
	if err != nil {
		return nil, err
	}

	if p.TokenID != "" {
		denied, err := s.denied.Denied(ctx, p.TokenID)
		switch {
		case err != nil:
			s.logger.Warn("denylist unavailable", "error", err)
		case denied:
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
		}
	}

	acct, err := s.accounts.AccountByID(ctx, p.UserID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}

	if p.TokenVersion < acct.TokenVersion {
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
	}

	p.Role = acct.Role
	return p, nil
}

// PurgeExpired drops sessions that expired more than a day ago.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.sessions.Purge(ctx, s.clock().Add(-sessionRetention))
}

func (s *Service) signOutEverywhere(ctx context.Context, userID string, now time.Time) error {
	if err := s.sessions.RevokeUser(ctx, userID, now); err != nil {
		return err
	}
	if err := s.accounts.BumpTokenVersion(ctx, userID); err != nil {
		return fmt.Errorf("bump token version: %w", err)
	}
	return nil
}

// recordLogin stamps lastLoginAt, which keeps the user's tree from
// withering. A failed stamp does not block sign-in.
func (s *Service) recordLogin(ctx context.Context, userID string) {
	if err := s.accounts.RecordLogin(ctx, userID); err != nil {
		s.logger.Warn("login time not recorded", "user_id", userID, "error", err)
	}
}

func (s *Service) grant(ctx context.Context, acct *Account) (*Grant, error) {
	access, accessExpires, err := s.signer.Sign(acct)
	if err != nil {
		return nil, err
	}

	refresh, err := core.GenerateSecureToken(refreshTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	now := s.clock()
	sess := &Session{
		TokenHash: core.HashToken(refresh),
		UserID:    acct.ID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.refreshTTL),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}

	return &Grant{
		User: AccountResponse{
			ID:        acct.ID,
			Email:     acct.Email,
			Username:  acct.Username,
			Role:      acct.Role,
			CreatedAt: acct.CreatedAt,
		},
		TokenType:             "Bearer",
		AccessToken:           access,
		AccessTokenExpiresAt:  accessExpires,
		RefreshToken:          refresh,
		RefreshTokenExpiresAt: sess.ExpiresAt,
	}, nil
}

var _ middleware.TokenVerifier = (*Service)(nil)
