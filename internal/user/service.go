// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/pocketree/internal/auth"
	"github.com/carterperez-dev/pocketree/internal/core"
)

const defaultWitherAfter = 72 * time.Hour

type ServiceConfig struct {
	// MissionName is the mission a new account's first tree grows for.
	MissionName string
	WitherAfter time.Duration
	Clock       core.Clock
}

type Service struct {
	repo        Repository
	missionName string
	witherAfter time.Duration
	clock       core.Clock
}

func NewService(repo Repository, cfg ServiceConfig) *Service {
	if cfg.WitherAfter <= 0 {
		cfg.WitherAfter = defaultWitherAfter
	}
	if cfg.Clock == nil {
		cfg.Clock = core.SystemClock
	}
	return &Service{
		repo:        repo,
		missionName: cfg.MissionName,
		witherAfter: cfg.WitherAfter,
		clock:       cfg.Clock,
	}
}

// Profile is a user together with the state derived from it.
type Profile struct {
	User       *User
	IsWithered bool
}

func (s *Service) AccountByID(ctx context.Context, id string) (*auth.Account, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toAccount(user), nil
}

func (s *Service) AccountByEmail(ctx context.Context, email string) (*auth.Account, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return nil, err
	}
	return toAccount(user), nil
}

// OpenAccount registers a user. The user row, default settings and the
// first tree are written by one statement.
func (s *Service) OpenAccount(
	ctx context.Context,
	email, passwordHash, username string,
) (*auth.Account, error) {
	user := &User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(email),
		PasswordHash: passwordHash,
		Username:     username,
		Role:         RoleUser,
	}

	if err := s.repo.Create(ctx, user, s.missionName); err != nil {
		return nil, err
	}

	return toAccount(user), nil
}

func (s *Service) RecordLogin(ctx context.Context, userID string) error {
	return s.repo.TouchLastLogin(ctx, userID, s.clock())
}

func (s *Service) SetPassword(ctx context.Context, userID, passwordHash string) error {
	return s.repo.UpdatePassword(ctx, userID, passwordHash)
}

func (s *Service) BumpTokenVersion(ctx context.Context, userID string) error {
	return s.repo.IncrementTokenVersion(ctx, userID)
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	if userID == "" {
		return nil, fmt.Errorf("get profile: %w", core.ErrUnauthorized)
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Profile{
		User:       user,
		IsWithered: user.IsWithered(s.clock(), s.witherAfter),
	}, nil
}

func (s *Service) UpdateUser(
	ctx context.Context,
	id string,
	req UpdateUserRequest,
) (*User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Username != nil {
		user.Username = strings.TrimSpace(*req.Username)
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *Service) UpdateUserRole(
	ctx context.Context,
	id, role string,
) (*User, error) {
	if role != RoleUser && role != RoleAdmin {
		return nil, fmt.Errorf(
			"update role: invalid role %q: %w",
			role,
			core.ErrInvalidInput,
		)
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.Role = role

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	return s.repo.SoftDelete(ctx, id)
}

func (s *Service) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) GetSettings(ctx context.Context, userID string) (*Settings, error) {
	settings, err := s.repo.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	return settings, nil
}

func (s *Service) UpdateSettings(
	ctx context.Context,
	userID string,
	req SettingsRequest,
) (*Settings, error) {
	settings := &Settings{
		UserID:            userID,
		UseRecommendation: req.UseRecommendation,
		EmailNotification: req.EmailNotification,
		Theme:             req.Theme,
	}

	if err := s.repo.UpdateSettings(ctx, settings); err != nil {
		return nil, err
	}

	return settings, nil
}

func (s *Service) ListPreferences(
	ctx context.Context,
	userID string,
) ([]Preference, error) {
	return s.repo.ListPreferences(ctx, userID)
}

// ReplacePreferences swaps the whole preference list. Duplicate pairs are
// collapsed.
func (s *Service) ReplacePreferences(
	ctx context.Context,
	userID string,
	req PreferencesRequest,
) ([]Preference, error) {
	seen := make(map[Preference]struct{}, len(req.Preferences))
	prefs := make([]Preference, 0, len(req.Preferences))

	for _, p := range req.Preferences {
		pref := Preference{
			Category:   strings.TrimSpace(p.Category),
			Difficulty: p.Difficulty,
		}
		if _, dup := seen[pref]; dup {
			continue
		}
		seen[pref] = struct{}{}
		prefs = append(prefs, pref)
	}

	if err := s.repo.ReplacePreferences(ctx, userID, prefs); err != nil {
		return nil, err
	}

	return prefs, nil
}

func (s *Service) CanDeleteUser(
	ctx context.Context,
	requesterID, targetID string,
) error {
	if requesterID == targetID {
		return nil
	}

	requester, err := s.repo.GetByID(ctx, requesterID)
	if err != nil {
		return err
	}

	if !requester.IsAdmin() {
		return fmt.Errorf("delete user: %w", core.ErrForbidden)
	}

	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}

	if target.IsAdmin() {
		return fmt.Errorf("cannot delete admin users: %w", core.ErrForbidden)
	}

	return nil
}

func toAccount(u *User) *auth.Account {
	return &auth.Account{
		ID:           u.ID,
		Email:        u.Email,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		TokenVersion: u.TokenVersion,
		CreatedAt:    u.CreatedAt,
	}
}

var _ auth.Accounts = (*Service)(nil)
