// AngelaMos | 2026
// users.go

package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/carterperez-dev/pocketree/internal/core"
	"github.com/carterperez-dev/pocketree/internal/user"
)

type userRepo struct {
	v view
}

func (st *state) activeUser(id string) (user.User, bool) {
	u, ok := st.users[id]
	if !ok || u.IsDeleted() {
		return user.User{}, false
	}
	return u, true
}

func (r userRepo) mutate(
	op, id string,
	fn func(u *user.User),
) error {
	return r.v.do(op, func(st *state) error {
		u, ok := st.activeUser(id)
		if !ok {
			return fmt.Errorf("%s: %w", op, core.ErrNotFound)
		}
		fn(&u)
		st.users[id] = u
		return nil
	})
}

func (r userRepo) Create(
	_ context.Context,
	u *user.User,
	missionName string,
) error {
	return r.v.do("users.Create", func(st *state) error {
		if _, exists := st.users[u.ID]; exists {
			return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
		}
		for _, other := range st.users {
			if !other.IsDeleted() && other.Email == u.Email {
				return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
			}
		}

		at := now()
		u.CreatedAt = at
		u.UpdatedAt = at
		u.TotalCoins = 0
		u.CurrentLevel = 1
		u.TokenVersion = 0

		st.users[u.ID] = *u
		st.settings[u.ID] = user.DefaultSettings(u.ID)
		st.plantUserTree(u.ID, missionName, at)
		return nil
	})
}

func (r userRepo) get(op, id string) (*user.User, error) {
	var out user.User
	err := r.v.do(op, func(st *state) error {
		u, ok := st.activeUser(id)
		if !ok {
			return fmt.Errorf("%s: %w", op, core.ErrNotFound)
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r userRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	return r.get("users.GetByID", id)
}

func (r userRepo) GetForUpdate(
	_ context.Context,
	id string,
) (*user.User, error) {
	return r.get("users.GetForUpdate", id)
}

func (r userRepo) GetByEmail(
	_ context.Context,
	email string,
) (*user.User, error) {
	var out user.User
	err := r.v.do("users.GetByEmail", func(st *state) error {
		for _, u := range st.users {
			if !u.IsDeleted() && u.Email == email {
				out = u
				return nil
			}
		}
		return fmt.Errorf("get user by email: %w", core.ErrNotFound)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r userRepo) Update(_ context.Context, u *user.User) error {
	return r.mutate("users.Update", u.ID, func(stored *user.User) {
		stored.Username = u.Username
		stored.Role = u.Role
		stored.UpdatedAt = now()
		u.UpdatedAt = stored.UpdatedAt
	})
}

func (r userRepo) UpdateProgress(
	_ context.Context,
	id string,
	totalCoins, level int,
	activityAt time.Time,
) error {
	return r.mutate("users.UpdateProgress", id, func(u *user.User) {
		u.TotalCoins = totalCoins
		u.CurrentLevel = max(u.CurrentLevel, level)
		u.LastActivityAt = &activityAt
		u.UpdatedAt = now()
	})
}

func (r userRepo) IncrementFailedVerifications(
	_ context.Context,
	id string,
) error {
	return r.mutate("users.IncrementFailedVerifications", id, func(u *user.User) {
		u.FailedVerificationCount++
	})
}

func (r userRepo) AdjustTaskCounters(
	_ context.Context,
	id string,
	uncompletedDelta, notAttemptedDelta int,
) error {
	return r.mutate("users.AdjustTaskCounters", id, func(u *user.User) {
		u.UncompletedTaskCount = max(u.UncompletedTaskCount+uncompletedDelta, 0)
		u.NotAttemptedTaskCount += notAttemptedDelta
	})
}

func (r userRepo) TouchLastLogin(
	_ context.Context,
	id string,
	at time.Time,
) error {
	return r.mutate("users.TouchLastLogin", id, func(u *user.User) {
		u.LastLoginAt = &at
	})
}

func (r userRepo) UpdatePassword(
	_ context.Context,
	id, passwordHash string,
) error {
	return r.mutate("users.UpdatePassword", id, func(u *user.User) {
		u.PasswordHash = passwordHash
	})
}

func (r userRepo) IncrementTokenVersion(_ context.Context, id string) error {
	return r.mutate("users.IncrementTokenVersion", id, func(u *user.User) {
		u.TokenVersion++
	})
}

func (r userRepo) SoftDelete(_ context.Context, id string) error {
	return r.mutate("users.SoftDelete", id, func(u *user.User) {
		at := now()
		u.DeletedAt = &at
	})
}

func (r userRepo) List(
	_ context.Context,
	params user.ListUsersParams,
) ([]user.User, int, error) {
	params.Normalize()

	var matched []user.User
	err := r.v.do("users.List", func(st *state) error {
		search := strings.ToLower(params.Search)
		for _, u := range st.users {
			if u.IsDeleted() {
				continue
			}
			if params.Role != "" && u.Role != params.Role {
				continue
			}
			if search != "" &&
				!strings.Contains(strings.ToLower(u.Email), search) &&
				!strings.Contains(strings.ToLower(u.Username), search) {
				continue
			}
			matched = append(matched, u)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	slices.SortFunc(matched, func(a, b user.User) int {
		return cmp.Or(
			cmp.Compare(b.TotalCoins, a.TotalCoins),
			a.CreatedAt.Compare(b.CreatedAt),
		)
	})

	total := len(matched)
	start := min(params.Offset(), total)
	end := min(start+params.PageSize, total)

	return matched[start:end], total, nil
}

func (r userRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	var exists bool
	err := r.v.do("users.ExistsByEmail", func(st *state) error {
		for _, u := range st.users {
			if !u.IsDeleted() && u.Email == email {
				exists = true
				break
			}
		}
		return nil
	})
	return exists, err
}

func (r userRepo) GetSettings(
	_ context.Context,
	userID string,
) (*user.Settings, error) {
	var out user.Settings
	err := r.v.do("users.GetSettings", func(st *state) error {
		s, ok := st.settings[userID]
		if !ok {
			return fmt.Errorf("get settings: %w", core.ErrNotFound)
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r userRepo) UpdateSettings(
	_ context.Context,
	settings *user.Settings,
) error {
	return r.v.do("users.UpdateSettings", func(st *state) error {
		st.settings[settings.UserID] = *settings
		return nil
	})
}

func (r userRepo) ListPreferences(
	_ context.Context,
	userID string,
) ([]user.Preference, error) {
	var out []user.Preference
	err := r.v.do("users.ListPreferences", func(st *state) error {
		out = slices.Clone(st.prefs[userID])
		return nil
	})
	return out, err
}

func (r userRepo) ReplacePreferences(
	_ context.Context,
	userID string,
	prefs []user.Preference,
) error {
	return r.v.do("users.ReplacePreferences", func(st *state) error {
		st.prefs[userID] = slices.Clone(prefs)
		return nil
	})
}
