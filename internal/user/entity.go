// AngelaMos | 2026
// entity.go

package user

import (
	"time"
)

type User struct {
	ID                      string     `db:"id"`
	Email                   string     `db:"email"`
	PasswordHash            string     `db:"password_hash"`
	Username                string     `db:"username"`
	Role                    string     `db:"role"`
	TotalCoins              int        `db:"total_coins"`
	CurrentLevel            int        `db:"current_level"`
	LastLoginAt             *time.Time `db:"last_login_at"`
	LastActivityAt          *time.Time `db:"last_activity_at"`
	FailedVerificationCount int        `db:"failed_verification_count"`
	UncompletedTaskCount    int        `db:"uncompleted_task_count"`
	NotAttemptedTaskCount   int        `db:"not_attempted_task_count"`
	TokenVersion            int        `db:"token_version"`
	CreatedAt               time.Time  `db:"created_at"`
	UpdatedAt               time.Time  `db:"updated_at"`
	DeletedAt               *time.Time `db:"deleted_at"`
}

func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// LastSeen is the later of the last login and the last completed task.
// Accounts with neither age from their creation time.
func (u *User) LastSeen() time.Time {
	seen := u.CreatedAt
	for _, at := range []*time.Time{u.LastLoginAt, u.LastActivityAt} {
		if at != nil && at.After(seen) {
			seen = *at
		}
	}
	return seen
}

// IsWithered reports whether the user has been away longer than after.
func (u *User) IsWithered(now time.Time, after time.Duration) bool {
	return u.LastSeen().Before(now.Add(-after))
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

type Settings struct {
	UserID            string `db:"user_id"`
	UseRecommendation bool   `db:"use_recommendation"`
	EmailNotification bool   `db:"email_notification"`
	Theme             string `db:"theme"`
}

func DefaultSettings(userID string) Settings {
	return Settings{
		UserID:            userID,
		UseRecommendation: false,
		EmailNotification: true,
		Theme:             ThemeLight,
	}
}

// Preference is one (category, difficulty) pair handed to the recommender.
type Preference struct {
	Category   string `db:"category"   json:"category"`
	Difficulty string `db:"difficulty" json:"difficulty"`
}
