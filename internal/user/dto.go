// AngelaMos | 2026
// dto.go

package user

import (
	"time"

	"github.com/carterperez-dev/pocketree/internal/progression"
)

type UpdateUserRequest struct {
	Username *string `json:"username,omitempty" validate:"omitempty,min=1,max=50"`
}

type UpdateUserRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

type SettingsRequest struct {
	UseRecommendation bool   `json:"useRecommendation"`
	EmailNotification bool   `json:"emailNotification"`
	Theme             string `json:"theme"             validate:"required,oneof=light dark"`
}

type PreferenceRequest struct {
	Category   string `json:"category"   validate:"required,min=1,max=50"`
	Difficulty string `json:"difficulty" validate:"required,oneof=Easy Normal Hard"`
}

type PreferencesRequest struct {
	Preferences []PreferenceRequest `json:"preferences" validate:"max=20,dive"`
}

type ProfileResponse struct {
	ID                      string     `json:"id"`
	Username                string     `json:"username"`
	Email                   string     `json:"email"`
	Role                    string     `json:"role"`
	TotalCoins              int        `json:"totalCoins"`
	Level                   int        `json:"level"`
	LevelName               string     `json:"levelName"`
	IsWithered              bool       `json:"isWithered"`
	FailedVerificationCount int        `json:"failedVerificationCount"`
	UncompletedTaskCount    int        `json:"uncompletedTaskCount"`
	NotAttemptedTaskCount   int        `json:"notAttemptedTaskCount"`
	LastLoginAt             *time.Time `json:"lastLoginAt"`
	LastActivityAt          *time.Time `json:"lastActivityAt"`
	CreatedAt               time.Time  `json:"createdAt"`
}

type UserResponse struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	Role         string    `json:"role"`
	TotalCoins   int       `json:"totalCoins"`
	CurrentLevel int       `json:"level"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type SettingsResponse struct {
	UseRecommendation bool   `json:"useRecommendation"`
	EmailNotification bool   `json:"emailNotification"`
	Theme             string `json:"theme"`
}

type PreferenceResponse struct {
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
}

type ListUsersParams struct {
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Search   string `json:"search"`
	Role     string `json:"role"`
}

func (p *ListUsersParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListUsersParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func ToProfileResponse(p *Profile) ProfileResponse {
	u := p.User
	return ProfileResponse{
		ID:                      u.ID,
		Username:                u.Username,
		Email:                   u.Email,
		Role:                    u.Role,
		TotalCoins:              u.TotalCoins,
		Level:                   u.CurrentLevel,
		LevelName:               progression.LevelFor(u.CurrentLevel).Name,
		IsWithered:              p.IsWithered,
		FailedVerificationCount: u.FailedVerificationCount,
		UncompletedTaskCount:    u.UncompletedTaskCount,
		NotAttemptedTaskCount:   u.NotAttemptedTaskCount,
		LastLoginAt:             u.LastLoginAt,
		LastActivityAt:          u.LastActivityAt,
		CreatedAt:               u.CreatedAt,
	}
}

func ToUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Email:        u.Email,
		Username:     u.Username,
		Role:         u.Role,
		TotalCoins:   u.TotalCoins,
		CurrentLevel: u.CurrentLevel,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func ToUserResponseList(users []User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, ToUserResponse(&users[i]))
	}
	return responses
}

func ToSettingsResponse(s *Settings) SettingsResponse {
	return SettingsResponse{
		UseRecommendation: s.UseRecommendation,
		EmailNotification: s.EmailNotification,
		Theme:             s.Theme,
	}
}

func ToPreferenceResponses(prefs []Preference) []PreferenceResponse {
	out := make([]PreferenceResponse, 0, len(prefs))
	for _, p := range prefs {
		out = append(out, PreferenceResponse{
			Category:   p.Category,
			Difficulty: p.Difficulty,
		})
	}
	return out
}
