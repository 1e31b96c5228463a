// AngelaMos | 2026
// dto.go

package auth

import "time"

type RegisterRequest struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Username string `json:"username" validate:"required,min=1,max=50"`
}

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=128"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required,max=128"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken" validate:"omitempty,max=128"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required,max=128"`
	NewPassword     string `json:"newPassword"     validate:"required,min=8,max=128,nefield=CurrentPassword"`
}

type AccountResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Grant is what a successful sign-in or refresh hands back.
type Grant struct {
	User                  AccountResponse `json:"user"`
	TokenType             string          `json:"tokenType"`
	AccessToken           string          `json:"accessToken"`
	AccessTokenExpiresAt  time.Time       `json:"accessTokenExpiresAt"`
	RefreshToken          string          `json:"refreshToken"`
	RefreshTokenExpiresAt time.Time       `json:"refreshTokenExpiresAt"`
}
