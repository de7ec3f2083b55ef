package dto

import (
	"time"

	"github.com/wcag-monitor/internal/model"
)

type SignupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type NotificationsRequest struct {
	Email        *bool   `json:"email"`
	Frequency    *string `json:"frequency" binding:"omitempty,oneof=daily weekly"`
	AlertOnError *bool   `json:"alertOnError"`
}

type UpdateProfileRequest struct {
	Name          *string               `json:"name" binding:"omitempty,max=100"`
	Notifications *NotificationsRequest `json:"notifications"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
}

type NotificationsResponse struct {
	Email        bool   `json:"email"`
	Frequency    string `json:"frequency"`
	AlertOnError bool   `json:"alertOnError"`
}

// UserResponse never exposes the password hash.
type UserResponse struct {
	ID            uint                  `json:"id"`
	Email         string                `json:"email"`
	Name          string                `json:"name"`
	Plan          string                `json:"plan"`
	PaidURLCount  int                   `json:"paidUrlCount"`
	EmailVerified bool                  `json:"emailVerified"`
	Notifications NotificationsResponse `json:"notifications"`
	CreatedAt     time.Time             `json:"createdAt"`
}

func NewUserResponse(u *model.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Plan:          u.Plan,
		PaidURLCount:  u.PaidURLCount,
		EmailVerified: u.EmailVerified,
		Notifications: NotificationsResponse{
			Email:        u.Notifications.Email,
			Frequency:    u.Notifications.Frequency,
			AlertOnError: u.Notifications.AlertOnError,
		},
		CreatedAt: u.CreatedAt,
	}
}

type AuthResponse struct {
	User         *UserResponse `json:"user,omitempty"`
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
}
