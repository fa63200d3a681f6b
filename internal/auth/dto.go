package auth

import (
	"github.com/acari-app/acari-backend/internal/users"
)

// RegisterRequest is the signup payload. SignupCode is required when signup
// codes are enforced.
type RegisterRequest struct {
	FirstName   string  `json:"first_name" validate:"required,max=80"`
	LastName    string  `json:"last_name" validate:"required,max=80"`
	Email       string  `json:"email" validate:"required,email"`
	Password    string  `json:"password" validate:"required,min=8,max=128"`
	CompanyName *string `json:"company_name,omitempty" validate:"omitempty,max=120"`
	SignupCode  string  `json:"signup_code,omitempty" validate:"omitempty,len=6,numeric"`
}

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest pairs the (possibly expired) access token with its refresh token.
type RefreshRequest struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenResponse is returned by register, login and refresh.
type TokenResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	ExpiresIn    int            `json:"expires_in"`
	User         *users.UserDTO `json:"user"`
}
