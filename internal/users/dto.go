package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/acari-app/acari-backend/pkg/db/models"
	"github.com/acari-app/acari-backend/pkg/enums"
)

// UserDTO is the transport shape that omits credentials.
type UserDTO struct {
	ID          uuid.UUID        `json:"id"`
	Email       string           `json:"email"`
	FirstName   string           `json:"first_name"`
	LastName    string           `json:"last_name"`
	DisplayName string           `json:"display_name,omitempty"`
	IsActive    bool             `json:"is_active"`
	Roles       []enums.UserRole `json:"roles"`
	LastLoginAt *time.Time       `json:"last_login_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// CreateUserDTO holds what the repo needs to persist a user and profile.
type CreateUserDTO struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	CompanyName  *string
}

func FromModel(u *models.User, profile *models.Profile, roles []enums.UserRole) *UserDTO {
	if u == nil {
		return nil
	}
	dto := &UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		IsActive:    u.IsActive,
		Roles:       append([]enums.UserRole{}, roles...),
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
	if profile != nil {
		dto.DisplayName = profile.DisplayName
	}
	return dto
}

func (c CreateUserDTO) toModels() (*models.User, *models.Profile) {
	user := &models.User{
		Email:        NormalizeEmail(c.Email),
		PasswordHash: c.PasswordHash,
		FirstName:    strings.TrimSpace(c.FirstName),
		LastName:     strings.TrimSpace(c.LastName),
		IsActive:     true,
	}
	profile := &models.Profile{
		DisplayName: user.FullName(),
		CompanyName: c.CompanyName,
	}
	return user, profile
}

// NormalizeEmail lowercases and trims so lookups match the unique index.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
