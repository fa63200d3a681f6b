package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile holds the user-facing account details shown on the dashboard.
type Profile struct {
	UserID              uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	DisplayName         string    `gorm:"column:display_name;not null"`
	CompanyName         *string   `gorm:"column:company_name"`
	AvatarURL           *string   `gorm:"column:avatar_url"`
	OnboardingCompleted bool      `gorm:"column:onboarding_completed;not null;default:false"`
	CreatedAt           time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
