package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/acari-app/acari-backend/pkg/enums"
)

type UserRole struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID      `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_user_roles_user_role"`
	Role      enums.UserRole `gorm:"column:role;type:text;not null;uniqueIndex:ux_user_roles_user_role"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (r *UserRole) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
