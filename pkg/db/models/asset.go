package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/acari-app/acari-backend/pkg/enums"
)

// Asset is a generated business artifact. Content holds the structured
// output; ObjectURLs points at rendered files in object storage.
type Asset struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID     uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	BusinessID *uuid.UUID      `gorm:"column:business_id;type:uuid"`
	Kind       enums.AssetKind `gorm:"column:kind;type:text;not null"`
	Title      string          `gorm:"column:title;not null"`
	Content    json.RawMessage `gorm:"column:content;type:jsonb"`
	ObjectURLs pq.StringArray  `gorm:"column:object_urls;type:text[]"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *Asset) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
