package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Template is a downloadable document sold in the marketplace.
type Template struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Slug        string          `gorm:"column:slug;not null;uniqueIndex:ux_templates_slug"`
	Title       string          `gorm:"column:title;not null"`
	Category    string          `gorm:"column:category;not null;default:'general'"`
	Description *string         `gorm:"column:description"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null;default:0"`
	FileURL     *string         `gorm:"column:file_url"`
	Published   bool            `gorm:"column:published;not null;default:false"`
	CreatedBy   *uuid.UUID      `gorm:"column:created_by;type:uuid"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (t *Template) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}
