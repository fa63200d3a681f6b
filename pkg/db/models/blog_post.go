package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type BlogPost struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Slug          string         `gorm:"column:slug;not null;uniqueIndex:ux_blog_posts_slug"`
	Title         string         `gorm:"column:title;not null"`
	Excerpt       *string        `gorm:"column:excerpt"`
	Body          string         `gorm:"column:body;not null"`
	CoverImageURL *string        `gorm:"column:cover_image_url"`
	Tags          pq.StringArray `gorm:"column:tags;type:text[]"`
	AuthorID      uuid.UUID      `gorm:"column:author_id;type:uuid;not null"`
	PublishedAt   *time.Time     `gorm:"column:published_at"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *BlogPost) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
