package blog

import (
	"time"

	"github.com/google/uuid"

	"github.com/acari-app/acari-backend/pkg/db/models"
	pkgpagination "github.com/acari-app/acari-backend/pkg/pagination"
)

type ListParams struct {
	IncludeDrafts bool
	pkgpagination.Params
}

type ListResult struct {
	Items      []PostDTO `json:"items"`
	NextCursor string    `json:"nextCursor,omitempty"`
}

type PostDTO struct {
	ID            uuid.UUID  `json:"id"`
	Slug          string     `json:"slug"`
	Title         string     `json:"title"`
	Excerpt       *string    `json:"excerpt,omitempty"`
	Body          string     `json:"body"`
	CoverImageURL *string    `json:"coverImageUrl,omitempty"`
	Tags          []string   `json:"tags"`
	AuthorID      uuid.UUID  `json:"authorId"`
	PublishedAt   *time.Time `json:"publishedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type CreateInput struct {
	Title         string   `json:"title" validate:"required,max=200"`
	Slug          string   `json:"slug" validate:"omitempty,max=80"`
	Excerpt       *string  `json:"excerpt" validate:"omitempty,max=500"`
	Body          string   `json:"body" validate:"required"`
	CoverImageURL *string  `json:"coverImageUrl" validate:"omitempty,url"`
	Tags          []string `json:"tags" validate:"max=10,dive,max=40"`
	Published     bool     `json:"published"`
}

type UpdateInput struct {
	Title         *string   `json:"title" validate:"omitempty,max=200"`
	Slug          *string   `json:"slug" validate:"omitempty,max=80"`
	Excerpt       *string   `json:"excerpt" validate:"omitempty,max=500"`
	Body          *string   `json:"body"`
	CoverImageURL *string   `json:"coverImageUrl" validate:"omitempty,url"`
	Tags          *[]string `json:"tags"`
	Published     *bool     `json:"published"`
}

type listQuery struct {
	includeDrafts bool
	limit         int
	cursor        *pkgpagination.Cursor
}

func FromModel(m models.BlogPost) PostDTO {
	tags := []string(m.Tags)
	if tags == nil {
		tags = []string{}
	}
	return PostDTO{
		ID:            m.ID,
		Slug:          m.Slug,
		Title:         m.Title,
		Excerpt:       m.Excerpt,
		Body:          m.Body,
		CoverImageURL: m.CoverImageURL,
		Tags:          tags,
		AuthorID:      m.AuthorID,
		PublishedAt:   m.PublishedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// cursorOf pages published listings by publish time and drafts by creation.
func cursorOf(includeDrafts bool) func(models.BlogPost) pkgpagination.Cursor {
	return func(m models.BlogPost) pkgpagination.Cursor {
		if !includeDrafts && m.PublishedAt != nil {
			return pkgpagination.Cursor{CreatedAt: *m.PublishedAt, ID: m.ID}
		}
		return pkgpagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	}
}
