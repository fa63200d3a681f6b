package templates

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/acari-app/acari-backend/pkg/db/models"
	pkgpagination "github.com/acari-app/acari-backend/pkg/pagination"
)

type ListParams struct {
	Page          int
	PageSize      int
	Category      string
	Query         string
	IncludeDrafts bool
}

type ListResult struct {
	Items []TemplateDTO          `json:"items"`
	Meta  pkgpagination.PageMeta `json:"meta"`
}

type TemplateDTO struct {
	ID          uuid.UUID       `json:"id"`
	Slug        string          `json:"slug"`
	Title       string          `json:"title"`
	Category    string          `json:"category"`
	Description *string         `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	FileURL     *string         `json:"fileUrl,omitempty"`
	Published   bool            `json:"published"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type CreateInput struct {
	Title       string           `json:"title" validate:"required,max=200"`
	Slug        string           `json:"slug" validate:"omitempty,max=80"`
	Category    string           `json:"category" validate:"omitempty,max=60"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	FileURL     *string          `json:"fileUrl" validate:"omitempty,url"`
	Published   bool             `json:"published"`
}

// UpdateInput applies only the fields that are set.
type UpdateInput struct {
	Title       *string          `json:"title" validate:"omitempty,max=200"`
	Slug        *string          `json:"slug" validate:"omitempty,max=80"`
	Category    *string          `json:"category" validate:"omitempty,max=60"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	FileURL     *string          `json:"fileUrl" validate:"omitempty,url"`
	Published   *bool            `json:"published"`
}

type ImportError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

type ImportResult struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

type listQuery struct {
	category      string
	query         string
	includeDrafts bool
	offset        int
	limit         int
}

func FromModel(m models.Template) TemplateDTO {
	return TemplateDTO{
		ID:          m.ID,
		Slug:        m.Slug,
		Title:       m.Title,
		Category:    m.Category,
		Description: m.Description,
		Price:       m.Price,
		FileURL:     m.FileURL,
		Published:   m.Published,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
