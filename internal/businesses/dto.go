package businesses

import (
	"time"

	"github.com/google/uuid"

	"github.com/acari-app/acari-backend/pkg/db/models"
)

type BusinessDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Industry    *string   `json:"industry,omitempty"`
	Description *string   `json:"description,omitempty"`
	Website     *string   `json:"website,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type CreateInput struct {
	Name        string  `json:"name" validate:"required,max=120"`
	Slug        string  `json:"slug" validate:"omitempty,max=80"`
	Industry    *string `json:"industry" validate:"omitempty,max=80"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Website     *string `json:"website" validate:"omitempty,url"`
}

type UpdateInput struct {
	Name        *string `json:"name" validate:"omitempty,max=120"`
	Slug        *string `json:"slug" validate:"omitempty,max=80"`
	Industry    *string `json:"industry" validate:"omitempty,max=80"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Website     *string `json:"website" validate:"omitempty,url"`
}

func FromModel(m models.Business) BusinessDTO {
	return BusinessDTO{
		ID:          m.ID,
		Name:        m.Name,
		Slug:        m.Slug,
		Industry:    m.Industry,
		Description: m.Description,
		Website:     m.Website,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
