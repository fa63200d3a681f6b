package assets

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/acari-app/acari-backend/pkg/db/models"
	"github.com/acari-app/acari-backend/pkg/enums"
	pkgpagination "github.com/acari-app/acari-backend/pkg/pagination"
)

type ListParams struct {
	UserID uuid.UUID
	Kind   *enums.AssetKind
	pkgpagination.Params
}

type ListResult struct {
	Items      []AssetDTO `json:"items"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

type AssetDTO struct {
	ID         uuid.UUID       `json:"id"`
	BusinessID *uuid.UUID      `json:"businessId,omitempty"`
	Kind       enums.AssetKind `json:"kind"`
	Title      string          `json:"title"`
	Content    json.RawMessage `json:"content,omitempty"`
	ObjectURLs []string        `json:"objectUrls,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

type listQuery struct {
	userID uuid.UUID
	kind   *enums.AssetKind
	limit  int
	cursor *pkgpagination.Cursor
}

func FromModel(m models.Asset) AssetDTO {
	return AssetDTO{
		ID:         m.ID,
		BusinessID: m.BusinessID,
		Kind:       m.Kind,
		Title:      m.Title,
		Content:    m.Content,
		ObjectURLs: []string(m.ObjectURLs),
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}
