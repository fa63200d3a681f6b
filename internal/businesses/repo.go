package businesses

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/acari-app/acari-backend/internal/repo"
	"github.com/acari-app/acari-backend/pkg/db/models"
)

type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Business, error) {
	var rows []models.Business
	err := r.DB(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) FindForUser(ctx context.Context, userID, id uuid.UUID) (*models.Business, error) {
	var business models.Business
	err := r.DB(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&business).Error
	if err != nil {
		return nil, err
	}
	return &business, nil
}

func (r *Repository) Create(ctx context.Context, business *models.Business) error {
	return r.DB(ctx).Create(business).Error
}

func (r *Repository) Save(ctx context.Context, business *models.Business) error {
	return r.DB(ctx).Save(business).Error
}

func (r *Repository) Delete(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	return r.DeleteWhere(ctx, &models.Business{}, "id = ? AND user_id = ?", id, userID)
}
