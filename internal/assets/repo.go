package assets

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/acari-app/acari-backend/internal/repo"
	"github.com/acari-app/acari-backend/pkg/db/models"
)

// Repository exposes asset persistence operations.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{Base: repo.NewBase(tx)}
}

func (r *Repository) Create(ctx context.Context, asset *models.Asset) error {
	return r.DB(ctx).Create(asset).Error
}

// FindForUser returns gorm.ErrRecordNotFound when the asset does not belong
// to the user.
func (r *Repository) FindForUser(ctx context.Context, userID, id uuid.UUID) (*models.Asset, error) {
	var asset models.Asset
	err := r.DB(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&asset).Error
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

// List returns user-scoped assets newest first using cursor pagination.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]models.Asset, error) {
	query := r.DB(ctx).Model(&models.Asset{}).Where("user_id = ?", opts.userID)
	if opts.kind != nil {
		query = query.Where("kind = ?", *opts.kind)
	}
	if opts.cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", opts.cursor.CreatedAt, opts.cursor.CreatedAt, opts.cursor.ID)
	}
	query = query.Order("created_at DESC").Order("id DESC").Limit(opts.limit)

	var rows []models.Asset
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) Delete(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	return r.DeleteWhere(ctx, &models.Asset{}, "id = ? AND user_id = ?", id, userID)
}
