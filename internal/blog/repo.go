package blog

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

// List pages published posts by published_at, or every post by created_at
// when drafts are included.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]models.BlogPost, error) {
	column := "published_at"
	query := r.DB(ctx).Model(&models.BlogPost{})
	if opts.includeDrafts {
		column = "created_at"
	} else {
		query = query.Where("published_at IS NOT NULL")
	}
	if opts.cursor != nil {
		query = query.Where("("+column+" < ?) OR ("+column+" = ? AND id < ?)", opts.cursor.CreatedAt, opts.cursor.CreatedAt, opts.cursor.ID)
	}
	var rows []models.BlogPost
	err := query.Order(column + " DESC").Order("id DESC").Limit(opts.limit).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) FindPublishedBySlug(ctx context.Context, slug string) (*models.BlogPost, error) {
	var post models.BlogPost
	err := r.DB(ctx).
		Where("slug = ? AND published_at IS NOT NULL", slug).
		First(&post).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.BlogPost, error) {
	var post models.BlogPost
	if err := r.DB(ctx).Where("id = ?", id).First(&post).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *Repository) Create(ctx context.Context, post *models.BlogPost) error {
	return r.DB(ctx).Create(post).Error
}

func (r *Repository) Save(ctx context.Context, post *models.BlogPost) error {
	return r.DB(ctx).Save(post).Error
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.DeleteWhere(ctx, &models.BlogPost{}, "id = ?", id)
}
