package templates

import (
	"context"
	"strings"

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

func (r *Repository) scoped(ctx context.Context, opts listQuery) *gorm.DB {
	query := r.DB(ctx).Model(&models.Template{})
	if !opts.includeDrafts {
		query = query.Where("published = ?", true)
	}
	if opts.category != "" {
		query = query.Where("category = ?", opts.category)
	}
	if opts.query != "" {
		like := "%" + strings.ToLower(opts.query) + "%"
		query = query.Where("(LOWER(title) LIKE ? OR LOWER(COALESCE(description, '')) LIKE ?)", like, like)
	}
	return query
}

// List returns one page of templates newest first, plus the total match count.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]models.Template, int64, error) {
	var total int64
	if err := r.scoped(ctx, opts).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Template
	err := r.scoped(ctx, opts).
		Order("created_at DESC").Order("id DESC").
		Offset(opts.offset).Limit(opts.limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *Repository) FindBySlug(ctx context.Context, slug string, publishedOnly bool) (*models.Template, error) {
	query := r.DB(ctx).Where("slug = ?", slug)
	if publishedOnly {
		query = query.Where("published = ?", true)
	}
	var tpl models.Template
	if err := query.First(&tpl).Error; err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Template, error) {
	var tpl models.Template
	if err := r.DB(ctx).Where("id = ?", id).First(&tpl).Error; err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *Repository) Create(ctx context.Context, tpl *models.Template) error {
	return r.DB(ctx).Create(tpl).Error
}

func (r *Repository) Save(ctx context.Context, tpl *models.Template) error {
	return r.DB(ctx).Save(tpl).Error
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.DeleteWhere(ctx, &models.Template{}, "id = ?", id)
}
