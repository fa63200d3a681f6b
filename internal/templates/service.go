package templates

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/acari-app/acari-backend/pkg/db"
	"github.com/acari-app/acari-backend/pkg/db/models"
	pkgerrors "github.com/acari-app/acari-backend/pkg/errors"
	"github.com/acari-app/acari-backend/pkg/logger"
	pkgpagination "github.com/acari-app/acari-backend/pkg/pagination"
	"github.com/acari-app/acari-backend/pkg/slug"
)

const defaultCategory = "general"

// Service serves the public template marketplace and its admin surface.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	GetPublished(ctx context.Context, slug string) (*TemplateDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*TemplateDTO, error)
	Create(ctx context.Context, actorID uuid.UUID, input CreateInput) (*TemplateDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*TemplateDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Import(ctx context.Context, actorID uuid.UUID, r io.Reader) (*ImportResult, error)
}

type ServiceParams struct {
	Repo   *Repository
	Logger *logger.Logger
}

type service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("template repository required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &service{repo: params.Repo, logg: params.Logger}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	page := pkgpagination.NewPage(params.Page, params.PageSize)
	rows, total, err := s.repo.List(ctx, listQuery{
		category:      strings.ToLower(strings.TrimSpace(params.Category)),
		query:         strings.TrimSpace(params.Query),
		includeDrafts: params.IncludeDrafts,
		offset:        page.Offset(),
		limit:         page.Limit(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list templates")
	}
	items := make([]TemplateDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, FromModel(row))
	}
	return &ListResult{Items: items, Meta: page.Meta(total)}, nil
}

func (s *service) GetPublished(ctx context.Context, value string) (*TemplateDTO, error) {
	tpl, err := s.repo.FindBySlug(ctx, strings.ToLower(strings.TrimSpace(value)), true)
	return s.found(tpl, err)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*TemplateDTO, error) {
	tpl, err := s.repo.FindByID(ctx, id)
	return s.found(tpl, err)
}

func (s *service) found(tpl *models.Template, err error) (*TemplateDTO, error) {
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "template not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load template")
	}
	dto := FromModel(*tpl)
	return &dto, nil
}

func (s *service) Create(ctx context.Context, actorID uuid.UUID, input CreateInput) (*TemplateDTO, error) {
	tpl, err := buildTemplate(input)
	if err != nil {
		return nil, err
	}
	if actorID != uuid.Nil {
		tpl.CreatedBy = &actorID
	}
	if err := s.insert(ctx, tpl); err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(ctx, "template_slug", tpl.Slug), "templates.created")
	dto := FromModel(*tpl)
	return &dto, nil
}

func (s *service) insert(ctx context.Context, tpl *models.Template) error {
	if err := s.repo.Create(ctx, tpl); err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.New(pkgerrors.CodeConflict, "a template with this slug already exists").
				WithDetails(map[string]any{"slug": tpl.Slug})
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create template")
	}
	return nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*TemplateDTO, error) {
	tpl, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "template not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load template")
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
		}
		tpl.Title = title
	}
	if input.Slug != nil {
		value := strings.TrimSpace(*input.Slug)
		if !slug.Valid(value) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug must be lowercase letters, digits and hyphens")
		}
		tpl.Slug = value
	}
	if input.Category != nil {
		tpl.Category = normalizeCategory(*input.Category)
	}
	if input.Description != nil {
		tpl.Description = optionalString(*input.Description)
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be zero or greater")
		}
		tpl.Price = input.Price.Round(2)
	}
	if input.FileURL != nil {
		tpl.FileURL = optionalString(*input.FileURL)
	}
	if input.Published != nil {
		tpl.Published = *input.Published
	}

	if err := s.repo.Save(ctx, tpl); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a template with this slug already exists").
				WithDetails(map[string]any{"slug": tpl.Slug})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update template")
	}
	dto := FromModel(*tpl)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete template")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "template not found")
	}
	return nil
}

// buildTemplate validates input and derives the slug when none is given.
func buildTemplate(input CreateInput) (*models.Template, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	value := strings.TrimSpace(input.Slug)
	if value == "" {
		value = slug.Make(title)
		if value == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title must contain letters or digits")
		}
	} else if !slug.Valid(value) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug must be lowercase letters, digits and hyphens")
	}
	price := decimal.Zero
	if input.Price != nil {
		if input.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be zero or greater")
		}
		price = input.Price.Round(2)
	}
	tpl := &models.Template{
		Slug:      value,
		Title:     title,
		Category:  normalizeCategory(input.Category),
		Price:     price,
		Published: input.Published,
	}
	if input.Description != nil {
		tpl.Description = optionalString(*input.Description)
	}
	if input.FileURL != nil {
		tpl.FileURL = optionalString(*input.FileURL)
	}
	return tpl, nil
}

func normalizeCategory(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return defaultCategory
	}
	return v
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
