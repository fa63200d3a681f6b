package businesses

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/acari-app/acari-backend/pkg/db"
	"github.com/acari-app/acari-backend/pkg/db/models"
	pkgerrors "github.com/acari-app/acari-backend/pkg/errors"
	"github.com/acari-app/acari-backend/pkg/logger"
	"github.com/acari-app/acari-backend/pkg/slug"
)

// maxSlugAttempts bounds suffix retries after a derived slug collides.
const maxSlugAttempts = 4

type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]BusinessDTO, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*BusinessDTO, error)
	Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*BusinessDTO, error)
	Update(ctx context.Context, userID, id uuid.UUID, input UpdateInput) (*BusinessDTO, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type ServiceParams struct {
	Repo   *Repository
	Logger *logger.Logger
}

type service struct {
	repo       *Repository
	logg       *logger.Logger
	withSuffix func(string) (string, error)
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("business repository required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &service{repo: params.Repo, logg: params.Logger, withSuffix: slug.WithSuffix}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]BusinessDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	rows, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list businesses")
	}
	out := make([]BusinessDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, userID, id uuid.UUID) (*BusinessDTO, error) {
	business, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	dto := FromModel(*business)
	return &dto, nil
}

func (s *service) load(ctx context.Context, userID, id uuid.UUID) (*models.Business, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	business, err := s.repo.FindForUser(ctx, userID, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "business not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load business")
	}
	return business, nil
}

// Create derives the slug from the name when none is given and retries
// with a random suffix while it collides. An explicit slug that collides
// is a conflict.
func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*BusinessDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}

	explicit := strings.TrimSpace(input.Slug)
	base := explicit
	if base == "" {
		base = slug.Make(name)
		if base == "" {
			base = "business"
		}
	} else if !slug.Valid(base) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug must be lowercase letters, digits and hyphens")
	}

	business := &models.Business{
		UserID:      userID,
		Name:        name,
		Slug:        base,
		Industry:    trimmed(input.Industry),
		Description: trimmed(input.Description),
		Website:     trimmed(input.Website),
	}
	for attempt := 1; ; attempt++ {
		err := s.repo.Create(ctx, business)
		if err == nil {
			break
		}
		if !db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create business")
		}
		if explicit != "" || attempt >= maxSlugAttempts {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a business with this slug already exists").
				WithDetails(map[string]any{"slug": business.Slug})
		}
		next, suffixErr := s.withSuffix(base)
		if suffixErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, suffixErr, "generate slug suffix")
		}
		business.ID = uuid.Nil
		business.Slug = next
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"business_id": business.ID.String(),
		"slug":        business.Slug,
	}), "businesses.created")
	dto := FromModel(*business)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, userID, id uuid.UUID, input UpdateInput) (*BusinessDTO, error) {
	business, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
		}
		business.Name = name
	}
	if input.Slug != nil {
		value := strings.TrimSpace(*input.Slug)
		if !slug.Valid(value) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug must be lowercase letters, digits and hyphens")
		}
		business.Slug = value
	}
	if input.Industry != nil {
		business.Industry = trimmed(input.Industry)
	}
	if input.Description != nil {
		business.Description = trimmed(input.Description)
	}
	if input.Website != nil {
		business.Website = trimmed(input.Website)
	}
	if err := s.repo.Save(ctx, business); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a business with this slug already exists").
				WithDetails(map[string]any{"slug": business.Slug})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update business")
	}
	dto := FromModel(*business)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	deleted, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete business")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "business not found")
	}
	return nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	out := strings.TrimSpace(*v)
	if out == "" {
		return nil
	}
	return &out
}
