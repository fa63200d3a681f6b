package blog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/acari-app/acari-backend/pkg/db"
	"github.com/acari-app/acari-backend/pkg/db/models"
	pkgerrors "github.com/acari-app/acari-backend/pkg/errors"
	"github.com/acari-app/acari-backend/pkg/logger"
	pkgpagination "github.com/acari-app/acari-backend/pkg/pagination"
	"github.com/acari-app/acari-backend/pkg/slug"
)

type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	GetPublished(ctx context.Context, slug string) (*PostDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*PostDTO, error)
	Create(ctx context.Context, authorID uuid.UUID, input CreateInput) (*PostDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*PostDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type ServiceParams struct {
	Repo   *Repository
	Logger *logger.Logger
}

type service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("blog repository required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &service{repo: params.Repo, logg: params.Logger, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	cursor, err := pkgpagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, listQuery{
		includeDrafts: params.IncludeDrafts,
		limit:         pkgpagination.LimitWithBuffer(params.Limit),
		cursor:        cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list posts")
	}
	page, next := pkgpagination.Trim(rows, params.Limit, cursorOf(params.IncludeDrafts))
	items := make([]PostDTO, 0, len(page))
	for _, row := range page {
		items = append(items, FromModel(row))
	}
	return &ListResult{Items: items, NextCursor: next}, nil
}

func (s *service) GetPublished(ctx context.Context, value string) (*PostDTO, error) {
	post, err := s.repo.FindPublishedBySlug(ctx, strings.ToLower(strings.TrimSpace(value)))
	return found(post, err)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*PostDTO, error) {
	post, err := s.repo.FindByID(ctx, id)
	return found(post, err)
}

func found(post *models.BlogPost, err error) (*PostDTO, error) {
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "post not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load post")
	}
	dto := FromModel(*post)
	return &dto, nil
}

func (s *service) Create(ctx context.Context, authorID uuid.UUID, input CreateInput) (*PostDTO, error) {
	if authorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" || strings.TrimSpace(input.Body) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title and body are required")
	}
	value, err := resolveSlug(input.Slug, title)
	if err != nil {
		return nil, err
	}
	post := &models.BlogPost{
		Slug:          value,
		Title:         title,
		Excerpt:       trimmed(input.Excerpt),
		Body:          input.Body,
		CoverImageURL: trimmed(input.CoverImageURL),
		Tags:          pq.StringArray(normalizeTags(input.Tags)),
		AuthorID:      authorID,
	}
	if input.Published {
		now := s.now()
		post.PublishedAt = &now
	}
	if err := s.repo.Create(ctx, post); err != nil {
		return nil, mapWriteError(err, post.Slug, "create post")
	}
	s.logg.Info(s.logg.WithField(ctx, "post_slug", post.Slug), "blog.post_created")
	dto := FromModel(*post)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*PostDTO, error) {
	post, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "post not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load post")
	}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
		}
		post.Title = title
	}
	if input.Slug != nil {
		value := strings.TrimSpace(*input.Slug)
		if !slug.Valid(value) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug must be lowercase letters, digits and hyphens")
		}
		post.Slug = value
	}
	if input.Excerpt != nil {
		post.Excerpt = trimmed(input.Excerpt)
	}
	if input.Body != nil {
		if strings.TrimSpace(*input.Body) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "body is required")
		}
		post.Body = *input.Body
	}
	if input.CoverImageURL != nil {
		post.CoverImageURL = trimmed(input.CoverImageURL)
	}
	if input.Tags != nil {
		post.Tags = pq.StringArray(normalizeTags(*input.Tags))
	}
	if input.Published != nil {
		switch {
		case *input.Published && post.PublishedAt == nil:
			now := s.now()
			post.PublishedAt = &now
		case !*input.Published:
			post.PublishedAt = nil
		}
	}
	if err := s.repo.Save(ctx, post); err != nil {
		return nil, mapWriteError(err, post.Slug, "update post")
	}
	dto := FromModel(*post)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete post")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "post not found")
	}
	return nil
}

func resolveSlug(raw, title string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		value = slug.Make(title)
		if value == "" {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "title must contain letters or digits")
		}
		return value, nil
	}
	if !slug.Valid(value) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "slug must be lowercase letters, digits and hyphens")
	}
	return value, nil
}

func mapWriteError(err error, value, action string) error {
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.New(pkgerrors.CodeConflict, "a post with this slug already exists").
			WithDetails(map[string]any{"slug": value})
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, action)
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := map[string]struct{}{}
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
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
