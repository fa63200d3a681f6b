package assets

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/acari-app/acari-backend/pkg/db/models"
	"github.com/acari-app/acari-backend/pkg/enums"
	pkgerrors "github.com/acari-app/acari-backend/pkg/errors"
	"github.com/acari-app/acari-backend/pkg/logger"
	"github.com/acari-app/acari-backend/pkg/outbox"
	"github.com/acari-app/acari-backend/pkg/outbox/payloads"
	pkgpagination "github.com/acari-app/acari-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type objectDeleter interface {
	DeleteObject(ctx context.Context, bucket, object string) error
}

// Service persists generated assets and serves the dashboard listing.
type Service interface {
	Record(ctx context.Context, asset *models.Asset) error
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*AssetDTO, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type ServiceParams struct {
	Repo    *Repository
	Tx      txRunner
	Outbox  outbox.Emitter
	Storage objectDeleter
	Logger  *logger.Logger
}

type service struct {
	repo    *Repository
	tx      txRunner
	outbox  outbox.Emitter
	storage objectDeleter
	logg    *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("asset repository required")
	}
	if params.Tx == nil {
		return nil, errors.New("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		storage: params.Storage,
		logg:    params.Logger,
	}, nil
}

// Record inserts the asset and queues asset_generated in one transaction.
func (s *service) Record(ctx context.Context, asset *models.Asset) error {
	if asset == nil || asset.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "asset owner required")
	}
	if !asset.Kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid asset kind")
	}
	if asset.ID == uuid.Nil {
		asset.ID = uuid.New()
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, asset); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAssetGenerated,
			AggregateType: enums.AggregateAsset,
			AggregateID:   asset.ID,
			Actor:         &outbox.ActorRef{UserID: asset.UserID, Role: string(enums.UserRoleUser)},
			Data: payloads.AssetGeneratedEvent{
				AssetID:    asset.ID,
				UserID:     asset.UserID,
				BusinessID: asset.BusinessID,
				Kind:       asset.Kind,
				ObjectURLs: []string(asset.ObjectURLs),
			},
		})
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist asset")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"asset_id": asset.ID.String(),
		"kind":     string(asset.Kind),
	}), "assets.recorded")
	return nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if params.Kind != nil && !params.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid asset kind")
	}
	cursor, err := pkgpagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, listQuery{
		userID: params.UserID,
		kind:   params.Kind,
		limit:  pkgpagination.LimitWithBuffer(params.Limit),
		cursor: cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list assets")
	}
	page, next := pkgpagination.Trim(rows, params.Limit, func(m models.Asset) pkgpagination.Cursor {
		return pkgpagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	items := make([]AssetDTO, 0, len(page))
	for _, row := range page {
		items = append(items, FromModel(row))
	}
	return &ListResult{Items: items, NextCursor: next}, nil
}

func (s *service) Get(ctx context.Context, userID, id uuid.UUID) (*AssetDTO, error) {
	asset, err := s.repo.FindForUser(ctx, userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "asset not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load asset")
	}
	dto := FromModel(*asset)
	return &dto, nil
}

// Delete removes the row and then the stored files. Storage failures are
// logged; the row is already gone.
func (s *service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	asset, err := s.repo.FindForUser(ctx, userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "asset not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load asset")
	}
	if _, err := s.repo.Delete(ctx, userID, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete asset")
	}
	if s.storage == nil {
		return nil
	}
	for _, raw := range asset.ObjectURLs {
		bucket, object, ok := splitObjectURL(raw)
		if !ok {
			continue
		}
		if err := s.storage.DeleteObject(ctx, bucket, object); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "object", object), "assets.delete_object_failed", err)
		}
	}
	return nil
}

// splitObjectURL extracts bucket and object from <base>/<bucket>/<object>.
func splitObjectURL(raw string) (string, string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", false
	}
	parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
