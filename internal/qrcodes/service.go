package qrcodes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/acari-app/acari-backend/pkg/db/models"
	"github.com/acari-app/acari-backend/pkg/enums"
	pkgerrors "github.com/acari-app/acari-backend/pkg/errors"
	"github.com/acari-app/acari-backend/pkg/logger"
)

const (
	MinSize     = 256
	MaxSize     = 1024
	DefaultSize = 512
)

type uploader interface {
	Upload(ctx context.Context, object, contentType string, data []byte) (string, error)
}

type assetRecorder interface {
	Record(ctx context.Context, asset *models.Asset) error
}

// CreateInput is the body of POST /qrcodes.
type CreateInput struct {
	PayloadInput
	Title      string     `json:"title" validate:"max=200"`
	Size       int        `json:"size" validate:"omitempty,min=256,max=1024"`
	BusinessID *uuid.UUID `json:"businessId"`
}

// Created is returned after a QR code is rendered and stored.
type Created struct {
	AssetID  uuid.UUID `json:"assetId"`
	Payload  string    `json:"payload"`
	ImageURL string    `json:"imageUrl"`
	Size     int       `json:"size"`
}

type qrContent struct {
	Type    PayloadType `json:"type"`
	Payload string      `json:"payload"`
	Size    int         `json:"size"`
}

type ServiceParams struct {
	Storage uploader
	Assets  assetRecorder
	Logger  *logger.Logger
}

type Service struct {
	storage uploader
	assets  assetRecorder
	logg    *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Storage == nil {
		return nil, errors.New("storage uploader required")
	}
	if params.Assets == nil {
		return nil, errors.New("asset recorder required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &Service{storage: params.Storage, assets: params.Assets, logg: params.Logger}, nil
}

// Preview returns the encoded payload without rendering or persisting.
func (s *Service) Preview(in PayloadInput) (string, error) {
	return BuildPayload(in)
}

// Create renders a PNG, uploads it and records a qr_code asset.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, in CreateInput) (*Created, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	size := in.Size
	if size == 0 {
		size = DefaultSize
	}
	if size < MinSize || size > MaxSize {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("size must be between %d and %d", MinSize, MaxSize))
	}
	payload, err := BuildPayload(in.PayloadInput)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payload is too large for a qr code")
	}

	assetID := uuid.New()
	object := fmt.Sprintf("qrcodes/%s/%s.png", userID, assetID)
	imageURL, err := s.storage.Upload(ctx, object, "image/png", png)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store qr code")
	}

	content, err := json.Marshal(qrContent{Type: in.Type, Payload: payload, Size: size})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode qr content")
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = fmt.Sprintf("%s QR code", in.Type)
	}
	asset := &models.Asset{
		ID:         assetID,
		UserID:     userID,
		BusinessID: in.BusinessID,
		Kind:       enums.AssetKindQRCode,
		Title:      title,
		Content:    content,
		ObjectURLs: pq.StringArray{imageURL},
	}
	if err := s.assets.Record(ctx, asset); err != nil {
		return nil, err
	}
	return &Created{AssetID: assetID, Payload: payload, ImageURL: imageURL, Size: size}, nil
}
