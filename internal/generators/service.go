package generators

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"github.com/lib/pq"

	"github.com/acari-app/acari-backend/pkg/db/models"
	"github.com/acari-app/acari-backend/pkg/enums"
	pkgerrors "github.com/acari-app/acari-backend/pkg/errors"
	"github.com/acari-app/acari-backend/pkg/genai"
	"github.com/acari-app/acari-backend/pkg/logger"
)

const (
	defaultLogoCount = 4
	maxLogoCount     = 4
)

type textModel interface {
	GenerateJSON(ctx context.Context, system, prompt string, out any) error
}

type imageModel interface {
	GenerateImages(ctx context.Context, prompt string, n int) ([]genai.Image, error)
}

type uploader interface {
	Upload(ctx context.Context, object, contentType string, data []byte) (string, error)
}

type assetRecorder interface {
	Record(ctx context.Context, asset *models.Asset) error
}

type ServiceParams struct {
	Text    textModel
	Images  imageModel
	Storage uploader
	Assets  assetRecorder
	Logger  *logger.Logger
}

// Service forwards generation prompts to the AI provider and records the
// results as dashboard assets.
type Service struct {
	text    textModel
	images  imageModel
	storage uploader
	assets  assetRecorder
	logg    *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Text == nil {
		return nil, errors.New("text model required")
	}
	if params.Images == nil {
		return nil, errors.New("image model required")
	}
	if params.Storage == nil {
		return nil, errors.New("storage uploader required")
	}
	if params.Assets == nil {
		return nil, errors.New("asset recorder required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &Service{
		text:    params.Text,
		images:  params.Images,
		storage: params.Storage,
		assets:  params.Assets,
		logg:    params.Logger,
	}, nil
}

func (s *Service) GenerateBusinessPlan(ctx context.Context, userID uuid.UUID, in BusinessPlanInput) (*models.Asset, *BusinessPlan, error) {
	in.BusinessName = strings.TrimSpace(in.BusinessName)
	in.Industry = strings.TrimSpace(in.Industry)
	in.Description = strings.TrimSpace(in.Description)
	if err := require(userID, map[string]string{
		"businessName": in.BusinessName,
		"industry":     in.Industry,
		"description":  in.Description,
	}); err != nil {
		return nil, nil, err
	}

	var plan BusinessPlan
	if err := s.text.GenerateJSON(ctx, businessPlanSystem, businessPlanPrompt(in), &plan); err != nil {
		return nil, nil, err
	}
	if plan.ExecutiveSummary == "" {
		return nil, nil, pkgerrors.New(pkgerrors.CodeDependency, "generated plan is missing an executive summary")
	}
	asset, err := s.record(ctx, userID, in.BusinessID, enums.AssetKindBusinessPlan, in.BusinessName+" business plan", plan, nil)
	if err != nil {
		return nil, nil, err
	}
	return asset, &plan, nil
}

func (s *Service) GenerateWebsiteContent(ctx context.Context, userID uuid.UUID, in WebsiteContentInput) (*models.Asset, *WebsiteContent, error) {
	in.BusinessName = strings.TrimSpace(in.BusinessName)
	in.Industry = strings.TrimSpace(in.Industry)
	in.Description = strings.TrimSpace(in.Description)
	if err := require(userID, map[string]string{
		"businessName": in.BusinessName,
		"industry":     in.Industry,
		"description":  in.Description,
	}); err != nil {
		return nil, nil, err
	}

	var content WebsiteContent
	if err := s.text.GenerateJSON(ctx, websiteSystem, websitePrompt(in), &content); err != nil {
		return nil, nil, err
	}
	if content.Hero.Headline == "" {
		return nil, nil, pkgerrors.New(pkgerrors.CodeDependency, "generated content is missing a headline")
	}
	asset, err := s.record(ctx, userID, in.BusinessID, enums.AssetKindWebsiteContent, in.BusinessName+" website", content, nil)
	if err != nil {
		return nil, nil, err
	}
	return asset, &content, nil
}

// GenerateLogos requests up to four images, checks each is really an image,
// uploads them and records one asset holding every URL.
func (s *Service) GenerateLogos(ctx context.Context, userID uuid.UUID, in LogoInput) (*models.Asset, error) {
	in.BusinessName = strings.TrimSpace(in.BusinessName)
	if err := require(userID, map[string]string{"businessName": in.BusinessName}); err != nil {
		return nil, err
	}
	count := in.Count
	if count == 0 {
		count = defaultLogoCount
	}
	if count < 1 || count > maxLogoCount {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("count must be between 1 and %d", maxLogoCount))
	}

	images, err := s.images.GenerateImages(ctx, logoPrompt(in), count)
	if err != nil {
		return nil, err
	}

	assetID := uuid.New()
	urls := make(pq.StringArray, 0, len(images))
	for i, img := range images {
		kind, err := filetype.Match(img.Data)
		if err != nil || !filetype.IsImage(img.Data) {
			s.logg.Warn(s.logg.WithField(ctx, "index", i), "generators.logo.not_image")
			continue
		}
		object := fmt.Sprintf("logos/%s/%s-%d.%s", userID, assetID, i+1, kind.Extension)
		url, err := s.storage.Upload(ctx, object, kind.MIME.Value, img.Data)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store generated logo")
		}
		urls = append(urls, url)
	}
	if len(urls) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "image generation returned no usable images")
	}

	meta := map[string]any{"prompt": logoPrompt(in), "count": len(urls)}
	asset, err := s.recordWithID(ctx, assetID, userID, in.BusinessID, enums.AssetKindLogo, in.BusinessName+" logos", meta, urls)
	if err != nil {
		return nil, err
	}
	return asset, nil
}

func (s *Service) record(ctx context.Context, userID uuid.UUID, businessID *uuid.UUID, kind enums.AssetKind, title string, content any, urls pq.StringArray) (*models.Asset, error) {
	return s.recordWithID(ctx, uuid.New(), userID, businessID, kind, title, content, urls)
}

func (s *Service) recordWithID(ctx context.Context, id, userID uuid.UUID, businessID *uuid.UUID, kind enums.AssetKind, title string, content any, urls pq.StringArray) (*models.Asset, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode asset content")
	}
	asset := &models.Asset{
		ID:         id,
		UserID:     userID,
		BusinessID: businessID,
		Kind:       kind,
		Title:      title,
		Content:    raw,
		ObjectURLs: urls,
	}
	if err := s.assets.Record(ctx, asset); err != nil {
		return nil, err
	}
	return asset, nil
}

func require(userID uuid.UUID, fields map[string]string) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	missing := map[string]string{}
	for name, value := range fields {
		if value == "" {
			missing[name] = "required"
		}
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "missing required fields").WithDetails(missing)
	}
	return nil
}
