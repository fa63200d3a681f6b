package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/acari-app/acari-backend/api/responses"
	"github.com/acari-app/acari-backend/api/validators"
	"github.com/acari-app/acari-backend/internal/assets"
	"github.com/acari-app/acari-backend/internal/generators"
	"github.com/acari-app/acari-backend/pkg/db/models"
	"github.com/acari-app/acari-backend/pkg/logger"
)

// GeneratorService is the surface of generators.Service used over HTTP.
type GeneratorService interface {
	GenerateBusinessPlan(ctx context.Context, userID uuid.UUID, in generators.BusinessPlanInput) (*models.Asset, *generators.BusinessPlan, error)
	GenerateWebsiteContent(ctx context.Context, userID uuid.UUID, in generators.WebsiteContentInput) (*models.Asset, *generators.WebsiteContent, error)
	GenerateLogos(ctx context.Context, userID uuid.UUID, in generators.LogoInput) (*models.Asset, error)
}

type generatedResponse struct {
	Asset  assets.AssetDTO `json:"asset"`
	Result any             `json:"result,omitempty"`
}

func GenerateBusinessPlan(svc GeneratorService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("generator service"))
			return
		}
		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body generators.BusinessPlanInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		asset, plan, err := svc.GenerateBusinessPlan(r.Context(), userID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, generatedResponse{Asset: assets.FromModel(*asset), Result: plan})
	}
}

func GenerateWebsiteContent(svc GeneratorService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("generator service"))
			return
		}
		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body generators.WebsiteContentInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		asset, content, err := svc.GenerateWebsiteContent(r.Context(), userID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, generatedResponse{Asset: assets.FromModel(*asset), Result: content})
	}
}

func GenerateLogos(svc GeneratorService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("generator service"))
			return
		}
		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body generators.LogoInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		asset, err := svc.GenerateLogos(r.Context(), userID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, generatedResponse{Asset: assets.FromModel(*asset)})
	}
}
