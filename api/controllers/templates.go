package controllers

import (
	"io"
	"math"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/acari-app/acari-backend/api/responses"
	"github.com/acari-app/acari-backend/api/validators"
	"github.com/acari-app/acari-backend/internal/templates"
	pkgerrors "github.com/acari-app/acari-backend/pkg/errors"
	"github.com/acari-app/acari-backend/pkg/logger"
	"github.com/acari-app/acari-backend/pkg/pagination"
)

const maxTemplateImportBytes = 5 << 20

func parseTemplateList(r *http.Request, includeDrafts bool) (templates.ListParams, error) {
	page, err := validators.ParseQueryInt(r, "page", 1, 1, math.MaxInt32)
	if err != nil {
		return templates.ListParams{}, err
	}
	// Oversized pages are clamped by the pager rather than rejected.
	size, err := validators.ParseQueryInt(r, "pageSize", pagination.DefaultPageSize, 1, math.MaxInt32)
	if err != nil {
		return templates.ListParams{}, err
	}
	q := r.URL.Query()
	return templates.ListParams{
		Page:          page,
		PageSize:      size,
		Category:      strings.TrimSpace(q.Get("category")),
		Query:         validators.SanitizeString(q.Get("q"), 100),
		IncludeDrafts: includeDrafts,
	}, nil
}

// TemplateList serves the public marketplace listing. Drafts are never shown.
func TemplateList(svc templates.Service, logg *logger.Logger) http.HandlerFunc {
	return templateList(svc, false, logg)
}

func AdminTemplateList(svc templates.Service, logg *logger.Logger) http.HandlerFunc {
	return templateList(svc, true, logg)
}

func templateList(svc templates.Service, includeDrafts bool, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("template service"))
			return
		}
		params, err := parseTemplateList(r, includeDrafts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func TemplateGet(svc templates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("template service"))
			return
		}

		tpl, err := svc.GetPublished(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tpl)
	}
}

func AdminTemplateGet(svc templates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("template service"))
			return
		}
		id, err := validators.ParsePathUUID(r, "templateId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tpl, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tpl)
	}
}

func AdminTemplateCreate(svc templates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("template service"))
			return
		}
		actorID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body templates.CreateInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tpl, err := svc.Create(r.Context(), actorID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, tpl)
	}
}

func AdminTemplateUpdate(svc templates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("template service"))
			return
		}
		id, err := validators.ParsePathUUID(r, "templateId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body templates.UpdateInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tpl, err := svc.Update(r.Context(), id, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tpl)
	}
}

func AdminTemplateDelete(svc templates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("template service"))
			return
		}
		id, err := validators.ParsePathUUID(r, "templateId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// AdminTemplateImport accepts a CSV either as the multipart field "file" or
// as a raw text/csv body and reports per-line outcomes.
func AdminTemplateImport(svc templates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("template service"))
			return
		}
		actorID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxTemplateImportBytes)
		src, closeFn, err := csvSource(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer closeFn()

		result, err := svc.Import(r.Context(), actorID, src)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func csvSource(r *http.Request) (io.Reader, func(), error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "content type required")
	}

	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxTemplateImportBytes); err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart upload")
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "file field required")
		}
		return file, func() { _ = file.Close() }, nil
	case "text/csv", "application/csv", "text/plain":
		return r.Body, func() {}, nil
	default:
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "upload a CSV as multipart file or text/csv body").
			WithDetails(map[string]any{"contentType": mediaType})
	}
}
