package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/acari-app/acari-backend/api/responses"
	"github.com/acari-app/acari-backend/api/validators"
	"github.com/acari-app/acari-backend/pkg/logger"
	"github.com/acari-app/acari-backend/pkg/outbox"
	"github.com/acari-app/acari-backend/pkg/pagination"
)

type DeadLetterLister interface {
	List(ctx context.Context, params pagination.Params) (*outbox.DeadLetterPage, error)
}

// AdminListDeadLetters shows outbox events the publisher stopped retrying.
func AdminListDeadLetters(svc DeadLetterLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("dead letter store"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.List(r.Context(), pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}
