package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/acari-app/acari-backend/api/responses"
	"github.com/acari-app/acari-backend/pkg/domains"
	pkgerrors "github.com/acari-app/acari-backend/pkg/errors"
	"github.com/acari-app/acari-backend/pkg/logger"
)

type domainChecker interface {
	Check(ctx context.Context, domain string) (*domains.Availability, error)
}

func DomainCheck(client domainChecker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.URL.Query().Get("domain"))
		if raw == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "domain is required").WithDetails(map[string]any{"field": "domain"}))
			return
		}
		if client == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "domain check is not configured"))
			return
		}

		result, err := client.Check(r.Context(), raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
