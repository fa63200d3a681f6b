package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/acari-app/acari-backend/api/middleware"
	pkgerrors "github.com/acari-app/acari-backend/pkg/errors"
)

func requireUserID(r *http.Request) (uuid.UUID, error) {
	id := middleware.UserUUIDFromContext(r.Context())
	if id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return id, nil
}

func unavailable(name string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, name+" unavailable")
}
