package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/acari-app/acari-backend/api/responses"
	"github.com/acari-app/acari-backend/api/validators"
	"github.com/acari-app/acari-backend/internal/qrcodes"
	"github.com/acari-app/acari-backend/pkg/logger"
)

type QRCodeService interface {
	Preview(in qrcodes.PayloadInput) (string, error)
	Create(ctx context.Context, userID uuid.UUID, in qrcodes.CreateInput) (*qrcodes.Created, error)
}

// QRCodeCreate renders, stores and records a QR code.
func QRCodeCreate(svc QRCodeService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("qr code service"))
			return
		}
		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body qrcodes.CreateInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Create(r.Context(), userID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// QRCodePreview returns the encoded payload without rendering or storing it.
func QRCodePreview(svc QRCodeService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("qr code service"))
			return
		}

		var body qrcodes.PayloadInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload, err := svc.Preview(body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"type": string(body.Type), "payload": payload})
	}
}
