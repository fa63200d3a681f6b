package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/acari-app/acari-backend/api/middleware"
	"github.com/acari-app/acari-backend/api/responses"
	"github.com/acari-app/acari-backend/api/validators"
	"github.com/acari-app/acari-backend/internal/emails"
	pkgerrors "github.com/acari-app/acari-backend/pkg/errors"
	"github.com/acari-app/acari-backend/pkg/logger"
)

type welcomeSender interface {
	SendWelcome(ctx context.Context, w emails.Welcome) error
}

type adminNotifier interface {
	SendAdminNotification(ctx context.Context, n emails.AdminNotification) error
}

type welcomeRequest struct {
	Name string `json:"name" validate:"omitempty,max=120"`
}

// SendWelcomeEmail re-sends the welcome email to the authenticated user.
func SendWelcomeEmail(svc welcomeSender, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("email service"))
			return
		}
		if _, err := requireUserID(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		email := middleware.EmailFromContext(r.Context())
		if email == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "account email unknown"))
			return
		}

		var body welcomeRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		if err := svc.SendWelcome(r.Context(), emails.Welcome{To: email, Name: strings.TrimSpace(body.Name)}); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send welcome email"))
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]bool{"sent": true})
	}
}

type adminNotificationRequest struct {
	Subject  string            `json:"subject" validate:"required,max=200"`
	Message  string            `json:"message" validate:"required,max=10000"`
	Metadata map[string]string `json:"metadata" validate:"max=50"`
}

// AdminSendNotification posts a message to the operations inbox.
func AdminSendNotification(svc adminNotifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("email service"))
			return
		}

		var body adminNotificationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err := svc.SendAdminNotification(r.Context(), emails.AdminNotification{
			Subject:  validators.SanitizeString(body.Subject, 200),
			Message:  body.Message,
			Metadata: body.Metadata,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send admin notification"))
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]bool{"sent": true})
	}
}
