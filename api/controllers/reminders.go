package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/acari-app/acari-backend/api/responses"
	"github.com/acari-app/acari-backend/api/validators"
	"github.com/acari-app/acari-backend/internal/reminders"
	"github.com/acari-app/acari-backend/pkg/logger"
)

type ReminderService interface {
	Trigger(ctx context.Context, actorID, failureID uuid.UUID) (*reminders.TriggerResult, error)
	ListOpen(ctx context.Context) ([]reminders.FailureView, error)
}

// AdminSendPaymentReminder sends the due reminder for one payment failure.
// The service re-checks the caller's admin row.
func AdminSendPaymentReminder(svc ReminderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("reminder service"))
			return
		}
		actorID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		failureID, err := validators.ParsePathUUID(r, "failureId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Trigger(r.Context(), actorID, failureID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func AdminListPaymentFailures(svc ReminderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("reminder service"))
			return
		}

		items, err := svc.ListOpen(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}
