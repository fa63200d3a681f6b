package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	"github.com/acari-app/acari-backend/api/responses"
	pkgerrors "github.com/acari-app/acari-backend/pkg/errors"
	"github.com/acari-app/acari-backend/pkg/logger"
)

// maxStripePayload matches the size Stripe documents as the upper bound for
// event bodies.
const maxStripePayload = 64 << 10

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

// StripeEventLedger de-duplicates deliveries by event id.
type StripeEventLedger interface {
	Claim(ctx context.Context, eventID, eventType string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type StripeEventVerifier interface {
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

type stripeWebhook struct {
	svc      StripeWebhookService
	verifier StripeEventVerifier
	ledger   StripeEventLedger
	logg     *logger.Logger
}

// StripeWebhook verifies the signature, claims the event id, and dispatches.
// Redeliveries of a processed event are acknowledged without work. A failed
// dispatch releases the claim so Stripe's retry is processed.
func StripeWebhook(svc StripeWebhookService, verifier StripeEventVerifier, ledger StripeEventLedger, logg *logger.Logger) http.HandlerFunc {
	h := &stripeWebhook{svc: svc, verifier: verifier, ledger: ledger, logg: logg}
	return h.serve
}

func (h *stripeWebhook) serve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.svc == nil || h.verifier == nil || h.ledger == nil {
		responses.WriteError(ctx, h.logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhook is not configured"))
		return
	}

	event, err := h.verify(r)
	if err != nil {
		responses.WriteError(ctx, h.logg, w, err)
		return
	}

	ctx = h.logg.WithFields(ctx, map[string]any{"stripe_event_id": event.ID, "stripe_event_type": string(event.Type)})
	first, err := h.ledger.Claim(ctx, event.ID, string(event.Type))
	switch {
	case err != nil:
		responses.WriteError(ctx, h.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim stripe event"))
		return
	case !first:
		h.logg.Debug(ctx, "stripe.webhook.duplicate")
		responses.WriteSuccess(w, nil)
		return
	}

	if err := h.svc.HandleEvent(ctx, &event); err != nil {
		if relErr := h.ledger.Release(context.WithoutCancel(ctx), event.ID); relErr != nil {
			h.logg.Error(ctx, "stripe.webhook.release_failed", relErr)
		}
		responses.WriteError(ctx, h.logg, w, err)
		return
	}
	h.logg.Info(ctx, "stripe.webhook.processed")
	responses.WriteSuccess(w, nil)
}

func (h *stripeWebhook) verify(r *http.Request) (stripe.Event, error) {
	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		return stripe.Event{}, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing")
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxStripePayload+1))
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable webhook body")
	}
	if len(payload) > maxStripePayload {
		return stripe.Event{}, pkgerrors.New(pkgerrors.CodeValidation, "webhook body too large")
	}
	event, err := h.verifier.ConstructEvent(payload, signature)
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid stripe signature")
	}
	return event, nil
}
