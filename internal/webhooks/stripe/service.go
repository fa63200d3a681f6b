package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/acari-app/acari-backend/internal/billing"
	"github.com/acari-app/acari-backend/internal/subscriptions"
	"github.com/acari-app/acari-backend/pkg/db/models"
	"github.com/acari-app/acari-backend/pkg/enums"
	pkgerrors "github.com/acari-app/acari-backend/pkg/errors"
	"github.com/acari-app/acari-backend/pkg/logger"
	"github.com/acari-app/acari-backend/pkg/outbox"
	"github.com/acari-app/acari-backend/pkg/outbox/payloads"
)

const (
	defaultGracePeriod   = 7 * 24 * time.Hour
	defaultFailureReason = "Your payment method was declined."
	metadataUserID       = "user_id"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	BillingRepo       billing.Repository
	TransactionRunner txRunner
	Outbox            outbox.Emitter
	Logger            *logger.Logger
	GracePeriod       time.Duration
}

// Service applies Stripe billing events to subscriptions and payment failures.
type Service struct {
	billingRepo billing.Repository
	txRunner    txRunner
	outbox      outbox.Emitter
	logg        *logger.Logger
	gracePeriod time.Duration
	now         func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.BillingRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	grace := params.GracePeriod
	if grace <= 0 {
		grace = defaultGracePeriod
	}
	return &Service{
		billingRepo: params.BillingRepo,
		txRunner:    params.TransactionRunner,
		outbox:      params.Outbox,
		logg:        params.Logger,
		gracePeriod: grace,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// invoicePayload holds the invoice fields the handlers read. Newer API
// versions move the subscription id under parent.subscription_details.
type invoicePayload struct {
	ID           string `json:"id"`
	Subscription string `json:"subscription"`
	Parent       *struct {
		SubscriptionDetails *struct {
			Subscription string `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
	LastFinalizationError *struct {
		Message string `json:"message"`
	} `json:"last_finalization_error"`
	PaymentIntent *struct {
		LastPaymentError *struct {
			Message string `json:"message"`
		} `json:"last_payment_error"`
	} `json:"payment_intent"`
}

func (p invoicePayload) subscriptionID() string {
	if p.Subscription != "" {
		return p.Subscription
	}
	if p.Parent != nil && p.Parent.SubscriptionDetails != nil {
		return p.Parent.SubscriptionDetails.Subscription
	}
	return ""
}

func (p invoicePayload) failureReason() string {
	if p.PaymentIntent != nil && p.PaymentIntent.LastPaymentError != nil && p.PaymentIntent.LastPaymentError.Message != "" {
		return p.PaymentIntent.LastPaymentError.Message
	}
	if p.LastFinalizationError != nil && p.LastFinalizationError.Message != "" {
		return p.LastFinalizationError.Message
	}
	return defaultFailureReason
}

// UnmarshalJSON accepts payment_intent as either an id or an expanded object.
func (p *invoicePayload) UnmarshalJSON(data []byte) error {
	type alias invoicePayload
	var raw struct {
		alias
		PaymentIntent json.RawMessage `json:"payment_intent"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = invoicePayload(raw.alias)
	p.PaymentIntent = nil
	if len(raw.PaymentIntent) > 0 && raw.PaymentIntent[0] == '{' {
		if err := json.Unmarshal(raw.PaymentIntent, &p.PaymentIntent); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"stripe_event_id":   event.ID,
		"stripe_event_type": string(event.Type),
	})

	switch event.Type {
	case stripe.EventTypeInvoicePaymentFailed:
		invoice, err := decodeInvoice(event.Data.Raw)
		if err != nil {
			return err
		}
		return s.handlePaymentFailed(ctx, invoice)
	case stripe.EventTypeInvoicePaid:
		invoice, err := decodeInvoice(event.Data.Raw)
		if err != nil {
			return err
		}
		return s.handleInvoicePaid(ctx, invoice)
	case stripe.EventTypeCustomerSubscriptionCreated, stripe.EventTypeCustomerSubscriptionUpdated:
		sub, err := decodeSubscription(event.Data.Raw)
		if err != nil {
			return err
		}
		return s.handleSubscriptionUpdated(ctx, sub)
	case stripe.EventTypeCustomerSubscriptionDeleted:
		sub, err := decodeSubscription(event.Data.Raw)
		if err != nil {
			return err
		}
		return s.handleSubscriptionDeleted(ctx, sub)
	default:
		s.logg.Debug(ctx, "stripe.webhook.ignored")
		return nil
	}
}

func decodeInvoice(raw []byte) (invoicePayload, error) {
	var invoice invoicePayload
	if err := json.Unmarshal(raw, &invoice); err != nil {
		return invoicePayload{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode invoice event")
	}
	if invoice.subscriptionID() == "" {
		return invoicePayload{}, pkgerrors.New(pkgerrors.CodeValidation, "subscription id missing")
	}
	return invoice, nil
}

func decodeSubscription(raw []byte) (*stripe.Subscription, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription event")
	}
	if sub.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id missing")
	}
	return &sub, nil
}

func (s *Service) handlePaymentFailed(ctx context.Context, invoice invoicePayload) error {
	now := s.now()
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.billingRepo.WithTx(tx)
		stored, err := s.requireSubscription(ctx, repo, invoice.subscriptionID())
		if err != nil {
			return err
		}

		reason := invoice.failureReason()
		failure := &models.PaymentFailure{SubscriptionID: stored.ID, FailureReason: &reason}
		if invoice.ID != "" {
			invoiceID := invoice.ID
			failure.StripeInvoiceID = &invoiceID
		}
		created, err := repo.RecordPaymentFailure(ctx, failure)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment failure")
		}

		if stored.GracePeriodEnd == nil {
			graceEnd := now.Add(s.gracePeriod)
			stored.GracePeriodEnd = &graceEnd
		}
		stored.Status = enums.SubscriptionStatusPastDue
		if err := repo.UpdateSubscription(ctx, stored); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update subscription")
		}
		if !created {
			s.logg.Info(ctx, "stripe.webhook.payment_failure_exists")
			return nil
		}

		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"subscription_id":    stored.ID.String(),
			"payment_failure_id": failure.ID.String(),
			"grace_period_end":   stored.GracePeriodEnd.Format(time.RFC3339),
		}), "stripe.webhook.payment_failed")
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregatePaymentFailure,
			AggregateID:   failure.ID,
			OccurredAt:    now,
			Data: payloads.PaymentFailedEvent{
				PaymentFailureID: failure.ID,
				SubscriptionID:   stored.ID,
				UserID:           stored.UserID,
				InvoiceID:        invoice.ID,
				Reason:           reason,
				GracePeriodEnd:   *stored.GracePeriodEnd,
			},
		})
	})
}

func (s *Service) handleInvoicePaid(ctx context.Context, invoice invoicePayload) error {
	now := s.now()
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.billingRepo.WithTx(tx)
		stored, err := s.requireSubscription(ctx, repo, invoice.subscriptionID())
		if err != nil {
			return err
		}
		resolved, err := repo.ResolveOpenFailures(ctx, stored.ID, billing.ResolutionPaid, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve payment failures")
		}
		stored.GracePeriodEnd = nil
		stored.Status = enums.SubscriptionStatusActive
		if err := repo.UpdateSubscription(ctx, stored); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update subscription")
		}
		if len(resolved) == 0 {
			return nil
		}
		s.logg.Info(s.logg.WithField(ctx, "resolved_failures", len(resolved)), "stripe.webhook.payment_recovered")
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentRecovered,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   stored.ID,
			OccurredAt:    now,
			Data: payloads.PaymentRecoveredEvent{
				SubscriptionID:   stored.ID,
				UserID:           stored.UserID,
				ResolvedFailures: resolved,
			},
		})
	})
}

func (s *Service) handleSubscriptionUpdated(ctx context.Context, remote *stripe.Subscription) error {
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.billingRepo.WithTx(tx)
		stored, err := repo.FindSubscriptionByStripeID(ctx, remote.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
		}
		if stored == nil {
			userID, parseErr := uuid.Parse(strings.TrimSpace(remote.Metadata[metadataUserID]))
			if parseErr != nil {
				s.logg.Warn(ctx, "stripe.webhook.subscription_unlinked")
				return nil
			}
			if stored, err = repo.FindSubscriptionByUser(ctx, userID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
			}
			if stored == nil {
				stored = &models.UserSubscription{UserID: userID, Currency: "usd"}
				if err := subscriptions.ApplyStripeSubscription(stored, remote); err != nil {
					return err
				}
				return repo.CreateSubscription(ctx, stored)
			}
		}
		// Failure handling owns past_due and the grace window.
		graceEnd := stored.GracePeriodEnd
		if err := subscriptions.ApplyStripeSubscription(stored, remote); err != nil {
			return err
		}
		stored.GracePeriodEnd = graceEnd
		return repo.UpdateSubscription(ctx, stored)
	})
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, remote *stripe.Subscription) error {
	now := s.now()
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.billingRepo.WithTx(tx)
		stored, err := s.requireSubscription(ctx, repo, remote.ID)
		if err != nil {
			return err
		}
		stored.Status = enums.SubscriptionStatusCanceled
		if stored.CanceledAt == nil {
			stored.CanceledAt = &now
		}
		if err := repo.UpdateSubscription(ctx, stored); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update subscription")
		}
		if _, err := repo.ResolveOpenFailures(ctx, stored.ID, billing.ResolutionCanceled, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve payment failures")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSubscriptionCanceled,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   stored.ID,
			OccurredAt:    now,
			Data: payloads.SubscriptionCanceledEvent{
				SubscriptionID: stored.ID,
				UserID:         stored.UserID,
			},
		})
	})
}

func (s *Service) requireSubscription(ctx context.Context, repo billing.Repository, stripeID string) (*models.UserSubscription, error) {
	stored, err := repo.FindSubscriptionByStripeID(ctx, stripeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
	}
	if stored == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	return stored, nil
}
