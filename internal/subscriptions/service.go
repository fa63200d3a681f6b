package subscriptions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/acari-app/acari-backend/internal/billing"
	"github.com/acari-app/acari-backend/pkg/db/models"
	"github.com/acari-app/acari-backend/pkg/enums"
	pkgerrors "github.com/acari-app/acari-backend/pkg/errors"
	"github.com/acari-app/acari-backend/pkg/logger"
	"github.com/acari-app/acari-backend/pkg/outbox"
	"github.com/acari-app/acari-backend/pkg/outbox/payloads"
	pkgstripe "github.com/acari-app/acari-backend/pkg/stripe"
)

const (
	prorationAlwaysInvoice = "always_invoice"
	prorationNone          = "none"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the subscription lifecycle surface.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*SubscriptionDTO, error)
	Update(ctx context.Context, userID uuid.UUID, input UpdateInput) (*SubscriptionDTO, error)
	Cancel(ctx context.Context, userID uuid.UUID) (*SubscriptionDTO, error)
	ListGraceExpired(ctx context.Context, now time.Time) ([]GraceExpiry, error)
	ExpireGrace(ctx context.Context, item GraceExpiry, now time.Time) error
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	BillingRepo       billing.Repository
	Stripe            pkgstripe.SubscriptionAPI
	Outbox            outbox.Emitter
	TransactionRunner txRunner
	Logger            *logger.Logger
	// CancelOnExpiry cancels the Stripe subscription when a grace period lapses.
	CancelOnExpiry bool
}

type service struct {
	billingRepo    billing.Repository
	stripe         pkgstripe.SubscriptionAPI
	outbox         outbox.Emitter
	txRunner       txRunner
	logg           *logger.Logger
	cancelOnExpiry bool
}

// NewService builds a subscription service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.BillingRepo == nil {
		return nil, fmt.Errorf("billing repo required")
	}
	if params.Stripe == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		billingRepo:    params.BillingRepo,
		stripe:         params.Stripe,
		outbox:         params.Outbox,
		txRunner:       params.TransactionRunner,
		logg:           params.Logger,
		cancelOnExpiry: params.CancelOnExpiry,
	}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*SubscriptionDTO, error) {
	sub, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return FromModel(sub), nil
}

func (s *service) load(ctx context.Context, userID uuid.UUID) (*models.UserSubscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	sub, err := s.billingRepo.FindSubscriptionByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	return sub, nil
}

// Update applies an upgrade, downgrade or trial conversion in Stripe and
// mirrors the result.
func (s *service) Update(ctx context.Context, userID uuid.UUID, input UpdateInput) (*SubscriptionDTO, error) {
	if !input.Action.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "action must be upgrade, downgrade or convert")
	}
	input.PriceID = strings.TrimSpace(input.PriceID)
	if input.Action != ActionConvert && input.PriceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "priceId is required")
	}

	stored, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	stripeID, err := stripeSubscriptionID(stored)
	if err != nil {
		return nil, err
	}
	if input.Action == ActionConvert && !stored.IsTrial && stored.Status != enums.SubscriptionStatusTrialing {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is not in a trial")
	}

	current, err := s.stripe.Get(ctx, stripeID, nil)
	if err != nil {
		return nil, pkgstripe.MapError(err, "fetch stripe subscription")
	}
	item := firstItem(current)
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe subscription has no items")
	}
	params, err := PlanUpdate(input, item.ID)
	if err != nil {
		return nil, err
	}
	updated, err := s.stripe.Update(ctx, stripeID, params)
	if err != nil {
		return nil, pkgstripe.MapError(err, "update stripe subscription")
	}

	if err := s.mirror(ctx, stored, updated, outbox.DomainEvent{
		EventType:     enums.EventSubscriptionUpdated,
		AggregateType: enums.AggregateSubscription,
		AggregateID:   stored.ID,
		Actor:         &outbox.ActorRef{UserID: userID, Role: string(enums.UserRoleUser)},
		Data: payloads.SubscriptionUpdatedEvent{
			SubscriptionID: stored.ID,
			UserID:         userID,
			Action:         string(input.Action),
			PriceID:        input.PriceID,
			Status:         mapStripeStatus(updated.Status),
		},
	}); err != nil {
		return nil, err
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"subscription_id": stored.ID.String(),
		"action":          string(input.Action),
		"status":          string(stored.Status),
	})
	s.logg.Info(logCtx, "subscriptions.updated")
	return FromModel(stored), nil
}

// PlanUpdate builds the Stripe parameters for an action on the given item.
func PlanUpdate(input UpdateInput, itemID string) (*stripe.SubscriptionParams, error) {
	if strings.TrimSpace(itemID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "subscription item id missing")
	}
	params := &stripe.SubscriptionParams{}
	if input.PriceID != "" {
		params.Items = []*stripe.SubscriptionItemsParams{{
			ID:    stripe.String(itemID),
			Price: stripe.String(input.PriceID),
		}}
	}
	switch input.Action {
	case ActionUpgrade:
		params.ProrationBehavior = stripe.String(prorationAlwaysInvoice)
	case ActionDowngrade:
		params.ProrationBehavior = stripe.String(prorationNone)
	case ActionConvert:
		params.TrialEndNow = stripe.Bool(true)
		params.ProrationBehavior = stripe.String(prorationNone)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported action")
	}
	return params, nil
}

// Cancel schedules cancellation at the end of the current period.
func (s *service) Cancel(ctx context.Context, userID uuid.UUID) (*SubscriptionDTO, error) {
	stored, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if stored.Status == enums.SubscriptionStatusCanceled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is already canceled")
	}
	stripeID, err := stripeSubscriptionID(stored)
	if err != nil {
		return nil, err
	}
	updated, err := s.stripe.Update(ctx, stripeID, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	})
	if err != nil {
		return nil, pkgstripe.MapError(err, "cancel stripe subscription")
	}
	if err := s.mirror(ctx, stored, updated, outbox.DomainEvent{
		EventType:     enums.EventSubscriptionCanceled,
		AggregateType: enums.AggregateSubscription,
		AggregateID:   stored.ID,
		Actor:         &outbox.ActorRef{UserID: userID, Role: string(enums.UserRoleUser)},
		Data: payloads.SubscriptionCanceledEvent{
			SubscriptionID:    stored.ID,
			UserID:            userID,
			CancelAtPeriodEnd: true,
		},
	}); err != nil {
		return nil, err
	}
	return FromModel(stored), nil
}

func (s *service) mirror(ctx context.Context, stored *models.UserSubscription, remote *stripe.Subscription, event outbox.DomainEvent) error {
	if err := ApplyStripeSubscription(stored, remote); err != nil {
		return err
	}
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.billingRepo.WithTx(tx).UpdateSubscription(ctx, stored); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist subscription")
	}
	return nil
}

func (s *service) ListGraceExpired(ctx context.Context, now time.Time) ([]GraceExpiry, error) {
	return s.billingRepo.ListGraceExpired(ctx, now, 0)
}

// ExpireGrace cancels the subscription behind a lapsed grace period, revokes
// access and resolves its open failures.
func (s *service) ExpireGrace(ctx context.Context, item GraceExpiry, now time.Time) error {
	stored, err := s.billingRepo.FindSubscriptionByUser(ctx, item.UserID)
	if err != nil {
		return fmt.Errorf("load subscription: %w", err)
	}
	if stored == nil || stored.ID != item.SubscriptionID {
		return fmt.Errorf("subscription %s not found", item.SubscriptionID)
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"subscription_id":    stored.ID.String(),
		"payment_failure_id": item.FailureID.String(),
	})
	if stored.Status == enums.SubscriptionStatusCanceled {
		s.logg.Info(ctx, "subscriptions.expire.already_canceled")
		return nil
	}
	if s.cancelOnExpiry && stored.StripeSubscriptionID != nil {
		if _, err := s.stripe.Cancel(ctx, *stored.StripeSubscriptionID, nil); err != nil {
			mapped := pkgstripe.MapError(err, "cancel stripe subscription")
			if !pkgerrors.IsCode(mapped, pkgerrors.CodeNotFound) {
				return mapped
			}
			s.logg.Warn(ctx, "subscriptions.expire.stripe_missing")
		}
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.billingRepo.WithTx(tx)
		stored.Status = enums.SubscriptionStatusCanceled
		if stored.CanceledAt == nil {
			canceledAt := now
			stored.CanceledAt = &canceledAt
		}
		if err := repo.UpdateSubscription(ctx, stored); err != nil {
			return err
		}
		if _, err := repo.ResolveOpenFailures(ctx, stored.ID, billing.ResolutionGraceExpired, now); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSubscriptionExpired,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   stored.ID,
			OccurredAt:    now,
			Data: payloads.SubscriptionExpiredEvent{
				SubscriptionID:   stored.ID,
				UserID:           stored.UserID,
				PaymentFailureID: item.FailureID,
				GracePeriodEnd:   item.GracePeriodEnd,
			},
		})
	})
	if err != nil {
		return fmt.Errorf("persist expiry: %w", err)
	}
	s.logg.Info(ctx, "subscriptions.grace_expired")
	return nil
}

func stripeSubscriptionID(sub *models.UserSubscription) (string, error) {
	if sub.StripeSubscriptionID == nil || strings.TrimSpace(*sub.StripeSubscriptionID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is not linked to stripe")
	}
	return *sub.StripeSubscriptionID, nil
}
