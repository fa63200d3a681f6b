package stripewebhook

import (
	"context"
	"encoding/json"
	"testing"
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
)

type stubBillingRepo struct {
	sub      *models.UserSubscription
	created  []*models.UserSubscription
	failures map[string]*models.PaymentFailure
	resolved []string
}

func (s *stubBillingRepo) WithTx(*gorm.DB) billing.Repository { return s }

func (s *stubBillingRepo) CreateSubscription(_ context.Context, sub *models.UserSubscription) error {
	s.created = append(s.created, sub)
	s.sub = sub
	return nil
}

func (s *stubBillingRepo) UpdateSubscription(_ context.Context, sub *models.UserSubscription) error {
	s.sub = sub
	return nil
}

func (s *stubBillingRepo) FindSubscriptionByUser(_ context.Context, userID uuid.UUID) (*models.UserSubscription, error) {
	if s.sub != nil && s.sub.UserID == userID {
		return s.sub, nil
	}
	return nil, nil
}

func (s *stubBillingRepo) FindSubscriptionByStripeID(_ context.Context, id string) (*models.UserSubscription, error) {
	if s.sub != nil && s.sub.StripeSubscriptionID != nil && *s.sub.StripeSubscriptionID == id {
		return s.sub, nil
	}
	return nil, nil
}

func (s *stubBillingRepo) RecordPaymentFailure(_ context.Context, failure *models.PaymentFailure) (bool, error) {
	if s.failures == nil {
		s.failures = map[string]*models.PaymentFailure{}
	}
	key := *failure.StripeInvoiceID
	if _, ok := s.failures[key]; ok {
		return false, nil
	}
	failure.ID = uuid.New()
	s.failures[key] = failure
	return true, nil
}

func (s *stubBillingRepo) ResolveOpenFailures(_ context.Context, _ uuid.UUID, reason string, _ time.Time) ([]uuid.UUID, error) {
	s.resolved = append(s.resolved, reason)
	ids := make([]uuid.UUID, 0, len(s.failures))
	for _, f := range s.failures {
		ids = append(ids, f.ID)
	}
	return ids, nil
}

func (s *stubBillingRepo) ListGraceExpired(context.Context, time.Time, int) ([]billing.GraceExpiry, error) {
	return nil, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type captureEmitter struct {
	events []outbox.DomainEvent
}

func (c *captureEmitter) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	c.events = append(c.events, event)
	return nil
}

var fixedNow = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, sub *models.UserSubscription) (*Service, *stubBillingRepo, *captureEmitter) {
	t.Helper()
	repo := &stubBillingRepo{sub: sub}
	events := &captureEmitter{}
	svc, err := NewService(ServiceParams{
		BillingRepo:       repo,
		TransactionRunner: stubTxRunner{},
		Outbox:            events,
		Logger:            logger.Nop(),
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	svc.now = func() time.Time { return fixedNow }
	return svc, repo, events
}

func linkedSubscription(status enums.SubscriptionStatus) *models.UserSubscription {
	stripeID := "sub_test"
	return &models.UserSubscription{
		ID:                   uuid.New(),
		UserID:               uuid.New(),
		Status:               status,
		StripeSubscriptionID: &stripeID,
		Currency:             "usd",
	}
}

func event(t *testing.T, typ stripe.EventType, object any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(object)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return &stripe.Event{ID: "evt_" + uuid.NewString(), Type: typ, Data: &stripe.EventData{Raw: raw}}
}

func TestPaymentFailedStartsGracePeriod(t *testing.T) {
	svc, repo, events := newTestService(t, linkedSubscription(enums.SubscriptionStatusActive))
	invoice := map[string]any{
		"id":           "in_1",
		"subscription": "sub_test",
		"payment_intent": map[string]any{
			"last_payment_error": map[string]any{"message": "Your card has insufficient funds."},
		},
	}

	if err := svc.HandleEvent(context.Background(), event(t, stripe.EventTypeInvoicePaymentFailed, invoice)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if repo.sub.Status != enums.SubscriptionStatusPastDue {
		t.Fatalf("expected past_due, got %s", repo.sub.Status)
	}
	if repo.sub.GracePeriodEnd == nil || !repo.sub.GracePeriodEnd.Equal(fixedNow.Add(7*24*time.Hour)) {
		t.Fatalf("expected grace end in 7 days, got %v", repo.sub.GracePeriodEnd)
	}
	failure := repo.failures["in_1"]
	if failure == nil || *failure.FailureReason != "Your card has insufficient funds." {
		t.Fatalf("expected failure with provider reason, got %+v", failure)
	}
	if len(events.events) != 1 || events.events[0].EventType != enums.EventPaymentFailed {
		t.Fatalf("expected payment_failed event, got %+v", events.events)
	}
}

func TestPaymentFailedKeepsExistingGraceEnd(t *testing.T) {
	sub := linkedSubscription(enums.SubscriptionStatusPastDue)
	existing := fixedNow.Add(2 * 24 * time.Hour)
	sub.GracePeriodEnd = &existing
	svc, repo, events := newTestService(t, sub)
	invoice := map[string]any{
		"id":     "in_2",
		"parent": map[string]any{"subscription_details": map[string]any{"subscription": "sub_test"}},
	}

	ev := event(t, stripe.EventTypeInvoicePaymentFailed, invoice)
	if err := svc.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := svc.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !repo.sub.GracePeriodEnd.Equal(existing) {
		t.Fatalf("grace end must not move, got %v", repo.sub.GracePeriodEnd)
	}
	if *repo.failures["in_2"].FailureReason != defaultFailureReason {
		t.Fatalf("expected default reason")
	}
	if len(events.events) != 1 {
		t.Fatalf("replayed invoice should not emit twice, got %d", len(events.events))
	}
}

func TestInvoicePaidResolvesFailures(t *testing.T) {
	sub := linkedSubscription(enums.SubscriptionStatusPastDue)
	grace := fixedNow.Add(24 * time.Hour)
	sub.GracePeriodEnd = &grace
	svc, repo, events := newTestService(t, sub)
	repo.failures = map[string]*models.PaymentFailure{"in_1": {ID: uuid.New()}}

	invoice := map[string]any{"id": "in_3", "subscription": "sub_test", "payment_intent": "pi_123"}
	if err := svc.HandleEvent(context.Background(), event(t, stripe.EventTypeInvoicePaid, invoice)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if repo.sub.Status != enums.SubscriptionStatusActive || repo.sub.GracePeriodEnd != nil {
		t.Fatalf("expected active without grace, got %s %v", repo.sub.Status, repo.sub.GracePeriodEnd)
	}
	if len(repo.resolved) != 1 || repo.resolved[0] != billing.ResolutionPaid {
		t.Fatalf("expected paid resolution, got %v", repo.resolved)
	}
	if len(events.events) != 1 || events.events[0].EventType != enums.EventPaymentRecovered {
		t.Fatalf("expected payment_recovered event")
	}
}

func TestSubscriptionUpdatedMirrorsButKeepsGrace(t *testing.T) {
	sub := linkedSubscription(enums.SubscriptionStatusPastDue)
	grace := fixedNow.Add(3 * 24 * time.Hour)
	sub.GracePeriodEnd = &grace
	svc, repo, _ := newTestService(t, sub)

	remote := &stripe.Subscription{
		ID:     "sub_test",
		Status: stripe.SubscriptionStatusPastDue,
		Items: &stripe.SubscriptionItemList{Data: []*stripe.SubscriptionItem{{
			Price:            &stripe.Price{ID: "price_pro", UnitAmount: 4900, Currency: stripe.CurrencyUSD},
			CurrentPeriodEnd: fixedNow.Add(30 * 24 * time.Hour).Unix(),
		}}},
	}
	if err := svc.HandleEvent(context.Background(), event(t, stripe.EventTypeCustomerSubscriptionUpdated, remote)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if repo.sub.StripePriceID == nil || *repo.sub.StripePriceID != "price_pro" {
		t.Fatalf("expected mirrored price")
	}
	if repo.sub.GracePeriodEnd == nil || !repo.sub.GracePeriodEnd.Equal(grace) {
		t.Fatalf("grace end must be preserved")
	}
}

func TestSubscriptionCreatedLinksByMetadata(t *testing.T) {
	svc, repo, _ := newTestService(t, nil)
	userID := uuid.New()
	remote := &stripe.Subscription{
		ID:       "sub_new",
		Status:   stripe.SubscriptionStatusTrialing,
		Metadata: map[string]string{"user_id": userID.String()},
	}
	if err := svc.HandleEvent(context.Background(), event(t, stripe.EventTypeCustomerSubscriptionCreated, remote)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(repo.created) != 1 || repo.created[0].UserID != userID || !repo.created[0].IsTrial {
		t.Fatalf("expected linked trial subscription, got %+v", repo.created)
	}
}

func TestSubscriptionDeletedCancels(t *testing.T) {
	svc, repo, events := newTestService(t, linkedSubscription(enums.SubscriptionStatusPastDue))
	remote := &stripe.Subscription{ID: "sub_test", Status: stripe.SubscriptionStatusCanceled}

	if err := svc.HandleEvent(context.Background(), event(t, stripe.EventTypeCustomerSubscriptionDeleted, remote)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if repo.sub.Status != enums.SubscriptionStatusCanceled || repo.sub.CanceledAt == nil {
		t.Fatalf("expected canceled")
	}
	if len(repo.resolved) != 1 || repo.resolved[0] != billing.ResolutionCanceled {
		t.Fatalf("expected subscription_canceled resolution, got %v", repo.resolved)
	}
	if len(events.events) != 1 || events.events[0].EventType != enums.EventSubscriptionCanceled {
		t.Fatalf("expected subscription_canceled event")
	}
}

func TestUnknownSubscriptionIsNotFound(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	invoice := map[string]any{"id": "in_9", "subscription": "sub_missing"}
	err := svc.HandleEvent(context.Background(), event(t, stripe.EventTypeInvoicePaymentFailed, invoice))
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestInvoiceWithoutSubscriptionIsRejected(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	err := svc.HandleEvent(context.Background(), event(t, stripe.EventTypeInvoicePaid, map[string]any{"id": "in_1"}))
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestIgnoresOtherEvents(t *testing.T) {
	svc, _, events := newTestService(t, nil)
	if err := svc.HandleEvent(context.Background(), event(t, "charge.refunded", map[string]any{"id": "ch_1"})); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if len(events.events) != 0 {
		t.Fatalf("expected no events")
	}
}
