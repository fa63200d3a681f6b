package subscriptions

import (
	"context"
	"errors"
	"net/http"
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
	updates  int
	resolved []string
	expired  []billing.GraceExpiry
}

func (s *stubBillingRepo) WithTx(*gorm.DB) billing.Repository { return s }

func (s *stubBillingRepo) CreateSubscription(_ context.Context, sub *models.UserSubscription) error {
	s.sub = sub
	return nil
}

func (s *stubBillingRepo) UpdateSubscription(_ context.Context, sub *models.UserSubscription) error {
	s.updates++
	s.sub = sub
	return nil
}

func (s *stubBillingRepo) FindSubscriptionByUser(_ context.Context, userID uuid.UUID) (*models.UserSubscription, error) {
	if s.sub == nil || s.sub.UserID != userID {
		return nil, nil
	}
	return s.sub, nil
}

func (s *stubBillingRepo) FindSubscriptionByStripeID(_ context.Context, id string) (*models.UserSubscription, error) {
	if s.sub == nil || s.sub.StripeSubscriptionID == nil || *s.sub.StripeSubscriptionID != id {
		return nil, nil
	}
	return s.sub, nil
}

func (s *stubBillingRepo) RecordPaymentFailure(context.Context, *models.PaymentFailure) (bool, error) {
	return true, nil
}

func (s *stubBillingRepo) ResolveOpenFailures(_ context.Context, _ uuid.UUID, reason string, _ time.Time) ([]uuid.UUID, error) {
	s.resolved = append(s.resolved, reason)
	return []uuid.UUID{uuid.New()}, nil
}

func (s *stubBillingRepo) ListGraceExpired(context.Context, time.Time, int) ([]billing.GraceExpiry, error) {
	return s.expired, nil
}

type stubStripeAPI struct {
	current     *stripe.Subscription
	updateErr   error
	cancelErr   error
	lastUpdate  *stripe.SubscriptionParams
	cancelCalls int
}

func (s *stubStripeAPI) Get(context.Context, string, *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	return s.current, nil
}

func (s *stubStripeAPI) Update(_ context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	s.lastUpdate = params
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	out := *s.current
	out.ID = id
	if params.CancelAtPeriodEnd != nil {
		out.CancelAtPeriodEnd = *params.CancelAtPeriodEnd
	}
	if params.TrialEndNow != nil && *params.TrialEndNow {
		out.Status = stripe.SubscriptionStatusActive
	}
	if len(params.Items) > 0 && params.Items[0].Price != nil {
		out.Items = &stripe.SubscriptionItemList{Data: []*stripe.SubscriptionItem{{
			ID:    *params.Items[0].ID,
			Price: &stripe.Price{ID: *params.Items[0].Price, UnitAmount: 9900, Currency: stripe.CurrencyUSD},
		}}}
	}
	return &out, nil
}

func (s *stubStripeAPI) Cancel(context.Context, string, *stripe.SubscriptionCancelParams) (*stripe.Subscription, error) {
	s.cancelCalls++
	if s.cancelErr != nil {
		return nil, s.cancelErr
	}
	return &stripe.Subscription{Status: stripe.SubscriptionStatusCanceled}, nil
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

type fixture struct {
	svc    Service
	repo   *stubBillingRepo
	stripe *stubStripeAPI
	events *captureEmitter
	userID uuid.UUID
}

func newFixture(t *testing.T, status enums.SubscriptionStatus, cancelOnExpiry bool) fixture {
	t.Helper()
	userID := uuid.New()
	stripeID := "sub_123"
	repo := &stubBillingRepo{sub: &models.UserSubscription{
		ID:                   uuid.New(),
		UserID:               userID,
		Status:               status,
		IsTrial:              status == enums.SubscriptionStatusTrialing,
		StripeSubscriptionID: &stripeID,
		Currency:             "usd",
	}}
	api := &stubStripeAPI{current: &stripe.Subscription{
		ID:     stripeID,
		Status: stripe.SubscriptionStatus(status),
		Items: &stripe.SubscriptionItemList{Data: []*stripe.SubscriptionItem{{
			ID:    "si_1",
			Price: &stripe.Price{ID: "price_starter", UnitAmount: 2900, Currency: stripe.CurrencyUSD},
		}}},
	}}
	events := &captureEmitter{}
	svc, err := NewService(ServiceParams{
		BillingRepo:       repo,
		Stripe:            api,
		Outbox:            events,
		TransactionRunner: stubTxRunner{},
		Logger:            logger.Nop(),
		CancelOnExpiry:    cancelOnExpiry,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return fixture{svc: svc, repo: repo, stripe: api, events: events, userID: userID}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatalf("expected error for missing deps")
	}
}

func TestPlanUpdateProration(t *testing.T) {
	cases := []struct {
		action    Action
		proration string
		trialEnd  bool
	}{
		{action: ActionUpgrade, proration: prorationAlwaysInvoice},
		{action: ActionDowngrade, proration: prorationNone},
		{action: ActionConvert, proration: prorationNone, trialEnd: true},
	}
	for _, tc := range cases {
		t.Run(string(tc.action), func(t *testing.T) {
			params, err := PlanUpdate(UpdateInput{Action: tc.action, PriceID: "price_pro"}, "si_1")
			if err != nil {
				t.Fatalf("plan: %v", err)
			}
			if params.ProrationBehavior == nil || *params.ProrationBehavior != tc.proration {
				t.Fatalf("expected proration %s, got %v", tc.proration, params.ProrationBehavior)
			}
			if got := params.TrialEndNow != nil && *params.TrialEndNow; got != tc.trialEnd {
				t.Fatalf("expected trial end now %t", tc.trialEnd)
			}
			if len(params.Items) != 1 || *params.Items[0].ID != "si_1" || *params.Items[0].Price != "price_pro" {
				t.Fatalf("unexpected items %+v", params.Items)
			}
		})
	}

	if _, err := PlanUpdate(UpdateInput{Action: ActionUpgrade, PriceID: "price_pro"}, ""); err == nil {
		t.Fatalf("expected error for missing item id")
	}
}

func TestUpdateUpgradeMirrorsAndEmits(t *testing.T) {
	f := newFixture(t, enums.SubscriptionStatusActive, false)

	dto, err := f.svc.Update(context.Background(), f.userID, UpdateInput{Action: ActionUpgrade, PriceID: "price_pro"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if dto.PriceID == nil || *dto.PriceID != "price_pro" {
		t.Fatalf("expected mirrored price, got %v", dto.PriceID)
	}
	if dto.MonthlyPrice.String() != "99" {
		t.Fatalf("expected monthly price 99, got %s", dto.MonthlyPrice)
	}
	if f.repo.updates != 1 {
		t.Fatalf("expected one update, got %d", f.repo.updates)
	}
	if len(f.events.events) != 1 || f.events.events[0].EventType != enums.EventSubscriptionUpdated {
		t.Fatalf("expected subscription_updated event, got %+v", f.events.events)
	}
}

func TestUpdateValidatesInput(t *testing.T) {
	f := newFixture(t, enums.SubscriptionStatusActive, false)
	ctx := context.Background()

	_, err := f.svc.Update(ctx, f.userID, UpdateInput{Action: "sidegrade", PriceID: "p"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = f.svc.Update(ctx, f.userID, UpdateInput{Action: ActionUpgrade})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for missing price, got %v", err)
	}
	_, err = f.svc.Update(ctx, uuid.New(), UpdateInput{Action: ActionUpgrade, PriceID: "p"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	_, err = f.svc.Update(ctx, f.userID, UpdateInput{Action: ActionConvert})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict converting a non-trial, got %v", err)
	}
}

func TestUpdateConvertEndsTrial(t *testing.T) {
	f := newFixture(t, enums.SubscriptionStatusTrialing, false)

	dto, err := f.svc.Update(context.Background(), f.userID, UpdateInput{Action: ActionConvert})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if dto.IsTrial || dto.Status != enums.SubscriptionStatusActive {
		t.Fatalf("expected active paid subscription, got %s trial=%t", dto.Status, dto.IsTrial)
	}
	if len(f.stripe.lastUpdate.Items) != 0 {
		t.Fatalf("convert without price should keep the current item")
	}
}

func TestUpdatePassesThroughCardDecline(t *testing.T) {
	f := newFixture(t, enums.SubscriptionStatusActive, false)
	f.stripe.updateErr = &stripe.Error{HTTPStatusCode: http.StatusPaymentRequired, Msg: "Your card was declined."}

	_, err := f.svc.Update(context.Background(), f.userID, UpdateInput{Action: ActionUpgrade, PriceID: "price_pro"})
	if !pkgerrors.IsCode(err, pkgerrors.CodePaymentRequired) {
		t.Fatalf("expected payment required, got %v", err)
	}
	var typed *pkgerrors.Error
	if !errors.As(err, &typed) || typed.Message() != "Your card was declined." {
		t.Fatalf("expected stripe message, got %v", err)
	}
	if f.repo.updates != 0 || len(f.events.events) != 0 {
		t.Fatalf("nothing should persist on stripe failure")
	}
}

func TestCancelSetsCancelAtPeriodEnd(t *testing.T) {
	f := newFixture(t, enums.SubscriptionStatusActive, false)

	dto, err := f.svc.Cancel(context.Background(), f.userID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !dto.CancelAtPeriodEnd || !dto.HasAccess {
		t.Fatalf("expected access until period end, got %+v", dto)
	}
	if len(f.events.events) != 1 || f.events.events[0].EventType != enums.EventSubscriptionCanceled {
		t.Fatalf("expected subscription_canceled event")
	}
}

func TestCancelRejectsCanceled(t *testing.T) {
	f := newFixture(t, enums.SubscriptionStatusCanceled, false)
	_, err := f.svc.Cancel(context.Background(), f.userID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestExpireGraceCancelsAndResolves(t *testing.T) {
	f := newFixture(t, enums.SubscriptionStatusPastDue, true)
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	item := GraceExpiry{
		FailureID:      uuid.New(),
		SubscriptionID: f.repo.sub.ID,
		UserID:         f.userID,
		GracePeriodEnd: now.Add(-time.Hour),
	}

	if err := f.svc.ExpireGrace(context.Background(), item, now); err != nil {
		t.Fatalf("expire: %v", err)
	}
	if f.stripe.cancelCalls != 1 {
		t.Fatalf("expected stripe cancel, got %d calls", f.stripe.cancelCalls)
	}
	if f.repo.sub.Status != enums.SubscriptionStatusCanceled || f.repo.sub.CanceledAt == nil {
		t.Fatalf("expected canceled subscription, got %s", f.repo.sub.Status)
	}
	if len(f.repo.resolved) != 1 || f.repo.resolved[0] != billing.ResolutionGraceExpired {
		t.Fatalf("expected grace_expired resolution, got %v", f.repo.resolved)
	}
	if len(f.events.events) != 1 || f.events.events[0].EventType != enums.EventSubscriptionExpired {
		t.Fatalf("expected subscription_expired event")
	}
}

func TestExpireGraceRunsOncePerSubscription(t *testing.T) {
	f := newFixture(t, enums.SubscriptionStatusPastDue, true)
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	for range 2 {
		item := GraceExpiry{FailureID: uuid.New(), SubscriptionID: f.repo.sub.ID, UserID: f.userID, GracePeriodEnd: now.Add(-time.Hour)}
		if err := f.svc.ExpireGrace(context.Background(), item, now); err != nil {
			t.Fatalf("expire: %v", err)
		}
	}
	if f.stripe.cancelCalls != 1 || f.repo.updates != 1 {
		t.Fatalf("expected one cancel and one update, got %d cancels and %d updates", f.stripe.cancelCalls, f.repo.updates)
	}
	if len(f.events.events) != 1 {
		t.Fatalf("expected one subscription_expired event, got %d", len(f.events.events))
	}
}

func TestExpireGraceToleratesMissingStripeSubscription(t *testing.T) {
	f := newFixture(t, enums.SubscriptionStatusPastDue, true)
	f.stripe.cancelErr = &stripe.Error{HTTPStatusCode: http.StatusNotFound, Msg: "No such subscription"}
	item := GraceExpiry{FailureID: uuid.New(), SubscriptionID: f.repo.sub.ID, UserID: f.userID}

	if err := f.svc.ExpireGrace(context.Background(), item, time.Now().UTC()); err != nil {
		t.Fatalf("expected missing stripe subscription to be tolerated, got %v", err)
	}
	if f.repo.sub.Status != enums.SubscriptionStatusCanceled {
		t.Fatalf("expected canceled, got %s", f.repo.sub.Status)
	}
}

func TestExpireGraceSkipsStripeWhenDisabled(t *testing.T) {
	f := newFixture(t, enums.SubscriptionStatusPastDue, false)
	item := GraceExpiry{FailureID: uuid.New(), SubscriptionID: f.repo.sub.ID, UserID: f.userID}

	if err := f.svc.ExpireGrace(context.Background(), item, time.Now().UTC()); err != nil {
		t.Fatalf("expire: %v", err)
	}
	if f.stripe.cancelCalls != 0 {
		t.Fatalf("stripe cancel should be skipped")
	}
}
