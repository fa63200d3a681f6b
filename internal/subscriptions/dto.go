package subscriptions

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/acari-app/acari-backend/internal/billing"
	"github.com/acari-app/acari-backend/pkg/db/models"
	"github.com/acari-app/acari-backend/pkg/enums"
)

// Action is a plan change requested through update-subscription.
type Action string

const (
	ActionUpgrade   Action = "upgrade"
	ActionDowngrade Action = "downgrade"
	ActionConvert   Action = "convert"
)

func (a Action) IsValid() bool {
	switch a {
	case ActionUpgrade, ActionDowngrade, ActionConvert:
		return true
	default:
		return false
	}
}

// UpdateInput is the body of POST /subscriptions/update.
type UpdateInput struct {
	Action  Action `json:"action" validate:"required,oneof=upgrade downgrade convert"`
	PriceID string `json:"priceId" validate:"omitempty,max=255"`
}

// GraceExpiry is an open failure whose grace period has ended.
type GraceExpiry = billing.GraceExpiry

// SubscriptionDTO is the client view of a user's subscription.
type SubscriptionDTO struct {
	ID                 uuid.UUID                `json:"id"`
	Plan               string                   `json:"plan"`
	Status             enums.SubscriptionStatus `json:"status"`
	HasAccess          bool                     `json:"hasAccess"`
	PriceID            *string                  `json:"priceId,omitempty"`
	MonthlyPrice       decimal.Decimal          `json:"monthlyPrice"`
	Currency           string                   `json:"currency"`
	IsTrial            bool                     `json:"isTrial"`
	CurrentPeriodStart *time.Time               `json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd   *time.Time               `json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd  bool                     `json:"cancelAtPeriodEnd"`
	GracePeriodEnd     *time.Time               `json:"gracePeriodEnd,omitempty"`
}

func FromModel(sub *models.UserSubscription) *SubscriptionDTO {
	if sub == nil {
		return nil
	}
	return &SubscriptionDTO{
		ID:                 sub.ID,
		Plan:               sub.Plan,
		Status:             sub.Status,
		HasAccess:          sub.Status.GrantsAccess(),
		PriceID:            sub.StripePriceID,
		MonthlyPrice:       sub.MonthlyPrice,
		Currency:           sub.Currency,
		IsTrial:            sub.IsTrial,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		GracePeriodEnd:     sub.GracePeriodEnd,
	}
}
