package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/acari-app/acari-backend/pkg/enums"
)

// UserSubscription mirrors the user's Stripe subscription. GracePeriodEnd is
// set by the billing webhook when a charge fails and cleared on recovery.
type UserSubscription struct {
	ID                   uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID               uuid.UUID                `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Plan                 string                   `gorm:"column:plan;not null;default:'starter'"`
	Status               enums.SubscriptionStatus `gorm:"column:status;type:text;not null;default:'trialing'"`
	StripeCustomerID     *string                  `gorm:"column:stripe_customer_id"`
	StripeSubscriptionID *string                  `gorm:"column:stripe_subscription_id;uniqueIndex"`
	StripePriceID        *string                  `gorm:"column:stripe_price_id"`
	MonthlyPrice         decimal.Decimal          `gorm:"column:monthly_price;type:numeric(10,2);not null;default:0"`
	Currency             string                   `gorm:"column:currency;not null;default:'usd'"`
	IsTrial              bool                     `gorm:"column:is_trial;not null;default:false"`
	CurrentPeriodStart   *time.Time               `gorm:"column:current_period_start"`
	CurrentPeriodEnd     *time.Time               `gorm:"column:current_period_end"`
	CancelAtPeriodEnd    bool                     `gorm:"column:cancel_at_period_end;not null;default:false"`
	CanceledAt           *time.Time               `gorm:"column:canceled_at"`
	GracePeriodEnd       *time.Time               `gorm:"column:grace_period_end"`
	CreatedAt            time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (UserSubscription) TableName() string {
	return "user_subscriptions"
}

func (s *UserSubscription) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
