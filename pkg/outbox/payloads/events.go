package payloads

import (
	"time"

	"github.com/acari-app/acari-backend/pkg/enums"
	"github.com/google/uuid"
)

// PaymentFailedEvent is queued when Stripe reports a failed invoice.
type PaymentFailedEvent struct {
	PaymentFailureID uuid.UUID `json:"payment_failure_id"`
	SubscriptionID   uuid.UUID `json:"subscription_id"`
	UserID           uuid.UUID `json:"user_id"`
	InvoiceID        string    `json:"invoice_id,omitempty"`
	Reason           string    `json:"reason,omitempty"`
	GracePeriodEnd   time.Time `json:"grace_period_end"`
}

// PaymentRecoveredEvent is queued when a paid invoice resolves open failures.
type PaymentRecoveredEvent struct {
	SubscriptionID   uuid.UUID   `json:"subscription_id"`
	UserID           uuid.UUID   `json:"user_id"`
	ResolvedFailures []uuid.UUID `json:"resolved_failures"`
}

// PaymentReminderSentEvent records one delivered grace-period reminder.
type PaymentReminderSentEvent struct {
	PaymentFailureID uuid.UUID `json:"payment_failure_id"`
	SubscriptionID   uuid.UUID `json:"subscription_id"`
	Tier             string    `json:"tier"`
	DaysRemaining    int       `json:"days_remaining"`
	ReminderCount    int       `json:"reminder_count"`
	Source           string    `json:"source"`
	SentAt           time.Time `json:"sent_at"`
}

// SubscriptionUpdatedEvent mirrors a plan change applied through Stripe.
type SubscriptionUpdatedEvent struct {
	SubscriptionID uuid.UUID                `json:"subscription_id"`
	UserID         uuid.UUID                `json:"user_id"`
	Action         string                   `json:"action"`
	PriceID        string                   `json:"price_id,omitempty"`
	Status         enums.SubscriptionStatus `json:"status"`
}

// SubscriptionExpiredEvent is queued when a grace period lapses unpaid.
type SubscriptionExpiredEvent struct {
	SubscriptionID   uuid.UUID `json:"subscription_id"`
	UserID           uuid.UUID `json:"user_id"`
	PaymentFailureID uuid.UUID `json:"payment_failure_id"`
	GracePeriodEnd   time.Time `json:"grace_period_end"`
}

// SubscriptionCanceledEvent covers user cancels and Stripe deletions.
type SubscriptionCanceledEvent struct {
	SubscriptionID    uuid.UUID `json:"subscription_id"`
	UserID            uuid.UUID `json:"user_id"`
	CancelAtPeriodEnd bool      `json:"cancel_at_period_end"`
}

// AssetGeneratedEvent announces a newly persisted dashboard asset.
type AssetGeneratedEvent struct {
	AssetID    uuid.UUID       `json:"asset_id"`
	UserID     uuid.UUID       `json:"user_id"`
	BusinessID *uuid.UUID      `json:"business_id,omitempty"`
	Kind       enums.AssetKind `json:"kind"`
	ObjectURLs []string        `json:"object_urls,omitempty"`
}

// UserRegisteredEvent is queued on signup.
type UserRegisteredEvent struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
}
