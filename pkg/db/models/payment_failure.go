package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentFailure is one failed charge against a subscription. Reminder paths
// only ever touch ReminderCount and LastReminderSentAt.
type PaymentFailure struct {
	ID                 uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SubscriptionID     uuid.UUID  `gorm:"column:subscription_id;type:uuid;not null;index"`
	StripeInvoiceID    *string    `gorm:"column:stripe_invoice_id;uniqueIndex"`
	FailureReason      *string    `gorm:"column:failure_reason"`
	Resolved           bool       `gorm:"column:resolved;not null;default:false"`
	ResolvedAt         *time.Time `gorm:"column:resolved_at"`
	ResolutionReason   *string    `gorm:"column:resolution_reason"`
	ReminderCount      int        `gorm:"column:reminder_count;not null;default:0"`
	LastReminderSentAt *time.Time `gorm:"column:last_reminder_sent_at"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (PaymentFailure) TableName() string {
	return "subscription_payment_failures"
}

func (f *PaymentFailure) BeforeCreate(*gorm.DB) error {
	ensureID(&f.ID)
	return nil
}
