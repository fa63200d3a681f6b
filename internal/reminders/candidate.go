package reminders

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Candidate is an unresolved payment failure joined with what the reminder
// needs from its subscription and owner.
type Candidate struct {
	FailureID          uuid.UUID       `gorm:"column:failure_id"`
	SubscriptionID     uuid.UUID       `gorm:"column:subscription_id"`
	UserID             uuid.UUID       `gorm:"column:user_id"`
	Email              string          `gorm:"column:email"`
	FirstName          string          `gorm:"column:first_name"`
	LastName           string          `gorm:"column:last_name"`
	DisplayName        *string         `gorm:"column:display_name"`
	FailureReason      *string         `gorm:"column:failure_reason"`
	Resolved           bool            `gorm:"column:resolved"`
	ReminderCount      int             `gorm:"column:reminder_count"`
	LastReminderSentAt *time.Time      `gorm:"column:last_reminder_sent_at"`
	GracePeriodEnd     *time.Time      `gorm:"column:grace_period_end"`
	MonthlyPrice       decimal.Decimal `gorm:"column:monthly_price"`
	Currency           string          `gorm:"column:currency"`
}

// Name is the greeting used in the email body.
func (c Candidate) Name() string {
	if c.DisplayName != nil && strings.TrimSpace(*c.DisplayName) != "" {
		return strings.TrimSpace(*c.DisplayName)
	}
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Amount renders the monthly price, e.g. "$29.00" or "29.00 EUR".
func (c Candidate) Amount() string {
	value := c.MonthlyPrice.StringFixed(2)
	switch strings.ToLower(c.Currency) {
	case "", "usd":
		return "$" + value
	default:
		return value + " " + strings.ToUpper(c.Currency)
	}
}

func (c Candidate) reason() string {
	if c.FailureReason == nil {
		return ""
	}
	return strings.TrimSpace(*c.FailureReason)
}
