package subscriptions

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/acari-app/acari-backend/pkg/db/models"
	"github.com/acari-app/acari-backend/pkg/enums"
	pkgerrors "github.com/acari-app/acari-backend/pkg/errors"
)

// ApplyStripeSubscription mirrors a Stripe subscription onto the stored row:
// status, price, monthly price, period bounds, trial and cancel flags.
func ApplyStripeSubscription(target *models.UserSubscription, sub *stripe.Subscription) error {
	if target == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "target subscription is nil")
	}
	if sub == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "stripe subscription is nil")
	}
	target.Status = mapStripeStatus(sub.Status)
	if sub.ID != "" {
		id := sub.ID
		target.StripeSubscriptionID = &id
	}
	if sub.Customer != nil && sub.Customer.ID != "" {
		customer := sub.Customer.ID
		target.StripeCustomerID = &customer
	}
	if item := firstItem(sub); item != nil {
		if item.Price != nil {
			priceID := item.Price.ID
			target.StripePriceID = &priceID
			target.MonthlyPrice = monthlyPrice(item.Price)
			if item.Price.Currency != "" {
				target.Currency = strings.ToLower(string(item.Price.Currency))
			}
		}
		target.CurrentPeriodStart = toTimePtr(item.CurrentPeriodStart)
		target.CurrentPeriodEnd = toTimePtr(item.CurrentPeriodEnd)
	}
	target.IsTrial = sub.Status == stripe.SubscriptionStatusTrialing
	target.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
	target.CanceledAt = toTimePtr(sub.CanceledAt)
	return nil
}

// monthlyPrice normalizes a recurring price to a per-month amount.
func monthlyPrice(price *stripe.Price) decimal.Decimal {
	amount := decimal.New(price.UnitAmount, -2)
	if price.Recurring == nil {
		return amount
	}
	switch price.Recurring.Interval {
	case stripe.PriceRecurringIntervalYear:
		return amount.Div(decimal.NewFromInt(12)).Round(2)
	case stripe.PriceRecurringIntervalWeek:
		return amount.Mul(decimal.RequireFromString("4.33")).Round(2)
	default:
		return amount
	}
}

func firstItem(sub *stripe.Subscription) *stripe.SubscriptionItem {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return nil
	}
	return sub.Items.Data[0]
}

func toTimePtr(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}

func mapStripeStatus(raw stripe.SubscriptionStatus) enums.SubscriptionStatus {
	if parsed, err := enums.ParseSubscriptionStatus(strings.ToLower(strings.TrimSpace(string(raw)))); err == nil {
		return parsed
	}
	return enums.SubscriptionStatusActive
}
