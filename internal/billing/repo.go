package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/acari-app/acari-backend/pkg/db/models"
	"github.com/acari-app/acari-backend/pkg/enums"
)

// ResolutionReason values recorded on subscription_payment_failures.
const (
	ResolutionPaid         = "paid"
	ResolutionCanceled     = "subscription_canceled"
	ResolutionGraceExpired = "grace_expired"
)

// GraceExpiry is an open payment failure whose grace period has elapsed.
type GraceExpiry struct {
	FailureID            uuid.UUID `gorm:"column:failure_id"`
	SubscriptionID       uuid.UUID `gorm:"column:subscription_id"`
	UserID               uuid.UUID `gorm:"column:user_id"`
	StripeSubscriptionID *string   `gorm:"column:stripe_subscription_id"`
	GracePeriodEnd       time.Time `gorm:"column:grace_period_end"`
}

// Repository handles subscription and payment-failure persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateSubscription(ctx context.Context, sub *models.UserSubscription) error
	UpdateSubscription(ctx context.Context, sub *models.UserSubscription) error
	FindSubscriptionByUser(ctx context.Context, userID uuid.UUID) (*models.UserSubscription, error)
	FindSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.UserSubscription, error)
	RecordPaymentFailure(ctx context.Context, failure *models.PaymentFailure) (bool, error)
	ResolveOpenFailures(ctx context.Context, subscriptionID uuid.UUID, reason string, at time.Time) ([]uuid.UUID, error)
	ListGraceExpired(ctx context.Context, now time.Time, limit int) ([]GraceExpiry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a billing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateSubscription(ctx context.Context, sub *models.UserSubscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repository) UpdateSubscription(ctx context.Context, sub *models.UserSubscription) error {
	return r.db.WithContext(ctx).Save(sub).Error
}

// FindSubscriptionByUser returns nil, nil when the user has no subscription row.
func (r *repository) FindSubscriptionByUser(ctx context.Context, userID uuid.UUID) (*models.UserSubscription, error) {
	var sub models.UserSubscription
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// FindSubscriptionByStripeID returns nil, nil for unknown Stripe ids.
func (r *repository) FindSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.UserSubscription, error) {
	var sub models.UserSubscription
	if err := r.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// RecordPaymentFailure inserts the failure unless one already exists for the
// same Stripe invoice. It reports whether a row was created.
func (r *repository) RecordPaymentFailure(ctx context.Context, failure *models.PaymentFailure) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stripe_invoice_id"}},
			DoNothing: true,
		}).
		Create(failure)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ResolveOpenFailures closes every unresolved failure of a subscription and
// returns their ids.
func (r *repository) ResolveOpenFailures(ctx context.Context, subscriptionID uuid.UUID, reason string, at time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.PaymentFailure{}).
		Where("subscription_id = ? AND resolved = ?", subscriptionID, false).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := r.db.WithContext(ctx).
		Model(&models.PaymentFailure{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"resolved":          true,
			"resolved_at":       at,
			"resolution_reason": reason,
		}).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// ListGraceExpired returns one open failure per subscription whose grace
// period ended at or before now and that is not already canceled.
func (r *repository) ListGraceExpired(ctx context.Context, now time.Time, limit int) ([]GraceExpiry, error) {
	if limit <= 0 {
		limit = 250
	}
	var rows []GraceExpiry
	err := r.db.WithContext(ctx).
		Table("subscription_payment_failures AS f").
		Select("f.id AS failure_id, f.subscription_id, s.user_id, s.stripe_subscription_id, s.grace_period_end").
		Joins("JOIN user_subscriptions s ON s.id = f.subscription_id").
		Where("f.resolved = ? AND s.grace_period_end IS NOT NULL AND s.grace_period_end <= ?", false, now).
		Where("s.status <> ?", enums.SubscriptionStatusCanceled).
		Order("s.grace_period_end ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return firstPerSubscription(rows), nil
}

// firstPerSubscription keeps the earliest row of each subscription. Failures
// are unique per invoice, so one subscription can show up several times.
func firstPerSubscription(rows []GraceExpiry) []GraceExpiry {
	seen := make(map[uuid.UUID]struct{}, len(rows))
	out := rows[:0]
	for _, row := range rows {
		if _, dup := seen[row.SubscriptionID]; dup {
			continue
		}
		seen[row.SubscriptionID] = struct{}{}
		out = append(out, row)
	}
	return out
}
