package reminders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/acari-app/acari-backend/pkg/db/models"
)

const candidateColumns = `f.id AS failure_id, f.subscription_id, s.user_id, u.email, u.first_name, u.last_name,
p.display_name, f.failure_reason, f.resolved, f.reminder_count, f.last_reminder_sent_at,
s.grace_period_end, s.monthly_price, s.currency`

// Repository reads reminder candidates and stamps sends.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) candidates(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("subscription_payment_failures AS f").
		Select(candidateColumns).
		Joins("JOIN user_subscriptions s ON s.id = f.subscription_id").
		Joins("JOIN users u ON u.id = s.user_id").
		Joins("LEFT JOIN profiles p ON p.user_id = u.id")
}

// ListEvaluable returns every unresolved failure whose subscription carries
// a grace-period end, soonest deadline first.
func (r *Repository) ListEvaluable(ctx context.Context) ([]Candidate, error) {
	var rows []Candidate
	err := r.candidates(ctx).
		Where("f.resolved = ? AND s.grace_period_end IS NOT NULL", false).
		Order("s.grace_period_end ASC").
		Order("f.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Get loads one failure regardless of state. Returns gorm.ErrRecordNotFound
// for unknown ids.
func (r *Repository) Get(ctx context.Context, failureID uuid.UUID) (*Candidate, error) {
	var rows []Candidate
	err := r.candidates(ctx).
		Where("f.id = ?", failureID).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &rows[0], nil
}

// StampSent increments reminder_count by one and sets last_reminder_sent_at,
// returning the new count.
func (r *Repository) StampSent(ctx context.Context, tx *gorm.DB, failureID uuid.UUID, sentAt time.Time) (int, error) {
	if tx == nil {
		tx = r.db
	}
	res := tx.WithContext(ctx).
		Model(&models.PaymentFailure{}).
		Where("id = ?", failureID).
		Updates(map[string]any{
			"reminder_count":        gorm.Expr("reminder_count + 1"),
			"last_reminder_sent_at": sentAt,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	var counts []int
	if err := tx.WithContext(ctx).
		Model(&models.PaymentFailure{}).
		Where("id = ?", failureID).
		Pluck("reminder_count", &counts).Error; err != nil {
		return 0, err
	}
	if len(counts) == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return counts[0], nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
