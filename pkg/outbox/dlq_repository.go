package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/acari-app/acari-backend/pkg/db/models"
	pkgerrors "github.com/acari-app/acari-backend/pkg/errors"
	"github.com/acari-app/acari-backend/pkg/pagination"
)

// DLQRepository stores outbox events the publisher gave up on.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// InsertTx dead-letters entry inside the publisher's transaction. A second
// insert for the same event id is ignored so a crash between the insert and
// the outbox update cannot fail the next attempt.
func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ErrorMessage != nil {
		msg := truncate(*entry.ErrorMessage)
		entry.ErrorMessage = &msg
	}
	if entry.FailedAt.IsZero() {
		entry.FailedAt = time.Now().UTC()
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&entry).Error
}

// DeadLetter is the admin view of a dead-lettered event.
type DeadLetter struct {
	ID            uuid.UUID       `json:"id"`
	EventID       uuid.UUID       `json:"eventId"`
	EventType     string          `json:"eventType"`
	AggregateType string          `json:"aggregateType"`
	AggregateID   uuid.UUID       `json:"aggregateId"`
	Reason        string          `json:"reason"`
	Error         string          `json:"error,omitempty"`
	Attempts      int             `json:"attempts"`
	Payload       json.RawMessage `json:"payload"`
	FailedAt      time.Time       `json:"failedAt"`
}

type DeadLetterPage struct {
	Items      []DeadLetter `json:"items"`
	NextCursor string       `json:"nextCursor,omitempty"`
}

// List pages dead letters newest first by (failed_at, id).
func (r *DLQRepository) List(ctx context.Context, params pagination.Params) (*DeadLetterPage, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	query := r.db.WithContext(ctx).Model(&models.OutboxDLQ{})
	if cursor != nil {
		query = query.Where("(failed_at < ?) OR (failed_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var rows []models.OutboxDLQ
	if err := query.
		Order("failed_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list dead letters")
	}

	rows, next := pagination.Trim(rows, params.Limit, func(m models.OutboxDLQ) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.FailedAt, ID: m.ID}
	})
	page := &DeadLetterPage{Items: make([]DeadLetter, 0, len(rows)), NextCursor: next}
	for _, m := range rows {
		item := DeadLetter{
			ID:            m.ID,
			EventID:       m.EventID,
			EventType:     string(m.EventType),
			AggregateType: string(m.AggregateType),
			AggregateID:   m.AggregateID,
			Reason:        string(m.ErrorReason),
			Attempts:      m.AttemptCount,
			Payload:       m.Payload,
			FailedAt:      m.FailedAt,
		}
		if m.ErrorMessage != nil {
			item.Error = *m.ErrorMessage
		}
		page.Items = append(page.Items, item)
	}
	return page, nil
}

// DeleteBefore drops dead letters that failed before cutoff.
func (r *DLQRepository) DeleteBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	res := tx.WithContext(ctx).Where("failed_at < ?", cutoff).Delete(&models.OutboxDLQ{})
	return res.RowsAffected, res.Error
}
