package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/acari-app/acari-backend/pkg/db/models"
	"github.com/acari-app/acari-backend/pkg/enums"
	"github.com/acari-app/acari-backend/pkg/logger"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{NowFunc: func() time.Time { return time.Now().UTC() }})
	require.NoError(t, err)
	require.NoError(t, db.Exec(`
CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`).Error)
	return db
}

func TestEmitWritesEnvelope(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), logger.Nop())
	aggregateID := uuid.New()
	actor := &ActorRef{UserID: uuid.New(), Role: "admin"}

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventReminderSent,
			AggregateType: enums.AggregatePaymentFailure,
			AggregateID:   aggregateID,
			Actor:         actor,
			Data:          map[string]any{"tier": "final"},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, aggregateID, rows[0].AggregateID)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, EnvelopeVersion, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, actor.UserID, envelope.Actor.UserID)
	assert.JSONEq(t, `{"tier":"final"}`, string(envelope.Data))
}

func TestEmitRejectsInvalidEvents(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), nil)
	valid := DomainEvent{EventType: enums.EventAssetGenerated, AggregateType: enums.AggregateAsset, AggregateID: uuid.New()}

	assert.ErrorIs(t, svc.Emit(context.Background(), nil, valid), errNoTx)

	cases := map[string]func(*DomainEvent){
		"unknown event":     func(e *DomainEvent) { e.EventType = "nope" },
		"unknown aggregate": func(e *DomainEvent) { e.AggregateType = "planet" },
		"missing aggregate": func(e *DomainEvent) { e.AggregateID = uuid.Nil },
		"unencodable data":  func(e *DomainEvent) { e.Data = make(chan int) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			event := valid
			mutate(&event)
			assert.Error(t, svc.Emit(context.Background(), db, event))
		})
	}

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDecodeEnvelope(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{"version":2,"eventId":"e1","data":{}}`))
	assert.ErrorContains(t, err, "unsupported envelope version")

	_, err = DecodeEnvelope([]byte(`{"version":1,"data":{}}`))
	assert.ErrorContains(t, err, "no event id")

	env, err := DecodeEnvelope([]byte(`{"version":1,"eventId":"e1","occurredAt":"2026-01-02T03:04:05Z","data":{"a":1}}`))
	require.NoError(t, err)
	assert.Equal(t, "e1", env.EventID)
	assert.JSONEq(t, `{"a":1}`, string(env.Data))
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Emit(context.Background(), db, DomainEvent{
			EventType:     enums.EventAssetGenerated,
			AggregateType: enums.AggregateAsset,
			AggregateID:   uuid.New(),
			Data:          map[string]int{"n": i},
		}))
	}

	rows, err := repo.FetchUnpublishedForPublish(db, 10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	require.NoError(t, repo.MarkPublishedTx(db, rows[0].ID))
	require.NoError(t, repo.MarkFailedTx(db, rows[1].ID, errors.New("timeout")))
	require.NoError(t, repo.MarkTerminalTx(db, rows[2].ID, errors.New("bad payload"), 5))

	pending, err := repo.FetchUnpublishedForPublish(db, 10, 5)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, rows[1].ID, pending[0].ID)
	assert.Equal(t, 1, pending[0].AttemptCount)
	require.NotNil(t, pending[0].LastError)
	assert.Equal(t, "timeout", *pending[0].LastError)

	deleted, err := repo.DeletePublishedBefore(context.Background(), db, time.Now().UTC().Add(time.Hour), 5)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)
}
