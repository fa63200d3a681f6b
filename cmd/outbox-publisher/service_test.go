package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/acari-app/acari-backend/pkg/config"
	"github.com/acari-app/acari-backend/pkg/db/models"
	"github.com/acari-app/acari-backend/pkg/enums"
	"github.com/acari-app/acari-backend/pkg/logger"
	"github.com/acari-app/acari-backend/pkg/outbox"
	"github.com/acari-app/acari-backend/pkg/outbox/payloads"
	"github.com/acari-app/acari-backend/pkg/outbox/registry"
	"github.com/acari-app/acari-backend/pkg/pubsub"
)

const billingTopic = "acari-billing-events"

type harness struct {
	repo   *memOutbox
	broker *memBroker
	dlq    *memDLQ
	svc    *Service
}

// newHarness wires a Service around in-memory fakes. resolveErr, when set,
// makes every row fail to resolve.
func newHarness(t *testing.T, rows []models.OutboxEvent, resolveErr error, cfg config.OutboxConfig) *harness {
	t.Helper()
	h := &harness{repo: &memOutbox{events: rows}, broker: &memBroker{}, dlq: &memDLQ{}}
	svc, err := NewService(ServiceParams{
		Config:        &config.Config{Outbox: cfg},
		Logger:        logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:            txRunner{},
		PubSub:        h.broker,
		Repository:    h.repo,
		Registry:      stubRegistry{err: resolveErr},
		DLQRepository: h.dlq,
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func defaultOutboxConfig() config.OutboxConfig {
	return config.OutboxConfig{BatchSize: 2, PollIntervalMS: 100, MaxAttempts: 5}
}

func paymentFailedRow(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    outbox.EnvelopeVersion,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventPaymentFailed,
		AggregateType: enums.AggregatePaymentFailure,
		AggregateID:   uuid.New(),
		Payload:       payload,
		AttemptCount:  attempts,
	}
}

func TestProcessBatchContinuesAfterTransientFailure(t *testing.T) {
	rows := []models.OutboxEvent{paymentFailedRow(t, 0), paymentFailedRow(t, 0)}
	h := newHarness(t, rows, nil, defaultOutboxConfig())
	h.broker.errs = []error{errors.New("transient"), nil}

	processed, err := h.svc.processBatch(context.Background())

	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, []uuid.UUID{rows[0].ID}, h.repo.failed)
	assert.Equal(t, []uuid.UUID{rows[1].ID}, h.repo.published)
	require.Len(t, h.broker.sent, 2)
	assert.Equal(t, billingTopic, h.broker.sent[1].topic)
	assert.Equal(t, string(enums.EventPaymentFailed), h.broker.sent[1].msg.Attributes["event_type"])
	assert.Equal(t, rows[1].AggregateID.String(), h.broker.sent[1].msg.Attributes["aggregate_id"])
}

func TestProcessBatchEmptyIsIdle(t *testing.T) {
	h := newHarness(t, nil, nil, defaultOutboxConfig())

	processed, err := h.svc.processBatch(context.Background())

	require.NoError(t, err)
	assert.False(t, processed)
	assert.Empty(t, h.broker.sent)
}

func TestProcessBatchDeadLettersUnresolvableRows(t *testing.T) {
	row := paymentFailedRow(t, 0)
	h := newHarness(t, []models.OutboxEvent{row}, registry.NewNonRetryableError(errors.New("invalid payload")), defaultOutboxConfig())

	_, err := h.svc.processBatch(context.Background())

	require.NoError(t, err)
	require.Len(t, h.dlq.entries, 1)
	entry := h.dlq.entries[0]
	assert.Equal(t, row.ID, entry.EventID)
	assert.JSONEq(t, string(row.Payload), string(entry.Payload))
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, entry.ErrorReason)
	assert.Equal(t, []uuid.UUID{row.ID}, h.repo.terminal)
	assert.Empty(t, h.broker.sent)
}

func TestProcessBatchDeadLettersAtMaxAttempts(t *testing.T) {
	h := newHarness(t, []models.OutboxEvent{paymentFailedRow(t, 1)}, nil,
		config.OutboxConfig{BatchSize: 1, PollIntervalMS: 100, MaxAttempts: 2})
	h.broker.errs = []error{errors.New("transient")}

	_, err := h.svc.processBatch(context.Background())

	require.NoError(t, err)
	require.Len(t, h.dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, h.dlq.entries[0].ErrorReason)
	assert.Empty(t, h.repo.failed, "terminal rows are not also marked failed")
}

func TestProcessBatchUnknownTopicIsTerminal(t *testing.T) {
	h := newHarness(t, []models.OutboxEvent{paymentFailedRow(t, 0)}, nil, defaultOutboxConfig())
	h.broker.errs = []error{fmt.Errorf("%w %q", pubsub.ErrUnknownTopic, billingTopic)}

	_, err := h.svc.processBatch(context.Background())

	require.NoError(t, err)
	require.Len(t, h.dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, h.dlq.entries[0].ErrorReason)
}

func TestProcessBatchAbortsOnBookkeepingError(t *testing.T) {
	h := newHarness(t, []models.OutboxEvent{paymentFailedRow(t, 0)}, nil, defaultOutboxConfig())
	h.repo.markErr = errors.New("db down")

	_, err := h.svc.processBatch(context.Background())

	assert.ErrorContains(t, err, "db down")
}

func TestBackoffAndJitter(t *testing.T) {
	base := 500 * time.Millisecond
	assert.Equal(t, time.Second, nextBackoff(0, base, maxBackoff))
	assert.Equal(t, maxBackoff, nextBackoff(8*time.Second, base, maxBackoff))
	assert.Zero(t, withJitter(0))

	got := withJitter(time.Second)
	assert.GreaterOrEqual(t, got, time.Second)
	assert.Less(t, got, time.Second+jitterWindow)
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	_, err := NewService(ServiceParams{Config: &config.Config{}})
	assert.ErrorContains(t, err, "logger is required")
	assert.ErrorContains(t, err, "dlq repository is required")
	assert.NotContains(t, err.Error(), "config is required")
}

type memOutbox struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
	markErr   error
}

func (m *memOutbox) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return m.events, nil
}

func (m *memOutbox) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.published = append(m.published, id)
	return nil
}

func (m *memOutbox) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	m.failed = append(m.failed, id)
	return nil
}

func (m *memOutbox) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	m.terminal = append(m.terminal, id)
	return nil
}

type txRunner struct{}

func (txRunner) Ping(context.Context) error { return nil }

func (txRunner) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type sentMessage struct {
	topic string
	msg   *gcppubsub.Message
}

// memBroker records publishes and pops one queued error per call.
type memBroker struct {
	errs []error
	sent []sentMessage
}

func (b *memBroker) Ping(context.Context) error { return nil }

func (b *memBroker) Publish(_ context.Context, topic string, msg *gcppubsub.Message) (string, error) {
	b.sent = append(b.sent, sentMessage{topic: topic, msg: msg})
	if len(b.errs) == 0 {
		return "srv-id", nil
	}
	err := b.errs[0]
	b.errs = b.errs[1:]
	return "", err
}

type stubRegistry struct{ err error }

func (r stubRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if r.err != nil {
		return nil, r.err
	}
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: billingTopic, AggregateType: event.AggregateType},
		Envelope:   outbox.PayloadEnvelope{EventID: event.ID.String(), OccurredAt: time.Now()},
		Payload:    &payloads.PaymentFailedEvent{},
	}, nil
}

type memDLQ struct{ entries []models.OutboxDLQ }

func (m *memDLQ) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	m.entries = append(m.entries, entry)
	return nil
}
