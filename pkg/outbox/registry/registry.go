// Package registry routes outbox rows to Pub/Sub topics and decodes their
// payloads into the typed structs from outbox/payloads.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/acari-app/acari-backend/pkg/config"
	"github.com/acari-app/acari-backend/pkg/db/models"
	"github.com/acari-app/acari-backend/pkg/enums"
	"github.com/acari-app/acari-backend/pkg/outbox"
	"github.com/acari-app/acari-backend/pkg/outbox/payloads"
)

// EventDescriptor says where an event type is published and which aggregate
// it must carry.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string

	decode func(json.RawMessage) (any, error)
}

type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// bind builds a descriptor whose payload decodes into a fresh *T.
func bind[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:     eventType,
		AggregateType: aggregate,
		Topic:         topic,
		decode: func(raw json.RawMessage) (any, error) {
			payload := new(T)
			if err := json.Unmarshal(raw, payload); err != nil {
				return nil, err
			}
			return payload, nil
		},
	}
}

// NewEventRegistry sends billing lifecycle events to the billing topic and
// asset events to the assets topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	billing, assets := cfg.BillingTopic, cfg.AssetsTopic
	if billing == "" || assets == "" {
		return nil, errors.New("registry: billing and assets topics are required")
	}

	descriptors := []EventDescriptor{
		bind[payloads.PaymentFailedEvent](enums.EventPaymentFailed, enums.AggregatePaymentFailure, billing),
		bind[payloads.PaymentReminderSentEvent](enums.EventReminderSent, enums.AggregatePaymentFailure, billing),
		bind[payloads.PaymentRecoveredEvent](enums.EventPaymentRecovered, enums.AggregateSubscription, billing),
		bind[payloads.SubscriptionUpdatedEvent](enums.EventSubscriptionUpdated, enums.AggregateSubscription, billing),
		bind[payloads.SubscriptionExpiredEvent](enums.EventSubscriptionExpired, enums.AggregateSubscription, billing),
		bind[payloads.SubscriptionCanceledEvent](enums.EventSubscriptionCanceled, enums.AggregateSubscription, billing),
		bind[payloads.UserRegisteredEvent](enums.EventUserRegistered, enums.AggregateUser, billing),
		bind[payloads.AssetGeneratedEvent](enums.EventAssetGenerated, enums.AggregateAsset, assets),
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(descriptors))}
	for _, desc := range descriptors {
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// Resolve checks the row against its descriptor and decodes the payload.
// Every failure is a NonRetryableError: a malformed row never heals.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, nonRetryable("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, nonRetryable("aggregate mismatch: %s expects %s, row has %s", event.EventType, desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, nonRetryable("%s row has no aggregate_id", event.EventType)
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nonRetryable("%s envelope carries no data", event.EventType)
	}
	payload, err := desc.decode(envelope.Data)
	if err != nil {
		return nil, nonRetryable("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
