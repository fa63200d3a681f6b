package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/acari-app/acari-backend/pkg/redis"
)

// EventLedger remembers which Stripe event ids were already handled. Stripe
// retries deliveries for days, so the window should be at least that long.
type EventLedger struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewEventLedger(store redis.IdempotencyStore, ttl time.Duration, scope string) (*EventLedger, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case ttl <= 0:
		return nil, errors.New("ttl must be positive")
	case strings.TrimSpace(scope) == "":
		return nil, errors.New("scope is required")
	}
	return &EventLedger{store: store, ttl: ttl, scope: scope}, nil
}

// Claim records eventID and reports whether this call was the first to see
// it. The event type is stored as the value to ease debugging in Redis.
func (l *EventLedger) Claim(ctx context.Context, eventID, eventType string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	if eventType == "" {
		eventType = "unknown"
	}
	first, err := l.store.SetNX(ctx, l.store.IdempotencyKey(l.scope, eventID), eventType, l.ttl)
	if err != nil {
		return false, fmt.Errorf("claim stripe event %s: %w", eventID, err)
	}
	return first, nil
}

// Release forgets eventID so Stripe's next retry is processed again.
func (l *EventLedger) Release(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return l.store.Del(ctx, l.store.IdempotencyKey(l.scope, eventID))
}
