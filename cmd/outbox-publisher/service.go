package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/acari-app/acari-backend/pkg/config"
	"github.com/acari-app/acari-backend/pkg/db/models"
	"github.com/acari-app/acari-backend/pkg/enums"
	"github.com/acari-app/acari-backend/pkg/logger"
	"github.com/acari-app/acari-backend/pkg/metrics"
	"github.com/acari-app/acari-backend/pkg/outbox/registry"
	"github.com/acari-app/acari-backend/pkg/pubsub"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultMaxAttempts    = 10
	defaultPublishTimeout = 15 * time.Second
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publish(ctx context.Context, topic string, msg *gcppubsub.Message) (string, error)
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// verdict is what the publisher decided for one row.
type verdict struct {
	outcome string
	reason  enums.OutboxDLQErrorReason
	cause   error
}

const (
	outcomePublished  = "published"
	outcomeRetry      = "retry"
	outcomeDeadLetter = "dead_letter"
)

type ServiceParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            dbClient
	PubSub        pubSubClient
	Repository    outboxRepository
	Registry      registryResolver
	DLQRepository dlqRepository
	// Metrics is optional.
	Metrics *metrics.OutboxMetrics
}

func (p ServiceParams) validate() error {
	var errs error
	for _, missing := range []struct {
		ok   bool
		name string
	}{
		{p.Config != nil, "config"},
		{p.Logger != nil, "logger"},
		{p.DB != nil, "database client"},
		{p.PubSub != nil, "pubsub client"},
		{p.Repository != nil, "outbox repository"},
		{p.Registry != nil, "event registry"},
		{p.DLQRepository != nil, "dlq repository"},
	} {
		if !missing.ok {
			errs = multierr.Append(errs, fmt.Errorf("%s is required", missing.name))
		}
	}
	return errs
}

// Service drains outbox_events into Pub/Sub. Rows that can never publish
// move to outbox_dlq in the same transaction that marks them terminal.
type Service struct {
	ServiceParams
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
	now          func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	cfg := params.Config.Outbox
	return &Service{
		ServiceParams: params,
		batchSize:     positiveOr(cfg.BatchSize, defaultBatchSize),
		maxAttempts:   positiveOr(cfg.MaxAttempts, defaultMaxAttempts),
		pollInterval:  time.Duration(positiveOr(cfg.PollIntervalMS, defaultPollMs)) * time.Millisecond,
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

func positiveOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// Run polls until ctx is canceled. A full batch is followed immediately by
// the next; a failed batch backs off exponentially up to maxBackoff.
func (s *Service) Run(ctx context.Context) error {
	if err := s.DB.Ping(ctx); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	if err := s.PubSub.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub not ready: %w", err)
	}

	backoff := s.pollInterval
	for ctx.Err() == nil {
		busy, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.Logger.Error(ctx, "outbox.batch.failed", err)
			backoff = nextBackoff(backoff, s.pollInterval, maxBackoff)
			err = s.sleep(ctx, withJitter(backoff))
		case busy:
			backoff = s.pollInterval
			continue
		default:
			backoff = s.pollInterval
			err = s.sleep(ctx, withJitter(s.pollInterval))
		}
		if err != nil {
			break
		}
	}
	s.Logger.Info(ctx, "outbox.publisher.stopped")
	return ctx.Err()
}

// processBatch handles one locked batch and reports whether it found rows.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	start := time.Now()
	var rows int
	tally := map[string]int{}
	err := s.DB.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.Repository.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		rows = len(events)
		for _, event := range events {
			v := s.classify(ctx, event)
			if err := s.record(ctx, tx, event, v); err != nil {
				return err
			}
			tally[v.outcome]++
			s.Metrics.Row(string(event.EventType), v.outcome)
		}
		return nil
	})
	if err != nil || rows == 0 {
		return false, err
	}
	s.Metrics.Batch(time.Since(start))
	s.Logger.Debug(s.Logger.WithFields(ctx, map[string]any{
		"batch":      rows,
		"published":  tally[outcomePublished],
		"retry":      tally[outcomeRetry],
		"deadLetter": tally[outcomeDeadLetter],
	}), "outbox.batch.done")
	return rows > 0, nil
}

// classify resolves and publishes one row and decides what happens to it.
func (s *Service) classify(ctx context.Context, event models.OutboxEvent) verdict {
	resolved, err := s.Registry.Resolve(event)
	if err != nil {
		return verdict{outcome: outcomeDeadLetter, reason: enums.OutboxDLQReasonNonRetryable, cause: err}
	}
	err = s.publish(ctx, event, resolved)
	var nonRetry registry.NonRetryableError
	switch {
	case err == nil:
		return verdict{outcome: outcomePublished}
	case errors.As(err, &nonRetry):
		return verdict{outcome: outcomeDeadLetter, reason: enums.OutboxDLQReasonNonRetryable, cause: err}
	case event.AttemptCount+1 >= s.maxAttempts:
		return verdict{outcome: outcomeDeadLetter, reason: enums.OutboxDLQReasonMaxAttempts,
			cause: fmt.Errorf("max publish attempts reached: %w", err)}
	default:
		return verdict{outcome: outcomeRetry, cause: err}
	}
}

// record persists a verdict. Its error aborts the batch transaction.
func (s *Service) record(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, v verdict) error {
	ctx = s.Logger.WithFields(ctx, map[string]any{
		"outboxId":     event.ID.String(),
		"eventType":    event.EventType,
		"aggregateId":  event.AggregateID.String(),
		"attemptCount": event.AttemptCount,
	})
	switch v.outcome {
	case outcomePublished:
		if err := s.Repository.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.Logger.Info(ctx, "outbox.event.published")
	case outcomeRetry:
		s.Logger.Warn(s.Logger.WithField(ctx, "error", v.cause.Error()), "outbox.event.retry")
		if err := s.Repository.MarkFailedTx(tx, event.ID, v.cause); err != nil {
			return fmt.Errorf("mark failed %s: %w", event.ID, err)
		}
	case outcomeDeadLetter:
		s.Logger.Warn(s.Logger.WithFields(ctx, map[string]any{
			"error":  v.cause.Error(),
			"reason": v.reason,
		}), "outbox.event.dead_lettered")
		msg := v.cause.Error()
		if err := s.DLQRepository.InsertTx(tx, models.OutboxDLQ{
			EventID:       event.ID,
			EventType:     event.EventType,
			AggregateType: event.AggregateType,
			AggregateID:   event.AggregateID,
			Payload:       event.Payload,
			ErrorReason:   v.reason,
			ErrorMessage:  &msg,
			AttemptCount:  event.AttemptCount,
			FailedAt:      s.now(),
		}); err != nil {
			return fmt.Errorf("insert dlq %s: %w", event.ID, err)
		}
		if err := s.Repository.MarkTerminalTx(tx, event.ID, v.cause, s.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", event.ID, err)
		}
	}
	return nil
}

// publish waits for the broker ack. A topic the client does not know is a
// configuration error that retrying will not fix.
func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	ctx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	_, err := s.PubSub.Publish(ctx, resolved.Descriptor.Topic, &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	})
	if errors.Is(err, pubsub.ErrUnknownTopic) {
		return registry.NewNonRetryableError(err)
	}
	return err
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, limit time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	return min(current*2, limit)
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}
