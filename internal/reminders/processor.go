package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/acari-app/acari-backend/internal/emails"
	"github.com/acari-app/acari-backend/pkg/enums"
	"github.com/acari-app/acari-backend/pkg/logger"
	"github.com/acari-app/acari-backend/pkg/metrics"
	"github.com/acari-app/acari-backend/pkg/outbox"
	"github.com/acari-app/acari-backend/pkg/outbox/payloads"
)

// Source identifies which call site evaluated a failure.
type Source string

const (
	SourceCron   Source = "cron"
	SourceManual Source = "manual"
)

// Sender delivers a rendered reminder.
type Sender interface {
	SendPaymentReminder(ctx context.Context, r emails.PaymentReminder) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stamper interface {
	StampSent(ctx context.Context, tx *gorm.DB, failureID uuid.UUID, sentAt time.Time) (int, error)
}

// Result is the outcome of Process for one candidate.
type Result struct {
	Decision
	ReminderCount      int
	LastReminderSentAt *time.Time
}

type ProcessorParams struct {
	DB      txRunner
	Repo    stamper
	Sender  Sender
	Outbox  outbox.Emitter
	Metrics *metrics.ReminderMetrics
	Logger  *logger.Logger
}

// Processor evaluates a candidate, sends when due and stamps the send.
// Both the scheduled scan and the admin trigger go through Process.
type Processor struct {
	db      txRunner
	repo    stamper
	sender  Sender
	outbox  outbox.Emitter
	metrics *metrics.ReminderMetrics
	logg    *logger.Logger
}

func NewProcessor(params ProcessorParams) (*Processor, error) {
	if params.DB == nil {
		return nil, errors.New("db runner required")
	}
	if params.Repo == nil {
		return nil, errors.New("reminder repository required")
	}
	if params.Sender == nil {
		return nil, errors.New("reminder sender required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &Processor{
		db:      params.DB,
		repo:    params.Repo,
		sender:  params.Sender,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

// Process runs evaluate → send → stamp for c at now. A skip is not an error.
// The returned error is non-nil only when the email or the stamp failed.
func (p *Processor) Process(ctx context.Context, source Source, c Candidate, now time.Time) (Result, error) {
	now = now.UTC()
	decision := Evaluate(c, now)
	result := Result{
		Decision:           decision,
		ReminderCount:      c.ReminderCount,
		LastReminderSentAt: c.LastReminderSentAt,
	}
	ctx = p.logg.WithFields(ctx, map[string]any{
		"payment_failure_id": c.FailureID.String(),
		"subscription_id":    c.SubscriptionID.String(),
		"source":             string(source),
		"days_remaining":     decision.DaysRemaining,
		"outcome":            string(decision.Outcome),
	})

	if !decision.Send() {
		p.metrics.Observe(string(source), string(decision.Outcome))
		p.logg.Debug(ctx, "reminders.skipped")
		return result, nil
	}

	err := p.sender.SendPaymentReminder(ctx, emails.PaymentReminder{
		To:             c.Email,
		Name:           c.Name(),
		Tier:           string(decision.Tier),
		DaysRemaining:  decision.DaysRemaining,
		GracePeriodEnd: *c.GracePeriodEnd,
		Amount:         c.Amount(),
		FailureReason:  c.reason(),
		Urgent:         Urgent(decision.DaysRemaining),
	})
	if err != nil {
		result.Outcome = OutcomeFailed
		p.metrics.Observe(string(source), string(OutcomeFailed))
		p.logg.Error(ctx, "reminders.send_failed", err)
		return result, fmt.Errorf("send reminder for %s: %w", c.FailureID, err)
	}

	var count int
	err = p.db.WithTx(ctx, func(tx *gorm.DB) error {
		var stampErr error
		count, stampErr = p.repo.StampSent(ctx, tx, c.FailureID, now)
		if stampErr != nil {
			return stampErr
		}
		return p.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReminderSent,
			AggregateType: enums.AggregatePaymentFailure,
			AggregateID:   c.FailureID,
			OccurredAt:    now,
			Data: payloads.PaymentReminderSentEvent{
				PaymentFailureID: c.FailureID,
				SubscriptionID:   c.SubscriptionID,
				Tier:             string(decision.Tier),
				DaysRemaining:    decision.DaysRemaining,
				ReminderCount:    count,
				Source:           string(source),
				SentAt:           now,
			},
		})
	})
	if err != nil {
		// The email already went out; the next run may send one duplicate.
		result.Outcome = OutcomeFailed
		p.metrics.Observe(string(source), string(OutcomeFailed))
		p.logg.Error(ctx, "reminders.stamp_failed", err)
		return result, fmt.Errorf("stamp reminder for %s: %w", c.FailureID, err)
	}

	p.metrics.Observe(string(source), string(OutcomeSent))
	sentAt := now
	result.ReminderCount = count
	result.LastReminderSentAt = &sentAt
	p.logg.Info(p.logg.WithField(ctx, "tier", string(decision.Tier)), "reminders.sent")
	return result, nil
}
