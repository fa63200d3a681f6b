package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/acari-app/acari-backend/internal/reminders"
	"github.com/acari-app/acari-backend/internal/subscriptions"
	"github.com/acari-app/acari-backend/pkg/logger"
)

type fakeScanner struct {
	summary reminders.ScanSummary
	err     error
	at      time.Time
}

func (f *fakeScanner) Scan(_ context.Context, now time.Time) (reminders.ScanSummary, error) {
	f.at = now
	return f.summary, f.err
}

func TestGraceReminderJobToleratesRecordFailures(t *testing.T) {
	scanner := &fakeScanner{summary: reminders.ScanSummary{
		Candidates: 3, Sent: 1, Skipped: 1, Failed: 1,
		Errors: multierr.Append(nil, errors.New("sendgrid 500")),
	}}
	jobIface, err := NewGraceReminderJob(GraceReminderJobParams{Logger: logger.Nop(), Scanner: scanner})
	if err != nil {
		t.Fatalf("NewGraceReminderJob: %v", err)
	}
	if jobIface.Name() != "grace-reminders" {
		t.Fatalf("unexpected job name %q", jobIface.Name())
	}
	job := jobIface.(*graceReminderJob)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("expected per-record failures to be swallowed, got %v", err)
	}
	if !scanner.at.Equal(now) {
		t.Fatalf("expected scan at %s, got %s", now, scanner.at)
	}
}

func TestGraceReminderJobFailsOnFetchError(t *testing.T) {
	jobIface, err := NewGraceReminderJob(GraceReminderJobParams{
		Logger:  logger.Nop(),
		Scanner: &fakeScanner{err: errors.New("db down")},
	})
	if err != nil {
		t.Fatalf("NewGraceReminderJob: %v", err)
	}
	if err := jobIface.Run(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
}

type fakeExpirer struct {
	due     []subscriptions.GraceExpiry
	failFor map[uuid.UUID]bool
	expired []uuid.UUID
}

func (f *fakeExpirer) ListGraceExpired(context.Context, time.Time) ([]subscriptions.GraceExpiry, error) {
	return f.due, nil
}

func (f *fakeExpirer) ExpireGrace(_ context.Context, item subscriptions.GraceExpiry, _ time.Time) error {
	if f.failFor[item.SubscriptionID] {
		return errors.New("stripe unavailable")
	}
	f.expired = append(f.expired, item.SubscriptionID)
	return nil
}

func TestGraceExpiryJobIsolatesFailures(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	expirer := &fakeExpirer{
		due: []subscriptions.GraceExpiry{
			{SubscriptionID: a}, {SubscriptionID: b}, {SubscriptionID: c},
		},
		failFor: map[uuid.UUID]bool{b: true},
	}
	job, err := NewGraceExpiryJob(GraceExpiryJobParams{Logger: logger.Nop(), Expirer: expirer})
	if err != nil {
		t.Fatalf("NewGraceExpiryJob: %v", err)
	}
	err = job.Run(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if got := len(multierr.Errors(err)); got != 1 {
		t.Fatalf("expected 1 error, got %d", got)
	}
	if len(expirer.expired) != 2 || expirer.expired[0] != a || expirer.expired[1] != c {
		t.Fatalf("expected a and c expired, got %v", expirer.expired)
	}
}

func TestGraceExpiryJobExpiresEachSubscriptionOnce(t *testing.T) {
	sub := uuid.New()
	expirer := &fakeExpirer{due: []subscriptions.GraceExpiry{
		{FailureID: uuid.New(), SubscriptionID: sub},
		{FailureID: uuid.New(), SubscriptionID: sub},
	}}
	job, err := NewGraceExpiryJob(GraceExpiryJobParams{Logger: logger.Nop(), Expirer: expirer})
	if err != nil {
		t.Fatalf("NewGraceExpiryJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(expirer.expired) != 1 || expirer.expired[0] != sub {
		t.Fatalf("expected a single expiry for %s, got %v", sub, expirer.expired)
	}
}
