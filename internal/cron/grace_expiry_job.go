package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/acari-app/acari-backend/internal/subscriptions"
	"github.com/acari-app/acari-backend/pkg/logger"
)

// GraceExpiryJobParams configures the grace-period expiry cron job.
type GraceExpiryJobParams struct {
	Logger  *logger.Logger
	Expirer graceExpirer
	Now     func() time.Time
}

type graceExpirer interface {
	ListGraceExpired(ctx context.Context, now time.Time) ([]subscriptions.GraceExpiry, error)
	ExpireGrace(ctx context.Context, item subscriptions.GraceExpiry, now time.Time) error
}

// NewGraceExpiryJob builds the job that cancels subscriptions whose grace
// period ended without a successful payment.
func NewGraceExpiryJob(params GraceExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Expirer == nil {
		return nil, fmt.Errorf("grace expirer required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &graceExpiryJob{
		logg:    params.Logger,
		expirer: params.Expirer,
		now:     now,
	}, nil
}

type graceExpiryJob struct {
	logg    *logger.Logger
	expirer graceExpirer
	now     func() time.Time
}

func (j *graceExpiryJob) Name() string { return "grace-expiry" }

func (j *graceExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	due, err := j.expirer.ListGraceExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("list expired grace periods: %w", err)
	}
	var errs error
	expired := 0
	seen := make(map[uuid.UUID]struct{}, len(due))
	for _, item := range due {
		if _, dup := seen[item.SubscriptionID]; dup {
			continue
		}
		seen[item.SubscriptionID] = struct{}{}
		if err := j.expirer.ExpireGrace(ctx, item, now); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire subscription %s: %w", item.SubscriptionID, err))
			continue
		}
		expired++
	}
	reportCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(due),
		"expired":    expired,
		"failed":     len(multierr.Errors(errs)),
	})
	j.logg.Info(reportCtx, "grace expiry loop complete")
	return errs
}
