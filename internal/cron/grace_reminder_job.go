package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/acari-app/acari-backend/internal/reminders"
	"github.com/acari-app/acari-backend/pkg/logger"
	"go.uber.org/multierr"
)

// GraceReminderJobParams configures the payment reminder scan.
type GraceReminderJobParams struct {
	Logger  *logger.Logger
	Scanner reminderScanner
}

type reminderScanner interface {
	Scan(ctx context.Context, now time.Time) (reminders.ScanSummary, error)
}

// NewGraceReminderJob builds the job that sends 5-day, 3-day and final
// reminders for open payment failures.
func NewGraceReminderJob(params GraceReminderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Scanner == nil {
		return nil, fmt.Errorf("reminder scanner required")
	}
	return &graceReminderJob{
		logg:    params.Logger,
		scanner: params.Scanner,
		now:     time.Now,
	}, nil
}

type graceReminderJob struct {
	logg    *logger.Logger
	scanner reminderScanner
	now     func() time.Time
}

func (j *graceReminderJob) Name() string { return "grace-reminders" }

// Run scans once. Per-record send failures are logged, not returned.
func (j *graceReminderJob) Run(ctx context.Context) error {
	summary, err := j.scanner.Scan(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("grace reminder scan: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": summary.Candidates,
		"sent":       summary.Sent,
		"skipped":    summary.Skipped,
		"failed":     summary.Failed,
	})
	if summary.Errors != nil {
		failCtx := j.logg.WithField(logCtx, "error_count", len(multierr.Errors(summary.Errors)))
		j.logg.Error(failCtx, "grace reminder scan had failures", summary.Errors)
	}
	j.logg.Info(logCtx, "grace reminder scan complete")
	return nil
}
