package reminders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/acari-app/acari-backend/pkg/enums"
	pkgerrors "github.com/acari-app/acari-backend/pkg/errors"
	"github.com/acari-app/acari-backend/pkg/logger"
)

type candidateReader interface {
	ListEvaluable(ctx context.Context) ([]Candidate, error)
	Get(ctx context.Context, failureID uuid.UUID) (*Candidate, error)
}

type roleChecker interface {
	HasRole(ctx context.Context, userID uuid.UUID, role enums.UserRole) (bool, error)
}

type processor interface {
	Process(ctx context.Context, source Source, c Candidate, now time.Time) (Result, error)
}

type ServiceParams struct {
	Repo      candidateReader
	Roles     roleChecker
	Processor processor
	Logger    *logger.Logger
}

type Service struct {
	repo      candidateReader
	roles     roleChecker
	processor processor
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("reminder repository required")
	}
	if params.Roles == nil {
		return nil, errors.New("role checker required")
	}
	if params.Processor == nil {
		return nil, errors.New("reminder processor required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &Service{
		repo:      params.Repo,
		roles:     params.Roles,
		processor: params.Processor,
		logg:      params.Logger,
		now:       time.Now,
	}, nil
}

// ScanSummary totals one pass over every evaluable failure.
type ScanSummary struct {
	Candidates int
	Sent       int
	Skipped    int
	Failed     int
	// Errors aggregates per-record failures; they never abort the scan.
	Errors error
}

// Scan evaluates every unresolved failure at now. Only the fetch can fail it.
func (s *Service) Scan(ctx context.Context, now time.Time) (ScanSummary, error) {
	candidates, err := s.repo.ListEvaluable(ctx)
	if err != nil {
		return ScanSummary{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list reminder candidates")
	}
	summary := ScanSummary{Candidates: len(candidates)}
	for _, c := range candidates {
		if ctx.Err() != nil {
			summary.Errors = multierr.Append(summary.Errors, ctx.Err())
			break
		}
		res, procErr := s.processor.Process(ctx, SourceCron, c, now)
		switch {
		case procErr != nil:
			summary.Failed++
			summary.Errors = multierr.Append(summary.Errors, procErr)
		case res.Send():
			summary.Sent++
		default:
			summary.Skipped++
		}
	}
	return summary, nil
}

// TriggerResult is returned to the admin after a manual send.
type TriggerResult struct {
	Tier               Tier      `json:"tier"`
	DaysRemaining      int       `json:"daysRemaining"`
	ReminderCount      int       `json:"reminderCount"`
	LastReminderSentAt time.Time `json:"lastReminderSentAt"`
}

// Trigger sends the reminder for one failure on behalf of an admin. Unlike
// the scan, every reason not to send is reported back as an error.
func (s *Service) Trigger(ctx context.Context, actorID, failureID uuid.UUID) (*TriggerResult, error) {
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	isAdmin, err := s.roles.HasRole(ctx, actorID, enums.UserRoleAdmin)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check admin role")
	}
	if !isAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}

	candidate, err := s.repo.Get(ctx, failureID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment failure not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment failure")
	}

	ctx = s.logg.WithUserID(ctx, actorID.String())
	res, err := s.processor.Process(ctx, SourceManual, *candidate, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to send payment reminder")
	}
	if err := triggerError(res.Decision); err != nil {
		return nil, err
	}
	out := &TriggerResult{
		Tier:          res.Tier,
		DaysRemaining: res.DaysRemaining,
		ReminderCount: res.ReminderCount,
	}
	if res.LastReminderSentAt != nil {
		out.LastReminderSentAt = *res.LastReminderSentAt
	}
	return out, nil
}

func triggerError(d Decision) error {
	days := map[string]any{"daysRemaining": d.DaysRemaining}
	switch d.Outcome {
	case OutcomeSent:
		return nil
	case OutcomeSkippedResolved:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment failure is already resolved")
	case OutcomeSkippedNoGrace:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "subscription has no active grace period")
	case OutcomeSkippedExpired:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "grace period has already ended").WithDetails(days)
	case OutcomeSkippedThreshold:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "no reminder is scheduled for this day").WithDetails(days)
	case OutcomeSkippedDedupe:
		return pkgerrors.New(pkgerrors.CodeRateLimit, "a reminder was already sent in the last 24 hours").WithDetails(days)
	default:
		return pkgerrors.New(pkgerrors.CodeInternal, "unexpected reminder outcome")
	}
}

// FailureView is one row of the admin payment-failure listing.
type FailureView struct {
	ID                 uuid.UUID  `json:"id"`
	SubscriptionID     uuid.UUID  `json:"subscriptionId"`
	UserID             uuid.UUID  `json:"userId"`
	Email              string     `json:"email"`
	FailureReason      *string    `json:"failureReason,omitempty"`
	GracePeriodEnd     time.Time  `json:"gracePeriodEnd"`
	DaysRemaining      int        `json:"daysRemaining"`
	Tier               *Tier      `json:"tier,omitempty"`
	DueNow             bool       `json:"dueNow"`
	ReminderCount      int        `json:"reminderCount"`
	LastReminderSentAt *time.Time `json:"lastReminderSentAt,omitempty"`
}

// ListOpen returns unresolved failures with their computed schedule state.
func (s *Service) ListOpen(ctx context.Context) ([]FailureView, error) {
	candidates, err := s.repo.ListEvaluable(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payment failures")
	}
	now := s.now().UTC()
	views := make([]FailureView, 0, len(candidates))
	for _, c := range candidates {
		d := Evaluate(c, now)
		view := FailureView{
			ID:                 c.FailureID,
			SubscriptionID:     c.SubscriptionID,
			UserID:             c.UserID,
			Email:              c.Email,
			FailureReason:      c.FailureReason,
			GracePeriodEnd:     *c.GracePeriodEnd,
			DaysRemaining:      d.DaysRemaining,
			DueNow:             d.Send(),
			ReminderCount:      c.ReminderCount,
			LastReminderSentAt: c.LastReminderSentAt,
		}
		if d.Tier != "" {
			tier := d.Tier
			view.Tier = &tier
		}
		views = append(views, view)
	}
	return views, nil
}
