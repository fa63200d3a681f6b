package reminders

import (
	"math"
	"time"
)

// Tier names the urgency of a payment reminder.
type Tier string

const (
	TierFiveDay  Tier = "5-day"
	TierThreeDay Tier = "3-day"
	TierFinal    Tier = "final"
)

// DedupeWindow is the minimum spacing between two reminders for one failure.
const DedupeWindow = 24 * time.Hour

var tierByDays = map[int]Tier{
	5: TierFiveDay,
	3: TierThreeDay,
	1: TierFinal,
}

// DaysRemaining returns ceil((graceEnd - now) / 24h).
func DaysRemaining(graceEnd, now time.Time) int {
	return int(math.Ceil(graceEnd.Sub(now).Hours() / 24))
}

// TierFor maps days remaining to a reminder tier. Only 5, 3 and 1 send.
func TierFor(days int) (Tier, bool) {
	tier, ok := tierByDays[days]
	return tier, ok
}

// Urgent reports whether the email should use urgent styling.
func Urgent(days int) bool {
	return days <= 1
}

// WithinDedupeWindow reports whether a reminder went out less than 24h before now.
func WithinDedupeWindow(lastSent *time.Time, now time.Time) bool {
	if lastSent == nil {
		return false
	}
	return now.Sub(*lastSent) < DedupeWindow
}

// Outcome is the result of evaluating one payment failure.
type Outcome string

const (
	OutcomeSent             Outcome = "sent"
	OutcomeSkippedResolved  Outcome = "skipped_resolved"
	OutcomeSkippedNoGrace   Outcome = "skipped_no_grace"
	OutcomeSkippedExpired   Outcome = "skipped_expired"
	OutcomeSkippedThreshold Outcome = "skipped_threshold"
	OutcomeSkippedDedupe    Outcome = "skipped_dedupe"
	OutcomeFailed           Outcome = "failed"
)

// Decision is what Evaluate concluded for a candidate at a given instant.
type Decision struct {
	Outcome       Outcome
	Tier          Tier
	DaysRemaining int
}

// Send reports whether the decision calls for an email.
func (d Decision) Send() bool {
	return d.Outcome == OutcomeSent
}

// Evaluate applies the threshold policy and then the de-dupe guard.
func Evaluate(c Candidate, now time.Time) Decision {
	if c.Resolved {
		return Decision{Outcome: OutcomeSkippedResolved}
	}
	if c.GracePeriodEnd == nil {
		return Decision{Outcome: OutcomeSkippedNoGrace}
	}
	days := DaysRemaining(*c.GracePeriodEnd, now)
	if days <= 0 {
		return Decision{Outcome: OutcomeSkippedExpired, DaysRemaining: days}
	}
	tier, ok := TierFor(days)
	if !ok {
		return Decision{Outcome: OutcomeSkippedThreshold, DaysRemaining: days}
	}
	if WithinDedupeWindow(c.LastReminderSentAt, now) {
		return Decision{Outcome: OutcomeSkippedDedupe, Tier: tier, DaysRemaining: days}
	}
	return Decision{Outcome: OutcomeSent, Tier: tier, DaysRemaining: days}
}
