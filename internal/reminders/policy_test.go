package reminders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDaysRemainingRoundsUp(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	cases := []struct {
		name     string
		graceEnd time.Time
		want     int
	}{
		{name: "exactly five days", graceEnd: now.Add(5 * 24 * time.Hour), want: 5},
		{name: "four days and a minute", graceEnd: now.Add(4*24*time.Hour + time.Minute), want: 5},
		{name: "one hour", graceEnd: now.Add(time.Hour), want: 1},
		{name: "now", graceEnd: now, want: 0},
		{name: "yesterday", graceEnd: now.Add(-24 * time.Hour), want: -1},
		{name: "half a day ago", graceEnd: now.Add(-12 * time.Hour), want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DaysRemaining(tc.graceEnd, now))
		})
	}
}

func TestTierForOnlyMapsPolicyDays(t *testing.T) {
	for days := -10; days <= 30; days++ {
		tier, ok := TierFor(days)
		switch days {
		case 5:
			assert.Equal(t, TierFiveDay, tier)
		case 3:
			assert.Equal(t, TierThreeDay, tier)
		case 1:
			assert.Equal(t, TierFinal, tier)
		default:
			assert.False(t, ok, "day %d must not map to a tier", days)
		}
	}
}

func TestUrgentAtOrBelowOneDay(t *testing.T) {
	assert.True(t, Urgent(1))
	assert.True(t, Urgent(0))
	assert.False(t, Urgent(3))
}

func TestEvaluateNeverSendsOffPolicyDays(t *testing.T) {
	now := time.Now().UTC()
	for days := 1; days <= 14; days++ {
		graceEnd := now.Add(time.Duration(days) * 24 * time.Hour)
		d := Evaluate(Candidate{GracePeriodEnd: &graceEnd}, now)
		if days == 5 || days == 3 || days == 1 {
			assert.True(t, d.Send(), "day %d should send", days)
			continue
		}
		assert.Equal(t, OutcomeSkippedThreshold, d.Outcome, "day %d", days)
	}
}

func TestEvaluateSkipsExpiredGrace(t *testing.T) {
	now := time.Now().UTC()
	for hours := 0; hours <= 240; hours += 6 {
		graceEnd := now.Add(-time.Duration(hours) * time.Hour)
		d := Evaluate(Candidate{GracePeriodEnd: &graceEnd}, now)
		assert.Equal(t, OutcomeSkippedExpired, d.Outcome, "%dh past", hours)
		assert.LessOrEqual(t, d.DaysRemaining, 0)
	}
}

func TestEvaluateDedupeWinsOverEveryTier(t *testing.T) {
	now := time.Now().UTC()
	for _, days := range []int{5, 3, 1} {
		for _, ago := range []time.Duration{time.Minute, 2 * time.Hour, 23*time.Hour + 59*time.Minute} {
			graceEnd := now.Add(time.Duration(days) * 24 * time.Hour)
			last := now.Add(-ago)
			d := Evaluate(Candidate{GracePeriodEnd: &graceEnd, LastReminderSentAt: &last}, now)
			assert.Equal(t, OutcomeSkippedDedupe, d.Outcome, "days=%d ago=%s", days, ago)
		}
	}
}

func TestEvaluateSendsAgainAfterWindow(t *testing.T) {
	now := time.Now().UTC()
	graceEnd := now.Add(3 * 24 * time.Hour)
	last := now.Add(-DedupeWindow)
	d := Evaluate(Candidate{GracePeriodEnd: &graceEnd, LastReminderSentAt: &last}, now)
	assert.Equal(t, OutcomeSent, d.Outcome)
	assert.Equal(t, TierThreeDay, d.Tier)
}

func TestEvaluateResolvedAndMissingGrace(t *testing.T) {
	now := time.Now().UTC()
	graceEnd := now.Add(5 * 24 * time.Hour)
	assert.Equal(t, OutcomeSkippedResolved, Evaluate(Candidate{Resolved: true, GracePeriodEnd: &graceEnd}, now).Outcome)
	assert.Equal(t, OutcomeSkippedNoGrace, Evaluate(Candidate{}, now).Outcome)
}
