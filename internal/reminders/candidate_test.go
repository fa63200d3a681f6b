package reminders

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCandidateNamePrefersDisplayName(t *testing.T) {
	display := " Ada L. "
	assert.Equal(t, "Ada L.", Candidate{FirstName: "Ada", LastName: "Lovelace", DisplayName: &display}.Name())
	assert.Equal(t, "Ada Lovelace", Candidate{FirstName: "Ada", LastName: "Lovelace"}.Name())
}

func TestCandidateAmount(t *testing.T) {
	assert.Equal(t, "$29.00", Candidate{MonthlyPrice: decimal.NewFromInt(29), Currency: "usd"}.Amount())
	assert.Equal(t, "9.50 EUR", Candidate{MonthlyPrice: decimal.RequireFromString("9.5"), Currency: "eur"}.Amount())
}
