package slug

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMake(t *testing.T) {
	cases := map[string]string{
		"Hello World":               "hello-world",
		"  Café   Crème Brûlée!! ":  "cafe-creme-brulee",
		"Q3 2026: Growth & Revenue": "q3-2026-growth-revenue",
		"---":                       "",
		"already-a-slug":            "already-a-slug",
		"Ünïcödé_and_underscores":   "unicode-and-underscores",
	}
	for in, want := range cases {
		assert.Equal(t, want, Make(in), in)
	}
}

func TestMakeTruncates(t *testing.T) {
	got := Make(strings.Repeat("word ", 40))
	assert.LessOrEqual(t, len(got), maxLength)
	assert.False(t, strings.HasSuffix(got, "-"))
}

func TestWithSuffix(t *testing.T) {
	got, err := WithSuffix("acme-bakery")
	require.NoError(t, err)
	assert.Regexp(t, `^acme-bakery-[a-z0-9]{6}$`, got)

	long, err := WithSuffix(Make(strings.Repeat("x", 200)))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(long), maxLength)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("spring-menu"))
	assert.False(t, Valid("Spring Menu"))
	assert.False(t, Valid(""))
}
