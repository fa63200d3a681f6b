package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataForKnownCodes(t *testing.T) {
	cases := []struct {
		code      Code
		status    int
		public    string
		retryable bool
		details   bool
		expose    bool
	}{
		{CodeValidation, http.StatusBadRequest, "validation failed", false, true, true},
		{CodeUnauthorized, http.StatusUnauthorized, "authentication required", false, false, true},
		{CodeForbidden, http.StatusForbidden, "access denied", false, false, true},
		{CodeNotFound, http.StatusNotFound, "resource not found", false, false, true},
		{CodeConflict, http.StatusConflict, "conflict detected", false, false, true},
		{CodeStateConflict, http.StatusUnprocessableEntity, "state transition disallowed", false, true, true},
		{CodeIdempotency, http.StatusConflict, "idempotency key reused", false, true, true},
		{CodeRateLimit, http.StatusTooManyRequests, "rate limit exceeded", false, true, true},
		{CodePaymentRequired, http.StatusPaymentRequired, "payment required", false, false, true},
		{CodeInternal, http.StatusInternalServerError, "internal server error", true, false, false},
		{CodeDependency, http.StatusServiceUnavailable, "dependency unavailable", true, true, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			assert.Equal(t, Metadata{
				HTTPStatus:     tc.status,
				PublicMessage:  tc.public,
				Retryable:      tc.retryable,
				DetailsAllowed: tc.details,
				ExposeMessage:  tc.expose,
			}, MetadataFor(tc.code))
		})
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	assert.Equal(t, http.StatusInternalServerError, meta.HTTPStatus)
	assert.False(t, meta.ExposeMessage, "internal errors must not expose messages")
}

func TestCodeForStatus(t *testing.T) {
	cases := map[int]Code{
		http.StatusPaymentRequired:     CodePaymentRequired,
		http.StatusTooManyRequests:     CodeRateLimit,
		http.StatusBadRequest:          CodeValidation,
		http.StatusUnprocessableEntity: CodeValidation,
		http.StatusInternalServerError: CodeDependency,
		http.StatusUnauthorized:        CodeDependency,
	}
	for status, want := range cases {
		assert.Equal(t, want, CodeForStatus(status), "status %d", status)
	}
}

func TestErrorAccessorsAndFormatting(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	assert.Equal(t, CodeValidation, base.Code())
	assert.Equal(t, "missing foo", base.Message())
	assert.Nil(t, base.Details())
	assert.Equal(t, map[string]any{"field": "foo"}, base.WithDetails(map[string]any{"field": "foo"}).Details())
	assert.Equal(t, "VALIDATION_ERROR: missing foo", base.Error())

	cause := stderrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "CONFLICT: ctx: boom", wrapped.Error())
	assert.Nil(t, Wrap(CodeConflict, nil, "ctx").Unwrap())
}

func TestNilErrorIsInert(t *testing.T) {
	var e *Error
	assert.Equal(t, CodeInternal, e.Code())
	assert.Empty(t, e.Message())
	assert.Empty(t, e.Error())
	assert.Nil(t, e.WithDetails("x"))
}

func TestAsIsAndIsCodeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeForbidden, "no entry"))

	typed := As(err)
	require.NotNil(t, typed)
	assert.Equal(t, CodeForbidden, typed.Code())
	assert.True(t, IsCode(err, CodeForbidden))
	assert.False(t, IsCode(err, CodeNotFound))
	assert.Nil(t, As(nil))
	assert.False(t, IsCode(nil, CodeInternal))

	assert.ErrorIs(t, err, New(CodeForbidden, "any message"))
	assert.NotErrorIs(t, err, New(CodeNotFound, ""))
}
