// Package errors is the service error taxonomy. Every error that reaches an
// HTTP response is mapped to a Code, and the Code alone decides the status,
// the public message, and whether details are shown.
package errors

import (
	stderrors "errors"
	"net/http"
	"strings"
)

type Code string

const (
	CodeValidation      Code = "VALIDATION_ERROR"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeStateConflict   Code = "STATE_CONFLICT"
	CodeIdempotency     Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit       Code = "RATE_LIMIT_EXCEEDED"
	CodePaymentRequired Code = "PAYMENT_REQUIRED"
	CodeInternal        Code = "INTERNAL_ERROR"
	CodeDependency      Code = "DEPENDENCY_ERROR"
)

// Metadata describes how a Code is rendered over HTTP.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	// ExposeMessage lets the caller-supplied message replace PublicMessage.
	ExposeMessage bool
}

type flag uint8

const (
	retryable flag = 1 << iota
	details
	expose
)

func describe(status int, public string, flags flag) Metadata {
	return Metadata{
		HTTPStatus:     status,
		PublicMessage:  public,
		Retryable:      flags&retryable != 0,
		DetailsAllowed: flags&details != 0,
		ExposeMessage:  flags&expose != 0,
	}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:      describe(http.StatusBadRequest, "validation failed", details|expose),
	CodeUnauthorized:    describe(http.StatusUnauthorized, "authentication required", expose),
	CodeForbidden:       describe(http.StatusForbidden, "access denied", expose),
	CodeNotFound:        describe(http.StatusNotFound, "resource not found", expose),
	CodeConflict:        describe(http.StatusConflict, "conflict detected", expose),
	CodeStateConflict:   describe(http.StatusUnprocessableEntity, "state transition disallowed", details|expose),
	CodeIdempotency:     describe(http.StatusConflict, "idempotency key reused", details|expose),
	CodeRateLimit:       describe(http.StatusTooManyRequests, "rate limit exceeded", details|expose),
	CodePaymentRequired: describe(http.StatusPaymentRequired, "payment required", expose),
	CodeInternal:        describe(http.StatusInternalServerError, "internal server error", retryable),
	CodeDependency:      describe(http.StatusServiceUnavailable, "dependency unavailable", retryable|details),
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// CodeForStatus maps an upstream HTTP status onto the taxonomy. Providers'
// 402 and 429 keep their meaning; a rejected request is ours to fix, so it
// is a validation error; anything else is a dependency failure.
func CodeForStatus(status int) Code {
	switch status {
	case http.StatusPaymentRequired:
		return CodePaymentRequired
	case http.StatusTooManyRequests:
		return CodeRateLimit
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return CodeValidation
	default:
		return CodeDependency
	}
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches code and message to err. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(v any) *Error {
	if e != nil {
		e.details = v
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(string(e.code))
	b.WriteString(": ")
	b.WriteString(e.message)
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches another *Error by code, so errors.Is(err, New(CodeNotFound, ""))
// works regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e != nil && t != nil && e.code == t.code
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if stderrors.As(err, &typed) {
		return typed
	}
	return nil
}

func IsCode(err error, code Code) bool {
	return As(err).codeIs(code)
}

func (e *Error) codeIs(code Code) bool {
	return e != nil && e.code == code
}
