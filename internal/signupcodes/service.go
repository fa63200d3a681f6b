package signupcodes

import (
	"context"
	"errors"
	"math"
	"net/mail"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	pkgerrors "github.com/acari-app/acari-backend/pkg/errors"
	"github.com/acari-app/acari-backend/pkg/logger"
)

const (
	codeAlphabet    = "0123456789"
	codeLength      = 6
	defaultTTL      = 10 * time.Minute
	defaultCooldown = 60 * time.Second
)

type codeStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Del(ctx context.Context, keys ...string) error
	SignupCodeKey(email string) string
	SignupCooldownKey(email string) string
}

type codeSender interface {
	SendSignupCode(ctx context.Context, to, code string, ttl time.Duration) error
}

type ServiceParams struct {
	Store    codeStore
	Sender   codeSender
	Logger   *logger.Logger
	TTL      time.Duration
	Cooldown time.Duration
}

// SendResult tells the client how long the code lives and when it may ask
// for another one.
type SendResult struct {
	ExpiresInSeconds int `json:"expiresInSeconds"`
	ResendInSeconds  int `json:"resendInSeconds"`
}

// Service issues and verifies email signup codes.
type Service struct {
	store    codeStore
	sender   codeSender
	logg     *logger.Logger
	ttl      time.Duration
	cooldown time.Duration
	generate func() (string, error)
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Store == nil {
		return nil, errors.New("code store required")
	}
	if params.Sender == nil {
		return nil, errors.New("code sender required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	cooldown := params.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	return &Service{
		store:    params.Store,
		sender:   params.Sender,
		logg:     params.Logger,
		ttl:      ttl,
		cooldown: cooldown,
		generate: func() (string, error) { return gonanoid.Generate(codeAlphabet, codeLength) },
	}, nil
}

// Send issues a fresh code. Only one send per cooldown window is allowed
// for an email; a blocked request reports the seconds left.
func (s *Service) Send(ctx context.Context, email string) (*SendResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	cooldownKey := s.store.SignupCooldownKey(email)
	acquired, err := s.store.SetNX(ctx, cooldownKey, "1", s.cooldown)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check signup code cooldown")
	}
	if !acquired {
		remaining := s.remaining(ctx, cooldownKey)
		return nil, pkgerrors.New(pkgerrors.CodeRateLimit, "please wait before requesting another code").
			WithDetails(map[string]any{"retryAfterSeconds": remaining})
	}

	code, err := s.generate()
	if err != nil {
		_ = s.store.Del(ctx, cooldownKey)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate signup code")
	}
	codeKey := s.store.SignupCodeKey(email)
	if err := s.store.Set(ctx, codeKey, code, s.ttl); err != nil {
		_ = s.store.Del(ctx, cooldownKey)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store signup code")
	}
	if err := s.sender.SendSignupCode(ctx, email, code, s.ttl); err != nil {
		_ = s.store.Del(ctx, cooldownKey, codeKey)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send signup code")
	}

	s.logg.Info(s.logg.WithField(ctx, "email", email), "signupcodes.sent")
	return &SendResult{
		ExpiresInSeconds: int(s.ttl / time.Second),
		ResendInSeconds:  int(s.cooldown / time.Second),
	}, nil
}

// Verify consumes the code for email. Wrong and expired codes are rejected
// the same way.
func (s *Service) Verify(ctx context.Context, email, code string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "signup code is required")
	}
	// Only a matching code is removed, so one concurrent registration wins and
	// a typo leaves the code usable.
	consumed, err := s.store.CompareAndDelete(ctx, s.store.SignupCodeKey(email), code)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume signup code")
	}
	if !consumed {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid or expired signup code")
	}
	return nil
}

func (s *Service) remaining(ctx context.Context, key string) int {
	ttl, err := s.store.TTL(ctx, key)
	if err != nil || ttl <= 0 {
		return int(s.cooldown / time.Second)
	}
	return int(math.Ceil(ttl.Seconds()))
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "a valid email is required")
	}
	return email, nil
}
