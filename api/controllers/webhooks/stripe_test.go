package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	stripewebhook "github.com/acari-app/acari-backend/internal/webhooks/stripe"
	"github.com/acari-app/acari-backend/pkg/config"
	pkgerrors "github.com/acari-app/acari-backend/pkg/errors"
	pkgstripe "github.com/acari-app/acari-backend/pkg/stripe"
)

const testWebhookSecret = "whsec_test"

type webhookHarness struct {
	svc     *recordingService
	handler http.Handler
}

func newWebhookHarness(t *testing.T) *webhookHarness {
	t.Helper()
	client, err := pkgstripe.NewClient(context.Background(), config.StripeConfig{
		APIKey: "sk_test_123",
		Secret: testWebhookSecret,
		Env:    "test",
	}, nil)
	require.NoError(t, err)
	ledger, err := stripewebhook.NewEventLedger(&memLedgerStore{data: map[string]string{}}, time.Minute, "stripe-webhook")
	require.NoError(t, err)

	svc := &recordingService{}
	return &webhookHarness{svc: svc, handler: StripeWebhook(svc, client, ledger, nil)}
}

func (h *webhookHarness) post(payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

// signedInvoiceEvent returns an invoice.payment_failed event body and a
// matching Stripe-Signature header.
func signedInvoiceEvent(t *testing.T) ([]byte, string) {
	t.Helper()
	invoice, err := json.Marshal(map[string]any{
		"id":           "in_" + uuid.NewString()[:8],
		"object":       "invoice",
		"subscription": "sub_" + uuid.NewString()[:8],
	})
	require.NoError(t, err)
	payload, err := json.Marshal(&stripe.Event{
		ID:         "evt_" + uuid.NewString(),
		Type:       stripe.EventTypeInvoicePaymentFailed,
		Object:     "event",
		APIVersion: stripe.APIVersion,
		Data:       &stripe.EventData{Raw: invoice},
	})
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return payload, signed.Header
}

func TestStripeWebhookProcessesOnce(t *testing.T) {
	h := newWebhookHarness(t)
	payload, sig := signedInvoiceEvent(t)

	first := h.post(payload, sig)
	again := h.post(payload, sig)

	assert.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.Equal(t, http.StatusOK, again.Code, "redelivery is acknowledged")
	assert.Equal(t, []stripe.EventType{stripe.EventTypeInvoicePaymentFailed}, h.svc.types)
}

func TestStripeWebhookFailureReleasesClaim(t *testing.T) {
	h := newWebhookHarness(t)
	h.svc.err = pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	payload, sig := signedInvoiceEvent(t)

	assert.Equal(t, http.StatusNotFound, h.post(payload, sig).Code)

	h.svc.err = nil
	assert.Equal(t, http.StatusOK, h.post(payload, sig).Code)
	assert.Len(t, h.svc.types, 2)
}

func TestStripeWebhookRejections(t *testing.T) {
	payload, _ := signedInvoiceEvent(t)
	cases := []struct {
		name      string
		payload   []byte
		signature string
		want      int
	}{
		{name: "missing signature", payload: payload, want: http.StatusBadRequest},
		{name: "bad signature", payload: payload, signature: "t=1,v1=invalid", want: http.StatusUnauthorized},
		{name: "oversized body", payload: []byte(strings.Repeat("x", maxStripePayload+1)), signature: "t=1,v1=x", want: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newWebhookHarness(t)
			assert.Equal(t, tc.want, h.post(tc.payload, tc.signature).Code)
			assert.Empty(t, h.svc.types)
		})
	}
}

func TestStripeWebhookUnconfigured(t *testing.T) {
	rec := httptest.NewRecorder()
	StripeWebhook(nil, nil, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type recordingService struct {
	types []stripe.EventType
	err   error
}

func (s *recordingService) HandleEvent(_ context.Context, event *stripe.Event) error {
	s.types = append(s.types, event.Type)
	return s.err
}

type memLedgerStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (s *memLedgerStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *memLedgerStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key], _ = value.(string)
	return true, nil
}

func (s *memLedgerStore) IdempotencyKey(scope, id string) string {
	return "acari:idempotency:" + scope + ":" + id
}

func (s *memLedgerStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}
