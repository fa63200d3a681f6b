package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/acari-app/acari-backend/pkg/outbox"
	"github.com/acari-app/acari-backend/pkg/pagination"
)

type stubDeadLetters struct {
	params pagination.Params
}

func (s *stubDeadLetters) List(_ context.Context, params pagination.Params) (*outbox.DeadLetterPage, error) {
	s.params = params
	return &outbox.DeadLetterPage{Items: []outbox.DeadLetter{{EventType: "payment_failed", Reason: "max_attempts"}}, NextCursor: "next"}, nil
}

func TestAdminListDeadLettersPassesPaging(t *testing.T) {
	svc := &stubDeadLetters{}
	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/outbox/dead-letters?limit=5&cursor=abc", nil)
	resp := httptest.NewRecorder()
	AdminListDeadLetters(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if svc.params.Limit != 5 || svc.params.Cursor != "abc" {
		t.Fatalf("unexpected params %+v", svc.params)
	}
	var body struct {
		Data outbox.DeadLetterPage `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data.Items) != 1 || body.Data.NextCursor != "next" {
		t.Fatalf("unexpected body %+v", body.Data)
	}
}

func TestAdminListDeadLettersRejectsBadLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/outbox/dead-letters?limit=0", nil)
	resp := httptest.NewRecorder()
	AdminListDeadLetters(&stubDeadLetters{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
