package controllers

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/acari-app/acari-backend/api/middleware"
	"github.com/acari-app/acari-backend/internal/templates"
)

type stubTemplateService struct {
	templates.Service
	listed   templates.ListParams
	imported string
}

func (s *stubTemplateService) List(_ context.Context, params templates.ListParams) (*templates.ListResult, error) {
	s.listed = params
	return &templates.ListResult{Items: []templates.TemplateDTO{}}, nil
}

func (s *stubTemplateService) Import(_ context.Context, _ uuid.UUID, r io.Reader) (*templates.ImportResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	s.imported = string(data)
	return &templates.ImportResult{Imported: 1}, nil
}

func withUser(req *http.Request) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
}

func TestTemplateListParsesQuery(t *testing.T) {
	svc := &stubTemplateService{}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/templates?page=2&pageSize=500&category=Menus&q=cafe", nil)
	resp := httptest.NewRecorder()
	TemplateList(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}
	if svc.listed.Page != 2 || svc.listed.PageSize != 500 || svc.listed.Category != "Menus" || svc.listed.Query != "cafe" {
		t.Fatalf("unexpected params %+v", svc.listed)
	}
	if svc.listed.IncludeDrafts {
		t.Fatal("public listing must not include drafts")
	}
}

func TestTemplateListRejectsBadPage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/templates?page=abc", nil)
	resp := httptest.NewRecorder()
	TemplateList(&stubTemplateService{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAdminTemplateImportRawCSV(t *testing.T) {
	svc := &stubTemplateService{}
	csv := "title,price\nMenu,9.99\n"

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/templates/import", bytes.NewBufferString(csv))
	req.Header.Set("Content-Type", "text/csv; charset=utf-8")
	resp := httptest.NewRecorder()
	AdminTemplateImport(svc, nil).ServeHTTP(resp, withUser(req))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}
	if svc.imported != csv {
		t.Fatalf("unexpected import body %q", svc.imported)
	}
}

func TestAdminTemplateImportMultipart(t *testing.T) {
	svc := &stubTemplateService{}
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "templates.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte("title\nFlyer\n"))
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/templates/import", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp := httptest.NewRecorder()
	AdminTemplateImport(svc, nil).ServeHTTP(resp, withUser(req))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}
	if svc.imported != "title\nFlyer\n" {
		t.Fatalf("unexpected import body %q", svc.imported)
	}
}

func TestAdminTemplateImportRejectsJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/templates/import", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	AdminTemplateImport(&stubTemplateService{}, nil).ServeHTTP(resp, withUser(req))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
