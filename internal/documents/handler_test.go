package documents_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"docsign-backend/internal/bootstrap"
	"docsign-backend/internal/pdfmeta/pdftest"
	"docsign-backend/internal/shared/auth"
	"docsign-backend/internal/shared/config"
)

func buildApp(t *testing.T) *bootstrap.App {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		Port:            "0",
		CORSAllowOrigin: []string{"http://localhost:5173"},
		LocalStoreDir:   t.TempDir(),
		Env:             "dev",
		ObjectStoreType: "local",
		MaxUploadMB:     1,
	}

	app, err := bootstrap.Build(cfg)
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}
	t.Cleanup(app.Close)
	return app
}

type documentBody struct {
	DocumentID string `json:"documentId"`
	OwnerID    string `json:"ownerId"`
	FileName   string `json:"fileName"`
	PageCount  int    `json:"pageCount"`
	Status     string `json:"status"`
}

func TestDocumentsUploadGetAndDownload(t *testing.T) {
	app := buildApp(t)
	router := app.Router
	pdf := pdftest.Build("first", "second")

	resp := upload(t, router, "contract.pdf", pdf, withUser(t, "google:alice"))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created documentBody
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.DocumentID == "" {
		t.Fatalf("expected documentId, got empty")
	}
	if created.PageCount != 2 || created.Status != "draft" {
		t.Fatalf("unexpected document: %+v", created)
	}

	get := serve(router, http.MethodGet, "/api/v1/documents/"+created.DocumentID, nil, withUser(t, "google:alice"))
	if get.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", get.Code)
	}

	download := serve(router, http.MethodGet, "/api/v1/documents/"+created.DocumentID+"/download", nil, withUser(t, "google:alice"))
	if download.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", download.Code)
	}
	if got := download.Header().Get("Content-Disposition"); got != `attachment; filename=contract.pdf` {
		t.Fatalf("unexpected content disposition %q", got)
	}
	if !bytes.Equal(download.Body.Bytes(), pdf) {
		t.Fatalf("downloaded bytes differ from upload")
	}
	if got := download.Header().Get("Cache-Control"); got != "private, no-store" {
		t.Fatalf("unexpected cache control %q", got)
	}

	inline := serve(router, http.MethodGet, "/api/v1/documents/"+created.DocumentID+"/download?inline=1", nil, withUser(t, "google:alice"))
	if got := inline.Header().Get("Content-Disposition"); got != `inline; filename=contract.pdf` {
		t.Fatalf("unexpected inline disposition %q", got)
	}

	stranger := serve(router, http.MethodGet, "/api/v1/documents/"+created.DocumentID, nil, withUser(t, "google:mallory"))
	if stranger.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for stranger, got %d", stranger.Code)
	}
}

func TestDocumentsRejectNonPDFUploads(t *testing.T) {
	app := buildApp(t)

	resp := upload(t, app.Router, "notes.txt", []byte("hello world"), addGuestHeader)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestDocumentsListAndDelete(t *testing.T) {
	app := buildApp(t)
	router := app.Router

	for _, name := range []string{"lease.pdf", "invoice.pdf"} {
		if resp := upload(t, router, name, pdftest.Build(name), addGuestHeader); resp.Code != http.StatusCreated {
			t.Fatalf("upload %s: status %d", name, resp.Code)
		}
	}

	list := serve(router, http.MethodGet, "/api/v1/documents?search=lease", nil, addGuestHeader)
	if list.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", list.Code)
	}
	var page struct {
		Items []documentBody `json:"items"`
		Total int            `json:"total"`
	}
	if err := json.NewDecoder(list.Body).Decode(&page); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].FileName != "lease.pdf" {
		t.Fatalf("unexpected list: %+v", page)
	}

	del := serve(router, http.MethodDelete, "/api/v1/documents/"+page.Items[0].DocumentID, nil, addGuestHeader)
	if del.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", del.Code)
	}
	gone := serve(router, http.MethodGet, "/api/v1/documents/"+page.Items[0].DocumentID, nil, addGuestHeader)
	if gone.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 after delete, got %d", gone.Code)
	}
}

func TestSharedDocumentsRequireAccount(t *testing.T) {
	app := buildApp(t)
	resp := serve(app.Router, http.MethodGet, "/api/v1/documents/shared", nil, addGuestHeader)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", resp.Code)
	}
}

func upload(t *testing.T, router http.Handler, name string, content []byte, decorate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fileWriter, err := writer.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fileWriter.Write(content); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	decorate(req)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func serve(router http.Handler, method, path string, body io.Reader, decorate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	decorate(req)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func addGuestHeader(req *http.Request) {
	req.Header.Set("X-Guest-Id", "test-guest")
}

func withUser(t *testing.T, sub string) func(*http.Request) {
	t.Helper()
	token, err := auth.SignJWT(auth.Claims{Sub: sub})
	if err != nil {
		t.Fatalf("sign jwt: %v", err)
	}
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}
