package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsign-backend/internal/pdfmeta/pdftest"
	"docsign-backend/internal/shared/auth"
	"docsign-backend/internal/shared/config"
	"docsign-backend/internal/users"
)

func devConfig(t *testing.T) config.Config {
	return config.Config{
		CORSAllowOrigin: []string{"http://localhost:5173"},
		LocalStoreDir:   t.TempDir(),
		Env:             "dev",
		AdminEmails:     []string{"alice@example.com"},
	}
}

func TestBuildFallsBackToMemoryInDev(t *testing.T) {
	app, err := Build(devConfig(t))
	require.NoError(t, err)
	t.Cleanup(app.Close)

	assert.Nil(t, app.DB)
	assert.Nil(t, app.Notify)
	assert.Nil(t, app.Broker)
	assert.Nil(t, app.UploadsHandler)
	assert.Same(t, app.Hub, app.Events)
	assert.NotNil(t, app.Router)
	assert.Same(t, app.SharesService, app.DocumentsService.Access)
	assert.True(t, app.Health.Status(context.Background()).OK)
}

func TestBuildRequiresDatabaseOutsideDev(t *testing.T) {
	cfg := devConfig(t)
	cfg.Env = "production"
	_, err := Build(cfg)
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestBuildRejectsBadRedisURL(t *testing.T) {
	cfg := devConfig(t)
	cfg.RedisURL = "not-a-url://"
	_, err := Build(cfg)
	assert.Error(t, err)
}

type client struct {
	t      *testing.T
	router http.Handler
	token  string
}

func (c client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)
	return rec
}

func (c client) upload(name string, content []byte) string {
	c.t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(c.t, err)
	_, err = part.Write(content)
	require.NoError(c.t, err)
	require.NoError(c.t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.token)
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)
	require.Equal(c.t, http.StatusCreated, rec.Code, rec.Body.String())

	var doc struct {
		DocumentID string `json:"documentId"`
	}
	require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &doc))
	return doc.DocumentID
}

type rosterBody struct {
	Status   string `json:"status"`
	Done     bool   `json:"done"`
	IsMyTurn bool   `json:"isMyTurn"`
	Progress struct {
		Signed int `json:"signed"`
		Total  int `json:"total"`
	} `json:"progress"`
	Signers []struct {
		UserID    string `json:"userId"`
		Step      int    `json:"step"`
		HasSigned bool   `json:"hasSigned"`
	} `json:"signers"`
	Viewers []struct {
		UserID string `json:"userId"`
	} `json:"viewers"`
}

func decodeRoster(t *testing.T, rec *httptest.ResponseRecorder) rosterBody {
	t.Helper()
	var out rosterBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestShareAndSignInOrder(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, err := Build(devConfig(t))
	require.NoError(t, err)
	t.Cleanup(app.Close)

	ctx := context.Background()
	clients := map[string]client{}
	for _, name := range []string{"alice", "bob", "carol", "dave"} {
		id := "google:" + name
		_, err := app.UsersService.UpsertFromAuth(ctx, users.User{ID: id, Email: name + "@example.com"})
		require.NoError(t, err)
		token, err := auth.SignJWT(auth.Claims{Sub: id})
		require.NoError(t, err)
		clients[name] = client{t: t, router: app.Router, token: token}
	}
	alice, bob, carol, dave := clients["alice"], clients["bob"], clients["carol"], clients["dave"]

	docID := alice.upload("nda.pdf", pdftest.Build("terms"))
	base := "/api/v1/documents/" + docID

	rec := alice.do(http.MethodPut, base+"/share", map[string]any{
		"message":      "please sign",
		"downloadable": true,
		"signerSteps": []map[string]any{
			{"userId": "google:bob", "step": 1},
			{"userId": "google:carol", "step": 2},
			{"userId": "google:dave", "permission": "view"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	shared := decodeRoster(t, rec)
	assert.Equal(t, "shared", shared.Status)
	require.Len(t, shared.Signers, 2)
	require.Len(t, shared.Viewers, 1)
	assert.Equal(t, 2, shared.Progress.Total)

	rec = carol.do(http.MethodPost, base+"/sign", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_your_turn")

	rec = dave.do(http.MethodPost, base+"/sign", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = bob.do(http.MethodGet, base+"/signers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeRoster(t, rec).IsMyTurn)

	rec = bob.do(http.MethodPost, base+"/sign", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "in_progress", decodeRoster(t, rec).Status)

	rec = bob.do(http.MethodPost, base+"/sign", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already_signed")

	rec = carol.do(http.MethodPost, base+"/sign", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	done := decodeRoster(t, rec)
	assert.Equal(t, "completed", done.Status)
	assert.True(t, done.Done)
	assert.Equal(t, 2, done.Progress.Signed)

	rec = dave.do(http.MethodGet, "/api/v1/documents/shared", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), docID)

	rec = dave.do(http.MethodGet, base+"/download", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = alice.do(http.MethodGet, base+"/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	for _, action := range []string{"document.uploaded", "document.shared", "document.signed", "document.completed"} {
		assert.True(t, strings.Contains(body, action), "missing %s in %s", action, body)
	}
}

func TestAdminPromotionFromConfig(t *testing.T) {
	app, err := Build(devConfig(t))
	require.NoError(t, err)
	t.Cleanup(app.Close)

	ctx := context.Background()
	_, err = app.UsersService.UpsertFromAuth(ctx, users.User{ID: "google:alice", Email: "alice@example.com"})
	require.NoError(t, err)
	token, err := auth.SignJWT(auth.Claims{Sub: "google:alice"})
	require.NoError(t, err)

	rec := client{t: t, router: app.Router, token: token}.do(http.MethodGet, "/api/v1/admin/users", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
