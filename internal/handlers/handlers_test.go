package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"property-marketplace/internal/admin"
	"property-marketplace/internal/appointment"
	"property-marketplace/internal/approval"
	"property-marketplace/internal/auth"
	"property-marketplace/internal/cleanup"
	"property-marketplace/internal/config"
	"property-marketplace/internal/database"
	"property-marketplace/internal/directory"
	"property-marketplace/internal/importer"
	"property-marketplace/internal/ratelimit"
	"property-marketplace/internal/search"
	"property-marketplace/internal/storage"
	"property-marketplace/internal/submission"
	"property-marketplace/internal/tokens"
)

const adminEmail = "admin@example.com"

type testEnv struct {
	router *gin.Engine
	store  *database.MemoryDB
	images *storage.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Logging.LogRequests = false
	cfg.RateLimit.Enabled = false

	store := database.NewMemoryDB()
	images := storage.NewMemoryStore("http://cdn.test", cfg.Storage.S3.MaxUploadBytes())
	searchSvc := search.NewService(store, nil)
	ledger := tokens.NewLedger(store)
	quota := ratelimit.NewSubmissionQuota(0, 0, false)

	router := NewRouter(Deps{
		Config:       cfg,
		Store:        store,
		Auth:         auth.NewService(store, cfg.Auth, []string{adminEmail}, auth.NewMemoryResetStore(), nil),
		Admin:        admin.NewService(store, ledger),
		Submission:   submission.NewService(store, tokens.NewRewardPolicy(cfg.Tokens), quota, searchSvc),
		Approval:     approval.NewService(store, ledger, searchSvc, images),
		Search:       searchSvc,
		Ledger:       ledger,
		Quota:        quota,
		Appointments: appointment.NewService(store),
		Directory:    directory.NewService(store),
		Cleanup:      cleanup.NewService(store, ledger, searchSvc),
		Images:       images,
		Importer:     importer.NewImporter(cfg.Importer),
	})
	return &testEnv{router: router, store: store, images: images}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

// signUp creates an account and returns its session token and user ID
func (e *testEnv) signUp(t *testing.T, email string) (string, string) {
	t.Helper()
	w, resp := e.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{
		"name":     "Ada",
		"email":    email,
		"password": "correct-horse",
		"type":     "seller",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	user := resp["user"].(map[string]interface{})
	return resp["token"].(string), user["id"].(string)
}

func listing(location string) gin.H {
	return gin.H{
		"title":       "Three bedroom duplex",
		"description": strings.Repeat("Spacious and bright with a large garden. ", 3),
		"price":       250000,
		"location":    location,
		"type":        "house",
		"status":      "sale",
		"images":      []string{"http://cdn.test/u/1-front.jpg"},
	}
}

func (e *testEnv) submit(t *testing.T, token string, body gin.H) string {
	t.Helper()
	w, resp := e.do(t, http.MethodPost, "/api/properties", token, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return resp["submission"].(map[string]interface{})["propertyId"].(string)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w, resp := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", resp["status"])
}

func TestAuthMiddleware_RequiresToken(t *testing.T) {
	env := newTestEnv(t)

	w, _ := env.do(t, http.MethodGet, "/api/me/properties", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = env.do(t, http.MethodGet, "/api/me/properties", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminMiddleware_RedirectsNonAdmins(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signUp(t, "seller@example.com")

	w, resp := env.do(t, http.MethodGet, "/api/admin/submissions", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, AdminApplyPath, resp["redirect"])

	w, resp = env.do(t, http.MethodGet, "/api/admin/status", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp["isAdmin"])
}

func TestSubmitApproveFlow(t *testing.T) {
	env := newTestEnv(t)
	sellerToken, _ := env.signUp(t, "seller@example.com")
	adminToken, _ := env.signUp(t, adminEmail)

	w, resp := env.do(t, http.MethodPost, "/api/properties", sellerToken, listing("Lekki, Lagos"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, float64(10), resp["tokensAwarded"])
	propertyID := resp["submission"].(map[string]interface{})["propertyId"].(string)

	// Not public until approved
	_, resp = env.do(t, http.MethodGet, "/api/properties", "", nil)
	assert.Equal(t, float64(0), resp["count"])
	w, _ = env.do(t, http.MethodGet, "/api/properties/"+propertyID, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = env.do(t, http.MethodGet, "/api/properties/"+propertyID, sellerToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	_, resp = env.do(t, http.MethodGet, "/api/admin/submissions", adminToken, nil)
	assert.Equal(t, float64(1), resp["count"])

	w, resp = env.do(t, http.MethodPost, "/api/admin/properties/"+propertyID+"/approve", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, float64(10), resp["tokensAwarded"])

	_, resp = env.do(t, http.MethodGet, "/api/tokens/balance", sellerToken, nil)
	assert.Equal(t, float64(10), resp["balance"])

	_, resp = env.do(t, http.MethodGet, "/api/properties", "", nil)
	assert.Equal(t, float64(1), resp["count"])

	// A second decision is a conflict
	w, _ = env.do(t, http.MethodPost, "/api/admin/properties/"+propertyID+"/reject", adminToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRejectRemovesProperty(t *testing.T) {
	env := newTestEnv(t)
	sellerToken, _ := env.signUp(t, "seller@example.com")
	adminToken, _ := env.signUp(t, adminEmail)
	propertyID := env.submit(t, sellerToken, listing("Ikeja"))

	w, _ := env.do(t, http.MethodPost, "/api/admin/properties/"+propertyID+"/reject", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = env.do(t, http.MethodGet, "/api/properties/"+propertyID, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	_, resp := env.do(t, http.MethodGet, "/api/admin/cleanup/logs", adminToken, nil)
	assert.Equal(t, float64(1), resp["count"])
}

func TestListProperties_QueryMatchesApprovedOnly(t *testing.T) {
	env := newTestEnv(t)
	sellerToken, _ := env.signUp(t, "seller@example.com")
	adminToken, _ := env.signUp(t, adminEmail)

	lagos := env.submit(t, sellerToken, listing("Victoria Island, LAGOS"))
	env.submit(t, sellerToken, listing("Lagos Mainland")) // stays pending
	abuja := env.submit(t, sellerToken, listing("Abuja"))
	for _, id := range []string{lagos, abuja} {
		w, _ := env.do(t, http.MethodPost, "/api/admin/properties/"+id+"/approve", adminToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	_, resp := env.do(t, http.MethodGet, "/api/properties?q=lagos", "", nil)
	require.Equal(t, float64(1), resp["count"])
	got := resp["properties"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, lagos, got["id"])

	// Admins can see pending rows on request; others cannot
	_, resp = env.do(t, http.MethodGet, "/api/properties?q=lagos&includeUnapproved=true", sellerToken, nil)
	assert.Equal(t, float64(1), resp["count"])
	_, resp = env.do(t, http.MethodGet, "/api/properties?q=lagos&includeUnapproved=true", adminToken, nil)
	assert.Equal(t, float64(2), resp["count"])
}

func TestSubmit_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signUp(t, "seller@example.com")

	body := listing("Lagos")
	delete(body, "title")
	body["type"] = "castle"

	w, resp := env.do(t, http.MethodPost, "/api/properties", token, body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation failed", resp["error"])
	fields := resp["fields"].(map[string]interface{})
	assert.Equal(t, "is required", fields["title"])
	assert.Contains(t, fields["type"], "must be one of")
}

func TestSignIn_WrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "seller@example.com")

	w, _ := env.do(t, http.MethodPost, "/api/auth/signin", "", gin.H{
		"email":    "seller@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, resp := env.do(t, http.MethodPost, "/api/auth/signin", "", gin.H{
		"email":    "Seller@Example.com",
		"password": "correct-horse",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, resp["token"])
}

func TestGrantTokens(t *testing.T) {
	env := newTestEnv(t)
	_, sellerID := env.signUp(t, "seller@example.com")
	adminToken, _ := env.signUp(t, adminEmail)

	w, resp := env.do(t, http.MethodPost, "/api/admin/users/"+sellerID+"/tokens", adminToken, gin.H{"amount": 7})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(7), resp["balance"])

	w, _ = env.do(t, http.MethodPost, "/api/admin/users/"+sellerID+"/tokens", adminToken, gin.H{"amount": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminApplicationFlow(t *testing.T) {
	env := newTestEnv(t)
	userToken, _ := env.signUp(t, "hopeful@example.com")
	adminToken, _ := env.signUp(t, adminEmail)

	w, resp := env.do(t, http.MethodPost, "/api/admin/applications", userToken, gin.H{"reason": "I manage listings"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	appID := resp["id"].(string)

	w, _ = env.do(t, http.MethodPost, "/api/admin/applications", userToken, gin.H{"reason": "again"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = env.do(t, http.MethodPost, "/api/admin/applications/"+appID+"/approve", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = env.do(t, http.MethodGet, "/api/admin/submissions", userToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.signUp(t, "seller@example.com")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "front door.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG fake image"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	url := resp["url"].(string)
	assert.True(t, strings.HasPrefix(url, "http://cdn.test/"+userID+"/"))
	assert.True(t, env.images.Has(strings.TrimPrefix(url, "http://cdn.test/")))
}

func TestProfileUpdate(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signUp(t, "agent@example.com")

	w, resp := env.do(t, http.MethodPut, "/api/profile", token, gin.H{
		"name":    "Ada Agent",
		"type":    "agent",
		"company": "Acme Realty",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Ada Agent", resp["name"])

	_, resp = env.do(t, http.MethodGet, "/api/directory/companies", "", nil)
	assert.Equal(t, float64(1), resp["count"])
}
