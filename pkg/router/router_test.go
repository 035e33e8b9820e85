package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"conversation-analytics/backend/pkg/config"
	"conversation-analytics/backend/pkg/di"
	"conversation-analytics/backend/pkg/logger"
	"conversation-analytics/backend/pkg/query/querytest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool `json:"success"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
}

func testConfig(entitlement string) *config.Config {
	cfg := &config.Config{}
	cfg.Server.Env = "test"
	cfg.JWT.Secret = "router-secret"
	cfg.Security.AllowedOrigins = []string{"https://dashboard.example"}
	cfg.Security.RateLimit = 1000
	cfg.Security.RateLimitBurst = 1000
	cfg.Security.MaxBodySize = 1 << 20
	cfg.Security.TenantEntitlement = entitlement
	return cfg
}

func newTestRouter(t *testing.T, entitlement string) *Router {
	t.Helper()
	gin.SetMode(gin.TestMode)

	c, err := di.New(testConfig(entitlement), logger.Discard(), di.Storage{Querier: querytest.New()})
	require.NoError(t, err)

	r := New(c)
	r.SetupRoutes()
	return r
}

func token(t *testing.T, r *Router, claims map[string]any) string {
	t.Helper()
	tok, err := r.Container.JWTService.GenerateToken("user-1", "user@example.com", claims)
	require.NoError(t, err)
	return tok
}

func serve(r *Router, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestHealthRoutes(t *testing.T) {
	r := newTestRouter(t, "none")

	w, _ := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"active_connections":0`)
	assert.Contains(t, w.Body.String(), `"database_breaker"`)

	// no checks have run yet, so the database is not known to be up
	w, _ = serve(r, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t, "none")

	serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	w, _ := serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
	assert.Contains(t, w.Body.String(), "analytics_http_requests_total")
}

func TestAPIRequiresToken(t *testing.T) {
	r := newTestRouter(t, "none")

	w, env := serve(r, httptest.NewRequest(http.MethodGet, "/api/conversations?company_id=1", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "NO_TOKEN", env.Error.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/conversations?company_id=1", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w, env = serve(r, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_TOKEN", env.Error.Code)
}

func TestTenantGuardBehindAuth(t *testing.T) {
	r := newTestRouter(t, "claims")
	tok := token(t, r, map[string]any{"company_ids": []any{2}})

	tests := []struct {
		name   string
		target string
		status int
		code   string
	}{
		{"missing tenant", "/api/search/global?q=ab", http.StatusBadRequest, "MISSING_TENANT"},
		{"invalid tenant", "/api/search/global?q=ab&company_id=x", http.StatusBadRequest, "INVALID_TENANT"},
		{"not entitled", "/api/search/global?q=ab&company_id=1", http.StatusForbidden, "TENANT_FORBIDDEN"},
		{"entitled reaches handler", "/api/search/global?q=a&company_id=2", http.StatusBadRequest, "SEARCH_TOO_SHORT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			req.Header.Set("Authorization", "Bearer "+tok)
			w, env := serve(r, req)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestCompanyWritesRequireAdminUnderClaims(t *testing.T) {
	r := newTestRouter(t, "claims")

	req := httptest.NewRequest(http.MethodPost, "/api/companies", strings.NewReader(`{"name":"Acme"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token(t, r, map[string]any{"role": "viewer"}))
	w, env := serve(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "INSUFFICIENT_ROLE", env.Error.Code)
}

func TestWhoamiUsesOptionalAuth(t *testing.T) {
	r := newTestRouter(t, "claims")

	w, _ := serve(r, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"authenticated":false}}`, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w, _ = serve(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"authenticated":false`)

	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, r, map[string]any{"role": "viewer", "company_ids": []any{2, 5}}))
	w, _ = serve(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"authenticated":true,"subject":"user-1","email":"user@example.com","role":"viewer","company_ids":[2,5]}}`, w.Body.String())
}

func TestCompanyReadsFollowClaims(t *testing.T) {
	r := newTestRouter(t, "claims")

	req := httptest.NewRequest(http.MethodGet, "/api/companies/9", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, r, map[string]any{"company_ids": []any{2}}))
	w, env := serve(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "TENANT_FORBIDDEN", env.Error.Code)

	// no visible companies means no storage round trip
	req = httptest.NewRequest(http.MethodGet, "/api/companies", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, r, map[string]any{"role": "viewer"}))
	w, _ = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"items":[]`)
}

func TestCORS(t *testing.T) {
	r := newTestRouter(t, "none")

	req := httptest.NewRequest(http.MethodOptions, "/api/conversations", nil)
	req.Header.Set("Origin", "https://dashboard.example")
	w, _ := serve(r, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://dashboard.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/conversations", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	w, _ = serve(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUnknownRoute(t *testing.T) {
	r := newTestRouter(t, "none")

	w, env := serve(r, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestOpenAPIValidation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, err := di.New(testConfig("none"), logger.Discard(), di.Storage{Querier: querytest.New()})
	require.NoError(t, err)

	r := New(c)
	require.True(t, r.AddOpenAPIValidation("../../api/openapi.yaml"))
	r.SetupRoutes()

	req := httptest.NewRequest(http.MethodPut, "/api/sessions/5/status?company_id=1", strings.NewReader(`{"status":9}`))
	req.Header.Set("Content-Type", "application/json")
	w, env := serve(r, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", env.Error.Code)

	w, _ = serve(r, httptest.NewRequest(http.MethodGet, "/api/docs/openapi.yaml", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	assert.False(t, r.AddOpenAPIValidation("missing.yaml"))
}
