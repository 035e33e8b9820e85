package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"conversation-analytics/backend/pkg/errors"
	"conversation-analytics/backend/pkg/jwt"
	"conversation-analytics/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-secret"

type envelope struct {
	Success bool `json:"success"`
	Error   struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
	Data map[string]any `json:"data"`
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(errors.ErrorHandler(false))
	return r
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func echoScope(c *gin.Context) {
	data := gin.H{}
	if id, ok := jwt.IdentityFrom(c.Request.Context()); ok {
		data["subject"] = id.Subject
	}
	if tenant, ok := TenantIDFrom(c.Request.Context()); ok {
		data["tenant"] = tenant
	}
	if c.Request.Body != nil {
		body, _ := io.ReadAll(c.Request.Body)
		data["body"] = string(body)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func TestRequireAuth(t *testing.T) {
	svc := jwt.NewService(testSecret, time.Hour)
	valid, err := svc.GenerateToken("user-7", "u@example.com", nil)
	require.NoError(t, err)
	expired, err := jwt.NewService(testSecret, -time.Minute).GenerateToken("user-7", "u@example.com", nil)
	require.NoError(t, err)

	r := newEngine()
	r.GET("/private", RequireAuth(svc), echoScope)

	cases := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{name: "missing", header: "", status: http.StatusUnauthorized, code: errors.CodeNoToken},
		{name: "bare scheme", header: "Bearer", status: http.StatusUnauthorized, code: errors.CodeNoToken},
		{name: "malformed", header: "Bearer nope", status: http.StatusUnauthorized, code: errors.CodeInvalidToken},
		{name: "expired", header: "Bearer " + expired, status: http.StatusUnauthorized, code: errors.CodeTokenExpired},
		{name: "valid", header: "Bearer " + valid, status: http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.status, w.Code)
			env := decode(t, w)
			if tc.code != "" {
				assert.False(t, env.Success)
				assert.Equal(t, tc.code, env.Error.Code)
				return
			}
			assert.Equal(t, "user-7", env.Data["subject"])
		})
	}
}

type failingValidator struct{ err error }

func (f failingValidator) Validate(string) (jwt.Identity, error) { return jwt.Identity{}, f.err }

func TestRequireAuth_UnexpectedFailureIsInternal(t *testing.T) {
	r := newEngine()
	r.GET("/private", RequireAuth(failingValidator{err: io.ErrUnexpectedEOF}), echoScope)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer x")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, errors.CodeAuthFailed, decode(t, w).Error.Code)
}

func TestOptionalAuth_NeverFails(t *testing.T) {
	svc := jwt.NewService(testSecret, time.Hour)
	r := newEngine()
	r.GET("/maybe", OptionalAuth(svc), echoScope)

	for _, header := range []string{"", "Bearer broken"} {
		req := httptest.NewRequest(http.MethodGet, "/maybe", nil)
		req.Header.Set("Authorization", header)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, decode(t, w).Data, "subject")
	}
}

func TestTenantGuard_Sources(t *testing.T) {
	r := newEngine()
	r.GET("/companies/:company_id/things", TenantGuard(nil), echoScope)
	r.GET("/things", TenantGuard(nil), echoScope)
	r.PUT("/things", TenantGuard(nil), echoScope)

	cases := []struct {
		name   string
		method string
		target string
		body   string
		status int
		code   string
		tenant float64
	}{
		{name: "path", method: http.MethodGet, target: "/companies/4/things", status: http.StatusOK, tenant: 4},
		{name: "path wins over query", method: http.MethodGet, target: "/companies/4/things?company_id=9", status: http.StatusOK, tenant: 4},
		{name: "query", method: http.MethodGet, target: "/things?company_id=12", status: http.StatusOK, tenant: 12},
		{name: "body number", method: http.MethodPut, target: "/things", body: `{"company_id": 31, "status": 2}`, status: http.StatusOK, tenant: 31},
		{name: "body string", method: http.MethodPut, target: "/things", body: `{"company_id": "8"}`, status: http.StatusOK, tenant: 8},
		{name: "absent", method: http.MethodGet, target: "/things", status: http.StatusBadRequest, code: errors.CodeMissingTenant},
		{name: "null literal", method: http.MethodGet, target: "/things?company_id=null", status: http.StatusBadRequest, code: errors.CodeMissingTenant},
		{name: "undefined literal", method: http.MethodGet, target: "/things?company_id=undefined", status: http.StatusBadRequest, code: errors.CodeMissingTenant},
		{name: "not a number", method: http.MethodGet, target: "/things?company_id=abc", status: http.StatusBadRequest, code: errors.CodeInvalidTenant},
		{name: "fraction", method: http.MethodGet, target: "/things?company_id=1.5", status: http.StatusBadRequest, code: errors.CodeInvalidTenant},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var body io.Reader
			if tc.body != "" {
				body = strings.NewReader(tc.body)
			}
			req := httptest.NewRequest(tc.method, tc.target, body)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.status, w.Code)
			env := decode(t, w)
			if tc.code != "" {
				assert.Equal(t, tc.code, env.Error.Code)
				return
			}
			assert.Equal(t, tc.tenant, env.Data["tenant"])
			if tc.body != "" {
				assert.Equal(t, tc.body, env.Data["body"], "body must be restored for the handler")
			}
		})
	}
}

func TestTenantGuard_ClaimsEntitlement(t *testing.T) {
	svc := jwt.NewService(testSecret, time.Hour)
	member, err := svc.GenerateToken("u1", "u1@x.io", map[string]any{"company_ids": []int{3}})
	require.NoError(t, err)
	admin, err := svc.GenerateToken("root", "root@x.io", map[string]any{"role": "admin"})
	require.NoError(t, err)

	r := newEngine()
	r.GET("/things", RequireAuth(svc), TenantGuard(NewEntitlement("claims")), echoScope)

	do := func(token, company string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/things?company_id="+company, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, do(member, "3").Code)

	w := do(member, "4")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, errors.CodeTenantForbidden, decode(t, w).Error.Code)

	assert.Equal(t, http.StatusOK, do(admin, "4").Code)
}

func TestNewEntitlement_DefaultAllowsAll(t *testing.T) {
	e := NewEntitlement("none")
	assert.IsType(t, AllowAll{}, e)
	assert.NoError(t, e.Authorize(context.Background(), jwt.Identity{}, 99))

	ids, all := e.Visible(jwt.Identity{})
	assert.True(t, all)
	assert.Nil(t, ids)
}

func TestClaimsEntitlement_Visible(t *testing.T) {
	e := ClaimsEntitlement{AdminRole: "admin"}

	ids, all := e.Visible(jwt.Identity{Claims: map[string]any{"company_ids": []any{float64(3), "8"}}})
	assert.False(t, all)
	assert.Equal(t, []int64{3, 8}, ids)

	ids, all = e.Visible(jwt.Identity{})
	assert.False(t, all)
	assert.Empty(t, ids)

	_, all = e.Visible(jwt.Identity{Claims: map[string]any{"role": "admin"}})
	assert.True(t, all)
}

func TestParseTenantID(t *testing.T) {
	id, appErr := ParseTenantID(" 42 ")
	require.Nil(t, appErr)
	assert.Equal(t, int64(42), id)

	_, appErr = ParseTenantID("0")
	require.NotNil(t, appErr)
	assert.Equal(t, errors.CodeInvalidTenant, appErr.Code)
}

func TestRateLimiter_MemoryStore(t *testing.T) {
	opts := DefaultRateLimiterOptions()
	opts.Limit = 1
	opts.Burst = 2
	limiter := NewRateLimiter(logger.Discard(), NewMemoryStore(opts), opts)

	r := newEngine()
	r.GET("/", limiter.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRequireAnyRole(t *testing.T) {
	svc := jwt.NewService(testSecret, time.Hour)
	agent, err := svc.GenerateToken("a", "a@x.io", map[string]any{"role": "agent"})
	require.NoError(t, err)

	r := newEngine()
	r.DELETE("/companies/1", RequireAuth(svc), RequireAnyRole("admin"), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodDelete, "/companies/1", nil)
	req.Header.Set("Authorization", "Bearer "+agent)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHTTPMetrics_CountsByRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	r := newEngine()
	r.Use(m.Middleware())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, id := range []string{"1", "2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/"+id, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/items/:id", "200")))
}
