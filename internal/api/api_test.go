package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"conversation-analytics/backend/internal/models"
	"conversation-analytics/backend/internal/rollup"
	"conversation-analytics/backend/internal/service"
	"conversation-analytics/backend/internal/ws"
	apperrors "conversation-analytics/backend/pkg/errors"
	"conversation-analytics/backend/pkg/jwt"
	"conversation-analytics/backend/pkg/logger"
	"conversation-analytics/backend/pkg/middleware"
	"conversation-analytics/backend/pkg/query"
	"conversation-analytics/backend/pkg/query/querytest"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newEngine(register func(rg *gin.RouterGroup)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(apperrors.ErrorHandler(false))
	register(r.Group("/api", middleware.TenantGuard(nil)))
	return r
}

func do(t *testing.T, r http.Handler, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

type conversationStub struct {
	lastFilter service.ConversationFilter
	lastLimit  int
	lastOffset int
	err        error
}

func (s *conversationStub) List(_ context.Context, _ int64, f service.ConversationFilter) (query.Result[service.Conversation], error) {
	s.lastFilter = f
	if s.err != nil {
		return query.Result[service.Conversation]{}, s.err
	}
	items := []service.Conversation{{SessionID: 1}, {SessionID: 2}}
	return query.Result[service.Conversation]{Items: items, Pagination: query.NewPagination(f.Page, 41)}, nil
}

func (s *conversationStub) Get(_ context.Context, companyID, sessionID int64) (service.Conversation, error) {
	if s.err != nil {
		return service.Conversation{}, s.err
	}
	return service.Conversation{SessionID: sessionID, CompanyID: companyID}, nil
}

func (s *conversationStub) Messages(_ context.Context, _ int64, sessionID int64, limit, offset int) (service.MessagePage, error) {
	s.lastLimit, s.lastOffset = limit, offset
	return service.MessagePage{}, s.err
}

type contactStub struct{}

func (contactStub) List(context.Context, int64, service.ContactFilter) (query.Result[service.ContactSummary], error) {
	return query.Result[service.ContactSummary]{Items: []service.ContactSummary{}}, nil
}

func conversationEngine(stub *conversationStub) *gin.Engine {
	h := NewConversationHandler(stub, contactStub{}, DefaultLimits)
	return newEngine(h.RegisterRoutes)
}

func TestConversationHandler_ListEnvelope(t *testing.T) {
	stub := &conversationStub{}
	w, env := do(t, conversationEngine(stub), http.MethodGet,
		"/api/conversations?company_id=7&page=2&limit=20&search=an&status=2", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "an", stub.lastFilter.Search)
	require.NotNil(t, stub.lastFilter.Status)
	assert.Equal(t, models.SessionQualifying, *stub.lastFilter.Status)
	assert.Equal(t, query.Page{Number: 2, Limit: 20}, stub.lastFilter.Page)

	var data struct {
		Items      []service.Conversation `json:"items"`
		Pagination query.Pagination       `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Len(t, data.Items, 2)
	assert.EqualValues(t, 41, data.Pagination.Total)
	assert.Equal(t, 3, data.Pagination.Pages)
}

func TestConversationHandler_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		target string
		status int
		code   string
	}{
		{"missing tenant", "/api/conversations", http.StatusBadRequest, apperrors.CodeMissingTenant},
		{"invalid tenant", "/api/conversations?company_id=abc", http.StatusBadRequest, apperrors.CodeInvalidTenant},
		{"status out of range", "/api/conversations?company_id=1&status=7", http.StatusBadRequest, apperrors.CodeInvalidStatus},
		{"status not integer", "/api/conversations?company_id=1&status=open", http.StatusBadRequest, apperrors.CodeInvalidStatus},
		{"page zero", "/api/conversations?company_id=1&page=0", http.StatusBadRequest, apperrors.CodeInvalidPagination},
		{"limit not integer", "/api/conversations/contacts?company_id=1&limit=x", http.StatusBadRequest, apperrors.CodeInvalidPagination},
		{"search too short", "/api/conversations?company_id=1&search=a", http.StatusBadRequest, apperrors.CodeSearchTooShort},
		{"bad session id", "/api/conversations/abc?company_id=1", http.StatusBadRequest, apperrors.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &conversationStub{}
			w, env := do(t, conversationEngine(stub), http.MethodGet, tt.target, "")
			assert.Equal(t, tt.status, w.Code)
			assert.False(t, env.Success)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestConversationHandler_LimitClamped(t *testing.T) {
	stub := &conversationStub{}
	w, _ := do(t, conversationEngine(stub), http.MethodGet, "/api/conversations?company_id=1&limit=5000", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, DefaultLimits.Page.MaxLimit, stub.lastFilter.Page.Limit)
}

func TestConversationHandler_MessagesDefaults(t *testing.T) {
	stub := &conversationStub{}
	engine := conversationEngine(stub)

	w, _ := do(t, engine, http.MethodGet, "/api/conversations/5/messages?company_id=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, defaultMessageLimit, stub.lastLimit)
	assert.Equal(t, 0, stub.lastOffset)

	w, _ = do(t, engine, http.MethodGet, "/api/conversations/5/messages?company_id=1&limit=9999&offset=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, maxMessageLimit, stub.lastLimit)
	assert.Equal(t, 10, stub.lastOffset)
}

func TestConversationHandler_StorageErrorsAreGeneric(t *testing.T) {
	stub := &conversationStub{err: apperrors.FromStorage(assert.AnError)}
	w, env := do(t, conversationEngine(stub), http.MethodGet, "/api/conversations/3?company_id=1", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperrors.CodeInternal, env.Error.Code)
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
}

type sessionStub struct {
	updated *models.SessionStatus
	filter  service.SessionFilter
}

func (s *sessionStub) List(_ context.Context, _ int64, f service.SessionFilter) (query.Result[service.SessionSummary], error) {
	s.filter = f
	return query.Result[service.SessionSummary]{Items: []service.SessionSummary{}}, nil
}

func (s *sessionStub) UpdateStatus(_ context.Context, companyID, sessionID int64, status models.SessionStatus) (models.Session, error) {
	if !status.Valid() {
		return models.Session{}, apperrors.NewBadRequestError(apperrors.CodeInvalidStatus, "status must be an integer between 0 and 4")
	}
	s.updated = &status
	return models.Session{ID: sessionID, CompanyID: companyID, Status: status}, nil
}

func TestSessionHandler_UpdateStatus(t *testing.T) {
	stub := &sessionStub{}
	engine := newEngine(NewSessionHandler(stub, &conversationStub{}, DefaultLimits).RegisterRoutes)

	w, env := do(t, engine, http.MethodPut, "/api/sessions/4/status", `{"company_id": 2, "status": 7}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeInvalidStatus, env.Error.Code)
	assert.Nil(t, stub.updated)

	w, env = do(t, engine, http.MethodPut, "/api/sessions/4/status?company_id=2", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeInvalidStatus, env.Error.Code)

	w, env = do(t, engine, http.MethodPut, "/api/sessions/4/status", `{"company_id": 2, "status": 3}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, stub.updated)
	assert.Equal(t, models.SessionStatus(3), *stub.updated)

	var data struct {
		Session     models.Session `json:"session"`
		StatusLabel string         `json:"status_label"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, int64(4), data.Session.ID)
	assert.Equal(t, int64(2), data.Session.CompanyID)
	assert.Equal(t, models.SessionStatus(3).String(), data.StatusLabel)
}

func TestSessionHandler_ListDateRange(t *testing.T) {
	stub := &sessionStub{}
	engine := newEngine(NewSessionHandler(stub, &conversationStub{}, DefaultLimits).RegisterRoutes)

	w, _ := do(t, engine, http.MethodGet, "/api/sessions?company_id=1&start_date=2024-03-01&end_date=2024-03-31", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), stub.filter.Range.From)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), stub.filter.Range.To)

	w, env := do(t, engine, http.MethodGet, "/api/sessions?company_id=1&start_date=03/01/2024", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeInvalidInput, env.Error.Code)

	w, env = do(t, engine, http.MethodGet, "/api/sessions?company_id=1&start_date=2024-04-02&end_date=2024-04-01", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeInvalidInput, env.Error.Code)
}

type leadStub struct{ filter service.LeadFilter }

func (s *leadStub) List(_ context.Context, _ int64, f service.LeadFilter) (query.Result[service.LeadView], error) {
	s.filter = f
	return query.Result[service.LeadView]{Items: []service.LeadView{}}, nil
}

func (s *leadStub) Get(context.Context, int64, int64) (service.LeadView, error) {
	return service.LeadView{}, apperrors.NewNotFoundError(apperrors.CodeNotFound, "Lead not found")
}

type knowledgeStub struct{ filter service.KnowledgeFilter }

func (s *knowledgeStub) Grouped(_ context.Context, _ int64, f service.KnowledgeFilter) ([]rollup.KnowledgeGroup, error) {
	s.filter = f
	return []rollup.KnowledgeGroup{}, nil
}

func TestLeadHandler_Routes(t *testing.T) {
	leads, knowledge := &leadStub{}, &knowledgeStub{}
	engine := newEngine(NewLeadHandler(leads, knowledge, DefaultLimits).RegisterRoutes)

	w, _ := do(t, engine, http.MethodGet, "/api/leads/transferred?company_id=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.LeadTransferred, leads.filter.Status)

	w, _ = do(t, engine, http.MethodGet, "/api/leads?company_id=1&status=pending", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.LeadPending, leads.filter.Status)

	w, env := do(t, engine, http.MethodGet, "/api/leads?company_id=1&status=won", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeInvalidStatus, env.Error.Code)

	w, env = do(t, engine, http.MethodGet, "/api/leads/99?company_id=1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.CodeNotFound, env.Error.Code)

	w, _ = do(t, engine, http.MethodGet, "/api/knowledge?company_id=1&session_id=12", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, knowledge.filter.SessionID)
	assert.Equal(t, int64(12), *knowledge.filter.SessionID)
	assert.Nil(t, knowledge.filter.ContactID)
}

type stockStub struct{ filter service.StockFilter }

func (s *stockStub) List(_ context.Context, _ int64, f service.StockFilter) (query.Result[models.StockItem], error) {
	s.filter = f
	return query.Result[models.StockItem]{Items: []models.StockItem{}}, nil
}

func (s *stockStub) Get(context.Context, int64, int64) (models.StockItem, error) {
	return models.StockItem{}, nil
}

func (s *stockStub) Filters(context.Context, int64) (service.StockFilters, error) {
	return service.StockFilters{}, nil
}

func TestStockHandler_NumericFilters(t *testing.T) {
	stub := &stockStub{}
	engine := newEngine(NewStockHandler(stub, DefaultLimits).RegisterRoutes)

	w, _ := do(t, engine, http.MethodGet, "/api/stock?company_id=1&min_price=1000.5&max_year=2020&fuel_type=Diesel", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, stub.filter.MinPrice)
	assert.InDelta(t, 1000.5, *stub.filter.MinPrice, 0.001)
	require.NotNil(t, stub.filter.MaxYear)
	assert.Equal(t, 2020, *stub.filter.MaxYear)
	assert.Nil(t, stub.filter.MaxPrice)
	assert.Equal(t, "Diesel", stub.filter.FuelType)

	w, env := do(t, engine, http.MethodGet, "/api/stock?company_id=1&min_price=cheap", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeInvalidInput, env.Error.Code)
	assert.Equal(t, "cheap", env.Error.Details["min_price"])
}

func TestSearchHandler_TooShortIssuesNoQuery(t *testing.T) {
	db := querytest.New()
	engine := newEngine(NewSearchHandler(service.NewSearchService(db), DefaultLimits).RegisterRoutes)

	for _, kind := range []string{"contacts", "conversations", "leads", "stock", "global"} {
		w, env := do(t, engine, http.MethodGet, "/api/search/"+kind+"?company_id=1&q=%20a%20", "")
		assert.Equal(t, http.StatusBadRequest, w.Code, kind)
		assert.Equal(t, apperrors.CodeSearchTooShort, env.Error.Code, kind)
	}
	assert.Zero(t, db.CallCount())
}

func TestSearchHandler_Contacts(t *testing.T) {
	db := querytest.New().OnQuery("FROM contacts c", querytest.NewRows(
		"id", "name", "phone_number", "email", "created_at").
		Add(int64(4), "Ana", nil, nil, time.Now().UTC()))
	engine := newEngine(NewSearchHandler(service.NewSearchService(db), DefaultLimits).RegisterRoutes)

	w, env := do(t, engine, http.MethodGet, "/api/search/contacts?company_id=3&q=ana&limit=500", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data struct {
		Query   string           `json:"query"`
		Results []models.Contact `json:"results"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "ana", data.Query)
	require.Len(t, data.Results, 1)

	call := db.Calls()[0]
	assert.Equal(t, DefaultLimits.SearchMax, call.Args[len(call.Args)-1])
	assert.Equal(t, int64(3), call.Args[0])
}

type metricsStub struct {
	dates    service.DateRange
	months   int
	realtime int
}

func (s *metricsStub) Overview(_ context.Context, _ int64, r service.DateRange) (service.Overview, error) {
	s.dates = r
	return service.Overview{}, nil
}

func (s *metricsStub) Historical(_ context.Context, _ int64, months int) (service.Historical, error) {
	s.months = months
	return service.Historical{Months: months}, nil
}

func (s *metricsStub) Realtime(context.Context, int64) (service.Realtime, error) {
	s.realtime++
	return service.Realtime{ActiveConversations: 3, Timestamp: time.Now().UTC()}, nil
}

func TestMetricsHandler_HistoricalMonths(t *testing.T) {
	stub := &metricsStub{}
	engine := newEngine(NewMetricsHandler(stub, nil, 0).RegisterRoutes)

	tests := []struct {
		query string
		want  int
	}{
		{"", service.DefaultHistoryMonths},
		{"&months=12", 12},
		{"&months=0", 1},
		{"&months=100", service.MaxHistoryMonths},
	}
	for _, tt := range tests {
		w, _ := do(t, engine, http.MethodGet, "/api/metrics/historical?company_id=1"+tt.query, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, tt.want, stub.months, tt.query)
	}

	w, env := do(t, engine, http.MethodGet, "/api/metrics/historical?company_id=1&months=six", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeInvalidInput, env.Error.Code)
}

func TestMetricsHandler_OverviewEndDateInclusive(t *testing.T) {
	stub := &metricsStub{}
	engine := newEngine(NewMetricsHandler(stub, nil, 0).RegisterRoutes)

	w, _ := do(t, engine, http.MethodGet, "/api/metrics?company_id=1&start_date=2024-01-10&end_date=2024-01-10", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 24*time.Hour, stub.dates.To.Sub(stub.dates.From))
}

func TestMetricsHandler_RealtimeStream(t *testing.T) {
	stub := &metricsStub{}
	hub := ws.NewHub(logger.Discard(), nil)
	engine := newEngine(NewMetricsHandler(stub, hub, time.Hour).RegisterRoutes)

	srv := httptest.NewServer(engine)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/metrics/realtime/stream?company_id=3"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame struct {
		Type string           `json:"type"`
		Data service.Realtime `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "metrics", frame.Type)
	assert.EqualValues(t, 3, frame.Data.ActiveConversations)
	assert.Equal(t, 1, hub.ActiveConnections())
}

func TestMetricsHandler_StreamRequiresTenant(t *testing.T) {
	hub := ws.NewHub(logger.Discard(), nil)
	engine := newEngine(NewMetricsHandler(&metricsStub{}, hub, time.Hour).RegisterRoutes)

	w, env := do(t, engine, http.MethodGet, "/api/metrics/realtime/stream", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeMissingTenant, env.Error.Code)
	assert.Zero(t, hub.ActiveConnections())
}

type companyStub struct {
	filter  service.CompanyFilter
	created service.CompanyInput
	deleted int64
	deps    models.CompanyDependents
}

func (s *companyStub) Create(_ context.Context, in service.CompanyInput) (models.Company, error) {
	s.created = in
	return models.Company{ID: 10, Name: *in.Name}, nil
}

func (s *companyStub) List(_ context.Context, f service.CompanyFilter) (query.Result[models.Company], error) {
	s.filter = f
	items := []models.Company{}
	for _, id := range f.IDs {
		items = append(items, models.Company{ID: id})
	}
	return query.Result[models.Company]{Items: items, Pagination: query.NewPagination(f.Page, int64(len(items)))}, nil
}

func (s *companyStub) Get(_ context.Context, id int64) (models.Company, error) {
	return models.Company{ID: id}, nil
}

func (s *companyStub) Update(_ context.Context, id int64, _ service.CompanyInput) (models.Company, error) {
	return models.Company{ID: id}, nil
}

func (s *companyStub) Delete(_ context.Context, id int64) error {
	if s.deps.Any() {
		return apperrors.ConflictWithDetails(apperrors.CodeDependentsExist,
			"Company has associated records and cannot be deleted", s.deps)
	}
	s.deleted = id
	return nil
}

func companyEngine(stub *companyStub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(apperrors.ErrorHandler(false))
	NewCompanyHandler(stub, DefaultLimits, nil).RegisterRoutes(r.Group("/api"))
	return r
}

func claimsCompanyEngine(stub *companyStub, identity jwt.Identity) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(apperrors.ErrorHandler(false))
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(jwt.WithIdentity(c.Request.Context(), identity))
		c.Next()
	})
	NewCompanyHandler(stub, DefaultLimits, middleware.ClaimsEntitlement{AdminRole: "admin"}).
		RegisterRoutes(r.Group("/api"))
	return r
}

func TestCompanyHandler_ClaimsLimitVisibleCompanies(t *testing.T) {
	member := jwt.Identity{Subject: "u1", Claims: map[string]any{"company_ids": []any{float64(3), float64(7)}}}

	stub := &companyStub{}
	engine := claimsCompanyEngine(stub, member)

	w, env := do(t, engine, http.MethodGet, "/api/companies", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.True(t, stub.filter.Restricted)
	assert.Equal(t, []int64{3, 7}, stub.filter.IDs)

	w, _ = do(t, engine, http.MethodGet, "/api/companies/7", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = do(t, engine, http.MethodGet, "/api/companies/5", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperrors.CodeTenantForbidden, env.Error.Code)

	none := &companyStub{}
	w, _ = do(t, claimsCompanyEngine(none, jwt.Identity{Subject: "u2"}), http.MethodGet, "/api/companies", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, none.filter.Restricted)
	assert.Empty(t, none.filter.IDs)

	admin := &companyStub{}
	adminEngine := claimsCompanyEngine(admin, jwt.Identity{Subject: "root", Claims: map[string]any{"role": "admin"}})
	w, _ = do(t, adminEngine, http.MethodGet, "/api/companies", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, admin.filter.Restricted)

	w, _ = do(t, adminEngine, http.MethodGet, "/api/companies/5", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCompanyHandler_AllowAllListsEveryCompany(t *testing.T) {
	stub := &companyStub{}
	w, _ := do(t, companyEngine(stub), http.MethodGet, "/api/companies?search=acme", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, stub.filter.Restricted)
	assert.Equal(t, "acme", stub.filter.Search)
}

func TestCompanyHandler_Create(t *testing.T) {
	stub := &companyStub{}
	engine := companyEngine(stub)

	w, env := do(t, engine, http.MethodPost, "/api/companies", `{"name": "Acme", "dealer_info": {"brand": "VW"}}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, env.Success)
	require.NotNil(t, stub.created.Name)
	assert.Equal(t, "Acme", *stub.created.Name)
	assert.JSONEq(t, `{"brand": "VW"}`, string(stub.created.DealerInfo))

	w, env = do(t, engine, http.MethodPost, "/api/companies", `[1, 2]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeInvalidInput, env.Error.Code)
}

func TestCompanyHandler_DeleteBlockedByDependents(t *testing.T) {
	stub := &companyStub{deps: models.CompanyDependents{Sessions: 2, Leads: 1}}
	engine := companyEngine(stub)

	w, env := do(t, engine, http.MethodDelete, "/api/companies/5", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperrors.CodeDependentsExist, env.Error.Code)
	assert.EqualValues(t, 2, env.Error.Details["sessions"])
	assert.EqualValues(t, 1, env.Error.Details["leads"])
	assert.EqualValues(t, 0, env.Error.Details["contacts"])
	assert.Zero(t, stub.deleted)

	stub.deps = models.CompanyDependents{}
	w, env = do(t, engine, http.MethodDelete, "/api/companies/5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.Equal(t, int64(5), stub.deleted)
}

func TestCompanyHandler_WriteMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(apperrors.ErrorHandler(false))
	deny := func(c *gin.Context) {
		c.Error(apperrors.NewForbiddenError("FORBIDDEN", "Insufficient role"))
		c.Abort()
	}
	NewCompanyHandler(&companyStub{}, DefaultLimits, nil).RegisterRoutes(r.Group("/api"), deny)

	w, _ := do(t, r, http.MethodGet, "/api/companies/5", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, r, http.MethodPut, "/api/companies/5", `{"name": "New"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
