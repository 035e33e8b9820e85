package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	apperrors "conversation-analytics/backend/pkg/errors"
	"conversation-analytics/backend/pkg/query/querytest"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stockCols = []string{
	"id", "company_name", "brand", "model", "year", "price", "mileage",
	"category", "fuel_type", "transmission", "location", "media_urls", "created_at",
}

func TestSearchService_TooShortIssuesNoQuery(t *testing.T) {
	svc := NewSearchService(querytest.New())
	ctx := context.Background()

	for _, q := range []string{"", " ", "a", "  b  ", "é"} {
		db := querytest.New()
		svc.db = db
		svc.stock.db = db

		_, err := svc.Contacts(ctx, 1, q, 10)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeSearchTooShort), q)
		_, err = svc.Conversations(ctx, 1, q, 10)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeSearchTooShort), q)
		_, err = svc.Leads(ctx, 1, q, 10)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeSearchTooShort), q)
		_, err = svc.Stock(ctx, 1, q, 10)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeSearchTooShort), q)
		_, err = svc.Global(ctx, 1, q, 10)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeSearchTooShort), q)

		assert.Zero(t, db.CallCount(), "no statement may run for %q", q)
	}
}

func TestSearchService_ContactsScopedToTenant(t *testing.T) {
	now := time.Now().UTC()
	db := querytest.New().OnQuery("FROM contacts c JOIN contact_companies cc", querytest.NewRows(
		"id", "name", "phone_number", "email", "created_at").
		Add(int64(1), "Maria", nil, nil, now))

	contacts, err := NewSearchService(db).Contacts(context.Background(), 9, "  mar ", 10)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Maria", *contacts[0].Name)

	call := db.Calls()[0]
	assert.Equal(t, []any{int64(9), "%mar%", "%mar%", "%mar%", 10}, call.Args)
	assert.Contains(t, call.SQL, "cc.company_id = $1")
	assert.Contains(t, call.SQL, "LIMIT $5")
}

func TestSearchService_Global(t *testing.T) {
	now := time.Now().UTC()
	db := querytest.New().
		OnQuery("FROM contacts c JOIN contact_companies cc", querytest.NewRows(
			"id", "name", "phone_number", "email", "created_at").
			Add(int64(1), "Golf fan", nil, nil, now)).
		OnQuery("FROM conversations m JOIN sessions s", querytest.NewRows(
			"message_id", "session_id", "session_status", "sender", "content", "created_at",
			"contact_id", "contact_name", "contact_phone", "contact_email").
			Add(int64(5), int64(2), int64(1), int64(0), "is the golf available?", now,
				int64(1), "Golf fan", nil, nil)).
		OnQuery("FROM leads l", querytest.NewRows(leadCols...)).
		OnQueryRow("SELECT name FROM companies", "Acme Motors").
		OnQuery("FROM stock st", querytest.NewRows(stockCols...).
			Add(int64(3), "Acme Motors", "VW", "Golf", int64(2020), 15000.0, 40000.0,
				"hatchback", "petrol", "manual", "Lisbon", []byte(`["a.jpg"]`), now))

	res, err := NewSearchService(db).Global(context.Background(), 9, "golf", 5)
	require.NoError(t, err)

	assert.Len(t, res.Contacts, 1)
	require.Len(t, res.Conversations, 1)
	assert.Equal(t, int64(2), res.Conversations[0].SessionID)
	assert.Equal(t, "is the golf available?", res.Conversations[0].Message.Summary)
	assert.NotNil(t, res.Leads)
	assert.Empty(t, res.Leads)
	require.Len(t, res.Stock, 1)
	assert.JSONEq(t, `["a.jpg"]`, string(res.Stock[0].MediaURLs))

	stock, ok := db.Find("FROM stock st")
	require.True(t, ok)
	assert.Equal(t, "Acme Motors", stock.Args[0])
	assert.Equal(t, 5, stock.Args[len(stock.Args)-1])
}

func TestSearchService_StockUnknownTenant(t *testing.T) {
	db := querytest.New().Fail("SELECT name FROM companies", pgx.ErrNoRows)

	_, err := NewSearchService(db).Stock(context.Background(), 404, "golf", 5)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, apperrors.GetStatusCode(err))
	assert.Equal(t, 1, db.CallCount())
}
