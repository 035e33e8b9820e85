package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	assert.Equal(t, "a = $1 AND b = $2", Rebind("a = ? AND b = ?", 1))
	assert.Equal(t, "LIMIT $4 OFFSET $5", Rebind("LIMIT ? OFFSET ?", 4))
	assert.Equal(t, "SELECT 1", Rebind("SELECT 1", 1))
}

func TestRaw_PanicsOnMismatch(t *testing.T) {
	assert.Panics(t, func() { Raw("a = ? AND b = ?", 1) })
	assert.NotPanics(t, func() { Raw("a = ?", 1) })
}

func TestBuilder_OptionalFiltersKeepIndicesContiguous(t *testing.T) {
	status := 2
	cases := []struct {
		name     string
		search   string
		status   *int
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "tenant only",
			wantSQL:  " WHERE s.company_id = $1",
			wantArgs: []any{int64(7)},
		},
		{
			name:     "search only",
			search:   "ana",
			wantSQL:  " WHERE s.company_id = $1 AND (c.name ILIKE $2 OR c.phone_number ILIKE $3)",
			wantArgs: []any{int64(7), "%ana%", "%ana%"},
		},
		{
			name:     "status only",
			status:   &status,
			wantSQL:  " WHERE s.company_id = $1 AND s.status = $2",
			wantArgs: []any{int64(7), 2},
		},
		{
			name:     "all filters",
			search:   "ana",
			status:   &status,
			wantSQL:  " WHERE s.company_id = $1 AND (c.name ILIKE $2 OR c.phone_number ILIKE $3) AND s.status = $4",
			wantArgs: []any{int64(7), "%ana%", "%ana%", 2},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBuilder(Raw("s.company_id = ?", int64(7)))
			b.Contains(tc.search, "c.name", "c.phone_number")
			Eq(b, "s.status", tc.status)

			sql, args := Compose(b.WhereClause())
			assert.Equal(t, tc.wantSQL, sql)
			assert.Equal(t, tc.wantArgs, args)
		})
	}
}

func TestBuilder_Deterministic(t *testing.T) {
	build := func() (string, []any) {
		b := NewBuilder(Raw("l.company_id = ?", int64(3)))
		b.Contains("bob", "c.name")
		b.When(true, "l.created_at >= ?", "2024-01-01")
		b.EqualFold("s.category", "SUV")
		return Compose(b.WhereClause())
	}
	sql1, args1 := build()
	sql2, args2 := build()
	assert.Equal(t, sql1, sql2)
	assert.Equal(t, args1, args2)
}

func TestBuilder_ContainsEscapesWildcards(t *testing.T) {
	b := NewBuilder().Contains(`50%_off\`, "name")
	e := b.Expr()
	require.Len(t, e.Args, 1)
	assert.Equal(t, `%50\%\_off\\%`, e.Args[0])
}

func TestBuilder_EmptyYieldsNoWhere(t *testing.T) {
	var nilBuilder *Builder
	assert.True(t, nilBuilder.WhereClause().IsZero())
	assert.True(t, NewBuilder().WhereClause().IsZero())
	assert.Equal(t, 0, NewBuilder(Expr{}).Len())
}

func TestPageQuery_CountAndPageShareFilterArgs(t *testing.T) {
	where := NewBuilder(Raw("s.company_id = ?", int64(9))).Contains("ab", "c.name")
	q := PageQuery{
		Columns:  Raw("s.id, (SELECT COUNT(*) FROM conversations m WHERE m.session_id = s.id AND m.sender = ?) AS inbound", 0),
		From:     Expr{SQL: "sessions s JOIN contacts c ON c.id = s.contact_id"},
		Where:    where,
		OrderBy:  "s.created_at DESC, s.id DESC",
		CountKey: "s.id",
	}

	pageSQL, pageArgs := q.PageStatement(Page{Number: 3, Limit: 10})
	countSQL, countArgs := q.CountStatement()

	assert.Equal(t,
		"SELECT s.id, (SELECT COUNT(*) FROM conversations m WHERE m.session_id = s.id AND m.sender = $1) AS inbound"+
			" FROM sessions s JOIN contacts c ON c.id = s.contact_id"+
			" WHERE s.company_id = $2 AND c.name ILIKE $3"+
			" ORDER BY s.created_at DESC, s.id DESC LIMIT $4 OFFSET $5",
		pageSQL)
	assert.Equal(t, []any{0, int64(9), "%ab%", 10, 20}, pageArgs)

	assert.Equal(t,
		"SELECT COUNT(DISTINCT s.id) FROM sessions s JOIN contacts c ON c.id = s.contact_id WHERE s.company_id = $1 AND c.name ILIKE $2",
		countSQL)
	assert.Equal(t, []any{int64(9), "%ab%"}, countArgs)
	assert.Equal(t, pageArgs[1:3], countArgs)
}
