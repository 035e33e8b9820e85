package query

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/sync/errgroup"
)

// Querier is the storage surface the services depend on. *pgxpool.Pool,
// pgx.Tx and the instrumented wrapper all satisfy it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PageQuery describes a filtered, ordered relation. The page and count
// statements are rendered from the same Where builder, so they always
// filter identically.
type PageQuery struct {
	// Columns is the select list; it may carry its own placeholders.
	Columns Expr
	// From is the relation including joins, without the FROM keyword.
	From Expr
	// Where holds the tenant scope and optional filters.
	Where *Builder
	// GroupBy is rendered without the GROUP BY keyword.
	GroupBy string
	// OrderBy must be deterministic so pages never overlap.
	OrderBy string
	// CountKey is the root entity's primary key, counted distinctly.
	CountKey string
}

// PageStatement renders the page query with LIMIT/OFFSET as the trailing parameters.
func (q PageQuery) PageStatement(p Page) (string, []any) {
	parts := []Expr{
		{SQL: "SELECT " + q.Columns.SQL, Args: q.Columns.Args},
		{SQL: " FROM " + q.From.SQL, Args: q.From.Args},
		q.Where.WhereClause(),
	}
	if q.GroupBy != "" {
		parts = append(parts, Expr{SQL: " GROUP BY " + q.GroupBy})
	}
	if q.OrderBy != "" {
		parts = append(parts, Expr{SQL: " ORDER BY " + q.OrderBy})
	}
	parts = append(parts, Raw(" LIMIT ? OFFSET ?", p.Limit, p.Offset()))
	return Compose(parts...)
}

// CountStatement renders COUNT(DISTINCT key) over the same relation and filters.
func (q PageQuery) CountStatement() (string, []any) {
	key := q.CountKey
	if key == "" {
		key = "*"
	}
	count := "COUNT(DISTINCT " + key + ")"
	if key == "*" {
		count = "COUNT(*)"
	}
	return Compose(
		Expr{SQL: "SELECT " + count},
		Expr{SQL: " FROM " + q.From.SQL, Args: q.From.Args},
		q.Where.WhereClause(),
	)
}

// Paginate runs the page and count statements concurrently and scans the page
// into T by column name.
func Paginate[T any](ctx context.Context, db Querier, q PageQuery, p Page) (Result[T], error) {
	pageSQL, pageArgs := q.PageStatement(p)
	countSQL, countArgs := q.CountStatement()

	var (
		items []T
		total int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := db.Query(gctx, pageSQL, pageArgs...)
		if err != nil {
			return err
		}
		items, err = pgx.CollectRows(rows, pgx.RowToStructByName[T])
		return err
	})
	g.Go(func() error {
		return db.QueryRow(gctx, countSQL, countArgs...).Scan(&total)
	})
	if err := g.Wait(); err != nil {
		return Result[T]{}, err
	}

	if items == nil {
		items = []T{}
	}
	return Result[T]{Items: items, Pagination: NewPagination(p, total)}, nil
}

// List runs a composed statement and scans every row into T by column name.
func List[T any](ctx context.Context, db Querier, parts ...Expr) ([]T, error) {
	sql, args := Compose(parts...)
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// One runs a composed statement expecting a single row; no rows yields pgx.ErrNoRows.
func One[T any](ctx context.Context, db Querier, parts ...Expr) (T, error) {
	sql, args := Compose(parts...)
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		var zero T
		return zero, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[T])
}

// Select is shorthand for a "SELECT cols FROM rel WHERE ..." fragment list.
func Select(columns string, from string, where *Builder, tail ...string) []Expr {
	parts := []Expr{
		{SQL: "SELECT " + columns},
		{SQL: " FROM " + from},
		where.WhereClause(),
	}
	if len(tail) > 0 {
		parts = append(parts, Expr{SQL: " " + strings.Join(tail, " ")})
	}
	return parts
}
