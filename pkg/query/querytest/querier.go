// Package querytest provides an in-memory query.Querier that records every
// statement and replays canned rows, for unit tests without a database.
package querytest

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Call is one recorded statement
type Call struct {
	Kind string
	SQL  string
	Args []any
}

type response struct {
	match    string
	columns  []string
	rows     [][]any
	affected int64
	err      error
}

// Querier replays canned responses matched by SQL substring; the first
// registered match wins. It is safe for concurrent use.
type Querier struct {
	mu       sync.Mutex
	calls    []Call
	queries  []response
	rowQuery []response
	execs    []response
}

// New returns an empty fake
func New() *Querier {
	return &Querier{}
}

// Rows describes a canned result set
type Rows struct {
	columns []string
	rows    [][]any
}

// NewRows starts a result set with the given column names
func NewRows(columns ...string) *Rows {
	return &Rows{columns: columns}
}

// Add appends a row; values are positional to the columns
func (r *Rows) Add(values ...any) *Rows {
	if len(values) != len(r.columns) {
		panic(fmt.Sprintf("querytest: row has %d values for %d columns", len(values), len(r.columns)))
	}
	r.rows = append(r.rows, values)
	return r
}

// OnQuery answers Query calls whose SQL contains match
func (q *Querier) OnQuery(match string, rows *Rows) *Querier {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queries = append(q.queries, response{match: match, columns: rows.columns, rows: rows.rows})
	return q
}

// OnQueryRow answers QueryRow calls whose SQL contains match with one row
func (q *Querier) OnQueryRow(match string, values ...any) *Querier {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rowQuery = append(q.rowQuery, response{match: match, rows: [][]any{values}})
	return q
}

// OnExec answers Exec calls whose SQL contains match
func (q *Querier) OnExec(match string, affected int64) *Querier {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.execs = append(q.execs, response{match: match, affected: affected})
	return q
}

// Fail makes every kind of call whose SQL contains match return err
func (q *Querier) Fail(match string, err error) *Querier {
	q.mu.Lock()
	defer q.mu.Unlock()
	r := response{match: match, err: err}
	q.queries = append([]response{r}, q.queries...)
	q.rowQuery = append([]response{r}, q.rowQuery...)
	q.execs = append([]response{r}, q.execs...)
	return q
}

// Calls returns a copy of the recorded statements
func (q *Querier) Calls() []Call {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Call(nil), q.calls...)
}

// CallCount returns the number of statements issued
func (q *Querier) CallCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.calls)
}

// Find returns the first recorded statement containing match
func (q *Querier) Find(match string) (Call, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, c := range q.calls {
		if strings.Contains(c.SQL, match) {
			return c, true
		}
	}
	return Call{}, false
}

func (q *Querier) record(kind, sql string, args []any, list []response) (response, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls = append(q.calls, Call{Kind: kind, SQL: sql, Args: append([]any(nil), args...)})
	for _, r := range list {
		if strings.Contains(sql, r.match) {
			return r, true
		}
	}
	return response{}, false
}

// Query implements query.Querier
func (q *Querier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	r, ok := q.record("query", sql, args, q.queries)
	if !ok {
		return nil, fmt.Errorf("querytest: unexpected query: %s", sql)
	}
	if r.err != nil {
		return nil, r.err
	}
	return &cursor{columns: r.columns, rows: r.rows, pos: -1}, nil
}

// QueryRow implements query.Querier
func (q *Querier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	r, ok := q.record("queryrow", sql, args, q.rowQuery)
	if !ok {
		return errRow{err: fmt.Errorf("querytest: unexpected query row: %s", sql)}
	}
	if r.err != nil {
		return errRow{err: r.err}
	}
	if len(r.rows) == 0 {
		return errRow{err: pgx.ErrNoRows}
	}
	return valueRow(r.rows[0])
}

// Exec implements query.Querier
func (q *Querier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r, ok := q.record("exec", sql, args, q.execs)
	if !ok {
		return pgconn.CommandTag{}, fmt.Errorf("querytest: unexpected exec: %s", sql)
	}
	if r.err != nil {
		return pgconn.CommandTag{}, r.err
	}
	return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", r.affected)), nil
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

type valueRow []any

func (r valueRow) Scan(dest ...any) error {
	if len(dest) != len(r) {
		return fmt.Errorf("querytest: scan into %d targets, row has %d values", len(dest), len(r))
	}
	for i := range dest {
		if err := assign(dest[i], r[i]); err != nil {
			return err
		}
	}
	return nil
}

// cursor implements pgx.Rows over canned values
type cursor struct {
	columns []string
	rows    [][]any
	pos     int
	closed  bool
	err     error
}

func (c *cursor) Close()                        { c.closed = true }
func (c *cursor) Err() error                    { return c.err }
func (c *cursor) CommandTag() pgconn.CommandTag { return pgconn.NewCommandTag("SELECT") }
func (c *cursor) Conn() *pgx.Conn               { return nil }
func (c *cursor) RawValues() [][]byte           { return nil }

func (c *cursor) FieldDescriptions() []pgconn.FieldDescription {
	out := make([]pgconn.FieldDescription, len(c.columns))
	for i, name := range c.columns {
		out[i] = pgconn.FieldDescription{Name: name}
	}
	return out
}

func (c *cursor) Next() bool {
	if c.closed {
		return false
	}
	c.pos++
	if c.pos >= len(c.rows) {
		c.closed = true
		return false
	}
	return true
}

func (c *cursor) Values() ([]any, error) {
	return append([]any(nil), c.rows[c.pos]...), nil
}

func (c *cursor) Scan(dest ...any) error {
	if len(dest) == 1 {
		if rs, ok := dest[0].(pgx.RowScanner); ok {
			return rs.ScanRow(c)
		}
	}
	return valueRow(c.rows[c.pos]).Scan(dest...)
}

func assign(dest, value any) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Pointer || dv.IsNil() {
		return fmt.Errorf("querytest: scan target %T is not a non-nil pointer", dest)
	}
	target := dv.Elem()
	if value == nil {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}
	sv := reflect.ValueOf(value)
	if target.Kind() == reflect.Pointer && !sv.Type().AssignableTo(target.Type()) {
		p := reflect.New(target.Type().Elem())
		if err := set(p.Elem(), sv); err != nil {
			return err
		}
		target.Set(p)
		return nil
	}
	return set(target, sv)
}

func set(target, sv reflect.Value) error {
	switch {
	case sv.Type().AssignableTo(target.Type()):
		target.Set(sv)
	case target.Kind() == reflect.String && sv.Kind() != reflect.String:
		return fmt.Errorf("querytest: cannot scan %s into %s", sv.Type(), target.Type())
	case sv.Type().ConvertibleTo(target.Type()):
		target.Set(sv.Convert(target.Type()))
	default:
		return fmt.Errorf("querytest: cannot scan %s into %s", sv.Type(), target.Type())
	}
	return nil
}
