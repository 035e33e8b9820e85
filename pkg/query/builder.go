// Package query assembles tenant-scoped, parameterized SQL and executes
// paginated reads against a pgx-compatible Querier.
//
// Fragments are written with "?" placeholders. Positional "$n" markers are
// only assigned when a whole statement is rendered, so adding, omitting or
// reordering optional fragments can never leave a gap or a duplicate index.
// Fragments must not contain a literal "?" (including the jsonb ? operators).
package query

import (
	"fmt"
	"strconv"
	"strings"
)

// Expr is a SQL fragment with "?" placeholders and its arguments in order.
type Expr struct {
	SQL  string
	Args []any
}

// Raw builds an Expr, panicking when placeholder and argument counts differ.
func Raw(sql string, args ...any) Expr {
	if n := strings.Count(sql, "?"); n != len(args) {
		panic(fmt.Sprintf("query: fragment %q has %d placeholders but %d args", sql, n, len(args)))
	}
	return Expr{SQL: sql, Args: args}
}

// IsZero reports whether the expression is empty
func (e Expr) IsZero() bool {
	return strings.TrimSpace(e.SQL) == ""
}

// Builder accumulates AND-joined predicates in call order.
type Builder struct {
	parts []Expr
}

// NewBuilder returns a builder seeded with required predicates, typically the tenant scope.
func NewBuilder(required ...Expr) *Builder {
	b := &Builder{}
	for _, e := range required {
		b.add(e)
	}
	return b
}

func (b *Builder) add(e Expr) *Builder {
	if !e.IsZero() {
		b.parts = append(b.parts, e)
	}
	return b
}

// Where appends a predicate unconditionally.
func (b *Builder) Where(sql string, args ...any) *Builder {
	return b.add(Raw(sql, args...))
}

// When appends a predicate only if cond holds.
func (b *Builder) When(cond bool, sql string, args ...any) *Builder {
	if !cond {
		return b
	}
	return b.Where(sql, args...)
}

// Eq appends "column = ?" when the pointer is set.
func Eq[T any](b *Builder, column string, value *T) *Builder {
	if value == nil {
		return b
	}
	return b.Where(column+" = ?", *value)
}

// Contains appends a case-insensitive substring match across one or more
// columns. The term is escaped and wrapped in wildcards; empty terms are skipped.
func (b *Builder) Contains(term string, columns ...string) *Builder {
	if term == "" || len(columns) == 0 {
		return b
	}
	pattern := "%" + EscapeLike(term) + "%"
	clauses := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, col := range columns {
		clauses[i] = col + " ILIKE ?"
		args[i] = pattern
	}
	if len(clauses) == 1 {
		return b.Where(clauses[0], args...)
	}
	return b.Where("("+strings.Join(clauses, " OR ")+")", args...)
}

// EqualFold appends a case-insensitive equality match when the value is non-empty.
func (b *Builder) EqualFold(column, value string) *Builder {
	if value == "" {
		return b
	}
	return b.Where("LOWER("+column+") = LOWER(?)", value)
}

// Len reports the number of predicates.
func (b *Builder) Len() int {
	return len(b.parts)
}

// Expr joins the predicates with AND. An empty builder yields a zero Expr.
func (b *Builder) Expr() Expr {
	if b == nil || len(b.parts) == 0 {
		return Expr{}
	}
	sqls := make([]string, len(b.parts))
	var args []any
	for i, p := range b.parts {
		sqls[i] = p.SQL
		args = append(args, p.Args...)
	}
	return Expr{SQL: strings.Join(sqls, " AND "), Args: args}
}

// WhereClause renders " WHERE ..." or an empty expression.
func (b *Builder) WhereClause() Expr {
	e := b.Expr()
	if e.IsZero() {
		return e
	}
	return Expr{SQL: " WHERE " + e.SQL, Args: e.Args}
}

// EscapeLike escapes the LIKE metacharacters in a user-supplied term.
func EscapeLike(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(term)
}

// Compose concatenates fragments and renders positional placeholders
// starting at $1, returning the final SQL and the aligned argument list.
func Compose(parts ...Expr) (string, []any) {
	var sb strings.Builder
	var args []any
	for _, p := range parts {
		sb.WriteString(p.SQL)
		args = append(args, p.Args...)
	}
	return Rebind(sb.String(), 1), args
}

// Rebind replaces each "?" with $start, $start+1, ... in order of appearance.
func Rebind(sql string, start int) string {
	if !strings.Contains(sql, "?") {
		return sql
	}
	var sb strings.Builder
	sb.Grow(len(sql) + 8)
	n := start
	for i := 0; i < len(sql); i++ {
		if sql[i] == '?' {
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			n++
			continue
		}
		sb.WriteByte(sql[i])
	}
	return sb.String()
}
