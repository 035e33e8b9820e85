package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAcquireTimeout is returned when no pooled connection frees up within
// the acquire deadline. It wraps context.DeadlineExceeded.
var ErrAcquireTimeout = errors.New("timed out waiting for a database connection")

// Conn is a connection checked out of a pool
type Conn interface {
	Querier
	Release()
}

// ConnPool hands out connections
type ConnPool interface {
	Acquire(ctx context.Context) (Conn, error)
}

// PgxPool adapts *pgxpool.Pool to ConnPool
type PgxPool struct {
	*pgxpool.Pool
}

// Acquire implements ConnPool
func (p PgxPool) Acquire(ctx context.Context) (Conn, error) {
	conn, err := p.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// PoolQuerier runs each statement on a connection acquired under its own
// deadline, so pool exhaustion fails fast instead of consuming the whole
// statement timeout.
type PoolQuerier struct {
	pool           ConnPool
	acquireTimeout time.Duration
}

// NewPoolQuerier wraps pool. A zero acquireTimeout waits as long as ctx allows.
func NewPoolQuerier(pool ConnPool, acquireTimeout time.Duration) *PoolQuerier {
	return &PoolQuerier{pool: pool, acquireTimeout: acquireTimeout}
}

func (q *PoolQuerier) acquire(ctx context.Context) (Conn, error) {
	if q.acquireTimeout <= 0 {
		return q.pool.Acquire(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, q.acquireTimeout)
	defer cancel()

	conn, err := q.pool.Acquire(actx)
	if err != nil {
		if ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %w", ErrAcquireTimeout, q.acquireTimeout, context.DeadlineExceeded)
		}
		return nil, err
	}
	return conn, nil
}

// Query implements Querier; the connection is released when the rows close.
func (q *PoolQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	conn, err := q.acquire(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		conn.Release()
		return nil, err
	}
	return &releasingRows{Rows: rows, conn: conn}, nil
}

// QueryRow implements Querier
func (q *PoolQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return rowFunc(func(dest ...any) error {
		conn, err := q.acquire(ctx)
		if err != nil {
			return err
		}
		defer conn.Release()
		return conn.QueryRow(ctx, sql, args...).Scan(dest...)
	})
}

// Exec implements Querier
func (q *PoolQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	conn, err := q.acquire(ctx)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	defer conn.Release()
	return conn.Exec(ctx, sql, args...)
}

type releasingRows struct {
	pgx.Rows
	conn     Conn
	released bool
}

func (r *releasingRows) Close() {
	r.Rows.Close()
	if !r.released {
		r.released = true
		r.conn.Release()
	}
}
