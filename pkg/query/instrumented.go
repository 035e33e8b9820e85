package query

import (
	"context"
	"strings"
	"time"

	"conversation-analytics/backend/pkg/resilience"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "conversation-analytics/backend/pkg/query"

// Instrumented wraps a Querier with tracing, a latency histogram, a
// per-statement timeout and a circuit breaker.
type Instrumented struct {
	next     Querier
	breaker  *resilience.CircuitBreaker
	timeout  time.Duration
	tracer   trace.Tracer
	duration metric.Float64Histogram
}

// InstrumentOptions configures Instrument
type InstrumentOptions struct {
	Timeout time.Duration
	Breaker *resilience.CircuitBreaker
}

// Instrument wraps next. A nil breaker or zero timeout disables that concern.
func Instrument(next Querier, opts InstrumentOptions) *Instrumented {
	meter := otel.Meter(instrumentationName)
	duration, err := meter.Float64Histogram("db.query.duration",
		metric.WithDescription("Duration of storage statements"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		otel.Handle(err)
	}
	return &Instrumented{
		next:     next,
		breaker:  opts.Breaker,
		timeout:  opts.Timeout,
		tracer:   otel.Tracer(instrumentationName),
		duration: duration,
	}
}

func (q *Instrumented) start(ctx context.Context, sql string) (context.Context, func(error)) {
	var cancel context.CancelFunc = func() {}
	if q.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
	}

	op := operation(sql)
	attrs := []attribute.KeyValue{
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", op),
	}
	ctx, span := q.tracer.Start(ctx, "db."+strings.ToLower(op),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(attrs, attribute.String("db.statement", sql))...),
	)
	began := time.Now()

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if q.duration != nil {
			q.duration.Record(ctx, float64(time.Since(began).Microseconds())/1000,
				metric.WithAttributes(append(attrs, attribute.Bool("error", err != nil))...))
		}
		cancel()
	}
}

func (q *Instrumented) guard(ctx context.Context, fn func(context.Context) error) error {
	if q.breaker == nil {
		return fn(ctx)
	}
	return q.breaker.Execute(ctx, fn)
}

// Query runs a statement; the timeout and span stay open until the rows are closed.
func (q *Instrumented) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	ctx, finish := q.start(ctx, sql)
	var rows pgx.Rows
	err := q.guard(ctx, func(ctx context.Context) error {
		var err error
		rows, err = q.next.Query(ctx, sql, args...)
		return err
	})
	if err != nil {
		finish(err)
		return nil, err
	}
	return &finishingRows{Rows: rows, finish: finish}, nil
}

// QueryRow defers execution until Scan so failures reach the breaker.
func (q *Instrumented) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return rowFunc(func(dest ...any) error {
		ctx, finish := q.start(ctx, sql)
		err := q.guard(ctx, func(ctx context.Context) error {
			return q.next.QueryRow(ctx, sql, args...).Scan(dest...)
		})
		finish(err)
		return err
	})
}

// Exec runs a statement that returns no rows
func (q *Instrumented) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	ctx, finish := q.start(ctx, sql)
	var tag pgconn.CommandTag
	err := q.guard(ctx, func(ctx context.Context) error {
		var err error
		tag, err = q.next.Exec(ctx, sql, args...)
		return err
	})
	finish(err)
	return tag, err
}

type rowFunc func(dest ...any) error

func (f rowFunc) Scan(dest ...any) error { return f(dest...) }

type finishingRows struct {
	pgx.Rows
	finish func(error)
	done   bool
}

func (r *finishingRows) Close() {
	r.Rows.Close()
	if !r.done {
		r.done = true
		r.finish(r.Rows.Err())
	}
}

func operation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "UNKNOWN"
	}
	return strings.ToUpper(fields[0])
}
