package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// Options configures Setup
type Options struct {
	ServiceName string
	// TracesStdout exports spans as JSON to TraceWriter (stdout when nil).
	TracesStdout bool
	TraceWriter  io.Writer
	// Registerer receives the OpenTelemetry metrics so they are served
	// alongside the HTTP collectors on /metrics.
	Registerer promclient.Registerer
}

// Providers holds the installed global providers
type Providers struct {
	Tracer *trace.TracerProvider
	Meter  *metric.MeterProvider
}

// Shutdown flushes and stops both providers
func (p *Providers) Shutdown(ctx context.Context) error {
	return errors.Join(p.Tracer.Shutdown(ctx), p.Meter.Shutdown(ctx))
}

// Setup installs the global tracer and meter providers
func Setup(opts Options) (*Providers, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(semconv.ServiceName(opts.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build otel resource: %w", err)
	}

	traceOpts := []trace.TracerProviderOption{trace.WithResource(res)}
	if opts.TracesStdout {
		w := opts.TraceWriter
		if w == nil {
			w = os.Stdout
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize stdouttrace exporter: %w", err)
		}
		traceOpts = append(traceOpts, trace.WithBatcher(exp))
	}
	tp := trace.NewTracerProvider(traceOpts...)

	promOpts := []prometheus.Option{}
	if opts.Registerer != nil {
		promOpts = append(promOpts, prometheus.WithRegisterer(opts.Registerer))
	}
	exp, err := prometheus.New(promOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize prometheus exporter: %w", err)
	}
	mp := metric.NewMeterProvider(metric.WithReader(exp), metric.WithResource(res))

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return &Providers{Tracer: tp, Meter: mp}, nil
}
