package observability

import (
	"bytes"
	"context"
	"testing"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetup_ExportsSpansAndMetrics(t *testing.T) {
	var traces bytes.Buffer
	reg := promclient.NewRegistry()

	p, err := Setup(Options{
		ServiceName:  "analytics-test",
		TracesStdout: true,
		TraceWriter:  &traces,
		Registerer:   reg,
	})
	require.NoError(t, err)

	ctx := context.Background()
	_, span := otel.Tracer("test").Start(ctx, "db.select")
	span.End()

	counter, err := otel.Meter("test").Int64Counter("test.requests")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "test_requests_total")

	require.NoError(t, p.Shutdown(ctx))
	assert.Contains(t, traces.String(), "db.select")
	assert.Contains(t, traces.String(), "analytics-test")
}
