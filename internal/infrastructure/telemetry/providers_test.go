package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap/zaptest"
)

func TestStart_Disabled(t *testing.T) {
	ctx := context.Background()

	p, err := telemetry.Start(ctx, telemetry.Config{ServiceName: "catalog-test"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, p.Enabled())

	counter, err := telemetry.NewCounter(p.Meter("test"), "catalog_test_total", "Test counter", "1")
	require.NoError(t, err)
	counter.AddN(ctx, 5, attribute.String("job_type", "catalog.upsert"))
	counter.Inc(ctx)

	hist, err := telemetry.NewHistogram(p.Meter("test"), telemetry.HistogramOpts{
		Name:       "catalog_test_seconds",
		Unit:       "s",
		Boundaries: telemetry.JobDurationBuckets,
	})
	require.NoError(t, err)
	hist.RecordDuration(ctx, 150*time.Millisecond)

	_, span := p.Tracer("test").Start(ctx, "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	assert.NoError(t, p.Shutdown(ctx))
}

func TestStart_Enabled(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping exporter test in short mode")
	}
	ctx := context.Background()

	// grpc exporters dial lazily, an unreachable collector does not fail Start
	p, err := telemetry.Start(ctx, telemetry.Config{
		Enabled:           true,
		CollectorEndpoint: "localhost:14317",
		Insecure:          true,
		ServiceName:       "catalog-test",
		SamplingRatio:     1,
		ExportInterval:    time.Hour,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, p.Enabled())

	_, span := p.Tracer("test").Start(ctx, "sampled")
	assert.True(t, span.SpanContext().IsSampled())
	span.End()

	flushCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_ = p.Shutdown(flushCtx)
}
