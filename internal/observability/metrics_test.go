package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestBugMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := NewBugMetricsWithMeter(mp.Meter("test"))

	ctx := context.Background()
	m.RecordCreated(ctx)
	m.RecordCreated(ctx)
	m.RecordTransition(ctx, "New", "Triaged")
	m.RecordBatchItem(ctx, "ai_update", "failed")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	sums := map[string]metricdata.Sum[int64]{}
	for _, md := range rm.ScopeMetrics[0].Metrics {
		sum, ok := md.Data.(metricdata.Sum[int64])
		require.True(t, ok, md.Name)
		sums[md.Name] = sum
	}

	require.Contains(t, sums, "bugs.created")
	assert.Equal(t, int64(2), sums["bugs.created"].DataPoints[0].Value)

	require.Contains(t, sums, "bugs.transitions")
	dp := sums["bugs.transitions"].DataPoints[0]
	to, ok := dp.Attributes.Value(attribute.Key("to"))
	require.True(t, ok)
	assert.Equal(t, "Triaged", to.AsString())

	require.Contains(t, sums, "bugs.batch_items")
}

func TestBugMetrics_NilSafe(t *testing.T) {
	var m *BugMetrics
	assert.NotPanics(t, func() {
		m.RecordCreated(context.Background())
		m.RecordTransition(context.Background(), "a", "b")
		m.RecordBatchItem(context.Background(), "op", "applied")
	})
}
