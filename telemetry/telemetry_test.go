package telemetry_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/njyeung/sofa/telemetry"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "unexpected data type %T", m.Data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestReporterCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	r := telemetry.New(provider, log.NewStdLogger(io.Discard))

	ctx := context.Background()
	r.CaptureError(ctx, "player", errors.New("decode failed"))
	r.CaptureError(ctx, "player", nil)
	r.RecordRollback(ctx, "video", errors.New("offline"))
	r.RecordRollback(ctx, "comment", errors.New("offline"))
	r.RecordRequest(ctx, "videos", 12*time.Millisecond, nil)

	metrics := collect(t, reader)
	require.Equal(t, int64(1), sumOf(t, metrics["sofa_playback_errors_total"]))
	require.Equal(t, int64(2), sumOf(t, metrics["sofa_optimistic_rollbacks_total"]))

	hist, ok := metrics["sofa_api_request_duration_ms"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	require.Equal(t, uint64(1), hist.DataPoints[0].Count)
}

func TestNilReporter(t *testing.T) {
	var r *telemetry.Reporter
	require.NotPanics(t, func() {
		r.CaptureError(context.Background(), "player", errors.New("x"))
		r.RecordRollback(context.Background(), "video", nil)
		r.RecordRequest(context.Background(), "videos", time.Second, nil)
	})
}
