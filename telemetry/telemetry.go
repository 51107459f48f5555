// Package telemetry reports client-side failures as OpenTelemetry metrics and
// log lines.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
)

const (
	meterName = "sofa.client"

	playbackErrorsMetricName = "sofa_playback_errors_total"
	rollbacksMetricName      = "sofa_optimistic_rollbacks_total"
	requestDurationName      = "sofa_api_request_duration_ms"
)

var (
	attrSource    = attribute.Key("source")
	attrResource  = attribute.Key("resource")
	attrEndpoint  = attribute.Key("endpoint")
	attrErrorKind = attribute.Key("error_kind")
	attrOutcome   = attribute.Key("outcome")
)

// Reporter records errors, rollbacks and request timings. The zero value
// and a nil *Reporter are both safe to use and record nothing.
type Reporter struct {
	log *log.Helper

	playbackErrors  metric.Int64Counter
	rollbacks       metric.Int64Counter
	requestDuration metric.Float64Histogram
}

// New builds a Reporter. provider may be nil to use the global provider.
func New(provider metric.MeterProvider, logger log.Logger) *Reporter {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	if provider == nil {
		provider = noopmetric.NewMeterProvider()
	}
	if logger == nil {
		logger = log.DefaultLogger
	}

	r := &Reporter{log: log.NewHelper(log.With(logger, "module", "telemetry"))}
	meter := provider.Meter(meterName)

	var err error
	r.playbackErrors, err = meter.Int64Counter(playbackErrorsMetricName,
		metric.WithDescription("Playback failures reported by the media engine"))
	if err != nil {
		r.log.Warnf("create %s: %v", playbackErrorsMetricName, err)
	}
	r.rollbacks, err = meter.Int64Counter(rollbacksMetricName,
		metric.WithDescription("Optimistic mutations rolled back after a failed request"))
	if err != nil {
		r.log.Warnf("create %s: %v", rollbacksMetricName, err)
	}
	r.requestDuration, err = meter.Float64Histogram(requestDurationName,
		metric.WithDescription("Content API request latency"),
		metric.WithUnit("ms"))
	if err != nil {
		r.log.Warnf("create %s: %v", requestDurationName, err)
	}
	return r
}

// CaptureError records a failure from the given source. Playback failures
// are not retried, so this is the only place they surface.
func (r *Reporter) CaptureError(ctx context.Context, source string, err error) {
	if r == nil || err == nil {
		return
	}
	if r.log != nil {
		r.log.Errorf("%s: %v", source, err)
	}
	if r.playbackErrors == nil {
		return
	}
	r.playbackErrors.Add(ctx, 1, metric.WithAttributes(
		attrSource.String(source),
		attrErrorKind.String(fmt.Sprintf("%T", err)),
	))
}

// RecordRollback records that an optimistic change to resource was undone.
func (r *Reporter) RecordRollback(ctx context.Context, resource string, err error) {
	if r == nil {
		return
	}
	if r.log != nil {
		r.log.Warnf("rolled back %s: %v", resource, err)
	}
	if r.rollbacks == nil {
		return
	}
	r.rollbacks.Add(ctx, 1, metric.WithAttributes(attrResource.String(resource)))
}

// RecordRequest records one API call.
func (r *Reporter) RecordRequest(ctx context.Context, endpoint string, elapsed time.Duration, err error) {
	if r == nil || r.requestDuration == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.requestDuration.Record(ctx, float64(elapsed.Milliseconds()), metric.WithAttributes(
		attrEndpoint.String(endpoint),
		attrOutcome.String(outcome),
	))
}
