package observe

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names.
const (
	MetricInvocations    = "toolscope.interceptor.invocations"
	MetricDuration       = "toolscope.interceptor.duration_ms"
	MetricToolsRemoved   = "toolscope.listing.tools_removed"
	MetricDecodeFailures = "toolscope.auth.decode_failures"
)

// Metrics records interceptor metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordInvocation records one handled message and its duration.
	RecordInvocation(ctx context.Context, inv Invocation, duration time.Duration)
}

type metricsImpl struct {
	invocations    metric.Int64Counter
	duration       metric.Float64Histogram
	toolsRemoved   metric.Int64Counter
	decodeFailures metric.Int64Counter
}

// NewMetrics creates the interceptor instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	invocations, err := meter.Int64Counter(
		MetricInvocations,
		metric.WithDescription("Messages handled by the interceptor"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		MetricDuration,
		metric.WithDescription("Time spent handling a message in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	toolsRemoved, err := meter.Int64Counter(
		MetricToolsRemoved,
		metric.WithDescription("Tool entries removed from listing responses"),
		metric.WithUnit("{tool}"),
	)
	if err != nil {
		return nil, err
	}

	decodeFailures, err := meter.Int64Counter(
		MetricDecodeFailures,
		metric.WithDescription("Credentials whose claims could not be decoded"),
		metric.WithUnit("{credential}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		invocations:    invocations,
		duration:       duration,
		toolsRemoved:   toolsRemoved,
		decodeFailures: decodeFailures,
	}, nil
}

func (m *metricsImpl) RecordInvocation(ctx context.Context, inv Invocation, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("phase", inv.Phase),
		attribute.String("method", inv.Method),
		attribute.String("filtered", strconv.FormatBool(inv.Filtered)),
	}
	opt := metric.WithAttributes(attrs...)

	m.invocations.Add(ctx, 1, opt)
	m.duration.Record(ctx, float64(duration.Microseconds())/1000, opt)

	if inv.Filtered {
		m.toolsRemoved.Add(ctx, int64(inv.Removed()),
			metric.WithAttributes(attribute.Bool("guest", inv.Guest)))
	}
	if inv.DecodeFailed {
		m.decodeFailures.Add(ctx, 1)
	}
}

type noopMetrics struct{}

func (noopMetrics) RecordInvocation(context.Context, Invocation, time.Duration) {}
