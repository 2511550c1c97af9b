package observe

import (
	"context"
	"time"
)

// HandleFunc handles one message. It fills in the outcome fields of inv.
type HandleFunc func(ctx context.Context, inv *Invocation)

// Instrumentation bundles the tracer, metrics and logger used by the
// interceptor.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe HandleFunc.
//   - Context: the span context is propagated to the wrapped function.
//   - Ownership: the Invocation is owned by the caller for the duration of the call.
type Instrumentation struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewInstrumentation creates an Instrumentation from explicit components.
// Nil components are replaced with no-ops.
func NewInstrumentation(tracer Tracer, metrics Metrics, logger Logger) *Instrumentation {
	if tracer == nil {
		tracer = newNoopTracer()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Instrumentation{tracer: tracer, metrics: metrics, logger: logger}
}

// InstrumentationFromObserver builds an Instrumentation from an Observer.
func InstrumentationFromObserver(obs Observer) (*Instrumentation, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewInstrumentation(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// NopInstrumentation returns an Instrumentation that records nothing.
func NopInstrumentation() *Instrumentation {
	return NewInstrumentation(nil, nil, nil)
}

// Logger returns the logger.
func (in *Instrumentation) Logger() Logger {
	return in.logger
}

// Wrap wraps fn with a span, metrics and a completion log line.
func (in *Instrumentation) Wrap(fn HandleFunc) HandleFunc {
	return func(ctx context.Context, inv *Invocation) {
		ctx, span := in.tracer.StartSpan(ctx, *inv)
		start := time.Now()

		fn(ctx, inv)

		duration := time.Since(start)
		in.tracer.EndSpan(span, *inv)
		in.metrics.RecordInvocation(ctx, *inv, duration)

		fields := []Field{
			F("phase", inv.Phase),
			F("method", inv.Method),
			F("duration_ms", float64(duration.Microseconds())/1000),
		}
		if inv.Filtered {
			fields = append(fields,
				F("groups", inv.Groups),
				F("tools_in", inv.ToolsIn),
				F("tools_out", inv.ToolsOut),
			)
		}
		if inv.Err != nil {
			fields = append(fields, F("error", inv.Err.Error()))
			in.logger.Error(ctx, "interception failed", fields...)
			return
		}
		in.logger.Debug(ctx, "interception completed", fields...)
	}
}
