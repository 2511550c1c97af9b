package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Interception phases.
const (
	PhaseRequest  = "request"
	PhaseResponse = "response"
	PhaseProxy    = "proxy"
)

// Invocation describes one message handled by the interceptor. The handler
// fills in the outcome fields while it runs.
type Invocation struct {
	Phase  string // request|response|proxy
	Method string // JSON-RPC method of the originating request

	Groups       []string
	Guest        bool
	DecodeFailed bool

	Filtered bool // true when a listing was rewritten
	ToolsIn  int
	ToolsOut int

	Err error
}

// SpanName returns the deterministic span name for this invocation.
// Format: toolscope.<phase>
func (i Invocation) SpanName() string {
	if i.Phase == "" {
		return "toolscope.unknown"
	}
	return "toolscope." + i.Phase
}

// Removed returns how many tools the filter dropped.
func (i Invocation) Removed() int {
	if n := i.ToolsIn - i.ToolsOut; n > 0 {
		return n
	}
	return 0
}

// Tracer wraps OpenTelemetry tracing with invocation-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for an invocation.
	StartSpan(ctx context.Context, inv Invocation) (context.Context, trace.Span)

	// EndSpan records the outcome of inv and ends the span.
	EndSpan(span trace.Span, inv Invocation)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, inv Invocation) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("toolscope.phase", inv.Phase),
	}
	if inv.Method != "" {
		attrs = append(attrs, attribute.String("rpc.method", inv.Method))
	}

	return t.tracer.Start(ctx, inv.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, inv Invocation) {
	attrs := []attribute.KeyValue{
		attribute.Bool("toolscope.filtered", inv.Filtered),
		attribute.Bool("toolscope.guest", inv.Guest),
		attribute.Int("toolscope.groups", len(inv.Groups)),
	}
	if inv.Method != "" {
		attrs = append(attrs, attribute.String("rpc.method", inv.Method))
	}
	if inv.Filtered {
		attrs = append(attrs,
			attribute.Int("toolscope.tools.in", inv.ToolsIn),
			attribute.Int("toolscope.tools.out", inv.ToolsOut),
		)
	}
	span.SetAttributes(attrs...)

	if inv.Err != nil {
		span.SetStatus(codes.Error, inv.Err.Error())
		span.RecordError(inv.Err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

func newNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, inv Invocation) (context.Context, trace.Span) {
	return t.noop.Start(ctx, inv.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ Invocation) {
	span.End()
}
