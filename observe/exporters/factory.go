// Package exporters provides factory functions for creating OpenTelemetry exporters.
package exporters

import (
	"context"
	"fmt"
	"io"
	"os"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Options selects and configures an exporter.
type Options struct {
	// Name is the exporter name: otlp, stdout, prometheus (metrics only) or none.
	Name string

	// Endpoint overrides the OTLP collector address (host:port).
	// Empty means the OTEL_EXPORTER_OTLP_* environment variables are used.
	Endpoint string

	// Insecure disables TLS for OTLP.
	Insecure bool

	// Registerer receives the Prometheus collector.
	// Nil means prometheus.DefaultRegisterer.
	Registerer promclient.Registerer

	// Writer is used by the stdout exporters. Nil means os.Stdout.
	Writer io.Writer
}

func (o Options) writer() io.Writer {
	if o.Writer != nil {
		return o.Writer
	}
	return os.Stdout
}

// otlpEndpoint returns the configured endpoint or the first non-empty
// environment variable.
func (o Options) otlpEndpoint(envKeys ...string) string {
	if o.Endpoint != "" {
		return o.Endpoint
	}
	for _, k := range envKeys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// NewTracingExporter creates a trace span exporter based on opts.Name.
// Supported exporters: stdout, otlp, none
func NewTracingExporter(ctx context.Context, opts Options) (sdktrace.SpanExporter, error) {
	switch opts.Name {
	case "stdout":
		return stdouttrace.New(stdouttrace.WithWriter(opts.writer()))

	case "otlp":
		endpoint := opts.otlpEndpoint("OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT")
		if endpoint == "" {
			return nil, fmt.Errorf("OTLP endpoint not configured: set an endpoint or OTEL_EXPORTER_OTLP_ENDPOINT")
		}
		grpcOpts := []otlptracegrpc.Option{}
		if opts.Endpoint != "" {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithEndpoint(opts.Endpoint))
		}
		if opts.Insecure {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, grpcOpts...)

	case "none", "":
		return stdouttrace.New(stdouttrace.WithWriter(io.Discard))

	default:
		return nil, fmt.Errorf("unknown exporter: %q", opts.Name)
	}
}

// NewMetricsReader creates a metrics reader based on opts.Name.
// Supported exporters: stdout, otlp, prometheus, none
func NewMetricsReader(ctx context.Context, opts Options) (sdkmetric.Reader, error) {
	switch opts.Name {
	case "stdout":
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(opts.writer()))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout metrics exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exp), nil

	case "otlp":
		endpoint := opts.otlpEndpoint("OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_METRICS_ENDPOINT")
		if endpoint == "" {
			return nil, fmt.Errorf("OTLP metrics endpoint not configured: set an endpoint or OTEL_EXPORTER_OTLP_ENDPOINT")
		}
		grpcOpts := []otlpmetricgrpc.Option{}
		if opts.Endpoint != "" {
			grpcOpts = append(grpcOpts, otlpmetricgrpc.WithEndpoint(opts.Endpoint))
		}
		if opts.Insecure {
			grpcOpts = append(grpcOpts, otlpmetricgrpc.WithInsecure())
		}
		exp, err := otlpmetricgrpc.New(ctx, grpcOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exp), nil

	case "prometheus":
		var promOpts []prometheus.Option
		if opts.Registerer != nil {
			promOpts = append(promOpts, prometheus.WithRegisterer(opts.Registerer))
		}
		exp, err := prometheus.New(promOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		return exp, nil

	case "none", "":
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(io.Discard))
		if err != nil {
			return nil, err
		}
		return sdkmetric.NewPeriodicReader(exp), nil

	default:
		return nil, fmt.Errorf("unknown metrics exporter: %q", opts.Name)
	}
}
