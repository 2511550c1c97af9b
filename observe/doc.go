// Package observe provides the logging, tracing and metrics used by the
// interceptor.
//
// It is a pure instrumentation library: no filtering, no transport, no I/O
// beyond exporter setup. The interceptor and the server receive an
// Instrumentation built from an Observer and record each envelope they
// handle through it.
package observe
