// Package telemetry wires OpenTelemetry tracing for connectauth-server: a global
// tracer provider exporting over OTLP/HTTP and an otelhttp middleware.
package telemetry
