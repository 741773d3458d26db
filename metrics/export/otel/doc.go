// Package otel publishes connectauth counters as OpenTelemetry observable instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per engine counter and,
// for the latency histogram, a bucket gauge carrying an "le" attribute plus a count
// gauge. A single callback reads one snapshot per collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
