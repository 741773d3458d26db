// Package prometheus exports connectauth metrics through prometheus/client_golang.
//
// [PrometheusExporter] is a collector that reads one engine snapshot per scrape.
// It registers itself in a private registry and [PrometheusExporter.Handler]
// serves that registry, so mounting it never collides with the default registry.
// Counters are named connectauth_*_total; the single histogram is
// connectauth_session_check_latency_seconds.
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
