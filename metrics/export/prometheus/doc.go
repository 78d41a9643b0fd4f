// Package prometheus exposes goAccounts engine metrics as a
// prometheus.Collector.
//
// [NewExporter] wraps an [goAccounts.Engine]; register the returned collector
// with any registry, or mount [Exporter.Handler] which serves it from a
// private registry. Counter names are prefixed goaccounts_*_total; latency
// histograms are goaccounts_*_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
