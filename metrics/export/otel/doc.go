// Package otel publishes goAccounts engine counters and latency histograms
// as OpenTelemetry observable instruments.
//
// [NewExporter] registers one Int64ObservableCounter per engine counter and
// one Int64ObservableGauge per histogram bucket. A single callback reads
// [goAccounts.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider; callers supply the Meter.
//   - Mutate engine state.
package otel
