// Package otel publishes goCreds Store metrics through OpenTelemetry.
//
// [NewOTelExporter] registers an Int64ObservableCounter per Store counter and
// an Int64ObservableGauge per histogram bucket on a caller-supplied Meter. A
// single callback reads [goCreds.Store.MetricsSnapshot] on each collection.
package otel
