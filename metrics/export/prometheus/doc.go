// Package prometheus renders goCreds Store metrics in Prometheus text
// exposition format.
//
// [PrometheusExporter.Handler] is mounted by the caller; nothing is
// registered in a global registry. Counters are named gocreds_*_total and the
// single histogram is gocreds_persist_latency_seconds.
package prometheus
