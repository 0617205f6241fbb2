// Package metrics instruments the bridge with OpenTelemetry: a
// completion counter broken down by status, a gauge of pending
// operations, and a histogram of dispatch-to-completion latency.
// Grounded on the teacher's telemetry.MetricInstruments cache
// (itsneelabh/gomind's telemetry/metrics.go), adapted from a lazy
// name-keyed instrument cache to a fixed set: the bridge's metric
// surface is small and known at construction time.
package metrics
