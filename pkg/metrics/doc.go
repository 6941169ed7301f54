// Package metrics exposes canopy's Prometheus collectors.
//
// A Recorder counts mode dispatches by unit kind and outcome, times them,
// and keeps the last nested set check per table. Mount Handler at /metrics:
//
//	rec := metrics.New(metrics.WithRuntimeCollectors())
//	app := canopy.New(canopy.WithMetrics(rec))
package metrics
