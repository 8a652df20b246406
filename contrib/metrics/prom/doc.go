// Package prom provides a Prometheus client_golang implementation of the
// MetricsCollector interface.
//
// Metrics are registered with a private prometheus.Registry unless
// WithRegistry supplies one, so several clients can run in one process
// without duplicate registration panics.
//
// # Basic Usage
//
//	collector := prom.New()
//	client, _ := tugraph.NewClient(ctx, "10.0.0.1:9090", creds,
//	    tugraph.WithMetrics(collector),
//	)
//	http.Handle("/metrics", collector.Handler())
//
// The metric names match those of contrib/metrics/vm, with the namespace
// taking the place of the prefix.
package prom
