// Package vm provides a VictoriaMetrics-based implementation of the MetricsCollector interface.
//
// This package uses github.com/VictoriaMetrics/metrics for lightweight,
// high-performance Prometheus-compatible metrics collection.
//
// # Basic Usage
//
// Create a collector with default prefix "tugraph":
//
//	collector := vm.New()
//	client, _ := tugraph.NewClient(ctx, "10.0.0.1:9090", creds,
//	    tugraph.WithMetrics(collector),
//	)
//
// # Custom Prefix
//
// Use WithPrefix to customize the metric name prefix:
//
//	collector := vm.New(vm.WithPrefix("myapp"))
//
// This produces metrics like:
//   - myapp_requests_total{node="10.0.0.2:9090",kind="read"}
//   - myapp_request_duration_seconds{node="10.0.0.1:9090",kind="write"}
//
// # Exposing Metrics
//
// Use the Handler method to expose metrics via HTTP:
//
//	http.HandleFunc("/metrics", collector.Handler)
//	http.ListenAndServe(":8080", nil)
//
// Or use WritePrometheus to write metrics to a custom writer:
//
//	collector.WritePrometheus(w)
//
// # Metrics Provided
//
// Requests:
//   - {prefix}_requests_total{node,kind} - Counter of dispatched requests
//   - {prefix}_request_errors_total{node,kind} - Counter of failed requests
//   - {prefix}_request_duration_seconds{node,kind} - Histogram of request latencies
//   - {prefix}_retries_total{operation} - Counter of refresh-and-retry attempts
//
// Topology:
//   - {prefix}_topology_refresh_total - Counter of topology refreshes
//   - {prefix}_topology_refresh_errors_total - Counter of failed refreshes
//   - {prefix}_topology_nodes - Gauge of nodes in the current snapshot
//   - {prefix}_leader_changes_total{from,to} - Counter of observed leader changes
//
// Drain mode:
//   - {prefix}_node_draining{node} - Gauge (1=draining, 0=serving)
//   - {prefix}_drain_mode_entered_total{node} - Counter of drain entries
//   - {prefix}_drain_mode_exited_total{node} - Counter of drain exits
//
// Import:
//   - {prefix}_import_packages_sent_total - Counter of dispatched packages
//   - {prefix}_import_packages_skipped_total - Counter of packages skipped on resume
//
// # Performance Notes
//
// Node-independent metrics are pre-created with the NewXXX pattern. Per-node
// series use GetOrCreateXXX because cluster members are discovered at run
// time; the lookup is a map access under a read lock.
package vm
