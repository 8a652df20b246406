package types

// RequestKind labels a dispatched request by how its target node was chosen.
type RequestKind string

const (
	// KindRead is a classified read routed to a follower (or the leader as fallback).
	KindRead RequestKind = "read"
	// KindWrite is a write, procedure-lifecycle call, import or to-leader call.
	KindWrite RequestKind = "write"
	// KindNode is a call targeted at an explicit node address.
	KindNode RequestKind = "node"
)

// MetricsCollector defines methods for collecting operational metrics.
//
// Node-scoped methods accept the node's RPC address for labeling.
// Implementations should be thread-safe as methods may be called concurrently.
//
// Example usage with VictoriaMetrics (via contrib/metrics/vm):
//
//	import vmmetrics "github.com/arloliu/tugraph/contrib/metrics/vm"
//
//	collector := vmmetrics.New(vmmetrics.WithPrefix("myapp"))
//	client, _ := tugraph.NewClient(ctx, "10.0.0.1:9090", creds,
//	    tugraph.WithMetrics(collector),
//	)
//
//	// Expose metrics via HTTP
//	http.HandleFunc("/metrics", collector.Handler)
type MetricsCollector interface {
	// ----------------------
	// Requests
	// ----------------------

	// IncRequestTotal increments the dispatched request counter.
	IncRequestTotal(node string, kind RequestKind)

	// IncRequestError increments the failed request counter.
	IncRequestError(node string, kind RequestKind)

	// ObserveRequestDuration records a request duration in seconds.
	ObserveRequestDuration(node string, kind RequestKind, seconds float64)

	// IncRetryTotal increments the counter of double-check retries.
	IncRetryTotal(operation string)

	// ----------------------
	// Topology
	// ----------------------

	// IncRefreshTotal increments the topology refresh counter.
	IncRefreshTotal()

	// IncRefreshError increments the failed topology refresh counter.
	IncRefreshError()

	// SetTopologyNodes sets the number of nodes in the current snapshot.
	SetTopologyNodes(count int)

	// IncLeaderChange increments the counter when a refresh observes a new leader.
	// from is empty when no leader was known before.
	IncLeaderChange(from, to string)

	// ----------------------
	// Drain Mode
	// ----------------------

	// SetNodeDraining sets the drain status gauge for a node.
	// Value: 1 if draining, 0 if serving.
	SetNodeDraining(node string, draining bool)

	// ----------------------
	// Import
	// ----------------------

	// IncImportPackageSent increments the counter of import packages dispatched.
	IncImportPackageSent()

	// IncImportPackageSkipped increments the counter of import packages skipped on resume.
	IncImportPackageSkipped()
}
