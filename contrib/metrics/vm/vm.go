package vm

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"

	"github.com/arloliu/tugraph/types"
)

// Option configures a Collector.
type Option func(*Collector)

// WithPrefix sets the metric name prefix.
//
// Default: "tugraph"
//
// Parameters:
//   - prefix: The prefix to use for all metric names
//
// Returns:
//   - Option: A configuration option
func WithPrefix(prefix string) Option {
	return func(c *Collector) {
		c.prefix = prefix
	}
}

// WithMetricsSet sets the metrics set to use.
//
// If provided, the collector will register metrics with this set instead of
// creating a new one. The caller is responsible for exposing this set
// (e.g., via metrics.WritePrometheus or a custom handler).
//
// Parameters:
//   - set: The metrics set to use
//
// Returns:
//   - Option: A configuration option
func WithMetricsSet(set *metrics.Set) Option {
	return func(c *Collector) {
		c.set = set
	}
}

// Collector implements types.MetricsCollector using VictoriaMetrics.
//
// Node-independent metrics are pre-created at initialization time. Per-node
// series are created on first use, since cluster members are only known
// after discovery.
//
// Thread-safe for concurrent use.
type Collector struct {
	set    *metrics.Set
	prefix string

	// Topology metrics
	refreshTotal  *metrics.Counter
	refreshErrors *metrics.Counter

	topologyNodes atomic.Int64

	// Import metrics
	packagesSent    *metrics.Counter
	packagesSkipped *metrics.Counter

	// Drain state per node, read by gauge callbacks
	drainMu  sync.RWMutex
	draining map[string]bool
}

var _ types.MetricsCollector = (*Collector)(nil)

// New creates a new VictoriaMetrics-based metrics collector.
//
// The collector creates its own metrics.Set and registers it globally.
//
// Parameters:
//   - opts: Configuration options (e.g., WithPrefix)
//
// Returns:
//   - *Collector: A new metrics collector ready for use
//
// Example:
//
//	collector := vm.New(vm.WithPrefix("myapp"))
//	client, _ := tugraph.NewClient(ctx, "10.0.0.1:9090", creds,
//	    tugraph.WithMetrics(collector),
//	)
func New(opts ...Option) *Collector {
	c := &Collector{
		prefix:   "tugraph",
		draining: make(map[string]bool),
	}

	for _, opt := range opts {
		opt(c)
	}

	// If no set is provided, create a new one and register it globally.
	// If a set is provided, we assume the caller manages it.
	if c.set == nil {
		c.set = metrics.NewSet()
		metrics.RegisterSet(c.set)
	}

	c.initMetrics()

	return c
}

// initMetrics pre-creates the node-independent metrics.
func (c *Collector) initMetrics() {
	p := c.prefix

	c.refreshTotal = c.set.NewCounter(p + "_topology_refresh_total")
	c.refreshErrors = c.set.NewCounter(p + "_topology_refresh_errors_total")
	c.set.NewGauge(p+"_topology_nodes", func() float64 {
		return float64(c.topologyNodes.Load())
	})

	c.packagesSent = c.set.NewCounter(p + "_import_packages_sent_total")
	c.packagesSkipped = c.set.NewCounter(p + "_import_packages_skipped_total")
}

// Set returns the underlying metrics set.
func (c *Collector) Set() *metrics.Set {
	return c.set
}

// Handler exposes metrics in Prometheus format over HTTP.
//
// Example:
//
//	http.HandleFunc("/metrics", collector.Handler)
func (c *Collector) Handler(w http.ResponseWriter, _ *http.Request) {
	c.set.WritePrometheus(w)
}

// WritePrometheus writes all metrics in Prometheus format to the given writer.
//
// Parameters:
//   - w: The writer to write metrics to
func (c *Collector) WritePrometheus(w io.Writer) {
	c.set.WritePrometheus(w)
}

func (c *Collector) nodeName(metric, node string, kind types.RequestKind) string {
	return fmt.Sprintf(`%s_%s{node=%s,kind=%s}`, c.prefix, metric, strconv.Quote(node), strconv.Quote(string(kind)))
}

// ----------------------
// Requests
// ----------------------

// IncRequestTotal increments the dispatched request counter.
func (c *Collector) IncRequestTotal(node string, kind types.RequestKind) {
	c.set.GetOrCreateCounter(c.nodeName("requests_total", node, kind)).Inc()
}

// IncRequestError increments the failed request counter.
func (c *Collector) IncRequestError(node string, kind types.RequestKind) {
	c.set.GetOrCreateCounter(c.nodeName("request_errors_total", node, kind)).Inc()
}

// ObserveRequestDuration records a request duration in seconds.
func (c *Collector) ObserveRequestDuration(node string, kind types.RequestKind, seconds float64) {
	c.set.GetOrCreateHistogram(c.nodeName("request_duration_seconds", node, kind)).Update(seconds)
}

// IncRetryTotal increments the double-check retry counter.
func (c *Collector) IncRetryTotal(operation string) {
	c.set.GetOrCreateCounter(fmt.Sprintf(`%s_retries_total{operation=%s}`, c.prefix, strconv.Quote(operation))).Inc()
}

// ----------------------
// Topology
// ----------------------

// IncRefreshTotal increments the topology refresh counter.
func (c *Collector) IncRefreshTotal() {
	c.refreshTotal.Inc()
}

// IncRefreshError increments the failed topology refresh counter.
func (c *Collector) IncRefreshError() {
	c.refreshErrors.Inc()
}

// SetTopologyNodes sets the number of nodes in the current snapshot.
func (c *Collector) SetTopologyNodes(count int) {
	c.topologyNodes.Store(int64(count))
}

// IncLeaderChange increments the leader change counter.
func (c *Collector) IncLeaderChange(from, to string) {
	c.set.GetOrCreateCounter(fmt.Sprintf(`%s_leader_changes_total{from=%s,to=%s}`,
		c.prefix, strconv.Quote(from), strconv.Quote(to))).Inc()
}

// ----------------------
// Drain Mode
// ----------------------

// SetNodeDraining sets the drain status gauge for a node.
func (c *Collector) SetNodeDraining(node string, draining bool) {
	c.drainMu.Lock()
	_, known := c.draining[node]
	c.draining[node] = draining
	c.drainMu.Unlock()

	if !known {
		c.set.GetOrCreateGauge(fmt.Sprintf(`%s_node_draining{node=%s}`, c.prefix, strconv.Quote(node)), func() float64 {
			c.drainMu.RLock()
			defer c.drainMu.RUnlock()

			if c.draining[node] {
				return 1
			}

			return 0
		})
	}

	if draining {
		c.set.GetOrCreateCounter(fmt.Sprintf(`%s_drain_mode_entered_total{node=%s}`, c.prefix, strconv.Quote(node))).Inc()
	} else {
		c.set.GetOrCreateCounter(fmt.Sprintf(`%s_drain_mode_exited_total{node=%s}`, c.prefix, strconv.Quote(node))).Inc()
	}
}

// ----------------------
// Import
// ----------------------

// IncImportPackageSent increments the sent import package counter.
func (c *Collector) IncImportPackageSent() {
	c.packagesSent.Inc()
}

// IncImportPackageSkipped increments the skipped import package counter.
func (c *Collector) IncImportPackageSkipped() {
	c.packagesSkipped.Inc()
}
