package prom

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arloliu/tugraph/types"
)

// Option configures a Collector.
type Option func(*Collector)

// WithNamespace sets the metric namespace.
//
// Default: "tugraph"
//
// Parameters:
//   - namespace: The namespace prepended to every metric name
//
// Returns:
//   - Option: A configuration option
func WithNamespace(namespace string) Option {
	return func(c *Collector) {
		c.namespace = namespace
	}
}

// WithRegistry registers the metrics with reg instead of a private registry.
//
// Parameters:
//   - reg: The registry, e.g. prometheus.DefaultRegisterer wrapped by the caller
//
// Returns:
//   - Option: A configuration option
func WithRegistry(reg *prometheus.Registry) Option {
	return func(c *Collector) {
		c.registry = reg
	}
}

// WithBuckets sets the request duration histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Collector) {
		c.buckets = buckets
	}
}

// Collector implements types.MetricsCollector using the Prometheus client library.
//
// Thread-safe for concurrent use.
type Collector struct {
	registry  *prometheus.Registry
	namespace string
	buckets   []float64

	requestsTotal   *prometheus.CounterVec
	requestErrors   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec

	refreshTotal  prometheus.Counter
	refreshErrors prometheus.Counter
	topologyNodes prometheus.Gauge
	leaderChanges *prometheus.CounterVec

	nodeDraining *prometheus.GaugeVec
	drainEntered *prometheus.CounterVec
	drainExited  *prometheus.CounterVec

	packagesSent    prometheus.Counter
	packagesSkipped prometheus.Counter
}

var _ types.MetricsCollector = (*Collector)(nil)

// New creates a Prometheus-based metrics collector.
//
// Parameters:
//   - opts: Configuration options
//
// Returns:
//   - *Collector: A new metrics collector ready for use
//
// Example:
//
//	collector := prom.New(prom.WithNamespace("billing"))
//	client, _ := tugraph.NewClient(ctx, "10.0.0.1:9090", creds,
//	    tugraph.WithMetrics(collector),
//	)
//	http.Handle("/metrics", collector.Handler())
func New(opts ...Option) *Collector {
	c := &Collector{
		namespace: "tugraph",
		buckets:   prometheus.DefBuckets,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.registry == nil {
		c.registry = prometheus.NewRegistry()
	}

	c.initMetrics()

	return c
}

func (c *Collector) initMetrics() {
	factory := promauto.With(c.registry)
	ns := c.namespace

	c.requestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "requests_total",
			Help:      "Total number of dispatched requests",
		},
		[]string{"node", "kind"},
	)
	c.requestErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "request_errors_total",
			Help:      "Total number of failed requests",
		},
		[]string{"node", "kind"},
	)
	c.requestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "request_duration_seconds",
			Help:      "Request duration in seconds",
			Buckets:   c.buckets,
		},
		[]string{"node", "kind"},
	)
	c.retriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "retries_total",
			Help:      "Total number of refresh-and-retry attempts",
		},
		[]string{"operation"},
	)

	c.refreshTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "topology_refresh_total",
		Help:      "Total number of topology refreshes",
	})
	c.refreshErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "topology_refresh_errors_total",
		Help:      "Total number of failed topology refreshes",
	})
	c.topologyNodes = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "topology_nodes",
		Help:      "Number of nodes in the current topology snapshot",
	})
	c.leaderChanges = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "leader_changes_total",
			Help:      "Total number of observed leader changes",
		},
		[]string{"from", "to"},
	)

	c.nodeDraining = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "node_draining",
			Help:      "Whether a node is drained from read rotation (1=yes, 0=no)",
		},
		[]string{"node"},
	)
	c.drainEntered = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "drain_mode_entered_total",
			Help:      "Total number of drain mode entries",
		},
		[]string{"node"},
	)
	c.drainExited = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "drain_mode_exited_total",
			Help:      "Total number of drain mode exits",
		},
		[]string{"node"},
	)

	c.packagesSent = factory.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "import_packages_sent_total",
		Help:      "Total number of import packages dispatched",
	})
	c.packagesSkipped = factory.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "import_packages_skipped_total",
		Help:      "Total number of import packages skipped on resume",
	})
}

// Registry returns the registry the metrics are registered with.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler serving the registry in Prometheus format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// IncRequestTotal increments the dispatched request counter.
func (c *Collector) IncRequestTotal(node string, kind types.RequestKind) {
	c.requestsTotal.WithLabelValues(node, string(kind)).Inc()
}

// IncRequestError increments the failed request counter.
func (c *Collector) IncRequestError(node string, kind types.RequestKind) {
	c.requestErrors.WithLabelValues(node, string(kind)).Inc()
}

// ObserveRequestDuration records a request duration in seconds.
func (c *Collector) ObserveRequestDuration(node string, kind types.RequestKind, seconds float64) {
	c.requestDuration.WithLabelValues(node, string(kind)).Observe(seconds)
}

// IncRetryTotal increments the double-check retry counter.
func (c *Collector) IncRetryTotal(operation string) {
	c.retriesTotal.WithLabelValues(operation).Inc()
}

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
	c.topologyNodes.Set(float64(count))
}

// IncLeaderChange increments the leader change counter.
func (c *Collector) IncLeaderChange(from, to string) {
	c.leaderChanges.WithLabelValues(from, to).Inc()
}

// SetNodeDraining sets the drain status gauge for a node.
func (c *Collector) SetNodeDraining(node string, draining bool) {
	if draining {
		c.nodeDraining.WithLabelValues(node).Set(1)
		c.drainEntered.WithLabelValues(node).Inc()

		return
	}

	c.nodeDraining.WithLabelValues(node).Set(0)
	c.drainExited.WithLabelValues(node).Inc()
}

// IncImportPackageSent increments the sent import package counter.
func (c *Collector) IncImportPackageSent() {
	c.packagesSent.Inc()
}

// IncImportPackageSkipped increments the skipped import package counter.
func (c *Collector) IncImportPackageSkipped() {
	c.packagesSkipped.Inc()
}
