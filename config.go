package tugraph

import (
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/arloliu/tugraph/adapter/rpc"
	"github.com/arloliu/tugraph/importer"
	"github.com/arloliu/tugraph/internal/logging"
	"github.com/arloliu/tugraph/internal/metrics"
	"github.com/arloliu/tugraph/policy"
	"github.com/arloliu/tugraph/protocol"
	"github.com/arloliu/tugraph/types"
)

// Default configuration values.
const (
	DefaultRPCTimeout       = 30 * time.Second
	DefaultRefreshTimeout   = 30 * time.Second
	DefaultLoginConcurrency = 8
	DefaultGraph            = "default"
)

// ClientConfig holds configuration for tugraph clients.
type ClientConfig struct {
	ReadStrategy     ReadStrategy
	RefreshPolicy    RefreshPolicy
	TopologyWatcher  TopologyWatcher
	Dialer           protocol.Dialer
	Metrics          MetricsCollector
	Logger           types.Logger
	TracerProvider   trace.TracerProvider
	Checkpointer     importer.Checkpointer
	RPCTimeout       time.Duration
	RefreshTimeout   time.Duration
	LoginConcurrency int
	DefaultGraph     string
}

// DefaultConfig returns a ClientConfig with sensible defaults.
//
// Default strategies:
//   - ReadStrategy: policy.FollowerRotation (fair rotation over followers)
//   - RefreshPolicy: policy.ActiveRefresh (refresh on every retriable failure)
//   - Dialer: rpc.Dial (gRPC without TLS)
//
// Returns:
//   - *ClientConfig: Configuration with default settings
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		ReadStrategy:     policy.NewFollowerRotation(),
		RefreshPolicy:    policy.NewActiveRefresh(),
		Dialer:           rpc.Dial,
		Metrics:          metrics.NewNopMetrics(),
		Logger:           logging.NewNopLogger(),
		TracerProvider:   noop.NewTracerProvider(),
		RPCTimeout:       DefaultRPCTimeout,
		RefreshTimeout:   DefaultRefreshTimeout,
		LoginConcurrency: DefaultLoginConcurrency,
		DefaultGraph:     DefaultGraph,
	}
}

// Option configures a ClientConfig.
type Option func(*ClientConfig)

// WithReadStrategy sets the read routing strategy.
//
// Parameters:
//   - strategy: The read strategy to use (e.g., policy.StickyRead)
//
// Returns:
//   - Option: Configuration option
func WithReadStrategy(strategy ReadStrategy) Option {
	return func(c *ClientConfig) {
		c.ReadStrategy = strategy
	}
}

// WithRefreshPolicy sets the policy that gates refresh-and-retry.
//
// Parameters:
//   - p: The refresh policy to use (e.g., policy.CircuitBreaker)
//
// Returns:
//   - Option: Configuration option
func WithRefreshPolicy(p RefreshPolicy) Option {
	return func(c *ClientConfig) {
		c.RefreshPolicy = p
	}
}

// WithTopologyWatcher sets the topology watcher for drain mode support.
//
// Parameters:
//   - watcher: The topology watcher implementation
//
// Returns:
//   - Option: Configuration option
func WithTopologyWatcher(watcher TopologyWatcher) Option {
	return func(c *ClientConfig) {
		c.TopologyWatcher = watcher
	}
}

// WithDialer sets how sessions reach nodes.
//
// Parameters:
//   - dialer: The dialer, e.g. rpc.NewDialer(...) or a test fake
//
// Returns:
//   - Option: Configuration option
func WithDialer(dialer protocol.Dialer) Option {
	return func(c *ClientConfig) {
		c.Dialer = dialer
	}
}

// WithMetrics sets the metrics collector.
//
// If not set, a no-op collector is used that discards all metrics.
// Use contrib/metrics/vm.New() for VictoriaMetrics or contrib/metrics/prom.New()
// for Prometheus.
//
// Parameters:
//   - collector: The metrics collector implementation
//
// Returns:
//   - Option: Configuration option
//
// Example:
//
//	import vmmetrics "github.com/arloliu/tugraph/contrib/metrics/vm"
//
//	collector := vmmetrics.New(vmmetrics.WithPrefix("myapp"))
//	client, _ := tugraph.NewClient(ctx, addr, creds,
//	    tugraph.WithMetrics(collector),
//	)
func WithMetrics(collector MetricsCollector) Option {
	return func(c *ClientConfig) {
		c.Metrics = collector
	}
}

// WithLogger sets the structured logger.
//
// If not set, a no-op logger is used that discards all messages.
// The logger interface is compatible with zap.SugaredLogger.
//
// Parameters:
//   - logger: The logger implementation
//
// Returns:
//   - Option: Configuration option
//
// Example:
//
//	logger, _ := zap.NewProduction()
//	client, _ := tugraph.NewClient(ctx, addr, creds,
//	    tugraph.WithLogger(logger.Sugar()),
//	)
func WithLogger(logger types.Logger) Option {
	return func(c *ClientConfig) {
		c.Logger = logger
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider used for
// per-attempt spans. The default provider records nothing.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *ClientConfig) {
		c.TracerProvider = tp
	}
}

// WithCheckpointer enables resumable data imports.
//
// Parameters:
//   - cp: Checkpoint store, e.g. importer.NewNATSCheckpointer(kv)
//
// Returns:
//   - Option: Configuration option
func WithCheckpointer(cp importer.Checkpointer) Option {
	return func(c *ClientConfig) {
		c.Checkpointer = cp
	}
}

// WithRPCTimeout bounds every call whose context carries no deadline.
// Zero disables the bound.
func WithRPCTimeout(d time.Duration) Option {
	return func(c *ClientConfig) {
		c.RPCTimeout = d
	}
}

// WithRefreshTimeout bounds one topology refresh.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *ClientConfig) {
		c.RefreshTimeout = d
	}
}

// WithLoginConcurrency limits how many logins a refresh performs in parallel.
//
// Parameters:
//   - n: Maximum parallel logins; values below 1 are treated as 1
//
// Returns:
//   - Option: Configuration option
func WithLoginConcurrency(n int) Option {
	return func(c *ClientConfig) {
		c.LoginConcurrency = max(n, 1)
	}
}

// WithDefaultGraph sets the graph used when a call names none.
func WithDefaultGraph(graph string) Option {
	return func(c *ClientConfig) {
		c.DefaultGraph = graph
	}
}

// normalize replaces nil components with defaults.
func (c *ClientConfig) normalize() error {
	defaults := DefaultConfig()

	if c.Dialer == nil {
		return types.ErrNilDialer
	}
	if c.ReadStrategy == nil {
		c.ReadStrategy = defaults.ReadStrategy
	}
	if c.RefreshPolicy == nil {
		c.RefreshPolicy = defaults.RefreshPolicy
	}
	if c.Metrics == nil {
		c.Metrics = defaults.Metrics
	}
	if c.Logger == nil {
		c.Logger = defaults.Logger
	}
	if c.TracerProvider == nil {
		c.TracerProvider = defaults.TracerProvider
	}
	if c.RefreshTimeout <= 0 {
		c.RefreshTimeout = defaults.RefreshTimeout
	}
	if c.LoginConcurrency < 1 {
		c.LoginConcurrency = defaults.LoginConcurrency
	}
	if c.DefaultGraph == "" {
		c.DefaultGraph = defaults.DefaultGraph
	}

	return nil
}
