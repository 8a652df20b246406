package tugraph

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/arloliu/tugraph/classify"
	"github.com/arloliu/tugraph/session"
	"github.com/arloliu/tugraph/types"
)

// Client is a cluster-aware client for a TuGraph deployment.
//
// It keeps one session per reachable node, routes writes to the leader and
// classified reads to followers, and transparently rediscovers the topology
// when a call fails because the cluster changed underneath it.
//
// # Thread Safety
//
// Client is safe for concurrent use from multiple goroutines. A single client
// instance can be shared across your application:
//
//	client, err := tugraph.NewClient(ctx, "10.0.0.1:9090", creds)
//	defer client.Close()
//
//	go func() { client.Cypher(ctx, "", "CREATE (n:Person {id: 1})") }()
//	go func() { client.Cypher(ctx, "", "MATCH (n) RETURN count(n)") }()
//
// The topology is an immutable snapshot published atomically; a refresh
// never changes a snapshot that an in-flight call is using.
//
// # Lifecycle
//
// After Close() is called:
//   - The topology watcher is stopped
//   - Every session is logged out once its in-flight calls return
//   - The client cannot be reused (operations return ErrClientClosed)
type Client struct {
	mode   types.ClientMode
	config *ClientConfig
	creds  types.Credentials
	addrs  []string
	tracer trace.Tracer

	bootstrap  *session.Session
	snapshots  snapshotHolder
	generation atomic.Uint64
	classifier *classify.Classifier

	refreshGroup singleflight.Group
	swapMu       sync.Mutex
	closed       atomic.Bool

	// Drain mode state, keyed by RPC or REST address
	drainMu       sync.RWMutex
	drained       map[string]string
	topologyCtx   context.Context
	topologyClose context.CancelFunc
}

// ProbeResult is the outcome of asking a node for its cluster membership.
//
// Exactly one of Info and Err is meaningful.
type ProbeResult struct {
	// Info is the cluster membership reported by the node.
	Info types.ClusterInfo

	// Err is why the probe failed.
	Err error
}

// IsCluster reports whether the node answered as a cluster member.
func (p ProbeResult) IsCluster() bool {
	return p.Err == nil
}

// IsStandalone reports whether the node is reachable but has no cluster
// support: it rejected the probe with an application error.
func (p ProbeResult) IsStandalone() bool {
	var serverErr *types.ServerError

	return errors.As(p.Err, &serverErr) && !serverErr.IsStale()
}

// Probe asks sess for the cluster membership.
//
// Parameters:
//   - ctx: Context for the call
//   - sess: An authenticated session
//
// Returns:
//   - ProbeResult: The membership, or the reason it is unavailable
func Probe(ctx context.Context, sess *session.Session) ProbeResult {
	info, err := sess.ClusterInfo(ctx)
	if err != nil {
		return ProbeResult{Err: err}
	}

	return ProbeResult{Info: info}
}

// NewClient connects to one node and adapts to what it finds.
//
// If the node reports cluster membership, the client discovers the whole
// cluster through it (DIRECT_CLUSTER mode). If the node rejects the
// membership query with an application error, it is treated as a standalone
// server and every call goes to it directly (SINGLE mode). Any other failure
// aborts construction; an unreachable node is never mistaken for a
// standalone one.
//
// Parameters:
//   - ctx: Context for the connection and initial discovery
//   - addr: RPC address of any node
//   - creds: Login credentials used for every node
//   - opts: Optional configuration options
//
// Returns:
//   - *Client: A connected client
//   - error: NodeError, ServerError or RefreshError describing the failure
func NewClient(ctx context.Context, addr string, creds types.Credentials, opts ...Option) (*Client, error) {
	c, err := newClient(creds, opts)
	if err != nil {
		return nil, err
	}

	c.bootstrap, err = c.openSession(ctx, addr)
	if err != nil {
		return nil, err
	}

	probe := Probe(ctx, c.bootstrap)
	switch {
	case probe.IsCluster():
		c.mode = types.ModeDirectCluster
	case probe.IsStandalone():
		c.mode = types.ModeSingle
		c.config.Logger.Info("node has no cluster support, using single mode", "node", addr, "reason", probe.Err)
	default:
		c.logoutSession(c.bootstrap)
		return nil, probe.Err
	}

	if err := c.start(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

// NewClusterClient connects to a cluster through an explicit address list
// (INDIRECT_CLUSTER mode).
//
// Every address is contacted on each refresh and reports its own role. Use
// this when the addresses the nodes advertise are not reachable from the
// client, for example behind NAT or a proxy.
//
// Parameters:
//   - ctx: Context for the initial discovery
//   - addrs: RPC addresses of the cluster nodes
//   - creds: Login credentials used for every node
//   - opts: Optional configuration options
//
// Returns:
//   - *Client: A connected client
//   - error: ErrClusterUnavailable (as RefreshError) if no leader is reachable
func NewClusterClient(ctx context.Context, addrs []string, creds types.Credentials, opts ...Option) (*Client, error) {
	if len(addrs) == 0 {
		return nil, types.NewInputError("no cluster addresses")
	}

	c, err := newClient(creds, opts)
	if err != nil {
		return nil, err
	}
	c.mode = types.ModeIndirectCluster
	c.addrs = append([]string(nil), addrs...)

	if err := c.start(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

func newClient(creds types.Credentials, opts []Option) (*Client, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}
	if err := config.normalize(); err != nil {
		return nil, err
	}

	return &Client{
		config:     config,
		creds:      creds,
		tracer:     config.TracerProvider.Tracer(tracerName),
		classifier: classify.New(),
		drained:    make(map[string]string),
	}, nil
}

// start performs the initial refresh and starts the topology watcher.
func (c *Client) start(ctx context.Context) error {
	if err := c.refresh(ctx); err != nil {
		c.logoutSession(c.bootstrap)
		return err
	}

	c.topologyCtx, c.topologyClose = context.WithCancel(context.Background())
	if c.config.TopologyWatcher != nil {
		go c.watchTopology()
	}

	c.config.Logger.Info("tugraph client started", "mode", c.mode.String(), "nodes", len(c.Topology()))

	return nil
}

// watchTopology monitors topology updates and updates drain state.
func (c *Client) watchTopology() {
	updates := c.config.TopologyWatcher.Watch(c.topologyCtx)
	for update := range updates {
		if update.Node == "" {
			continue
		}

		c.drainMu.Lock()
		_, previousDrain := c.drained[update.Node]
		if update.Draining {
			c.drained[update.Node] = update.Reason
		} else {
			delete(c.drained, update.Node)
		}
		c.drainMu.Unlock()

		// Record drain mode transitions
		if !previousDrain && update.Draining {
			c.config.Metrics.SetNodeDraining(update.Node, true)
			c.config.Logger.Warn("node entering drain mode",
				"node", update.Node,
				"reason", update.Reason,
			)
		} else if previousDrain && !update.Draining {
			c.config.Metrics.SetNodeDraining(update.Node, false)
			c.config.Logger.Info("node exiting drain mode",
				"node", update.Node,
			)
		}
	}
}

// IsDraining returns whether the node is currently drained.
//
// A drained follower receives no classified reads. Writes and node-targeted
// calls are not affected.
//
// Parameters:
//   - addr: The node's RPC or REST address
//
// Returns:
//   - bool: true if the node is being drained
func (c *Client) IsDraining(addr string) bool {
	c.drainMu.RLock()
	defer c.drainMu.RUnlock()

	_, ok := c.drained[addr]

	return ok
}

// isDrained reports whether either address of desc is drained.
func (c *Client) isDrained(desc types.NodeDescriptor) bool {
	c.drainMu.RLock()
	defer c.drainMu.RUnlock()

	if len(c.drained) == 0 {
		return false
	}
	_, rpc := c.drained[desc.RPCAddress]
	_, rest := c.drained[desc.RESTAddress]

	return rpc || rest
}

// Mode returns how the client was constructed.
func (c *Client) Mode() types.ClientMode {
	return c.mode
}

// Topology returns the nodes of the current snapshot in discovery order.
//
// In SINGLE mode it returns the one node, reported as leader.
//
// Returns:
//   - []types.NodeDescriptor: The current nodes, nil after Close
func (c *Client) Topology() []types.NodeDescriptor {
	if c.mode == types.ModeSingle {
		if c.closed.Load() {
			return nil
		}

		return []types.NodeDescriptor{{RPCAddress: c.bootstrap.Addr(), Role: types.RoleLeader}}
	}

	snap := c.snapshots.load()
	if snap == nil {
		return nil
	}

	return snap.descriptors()
}

// Leader returns the current leader, if known.
func (c *Client) Leader() (types.NodeDescriptor, bool) {
	for _, n := range c.Topology() {
		if n.Role == types.RoleLeader {
			return n, true
		}
	}

	return types.NodeDescriptor{}, false
}

// Catalog returns the current procedure catalog.
func (c *Client) Catalog() *classify.Catalog {
	return c.classifier.Catalog()
}

// Config returns the client configuration.
func (c *Client) Config() *ClientConfig {
	return c.config
}

// Refresh rediscovers the topology and procedure catalog now.
//
// Concurrent refreshes, including those triggered by failing calls, are
// coalesced into one.
//
// Returns:
//   - error: RefreshError if the cluster is unavailable; the previous topology stays in use
func (c *Client) Refresh(ctx context.Context) error {
	if c.closed.Load() {
		return types.ErrClientClosed
	}

	return c.refresh(ctx)
}

// Close logs out every session and stops the topology watcher.
//
// Sessions still used by in-flight calls are logged out when those calls
// return. Logout failures are logged and otherwise ignored. Close is
// idempotent.
func (c *Client) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}

	if c.topologyClose != nil {
		c.topologyClose()
	}

	c.swapMu.Lock()
	c.snapshots.swap(nil)
	c.swapMu.Unlock()

	c.logoutSession(c.bootstrap)

	c.config.Logger.Info("tugraph client closed", "mode", c.mode.String())
}
