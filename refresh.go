package tugraph

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/arloliu/tugraph/classify"
	"github.com/arloliu/tugraph/session"
	"github.com/arloliu/tugraph/types"
)

const refreshKey = "topology"

// refresh rediscovers the topology and swaps in a new snapshot.
//
// Concurrent callers share one in-flight refresh. The refresh itself runs
// detached from the caller's cancellation and is bounded by RefreshTimeout,
// so a caller that gives up does not abort it for everybody else.
func (c *Client) refresh(ctx context.Context) error {
	ch := c.refreshGroup.DoChan(refreshKey, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.RefreshTimeout)
		defer cancel()

		return nil, c.doRefresh(rctx)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) doRefresh(ctx context.Context) error {
	c.config.Metrics.IncRefreshTotal()

	var (
		nodes []node
		err   error
	)
	switch c.mode {
	case types.ModeDirectCluster:
		nodes, err = c.discoverDirect(ctx)
	case types.ModeIndirectCluster:
		nodes, err = c.discoverIndirect(ctx)
	default:
		c.refreshCatalog(ctx, nil)
		return nil
	}
	if err != nil {
		c.config.Metrics.IncRefreshError()
		c.config.Logger.Warn("topology refresh failed", "mode", c.mode.String(), "error", err)

		return err
	}

	next := newSnapshot(c.generation.Add(1), nodes, c.logoutSession)
	if _, ok := next.leaderNode(); !ok {
		c.config.Metrics.IncRefreshError()
		c.logoutNodes(nodes)
		c.config.Logger.Warn("topology refresh found no leader", "nodes", len(nodes))

		return &types.RefreshError{Reason: "no leader"}
	}

	c.swapMu.Lock()
	if c.closed.Load() {
		c.swapMu.Unlock()
		c.logoutNodes(nodes)

		return types.ErrClientClosed
	}
	prev := c.snapshots.swap(next)
	c.swapMu.Unlock()

	c.recordTopology(prev, next)
	c.refreshCatalog(ctx, next)

	return nil
}

// discoverDirect asks the bootstrap node for the cluster members, falling
// back to any node of the current snapshot, then logs into every member.
func (c *Client) discoverDirect(ctx context.Context) ([]node, error) {
	info, err := c.bootstrap.ClusterInfo(ctx)
	if err != nil {
		c.config.Logger.Debug("bootstrap cluster info failed", "node", c.bootstrap.Addr(), "error", err)
		info, err = c.clusterInfoFromSnapshot(ctx)
		if err != nil {
			return nil, &types.RefreshError{Reason: "no reachable node", Cause: err}
		}
	}

	nodes := make([]node, len(info.Nodes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.LoginConcurrency)
	for i, desc := range info.Nodes {
		nodes[i].desc = desc
		if desc.Role == types.RoleWitness {
			continue
		}
		g.Go(func() error {
			sess, err := c.openSession(gctx, desc.RPCAddress)
			if err != nil {
				c.config.Logger.Warn("skipping unreachable node", "node", desc.RPCAddress, "error", err)
				return nil
			}
			nodes[i].sess = sess

			return nil
		})
	}
	_ = g.Wait()

	return reachable(nodes)
}

// clusterInfoFromSnapshot asks the nodes of the current snapshot in order.
func (c *Client) clusterInfoFromSnapshot(ctx context.Context) (types.ClusterInfo, error) {
	snap := c.snapshots.acquire()
	if snap == nil {
		return types.ClusterInfo{}, types.ErrClusterUnavailable
	}
	defer snap.release()

	var lastErr error
	for _, n := range snap.nodes {
		if n.sess == nil {
			continue
		}
		info, err := n.sess.ClusterInfo(ctx)
		if err == nil {
			return info, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = types.ErrClusterUnavailable
	}

	return types.ClusterInfo{}, lastErr
}

// discoverIndirect logs into every configured address and asks each one for
// its own role.
func (c *Client) discoverIndirect(ctx context.Context) ([]node, error) {
	nodes := make([]node, len(c.addrs))

	var (
		mu      sync.Mutex
		lastErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.LoginConcurrency)
	for i, addr := range c.addrs {
		g.Go(func() error {
			sess, err := c.openSession(gctx, addr)
			if err == nil {
				var info types.ClusterInfo
				info, err = sess.ClusterInfo(gctx)
				if err == nil {
					nodes[i] = node{desc: selfDescriptor(addr, info), sess: sess}
					return nil
				}
				c.logoutSession(sess)
			}

			c.config.Logger.Warn("skipping unreachable node", "node", addr, "error", err)
			mu.Lock()
			lastErr = err
			mu.Unlock()

			return nil
		})
	}
	_ = g.Wait()

	nodes, err := reachable(nodes)
	if err != nil {
		return nil, &types.RefreshError{Reason: "no reachable node", Cause: lastErr}
	}

	return nodes, nil
}

// selfDescriptor builds the descriptor of the node reached at addr. The role
// comes from the responder's own is_master flag; the REST address is taken
// from the matching cluster entry when there is one.
func selfDescriptor(addr string, info types.ClusterInfo) types.NodeDescriptor {
	desc := types.NodeDescriptor{RPCAddress: addr, Role: types.RoleFollower}
	for _, n := range info.Nodes {
		if n.RPCAddress == addr {
			desc.RESTAddress = n.RESTAddress
			if n.Role == types.RoleWitness {
				desc.Role = types.RoleWitness
			}
		}
	}
	if info.IsMaster {
		desc.Role = types.RoleLeader
	}

	return desc
}

// reachable keeps the nodes that have a session.
func reachable(nodes []node) ([]node, error) {
	out := nodes[:0]
	for _, n := range nodes {
		if n.sess != nil {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil, &types.RefreshError{Reason: "no reachable node"}
	}

	return out, nil
}

func (c *Client) openSession(ctx context.Context, addr string) (*session.Session, error) {
	return session.Open(ctx, c.config.Dialer, addr, c.creds,
		session.WithRPCTimeout(c.config.RPCTimeout),
		session.WithLogger(c.config.Logger),
	)
}

func (c *Client) logoutNodes(nodes []node) {
	for _, n := range nodes {
		c.logoutSession(n.sess)
	}
}

// recordTopology reports the outcome of a successful refresh.
func (c *Client) recordTopology(prev, next *snapshot) {
	c.config.Metrics.SetTopologyNodes(len(next.nodes))

	leader, _ := next.leaderNode()
	prevLeader := ""
	if prev != nil {
		if n, ok := prev.leaderNode(); ok {
			prevLeader = n.desc.RPCAddress
		}
	}

	if prevLeader != leader.desc.RPCAddress {
		if prevLeader != "" {
			c.config.Metrics.IncLeaderChange(prevLeader, leader.desc.RPCAddress)
		}
		c.config.Logger.Info("cluster leader changed",
			"from", prevLeader,
			"to", leader.desc.RPCAddress,
			"generation", next.generation,
		)
	}

	c.config.Logger.Debug("topology refreshed", "generation", next.generation, "nodes", len(next.nodes))
}

// refreshCatalog reloads procedure metadata through a follower, falling
// back to the leader. Failures keep the previous catalog.
func (c *Client) refreshCatalog(ctx context.Context, snap *snapshot) {
	var sessions []*session.Session
	if snap == nil {
		sessions = []*session.Session{c.bootstrap}
	} else {
		for _, n := range snap.followers(nil) {
			sessions = append(sessions, n.sess)
		}
		if leader, ok := snap.leaderNode(); ok {
			sessions = append(sessions, leader.sess)
		}
	}

	var errs []error
	for _, sess := range sessions {
		catalog, err := loadCatalog(ctx, sess)
		if err == nil {
			c.classifier.Update(catalog)
			return
		}
		errs = append(errs, err)
	}

	c.config.Logger.Warn("procedure catalog refresh failed, keeping previous catalog",
		"error", errors.Join(errs...),
	)
}

func loadCatalog(ctx context.Context, sess *session.Session) (*classify.Catalog, error) {
	builtIns, err := sess.BuiltInProcedures(ctx)
	if err != nil {
		return nil, err
	}

	userDefined, err := sess.UserDefinedProcedures(ctx)
	if err != nil {
		return nil, err
	}

	return classify.NewCatalog(builtIns, userDefined), nil
}
