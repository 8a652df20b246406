package tugraph

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/arloliu/tugraph/session"
	"github.com/arloliu/tugraph/types"
)

// node pairs a discovered cluster member with its session.
type node struct {
	desc types.NodeDescriptor
	sess *session.Session
}

// snapshot is one immutable view of the cluster.
//
// A snapshot is published through an atomic pointer and never modified
// afterwards. Callers pin it with acquire/release for the duration of one
// attempt; once a newer snapshot replaces it, its sessions are logged out as
// soon as the last pinned call returns.
type snapshot struct {
	generation uint64
	nodes      []node
	leader     int // index into nodes, -1 if none

	refs    atomic.Int64
	retired atomic.Bool
	once    sync.Once
	logout  func(*session.Session)
}

func newSnapshot(generation uint64, nodes []node, logout func(*session.Session)) *snapshot {
	s := &snapshot{
		generation: generation,
		nodes:      nodes,
		leader:     -1,
		logout:     logout,
	}
	for i, n := range nodes {
		if n.desc.Role == types.RoleLeader {
			s.leader = i
			break
		}
	}

	return s
}

// leaderNode returns the leader, if the snapshot has one.
func (s *snapshot) leaderNode() (node, bool) {
	if s.leader < 0 {
		return node{}, false
	}

	return s.nodes[s.leader], true
}

// followers returns the follower nodes for which skip returns false.
func (s *snapshot) followers(skip func(types.NodeDescriptor) bool) []node {
	out := make([]node, 0, len(s.nodes))
	for _, n := range s.nodes {
		if n.desc.Role != types.RoleFollower {
			continue
		}
		if skip != nil && skip(n.desc) {
			continue
		}
		out = append(out, n)
	}

	return out
}

// find returns the node whose RPC or REST address is addr.
func (s *snapshot) find(addr string) (node, bool) {
	for _, n := range s.nodes {
		if n.desc.Matches(addr) {
			return n, true
		}
	}

	return node{}, false
}

// descriptors returns the node descriptors in topology order.
func (s *snapshot) descriptors() []types.NodeDescriptor {
	out := make([]types.NodeDescriptor, len(s.nodes))
	for i, n := range s.nodes {
		out[i] = n.desc
	}

	return out
}

// release unpins the snapshot.
func (s *snapshot) release() {
	if s.refs.Add(-1) == 0 && s.retired.Load() {
		s.close()
	}
}

// retire marks the snapshot as superseded. Its sessions are logged out now
// if it is idle, otherwise when the last pinned call releases it.
func (s *snapshot) retire() {
	s.retired.Store(true)
	if s.refs.Load() == 0 {
		s.close()
	}
}

func (s *snapshot) close() {
	s.once.Do(func() {
		for _, n := range s.nodes {
			s.logout(n.sess)
		}
	})
}

// snapshotHolder publishes the current snapshot.
type snapshotHolder struct {
	current atomic.Pointer[snapshot]
}

// acquire pins and returns the current snapshot, or nil if none is published.
func (h *snapshotHolder) acquire() *snapshot {
	for {
		s := h.current.Load()
		if s == nil {
			return nil
		}

		s.refs.Add(1)
		if !s.retired.Load() {
			return s
		}

		// Lost a race with a swap; the newer snapshot is already published.
		s.release()
	}
}

// load returns the current snapshot without pinning it.
func (h *snapshotHolder) load() *snapshot {
	return h.current.Load()
}

// swap publishes next and retires the previous snapshot.
func (h *snapshotHolder) swap(next *snapshot) *snapshot {
	prev := h.current.Swap(next)
	if prev != nil {
		prev.retire()
	}

	return prev
}

// logoutSession is the snapshot logout hook used by clients.
func (c *Client) logoutSession(sess *session.Session) {
	if sess == nil {
		return
	}

	ctx := context.Background()
	if c.config.RPCTimeout <= 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultRPCTimeout)
		defer cancel()
	}

	if err := sess.Logout(ctx); err != nil {
		c.config.Logger.Debug("session logout failed", "node", sess.Addr(), "error", err)
	}
}
