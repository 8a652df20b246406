package tugraph

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/tugraph/session"
	"github.com/arloliu/tugraph/types"
)

func testNodes() []node {
	return []node{
		{desc: types.NodeDescriptor{RPCAddress: "a:9090", RESTAddress: "a:7070", Role: types.RoleFollower}},
		{desc: types.NodeDescriptor{RPCAddress: "b:9090", RESTAddress: "b:7070", Role: types.RoleLeader}},
		{desc: types.NodeDescriptor{RPCAddress: "c:9090", RESTAddress: "c:7070", Role: types.RoleFollower}},
	}
}

func countingLogout(counter *atomic.Int64) func(*session.Session) {
	return func(*session.Session) {
		counter.Add(1)
	}
}

func TestSnapshotLeaderAndFollowers(t *testing.T) {
	snap := newSnapshot(1, testNodes(), func(*session.Session) {})

	leader, ok := snap.leaderNode()
	require.True(t, ok)
	assert.Equal(t, "b:9090", leader.desc.RPCAddress)

	followers := snap.followers(nil)
	require.Len(t, followers, 2)
	assert.Equal(t, "a:9090", followers[0].desc.RPCAddress)

	followers = snap.followers(func(d types.NodeDescriptor) bool { return d.RPCAddress == "a:9090" })
	require.Len(t, followers, 1)
	assert.Equal(t, "c:9090", followers[0].desc.RPCAddress)

	n, ok := snap.find("c:7070")
	require.True(t, ok)
	assert.Equal(t, "c:9090", n.desc.RPCAddress)

	_, ok = snap.find("d:9090")
	assert.False(t, ok)
}

func TestSnapshotWithoutLeader(t *testing.T) {
	nodes := testNodes()
	nodes[1].desc.Role = types.RoleFollower

	snap := newSnapshot(1, nodes, func(*session.Session) {})
	_, ok := snap.leaderNode()
	assert.False(t, ok)
}

func TestRetireIdleSnapshotLogsOutImmediately(t *testing.T) {
	var logouts atomic.Int64
	var holder snapshotHolder

	holder.swap(newSnapshot(1, testNodes(), countingLogout(&logouts)))
	prev := holder.swap(newSnapshot(2, testNodes(), countingLogout(&logouts)))

	require.NotNil(t, prev)
	assert.Equal(t, uint64(1), prev.generation)
	assert.Equal(t, int64(3), logouts.Load())
}

func TestRetirePinnedSnapshotWaitsForRelease(t *testing.T) {
	var logouts atomic.Int64
	var holder snapshotHolder

	holder.swap(newSnapshot(1, testNodes(), countingLogout(&logouts)))

	pinned := holder.acquire()
	require.NotNil(t, pinned)

	holder.swap(newSnapshot(2, testNodes(), countingLogout(&logouts)))
	assert.Equal(t, int64(0), logouts.Load())

	// New callers see the new snapshot while the old one is still pinned.
	current := holder.acquire()
	assert.Equal(t, uint64(2), current.generation)
	current.release()

	pinned.release()
	assert.Equal(t, int64(3), logouts.Load())
}

func TestSnapshotClosesOnce(t *testing.T) {
	var logouts atomic.Int64
	var holder snapshotHolder

	holder.swap(newSnapshot(1, testNodes(), countingLogout(&logouts)))

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			if s := holder.acquire(); s != nil {
				s.release()
			}
		})
	}
	holder.swap(nil)
	wg.Wait()

	assert.Equal(t, int64(3), logouts.Load())
	assert.Nil(t, holder.acquire())
}

func TestAcquireSeesConsistentSnapshot(t *testing.T) {
	var holder snapshotHolder
	holder.swap(newSnapshot(1, testNodes(), func(*session.Session) {}))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Go(func() {
		for gen := uint64(2); ; gen++ {
			select {
			case <-stop:
				return
			default:
			}
			holder.swap(newSnapshot(gen, testNodes(), func(*session.Session) {}))
		}
	})

	for range 1000 {
		s := holder.acquire()
		require.NotNil(t, s)
		assert.GreaterOrEqual(t, s.refs.Load(), int64(1))
		assert.Len(t, s.descriptors(), 3)
		s.release()
	}
	close(stop)
	wg.Wait()
}
