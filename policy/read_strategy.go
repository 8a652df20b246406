// Package policy provides read strategies and refresh policies for the tugraph client.
package policy

import (
	"context"
	"crypto/rand"
	"math/big"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// FollowerRotation spreads reads across followers in strict rotation.
//
// It keeps a queue of follower addresses. Each Select reconciles the queue
// with the current candidates (dropping departed nodes, appending new ones),
// returns the front node and moves it to the back. Over k*n selections with
// a stable set of n candidates every node is selected exactly k times.
type FollowerRotation struct {
	mu    sync.Mutex
	queue []string
}

// NewFollowerRotation creates a new FollowerRotation strategy.
//
// Returns:
//   - *FollowerRotation: A new rotation strategy
func NewFollowerRotation() *FollowerRotation {
	return &FollowerRotation{}
}

// Select returns the next follower in rotation.
//
// Parameters:
//   - ctx: Context (unused)
//   - candidates: RPC addresses of the followers eligible for this read
//
// Returns:
//   - string: The selected address
//   - bool: false if there is no candidate
func (r *FollowerRotation) Select(_ context.Context, candidates []string) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.reconcile(candidates)

	selected := r.queue[0]
	r.queue = append(r.queue[1:], selected)

	return selected, true
}

// reconcile drops queued nodes that are no longer candidates and appends
// candidates that are not queued yet, preserving rotation order.
func (r *FollowerRotation) reconcile(candidates []string) {
	r.queue = slices.DeleteFunc(r.queue, func(addr string) bool {
		return !slices.Contains(candidates, addr)
	})
	for _, addr := range candidates {
		if !slices.Contains(r.queue, addr) {
			r.queue = append(r.queue, addr)
		}
	}
}

// OnSuccess is a no-op for rotation.
func (r *FollowerRotation) OnSuccess(_ string) {}

// OnFailure is a no-op for rotation; the failed node keeps its place.
func (r *FollowerRotation) OnFailure(_ string, _ error) {}

// Order returns a copy of the current rotation queue, front first.
func (r *FollowerRotation) Order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.queue)
}

// StickyRead implements a sticky read strategy that routes reads to a preferred follower.
//
// The preferred follower is randomly selected on first use and sticks to
// maximize cache hits. When it fails (outside the cooldown) or leaves the
// candidate set, another follower is chosen.
type StickyRead struct {
	preferred        atomic.Value // string
	mu               sync.RWMutex
	avoid            string
	lastFailoverTime time.Time
	failoverCooldown time.Duration
}

// StickyReadOption configures a StickyRead strategy.
type StickyReadOption func(*StickyRead)

// WithStickyReadCooldown sets the cooldown period after a failover.
//
// Parameters:
//   - d: Duration to wait before allowing another failover
//
// Returns:
//   - StickyReadOption: Configuration option
func WithStickyReadCooldown(d time.Duration) StickyReadOption {
	return func(s *StickyRead) {
		s.failoverCooldown = d
	}
}

// WithPreferredNode sets the initial preferred follower.
//
// Parameters:
//   - addr: RPC address of the follower to prefer initially
//
// Returns:
//   - StickyReadOption: Configuration option
func WithPreferredNode(addr string) StickyReadOption {
	return func(s *StickyRead) {
		s.preferred.Store(addr)
	}
}

// NewStickyRead creates a new StickyRead strategy.
//
// The failover cooldown defaults to 5 minutes.
//
// Parameters:
//   - opts: Optional configuration options
//
// Returns:
//   - *StickyRead: A new sticky read strategy
func NewStickyRead(opts ...StickyReadOption) *StickyRead {
	s := &StickyRead{
		failoverCooldown: 5 * time.Minute,
	}
	s.preferred.Store("")

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Select returns the preferred follower if it is a candidate, otherwise picks
// a new preferred follower at random.
//
// Parameters:
//   - ctx: Context (unused)
//   - candidates: RPC addresses of the followers eligible for this read
//
// Returns:
//   - string: The selected address
//   - bool: false if there is no candidate
func (s *StickyRead) Select(_ context.Context, candidates []string) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}

	if p := s.Preferred(); p != "" && slices.Contains(candidates, p) {
		return p, true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check under the lock; another goroutine may have picked already.
	if p := s.Preferred(); p != "" && slices.Contains(candidates, p) {
		return p, true
	}

	pool := candidates
	if len(candidates) > 1 && s.avoid != "" {
		pool = slices.DeleteFunc(slices.Clone(candidates), func(addr string) bool {
			return addr == s.avoid
		})
	}

	selected := pool[randomIndex(len(pool))]
	s.preferred.Store(selected)

	return selected, true
}

// OnSuccess is a no-op for sticky reads.
func (s *StickyRead) OnSuccess(_ string) {}

// OnFailure drops the preferred follower if it failed and the cooldown has passed.
//
// Parameters:
//   - addr: The follower that failed
//   - err: The error (unused)
func (s *StickyRead) OnFailure(addr string, _ error) {
	if addr == "" || addr != s.Preferred() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lastFailoverTime.IsZero() && time.Since(s.lastFailoverTime) < s.failoverCooldown {
		return
	}
	s.preferred.Store("")
	s.avoid = addr
	s.lastFailoverTime = time.Now()
}

// Preferred returns the current preferred follower, or "" if none is chosen yet.
func (s *StickyRead) Preferred() string {
	v, _ := s.preferred.Load().(string)
	return v
}

func randomIndex(n int) int {
	if n <= 1 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}

	return int(v.Int64())
}

// LeaderOnlyRead sends every read to the leader.
//
// It never selects a follower, so the dispatcher falls back to the leader.
// Use it when reads must observe the latest committed writes.
type LeaderOnlyRead struct{}

// NewLeaderOnlyRead creates a new LeaderOnlyRead strategy.
//
// Returns:
//   - *LeaderOnlyRead: A new leader-only read strategy
func NewLeaderOnlyRead() *LeaderOnlyRead {
	return &LeaderOnlyRead{}
}

// Select never picks a follower.
func (LeaderOnlyRead) Select(_ context.Context, _ []string) (string, bool) {
	return "", false
}

// OnSuccess is a no-op.
func (LeaderOnlyRead) OnSuccess(_ string) {}

// OnFailure is a no-op.
func (LeaderOnlyRead) OnFailure(_ string, _ error) {}

// RoundRobinRead spreads reads with a lock-free counter over the candidate list.
//
// It is cheaper than FollowerRotation but only fair while the candidate set
// is stable; membership changes shift the sequence.
type RoundRobinRead struct {
	counter atomic.Uint64
}

// NewRoundRobinRead creates a new RoundRobinRead strategy.
//
// Returns:
//   - *RoundRobinRead: A new round-robin read strategy
func NewRoundRobinRead() *RoundRobinRead {
	return &RoundRobinRead{}
}

// Select returns candidates[n mod len(candidates)] for the n-th call.
//
// Parameters:
//   - ctx: Context (unused)
//   - candidates: RPC addresses of the followers eligible for this read
//
// Returns:
//   - string: The selected address
//   - bool: false if there is no candidate
func (r *RoundRobinRead) Select(_ context.Context, candidates []string) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	count := r.counter.Add(1) - 1

	return candidates[count%uint64(len(candidates))], true
}

// OnSuccess is a no-op.
func (r *RoundRobinRead) OnSuccess(_ string) {}

// OnFailure is a no-op.
func (r *RoundRobinRead) OnFailure(_ string, _ error) {}
