package policy

import (
	"sync"
	"time"

	"github.com/arloliu/tugraph/internal/logging"
	"github.com/arloliu/tugraph/types"
)

// ActiveRefresh refreshes the topology on every retriable failure.
//
// This is the default: one refresh and one retry per failed call.
type ActiveRefresh struct{}

// NewActiveRefresh creates a new ActiveRefresh policy.
//
// Returns:
//   - *ActiveRefresh: A new active refresh policy
func NewActiveRefresh() *ActiveRefresh {
	return &ActiveRefresh{}
}

// ShouldRefresh always returns true.
func (a *ActiveRefresh) ShouldRefresh(_ string, _ error) bool {
	return true
}

// RecordFailure is a no-op for active refresh.
func (a *ActiveRefresh) RecordFailure(_ string) {}

// RecordSuccess is a no-op for active refresh.
func (a *ActiveRefresh) RecordSuccess(_ string) {}

// CircuitBreaker implements a conservative refresh policy.
//
// Tracks consecutive failures per node and only allows a refresh once a
// node has failed threshold times in a row. This prevents refresh storms on
// transient errors. A node's counter restarts at 1 if its previous failure is
// older than the reset timeout.
type CircuitBreaker struct {
	threshold    int
	resetTimeout time.Duration
	logger       types.Logger

	mu    sync.Mutex
	nodes map[string]*breakerState
}

type breakerState struct {
	failures    int
	lastFailure time.Time
}

// CircuitBreakerOption configures a CircuitBreaker policy.
type CircuitBreakerOption func(*CircuitBreaker)

// WithThreshold sets the number of consecutive failures before a refresh.
//
// Parameters:
//   - n: Number of failures required
//
// Returns:
//   - CircuitBreakerOption: Configuration option
func WithThreshold(n int) CircuitBreakerOption {
	return func(c *CircuitBreaker) {
		c.threshold = n
	}
}

// WithResetTimeout sets the duration after which a node's failure count restarts.
//
// Parameters:
//   - d: Reset timeout duration
//
// Returns:
//   - CircuitBreakerOption: Configuration option
func WithResetTimeout(d time.Duration) CircuitBreakerOption {
	return func(c *CircuitBreaker) {
		c.resetTimeout = d
	}
}

// WithCircuitBreakerLogger sets the logger for the circuit breaker.
//
// Parameters:
//   - l: The logger
//
// Returns:
//   - CircuitBreakerOption: Configuration option
func WithCircuitBreakerLogger(l types.Logger) CircuitBreakerOption {
	return func(c *CircuitBreaker) {
		c.logger = l
	}
}

// NewCircuitBreaker creates a new CircuitBreaker policy.
//
// Defaults: threshold=3, resetTimeout=30s
//
// Parameters:
//   - opts: Optional configuration options
//
// Returns:
//   - *CircuitBreaker: A new circuit breaker policy
func NewCircuitBreaker(opts ...CircuitBreakerOption) *CircuitBreaker {
	c := &CircuitBreaker{
		threshold:    3,
		resetTimeout: 30 * time.Second,
		nodes:        make(map[string]*breakerState),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.threshold < 1 {
		c.threshold = 1
	}
	if c.logger == nil {
		c.logger = logging.NewNopLogger()
	}

	return c
}

// ShouldRefresh returns true if node has reached the failure threshold.
//
// Parameters:
//   - node: The node that failed ("" when no node was selected, e.g. no leader)
//   - err: The error (unused)
//
// Returns:
//   - bool: true if consecutive failures >= threshold
func (c *CircuitBreaker) ShouldRefresh(node string, _ error) bool {
	return c.Failures(node) >= c.threshold
}

// RecordFailure increments the failure counter for a node.
//
// Parameters:
//   - node: The node that failed
func (c *CircuitBreaker) RecordFailure(node string) {
	now := time.Now()

	c.mu.Lock()
	st, ok := c.nodes[node]
	if !ok {
		st = &breakerState{}
		c.nodes[node] = st
	}
	if !st.lastFailure.IsZero() && now.Sub(st.lastFailure) > c.resetTimeout {
		st.failures = 0
	}
	st.failures++
	st.lastFailure = now
	failures := st.failures
	c.mu.Unlock()

	if failures == c.threshold {
		c.logger.Warn("circuit breaker tripped",
			"node", node,
			"threshold", c.threshold,
		)
	}
}

// RecordSuccess resets the failure counter for a node.
//
// Parameters:
//   - node: The node that succeeded
func (c *CircuitBreaker) RecordSuccess(node string) {
	c.mu.Lock()
	st, ok := c.nodes[node]
	if ok {
		delete(c.nodes, node)
	}
	c.mu.Unlock()

	if ok && st.failures >= c.threshold {
		c.logger.Info("circuit breaker closed", "node", node)
	}
}

// Failures returns the current consecutive failure count for a node.
//
// Parameters:
//   - node: The node to check
//
// Returns:
//   - int: Number of consecutive failures
func (c *CircuitBreaker) Failures(node string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st, ok := c.nodes[node]; ok {
		return st.failures
	}

	return 0
}
