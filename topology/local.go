package topology

import (
	"context"
	"sync"

	"github.com/arloliu/tugraph"
)

// Local provides an in-memory topology watcher and operator.
//
// Unlike NATS, this implementation allows programmatic control of drain
// states, making it suitable for tests, demos and embedding in tools that
// already know which nodes are under maintenance. It implements both
// TopologyWatcher (for observing) and TopologyOperator (for controlling).
type Local struct {
	drained map[string]string // addr -> reason
	mu      sync.RWMutex

	updates       chan tugraph.TopologyUpdate
	done          chan struct{}
	closed        bool
	updatesClosed bool
}

var (
	_ tugraph.TopologyWatcher  = (*Local)(nil)
	_ tugraph.TopologyOperator = (*Local)(nil)
)

// NewLocal creates a new in-memory topology watcher/operator.
//
// Returns:
//   - *Local: A new local topology instance
func NewLocal() *Local {
	return &Local{
		drained: make(map[string]string),
		updates: make(chan tugraph.TopologyUpdate, 16),
		done:    make(chan struct{}),
	}
}

// Watch returns a channel that receives topology updates.
//
// Updates are emitted when SetDrain changes a node's state. The channel is
// closed when Close() is called or the context is cancelled.
//
// Multiple calls to Watch return the same channel; only the first call's
// context controls the watch lifecycle.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - <-chan tugraph.TopologyUpdate: Channel of topology changes
func (l *Local) Watch(ctx context.Context) <-chan tugraph.TopologyUpdate {
	go l.waitForClose(ctx)
	return l.updates
}

// SetDrain sets the drain state for a node.
//
// This method emits a TopologyUpdate if the state changes.
//
// Parameters:
//   - ctx: Context (unused by the in-memory implementation)
//   - node: The node address
//   - draining: true to take the node out of read rotation, false to restore it
//   - reason: Human-readable reason for the drain (only used when draining=true)
//
// Returns:
//   - error: Always nil for local implementation
func (l *Local) SetDrain(_ context.Context, node string, draining bool, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || l.updatesClosed || node == "" {
		return nil
	}

	_, current := l.drained[node]
	if current == draining {
		return nil
	}

	if draining {
		l.drained[node] = reason
	} else {
		delete(l.drained, node)
		reason = ""
	}

	select {
	case l.updates <- tugraph.TopologyUpdate{Node: node, Draining: draining, Reason: reason}:
	default:
		// Channel full, skip update
	}

	return nil
}

// IsDraining returns whether the node is currently drained.
//
// Parameters:
//   - node: The node address
//
// Returns:
//   - bool: true if the node is being drained
func (l *Local) IsDraining(node string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.drained[node]

	return ok
}

// GetDrainReason returns the drain reason of a node, if any.
func (l *Local) GetDrainReason(node string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.drained[node]
}

// Close stops the watcher and releases resources.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	l.closed = true
	close(l.done)

	return nil
}

// waitForClose waits for context cancellation or close signal.
func (l *Local) waitForClose(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-l.done:
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.updatesClosed {
		l.updatesClosed = true
		close(l.updates)
	}
}
