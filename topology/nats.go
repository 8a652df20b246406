package topology

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/tugraph"
)

// NATS monitors a NATS KV bucket for node drain configuration.
//
// It watches a configurable key holding a DrainConfig and emits a
// TopologyUpdate for every node whose drain status changes. Operations
// teams use it to take followers out of read rotation before maintenance
// without touching application config.
//
// Watch() should be called once per instance. Subsequent calls return the
// same channel. The channel is closed when Close() is called or the context
// is cancelled.
type NATS struct {
	kv     jetstream.KeyValue
	config WatcherConfig

	drained     map[string]bool
	drainReason string
	mu          sync.RWMutex

	updates      chan tugraph.TopologyUpdate
	done         chan struct{}
	closed       bool
	watchStarted bool
	closeOnce    sync.Once
}

var _ tugraph.TopologyWatcher = (*NATS)(nil)

// NewNATS creates a new NATS KV topology watcher.
//
// Parameters:
//   - kv: A NATS JetStream KeyValue store
//   - opts: Optional configuration options
//
// Returns:
//   - *NATS: A new watcher instance
//   - error: Error if kv is nil
//
// Example:
//
//	nc, _ := nats.Connect("nats://localhost:4222")
//	js, _ := jetstream.New(nc)
//	kv, _ := js.KeyValue(ctx, "tugraph-config")
//
//	watcher, _ := topology.NewNATS(kv,
//	    topology.WithKey("graph.drain"),
//	    topology.WithPollInterval(10*time.Second),
//	)
func NewNATS(kv jetstream.KeyValue, opts ...WatcherOption) (*NATS, error) {
	if kv == nil {
		return nil, errors.New("tugraph/topology: KeyValue store is nil")
	}

	config := DefaultWatcherConfig()
	for _, opt := range opts {
		opt(&config)
	}

	return &NATS{
		kv:      kv,
		config:  config,
		drained: make(map[string]bool),
		updates: make(chan tugraph.TopologyUpdate, 16),
		done:    make(chan struct{}),
	}, nil
}

// Watch returns a channel that receives topology updates.
//
// Parameters:
//   - ctx: Context for cancellation (only used on first call)
//
// Returns:
//   - <-chan tugraph.TopologyUpdate: Channel of topology changes
func (n *NATS) Watch(ctx context.Context) <-chan tugraph.TopologyUpdate {
	n.mu.Lock()
	if n.watchStarted {
		n.mu.Unlock()

		return n.updates
	}
	n.watchStarted = true
	n.mu.Unlock()

	go n.watchLoop(ctx)

	return n.updates
}

// Close stops the watcher and releases resources.
//
// This method is safe to call multiple times.
func (n *NATS) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}

	n.closed = true
	close(n.done)

	return nil
}

// IsDraining returns whether the node is currently drained.
//
// Parameters:
//   - node: The node address
//
// Returns:
//   - bool: true if the node is being drained
func (n *NATS) IsDraining(node string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return n.drained[node]
}

// Config returns the watcher configuration.
func (n *NATS) Config() WatcherConfig {
	return n.config
}

// GetDrainReason returns the cached reason from the last processed KV entry.
//
// Returns:
//   - string: The drain reason, or empty if nothing is drained
func (n *NATS) GetDrainReason() string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return n.drainReason
}

// watchLoop is the main watch loop that monitors the NATS KV key.
func (n *NATS) watchLoop(ctx context.Context) {
	defer n.closeOnce.Do(func() { close(n.updates) })

	n.fetchAndEmit(ctx)

	watcher, err := n.kv.Watch(ctx, n.config.Key)
	if err != nil {
		n.pollLoop(ctx)
		return
	}
	defer func() { _ = watcher.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-n.done:
			return
		case entry, ok := <-watcher.Updates():
			if !ok {
				n.pollLoop(ctx)
				return
			}
			if entry == nil {
				// End of initial values
				continue
			}
			n.processEntry(entry)
		}
	}
}

// pollLoop is a fallback polling loop when watch fails.
func (n *NATS) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(n.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-n.done:
			return
		case <-ticker.C:
			n.fetchAndEmit(ctx)
		}
	}
}

// fetchAndEmit fetches the current KV value and emits updates if changed.
func (n *NATS) fetchAndEmit(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, n.config.InitialFetchTimeout)
	defer cancel()

	entry, err := n.kv.Get(fetchCtx, n.config.Key)
	if err != nil {
		// Missing key or fetch error: nothing is drained
		n.applyDrain(DrainConfig{})
		return
	}

	n.processEntry(entry)
}

// processEntry parses a KV entry and emits topology updates.
func (n *NATS) processEntry(entry jetstream.KeyValueEntry) {
	if entry.Operation() == jetstream.KeyValueDelete || entry.Operation() == jetstream.KeyValuePurge {
		n.applyDrain(DrainConfig{})
		return
	}

	var config DrainConfig
	if err := json.Unmarshal(entry.Value(), &config); err != nil {
		// Invalid JSON: treat as no drain
		n.applyDrain(DrainConfig{})
		return
	}

	n.applyDrain(config)
}

// applyDrain replaces the drained set with config and emits one update per changed node.
func (n *NATS) applyDrain(config DrainConfig) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.drainReason = config.Reason

	var changed []tugraph.TopologyUpdate
	for addr := range n.drained {
		if !config.ContainsNode(addr) {
			delete(n.drained, addr)
			changed = append(changed, tugraph.TopologyUpdate{Node: addr, Draining: false})
		}
	}
	for _, addr := range config.Drain {
		if addr == "" || n.drained[addr] {
			continue
		}
		n.drained[addr] = true
		changed = append(changed, tugraph.TopologyUpdate{Node: addr, Draining: true, Reason: config.Reason})
	}

	sort.Slice(changed, func(i, j int) bool { return changed[i].Node < changed[j].Node })

	for _, update := range changed {
		select {
		case n.updates <- update:
		default:
			// Channel full, skip update (older updates are stale anyway)
		}
	}
}
