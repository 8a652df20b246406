package topology

import (
	"slices"
	"time"
)

// DrainConfig represents the drain configuration stored in NATS KV.
//
// This is the JSON structure that operations teams PUT to the KV store to
// take follower nodes out of read rotation before maintenance:
//
//	{"drain": ["10.0.0.2:9090"], "reason": "OS Patching"}
type DrainConfig struct {
	// Drain lists the addresses (RPC or REST) of the nodes being drained.
	Drain []string `json:"drain"`

	// Reason is a human-readable explanation for the drain.
	// Example: "OS Patching", "Disk replacement"
	Reason string `json:"reason,omitempty"`
}

// ContainsNode returns true if the given address is in the drain list.
//
// Parameters:
//   - addr: The node address to check
//
// Returns:
//   - bool: true if the node is being drained
func (d *DrainConfig) ContainsNode(addr string) bool {
	return slices.Contains(d.Drain, addr)
}

// WatcherConfig holds configuration for topology watchers.
type WatcherConfig struct {
	// Key is the NATS KV key to watch for drain configuration.
	// Default: "tugraph.topology.drain"
	Key string

	// PollInterval is the fallback polling interval if watch fails.
	// Default: 5 seconds
	PollInterval time.Duration

	// InitialFetchTimeout is the timeout for the initial KV fetch.
	// Default: 10 seconds
	InitialFetchTimeout time.Duration
}

// DefaultWatcherConfig returns a WatcherConfig with sensible defaults.
//
// Returns:
//   - WatcherConfig: Default configuration
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		Key:                 "tugraph.topology.drain",
		PollInterval:        5 * time.Second,
		InitialFetchTimeout: 10 * time.Second,
	}
}

// WatcherOption configures a topology watcher.
type WatcherOption func(*WatcherConfig)

// WithKey sets the NATS KV key to watch.
//
// Parameters:
//   - key: The key name (e.g., "graph.topology.maintenance")
//
// Returns:
//   - WatcherOption: Configuration option
func WithKey(key string) WatcherOption {
	return func(c *WatcherConfig) {
		c.Key = key
	}
}

// WithPollInterval sets the fallback polling interval.
//
// If the NATS watch fails or disconnects, the watcher falls back to
// polling at this interval.
//
// Parameters:
//   - d: Polling interval duration
//
// Returns:
//   - WatcherOption: Configuration option
func WithPollInterval(d time.Duration) WatcherOption {
	return func(c *WatcherConfig) {
		c.PollInterval = d
	}
}

// WithInitialFetchTimeout sets the timeout for the initial KV fetch.
//
// Parameters:
//   - d: Timeout duration
//
// Returns:
//   - WatcherOption: Configuration option
func WithInitialFetchTimeout(d time.Duration) WatcherOption {
	return func(c *WatcherConfig) {
		c.InitialFetchTimeout = d
	}
}
