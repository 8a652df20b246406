package tugraph

import "context"

// ReadStrategy chooses which follower serves a classified read.
//
// Implementations MUST be safe for concurrent use from multiple goroutines.
// All methods may be called concurrently from different operations.
type ReadStrategy interface {
	// Select chooses one of the candidate nodes.
	//
	// Parameters:
	//   - ctx: Context for the operation
	//   - candidates: RPC addresses of the eligible followers, in topology order
	//
	// Returns:
	//   - string: The chosen address
	//   - bool: false to let the read fall back to the leader
	Select(ctx context.Context, candidates []string) (string, bool)

	// OnSuccess is called when a read served by node succeeds.
	//
	// Parameters:
	//   - node: The node that succeeded
	OnSuccess(node string)

	// OnFailure is called when a read served by node fails.
	//
	// Parameters:
	//   - node: The node that failed
	//   - err: The error that occurred
	OnFailure(node string, err error)
}

// RefreshPolicy decides whether a failed call triggers a topology refresh
// and a retry.
//
// It is only consulted for errors that types.IsRetriable accepts; it can veto
// a refresh but cannot force one.
//
// Implementations MUST be safe for concurrent use from multiple goroutines.
// RecordFailure/RecordSuccess may be called concurrently while ShouldRefresh
// is evaluating the current state.
type RefreshPolicy interface {
	// ShouldRefresh determines if a refresh and retry should occur.
	//
	// Parameters:
	//   - node: The node that failed
	//   - err: The error that occurred
	//
	// Returns:
	//   - bool: true if the client should refresh and retry once
	ShouldRefresh(node string, err error) bool

	// RecordFailure records a failed call on node.
	//
	// Parameters:
	//   - node: The node that failed
	RecordFailure(node string)

	// RecordSuccess records a successful call on node.
	//
	// Parameters:
	//   - node: The node that succeeded
	RecordSuccess(node string)
}

// TopologyWatcher reports operator drain decisions.
//
// Implementations include topology.Local (in-memory) and topology.NATS (NATS KV backed).
type TopologyWatcher interface {
	// Watch returns a channel that receives topology updates.
	//
	// Parameters:
	//   - ctx: Context for cancellation
	//
	// Returns:
	//   - <-chan TopologyUpdate: Channel of drain changes
	Watch(ctx context.Context) <-chan TopologyUpdate
}

// TopologyOperator allows setting node drain states.
//
// This interface is typically used by operations tools and tests to take
// followers out of read rotation. Implementations include topology.Local.
type TopologyOperator interface {
	// SetDrain sets the drain state for a node.
	//
	// Parameters:
	//   - ctx: Context for cancellation/timeout
	//   - node: The node's RPC or REST address
	//   - draining: true to enable drain mode, false to disable
	//   - reason: Human-readable reason for the drain (only used when draining=true)
	//
	// Returns:
	//   - error: nil on success, error if the operation fails
	SetDrain(ctx context.Context, node string, draining bool, reason string) error
}

// TopologyUpdate represents a change in a node's drain state.
type TopologyUpdate struct {
	// Node is the RPC or REST address of the node.
	Node string

	// Draining indicates the node should receive no classified reads.
	Draining bool

	// Reason is the operator-supplied reason, if any.
	Reason string
}
