// Package policy provides read strategies and refresh policies for the tugraph client.
//
// # Read Strategies
//
// Read strategies pick the follower that serves a read. The client passes
// the RPC addresses of the followers eligible for the read (drained nodes
// and witnesses excluded). When a strategy selects nothing, the read goes
// to the leader.
//
//	type ReadStrategy interface {
//	    Select(ctx context.Context, candidates []string) (string, bool)
//	    OnSuccess(node string)
//	    OnFailure(node string, err error)
//	}
//
// Available strategies:
//
//   - [FollowerRotation]: Strict rotation through a queue (default)
//   - [RoundRobinRead]: Lock-free counter over the candidate list
//   - [StickyRead]: Sticks to one follower for cache affinity
//   - [LeaderOnlyRead]: Sends every read to the leader
//
// Example:
//
//	client, _ := tugraph.NewClient(ctx, "10.0.0.1:9090", creds,
//	    tugraph.WithReadStrategy(policy.NewStickyRead()),
//	)
//
// # Refresh Policies
//
// Refresh policies decide whether a retriable failure triggers a topology
// refresh and a retry:
//
//	type RefreshPolicy interface {
//	    ShouldRefresh(node string, err error) bool
//	    RecordFailure(node string)
//	    RecordSuccess(node string)
//	}
//
// Available policies:
//
//   - [ActiveRefresh]: Refreshes on every retriable failure (default)
//   - [CircuitBreaker]: Refreshes only after consecutive failures of the same node
//
// Example:
//
//	client, _ := tugraph.NewClusterClient(ctx, addrs, creds,
//	    tugraph.WithRefreshPolicy(policy.NewCircuitBreaker(policy.WithThreshold(2))),
//	)
package policy
