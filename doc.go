// Package tugraph provides a cluster-aware client for TuGraph high-availability
// deployments.
//
// A TuGraph HA cluster has one leader that accepts writes and followers that
// replicate it. The client discovers the members, keeps an authenticated
// session per node, sends writes to the leader and spreads read-only work
// over the followers. When the leader moves, the next failing call refreshes
// the topology and is retried once.
//
// # Key Features
//
//   - Automatic Routing: Statements are classified as read-only or writing
//     from their text and the server's procedure catalog
//   - Follower Reads: Reads rotate over followers, falling back to the leader
//   - Double-Check Retry: Retriable failures refresh the topology and retry once
//   - Drain Control: Operators can take followers out of read rotation via NATS KV
//   - Chunked Imports: Large data files are cut into packages and can resume
//
// # Basic Usage
//
//	client, err := tugraph.NewClient(ctx, "10.0.0.1:9090",
//	    tugraph.Credentials{User: "admin", Password: "secret"},
//	    tugraph.WithReadStrategy(policy.NewFollowerRotation()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Goes to the leader
//	_, err = client.Cypher(ctx, "default", "CREATE (n:Person {id: 1, name: 'alice'})")
//
//	// Goes to a follower
//	result, err := client.Cypher(ctx, "default", "MATCH (n:Person) RETURN n.name")
//
// # Client Modes
//
// NewClient probes the node it is given:
//   - DIRECT_CLUSTER: The node reports cluster membership; every member is
//     reached at the address it advertises
//   - SINGLE: The node rejects the membership query; all calls go to it
//
// NewClusterClient takes an explicit address list (INDIRECT_CLUSTER). Each
// address reports its own role, which suits deployments where advertised
// addresses are not reachable from the client.
//
// # Error Handling
//
// Errors are defined in the types package and re-checked with errors.Is/As:
//
//   - *types.NodeError: A node could not be reached (retriable)
//   - *types.ServerError: The server rejected a request; IsStale() marks
//     REDIRECT and OUTDATED_CLIENT rejections, which are retriable
//   - *types.RefreshError: The cluster is unavailable; matches types.ErrClusterUnavailable
//   - *types.InputError: Malformed client-side input; matches types.ErrInvalidInput
//   - *types.ImportError: An import call reported failures
//   - types.ErrNoLeader, types.ErrNodeNotFound: Routing failures (retriable)
//   - types.ErrClientClosed: The client has been closed
//
// Only retriable errors trigger the refresh-and-retry; use types.IsRetriable
// to apply the same rule elsewhere.
//
// # Observability
//
// Each attempt is traced as an OpenTelemetry span named tugraph.<operation>
// carrying the node, attempt number and a request id. Metrics are reported
// through types.MetricsCollector; see contrib/metrics/vm and
// contrib/metrics/prom.
package tugraph
