// Package testutil provides test doubles and helpers for tugraph testing.
//
// # Fake Cluster
//
// [FakeCluster] simulates a replicated graph database in memory and hands
// out a protocol.Dialer that reaches its nodes:
//
//	cluster := testutil.NewFakeCluster().
//	    AddNode("n1:9090", types.RoleLeader).
//	    AddNode("n2:9090", types.RoleFollower)
//
//	client, _ := tugraph.NewClient(ctx, "n1:9090", testutil.Credentials(),
//	    tugraph.WithDialer(cluster.Dialer()),
//	)
//
//	// Simulate a failover
//	cluster.SetDown("n1:9090", true)
//	cluster.Promote("n2:9090")
//
// The fake records every request per node, tracks logins and logouts, answers
// the cluster-info and procedure-listing admin calls, rejects writes sent to
// non-leaders with REDIRECT, and can inject failures with FailNext.
//
// # Metrics
//
// [TestMetricsCollector] records every types.MetricsCollector call for assertions.
//
// # NATS
//
//   - StartEmbeddedNATS: Starts an embedded NATS server with JetStream enabled
//   - CreateKVConfig: Builds a KV bucket configuration
package testutil
