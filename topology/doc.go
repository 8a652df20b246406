// Package topology provides operator-driven drain control for tugraph clients.
//
// Cluster membership and roles are discovered from the database itself. What
// the database cannot know is that an operator is about to patch a follower.
// This package lets operations teams take individual nodes out of read
// rotation ahead of maintenance, without redeploying applications.
//
// # Overview
//
// The package provides implementations of the [tugraph.TopologyWatcher]
// and [tugraph.TopologyOperator] interfaces:
//   - [tugraph.TopologyWatcher]: Emits a [tugraph.TopologyUpdate] whenever a
//     node enters or leaves drain mode.
//   - [tugraph.TopologyOperator]: Sets drain states programmatically.
//
// Drain affects reads only. A drained follower receives no classified
// reads; writes still go to the leader even if the leader is drained, and
// node-targeted calls ignore drain entirely.
//
// # NATS Topology
//
// [NATS] watches a NATS KV bucket for drain configuration:
//
//	nc, _ := nats.Connect("nats://localhost:4222")
//	js, _ := jetstream.New(nc)
//	kv, _ := js.KeyValue(ctx, "tugraph-config")
//
//	watcher, _ := topology.NewNATS(kv,
//	    topology.WithKey("graph.drain"),
//	)
//
//	client, _ := tugraph.NewClient(ctx, "10.0.0.1:9090", creds,
//	    tugraph.WithTopologyWatcher(watcher),
//	)
//
// # Drain Configuration Format
//
// The NATS KV value is a JSON object listing node addresses (RPC or REST):
//
//	{
//	    "drain": ["10.0.0.2:9090", "10.0.0.3:9090"],
//	    "reason": "OS Patching"
//	}
//
// # Lifecycle
//
// Drain mode requires explicit operator actions:
//   - Start maintenance: PUT the drain configuration to NATS KV
//   - End maintenance: DELETE the key (or PUT with an empty drain list)
//
// There is no automatic expiry.
//
// # Local Topology
//
// [Local] is an in-memory implementation of both interfaces:
//
//	local := topology.NewLocal()
//	_ = local.SetDrain(ctx, "10.0.0.2:9090", true, "maintenance")
//
//	// Later...
//	_ = local.SetDrain(ctx, "10.0.0.2:9090", false, "")
package topology
