package tugraph_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/arloliu/tugraph"
	"github.com/arloliu/tugraph/test/testutil"
	"github.com/arloliu/tugraph/topology"
	"github.com/arloliu/tugraph/types"
)

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}

	return attribute.Value{}, false
}

func TestSpansPerAttempt(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() {
		_ = provider.Shutdown(t.Context())
	})

	cluster := newTestCluster()
	client := connect(t, cluster, tugraph.WithTracerProvider(provider))

	_, err := client.Cypher(t.Context(), "", "MATCH (n) RETURN n")
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "tugraph.cypher", spans[0].Name())

	kind, ok := spanAttr(spans[0], "tugraph.kind")
	require.True(t, ok)
	assert.Equal(t, string(types.KindRead), kind.AsString())

	role, ok := spanAttr(spans[0], "tugraph.role")
	require.True(t, ok)
	assert.Equal(t, types.RoleFollower.String(), role.AsString())

	id, ok := spanAttr(spans[0], "tugraph.request_id")
	require.True(t, ok)
	assert.NotEmpty(t, id.AsString())

	cluster.Promote(follower1Addr)

	_, err = client.Cypher(t.Context(), "", "CREATE (n:Person {id: 1})")
	require.NoError(t, err)

	spans = recorder.Ended()[1:]
	require.Len(t, spans, 2)

	first, _ := spanAttr(spans[0], "tugraph.attempt")
	second, _ := spanAttr(spans[1], "tugraph.attempt")
	assert.Equal(t, int64(1), first.AsInt64())
	assert.Equal(t, int64(2), second.AsInt64())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, codes.Ok, spans[1].Status().Code)

	node, _ := spanAttr(spans[1], "tugraph.node")
	assert.Equal(t, follower1Addr, node.AsString())
}

func TestRequestMetrics(t *testing.T) {
	cluster := newTestCluster()
	metrics := testutil.NewTestMetricsCollector()
	client := connect(t, cluster, tugraph.WithMetrics(metrics))

	assert.Equal(t, 3, metrics.GetTopologyNodes())
	assert.Equal(t, int64(1), metrics.GetRefreshTotal())

	_, err := client.Cypher(t.Context(), "", "CREATE (n:Person {id: 1})")
	require.NoError(t, err)
	_, err = client.CypherOnNode(t.Context(), follower1Addr, "", "MATCH (n) RETURN n")
	require.NoError(t, err)
	for range 2 {
		_, err = client.Cypher(t.Context(), "", "MATCH (n) RETURN n")
		require.NoError(t, err)
	}

	assert.Equal(t, int64(1), metrics.GetRequestTotal(leaderAddr, types.KindWrite))
	assert.Equal(t, int64(1), metrics.GetRequestTotal(follower1Addr, types.KindNode))
	assert.Equal(t, int64(1), metrics.GetRequestTotal(follower1Addr, types.KindRead))
	assert.Equal(t, int64(1), metrics.GetRequestTotal(follower2Addr, types.KindRead))
	assert.Equal(t, int64(0), metrics.GetRequestErrors(leaderAddr, types.KindWrite))
}

func TestDrainedFollowerGetsNoReads(t *testing.T) {
	cluster := newTestCluster()
	metrics := testutil.NewTestMetricsCollector()
	local := topology.NewLocal()
	t.Cleanup(func() {
		_ = local.Close()
	})
	client := connect(t, cluster,
		tugraph.WithTopologyWatcher(local),
		tugraph.WithMetrics(metrics),
	)

	require.NoError(t, local.SetDrain(t.Context(), follower1Addr, true, "disk replacement"))
	require.Eventually(t, func() bool {
		return client.IsDraining(follower1Addr)
	}, time.Second, 10*time.Millisecond)
	assert.True(t, metrics.IsNodeDraining(follower1Addr))

	for range 4 {
		_, err := client.Cypher(t.Context(), "", "MATCH (n) RETURN n")
		require.NoError(t, err)
	}
	assert.Equal(t, 0, cluster.QueryCount(follower1Addr))
	assert.Equal(t, 4, cluster.QueryCount(follower2Addr))

	// Drain affects reads only.
	_, err := client.CypherOnNode(t.Context(), follower1Addr, "", "MATCH (n) RETURN n")
	require.NoError(t, err)
	assert.Equal(t, 1, cluster.QueryCount(follower1Addr))

	require.NoError(t, local.SetDrain(t.Context(), follower1Addr, false, ""))
	require.Eventually(t, func() bool {
		return !client.IsDraining(follower1Addr)
	}, time.Second, 10*time.Millisecond)

	for range 4 {
		_, err := client.Cypher(t.Context(), "", "MATCH (n) RETURN n")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, cluster.QueryCount(follower1Addr))
}

func TestDrainByRESTAddress(t *testing.T) {
	cluster := newTestCluster()
	local := topology.NewLocal()
	t.Cleanup(func() {
		_ = local.Close()
	})
	client := connect(t, cluster, tugraph.WithTopologyWatcher(local))

	require.NoError(t, local.SetDrain(t.Context(), "rest-"+follower2Addr, true, "reindex"))
	require.Eventually(t, func() bool {
		return client.IsDraining("rest-" + follower2Addr)
	}, time.Second, 10*time.Millisecond)

	for range 3 {
		_, err := client.Cypher(t.Context(), "", "MATCH (n) RETURN n")
		require.NoError(t, err)
	}
	assert.Equal(t, 0, cluster.QueryCount(follower2Addr))
	assert.Equal(t, 3, cluster.QueryCount(follower1Addr))
}

func TestAllFollowersDrainedFallsBackToLeader(t *testing.T) {
	cluster := newTestCluster()
	local := topology.NewLocal()
	t.Cleanup(func() {
		_ = local.Close()
	})
	client := connect(t, cluster, tugraph.WithTopologyWatcher(local))

	require.NoError(t, local.SetDrain(t.Context(), follower1Addr, true, "upgrade"))
	require.NoError(t, local.SetDrain(t.Context(), follower2Addr, true, "upgrade"))
	require.Eventually(t, func() bool {
		return client.IsDraining(follower1Addr) && client.IsDraining(follower2Addr)
	}, time.Second, 10*time.Millisecond)

	_, err := client.Cypher(t.Context(), "", "MATCH (n) RETURN n")
	require.NoError(t, err)
	assert.Equal(t, 1, cluster.QueryCount(leaderAddr))
}
