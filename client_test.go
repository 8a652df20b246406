package tugraph_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/tugraph"
	"github.com/arloliu/tugraph/policy"
	"github.com/arloliu/tugraph/protocol"
	"github.com/arloliu/tugraph/test/testutil"
	"github.com/arloliu/tugraph/types"
)

const (
	leaderAddr    = "n1:9090"
	follower1Addr = "n2:9090"
	follower2Addr = "n3:9090"
)

func newTestCluster() *testutil.FakeCluster {
	return testutil.NewFakeCluster().
		AddNode(leaderAddr, types.RoleLeader).
		AddNode(follower1Addr, types.RoleFollower).
		AddNode(follower2Addr, types.RoleFollower)
}

func connect(t *testing.T, cluster *testutil.FakeCluster, opts ...tugraph.Option) *tugraph.Client {
	t.Helper()

	opts = append([]tugraph.Option{tugraph.WithDialer(cluster.Dialer())}, opts...)
	client, err := tugraph.NewClient(t.Context(), leaderAddr, testutil.Credentials(), opts...)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return client
}

func TestNewClientDirectMode(t *testing.T) {
	cluster := newTestCluster()
	client := connect(t, cluster)

	assert.Equal(t, types.ModeDirectCluster, client.Mode())

	nodes := client.Topology()
	require.Len(t, nodes, 3)
	assert.Equal(t, leaderAddr, nodes[0].RPCAddress)
	assert.Equal(t, "rest-"+leaderAddr, nodes[0].RESTAddress)

	leader, ok := client.Leader()
	require.True(t, ok)
	assert.Equal(t, leaderAddr, leader.RPCAddress)

	for _, addr := range []string{leaderAddr, follower1Addr, follower2Addr} {
		assert.GreaterOrEqual(t, cluster.ActiveSessions(addr), 1, addr)
	}
}

func TestNewClientSingleMode(t *testing.T) {
	cluster := testutil.NewFakeCluster().AddNode(leaderAddr, types.RoleLeader)
	cluster.SetStandalone(true)

	client := connect(t, cluster)
	assert.Equal(t, types.ModeSingle, client.Mode())

	nodes := client.Topology()
	require.Len(t, nodes, 1)
	assert.Equal(t, leaderAddr, nodes[0].RPCAddress)
	assert.Equal(t, types.RoleLeader, nodes[0].Role)

	_, err := client.Cypher(t.Context(), "", "MATCH (n) RETURN n")
	require.NoError(t, err)
	_, err = client.Cypher(t.Context(), "", "CREATE (n:Person {id: 1})")
	require.NoError(t, err)

	assert.Equal(t, 2, cluster.QueryCount(leaderAddr))
	assert.Equal(t, 1, cluster.Logins(leaderAddr))
}

func TestSingleModeNodeTargets(t *testing.T) {
	cluster := testutil.NewFakeCluster().AddNode(leaderAddr, types.RoleLeader)
	cluster.SetStandalone(true)
	client := connect(t, cluster)
	require.Equal(t, types.ModeSingle, client.Mode())

	_, err := client.CypherOnNode(t.Context(), "nowhere:1", "", "MATCH (n) RETURN n")
	require.ErrorIs(t, err, types.ErrNodeNotFound)
	_, err = client.GQLOnNode(t.Context(), "nowhere:1", "", "MATCH (n) RETURN n")
	require.ErrorIs(t, err, types.ErrNodeNotFound)
	_, err = client.CallProcedureOnNode(t.Context(), "nowhere:1", types.ProcedureCall{Type: types.ProcedureCPP, Name: "echo"})
	require.ErrorIs(t, err, types.ErrNodeNotFound)
	_, err = client.ListProceduresOnNode(t.Context(), "nowhere:1", types.ProcedureCPP, "", "")
	require.ErrorIs(t, err, types.ErrNodeNotFound)
	assert.Equal(t, 0, cluster.QueryCount(leaderAddr))

	_, err = client.CypherOnNode(t.Context(), leaderAddr, "", "MATCH (n) RETURN n")
	require.NoError(t, err)
	assert.Equal(t, 1, cluster.QueryCount(leaderAddr))
}

func TestNewClientUnreachableIsNotSingle(t *testing.T) {
	cluster := newTestCluster()
	cluster.SetDown(leaderAddr, true)

	_, err := tugraph.NewClient(t.Context(), leaderAddr, testutil.Credentials(),
		tugraph.WithDialer(cluster.Dialer()),
	)

	var nodeErr *types.NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, leaderAddr, nodeErr.Node)
}

func TestNewClientStaleProbeFails(t *testing.T) {
	cluster := newTestCluster()
	dial := cluster.Dialer()

	_, err := tugraph.NewClient(t.Context(), leaderAddr, testutil.Credentials(),
		tugraph.WithDialer(func(ctx context.Context, addr string) (protocol.Transport, error) {
			tr, err := dial(ctx, addr)
			if err != nil {
				return nil, err
			}

			return &failProbeTransport{Transport: tr}, nil
		}),
	)

	var serverErr *types.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.True(t, serverErr.IsStale())
	assert.Equal(t, 0, cluster.ActiveSessions(leaderAddr))
}

// failProbeTransport answers the membership probe with REDIRECT.
type failProbeTransport struct {
	protocol.Transport
}

func (f *failProbeTransport) Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if req.GraphQuery != nil && strings.Contains(req.GraphQuery.Query, "clusterInfo") {
		return &protocol.Response{ErrorCode: types.CodeRedirect, Error: "not ready"}, nil
	}

	return f.Transport.Send(ctx, req)
}

func TestNewClientBadCredentials(t *testing.T) {
	cluster := newTestCluster()

	_, err := tugraph.NewClient(t.Context(), leaderAddr, types.Credentials{User: "admin", Password: "wrong"},
		tugraph.WithDialer(cluster.Dialer()),
	)

	var serverErr *types.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, types.CodeAuthError, serverErr.Code)
}

func TestNewClientNilDialer(t *testing.T) {
	_, err := tugraph.NewClient(t.Context(), leaderAddr, testutil.Credentials(), tugraph.WithDialer(nil))
	require.ErrorIs(t, err, types.ErrNilDialer)
}

func TestNewClusterClientIndirect(t *testing.T) {
	cluster := testutil.NewFakeCluster().
		AddNode("10.0.0.1:9090", types.RoleLeader).
		AddNode("10.0.0.2:9090", types.RoleFollower).
		AddNode("10.0.0.3:9090", types.RoleFollower)
	cluster.Alias("gw:7001", "10.0.0.1:9090")
	cluster.Alias("gw:7002", "10.0.0.2:9090")
	cluster.Alias("gw:7003", "10.0.0.3:9090")

	client, err := tugraph.NewClusterClient(t.Context(),
		[]string{"gw:7001", "gw:7002", "gw:7003"},
		testutil.Credentials(),
		tugraph.WithDialer(cluster.Dialer()),
	)
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, types.ModeIndirectCluster, client.Mode())

	leader, ok := client.Leader()
	require.True(t, ok)
	assert.Equal(t, "gw:7001", leader.RPCAddress)

	_, err = client.Cypher(t.Context(), "", "CREATE (n:Person {id: 1})")
	require.NoError(t, err)
	assert.Equal(t, 1, cluster.QueryCount("10.0.0.1:9090"))

	_, err = client.Cypher(t.Context(), "", "MATCH (n) RETURN n")
	require.NoError(t, err)
	assert.Equal(t, 1, cluster.QueryCount("10.0.0.2:9090")+cluster.QueryCount("10.0.0.3:9090"))
}

func TestNewClusterClientSkipsUnreachable(t *testing.T) {
	cluster := newTestCluster()
	cluster.SetDown(follower2Addr, true)

	client, err := tugraph.NewClusterClient(t.Context(),
		[]string{leaderAddr, follower1Addr, follower2Addr},
		testutil.Credentials(),
		tugraph.WithDialer(cluster.Dialer()),
	)
	require.NoError(t, err)
	defer client.Close()

	assert.Len(t, client.Topology(), 2)
}

func TestNewClusterClientNoLeader(t *testing.T) {
	cluster := newTestCluster()
	cluster.Demote()

	_, err := tugraph.NewClusterClient(t.Context(),
		[]string{leaderAddr, follower1Addr, follower2Addr},
		testutil.Credentials(),
		tugraph.WithDialer(cluster.Dialer()),
	)
	require.ErrorIs(t, err, types.ErrClusterUnavailable)

	for _, addr := range []string{leaderAddr, follower1Addr, follower2Addr} {
		assert.Equal(t, 0, cluster.ActiveSessions(addr), addr)
	}
}

func TestNewClusterClientEmpty(t *testing.T) {
	_, err := tugraph.NewClusterClient(t.Context(), nil, testutil.Credentials())
	require.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestWritesGoToLeader(t *testing.T) {
	cluster := newTestCluster()
	cluster.SetBuiltInProcedures(types.BuiltInProcedure{Name: "db.vertexLabels", ReadOnly: true})
	client := connect(t, cluster)

	for i := range 5 {
		_, err := client.Cypher(t.Context(), "", fmt.Sprintf("CREATE (n:Person {id: %d})", i))
		require.NoError(t, err)
	}
	_, err := client.GQL(t.Context(), "", "INSERT (:Person {id: 9})")
	require.NoError(t, err)

	// A read-only procedure does not make a write clause readable.
	_, err = client.Cypher(t.Context(), "", "CALL db.vertexLabels() YIELD label MATCH (n) SET n.seen = true")
	require.NoError(t, err)

	assert.Equal(t, 7, cluster.QueryCount(leaderAddr))
	assert.Equal(t, 0, cluster.QueryCount(follower1Addr))
	assert.Equal(t, 0, cluster.QueryCount(follower2Addr))

	for _, req := range cluster.Requests(leaderAddr) {
		if req.GraphQuery != nil && strings.HasPrefix(req.GraphQuery.Query, "CREATE") {
			assert.True(t, req.IsWriteOp)
			assert.Equal(t, tugraph.DefaultGraph, req.GraphQuery.Graph)
		}
	}
}

func TestReadsRotateOverFollowers(t *testing.T) {
	cluster := newTestCluster()
	client := connect(t, cluster)

	for range 10 {
		_, err := client.Cypher(t.Context(), "", "MATCH (n:Person) RETURN n.name")
		require.NoError(t, err)
	}

	assert.Equal(t, 0, cluster.QueryCount(leaderAddr))
	assert.Equal(t, 5, cluster.QueryCount(follower1Addr))
	assert.Equal(t, 5, cluster.QueryCount(follower2Addr))
}

func TestReadsFallBackToLeader(t *testing.T) {
	cluster := testutil.NewFakeCluster().
		AddNode(leaderAddr, types.RoleLeader).
		AddNode("w1:9090", types.RoleWitness)
	client := connect(t, cluster)

	_, err := client.Cypher(t.Context(), "", "MATCH (n) RETURN count(n)")
	require.NoError(t, err)

	assert.Equal(t, 1, cluster.QueryCount(leaderAddr))
	assert.Equal(t, 0, cluster.Logins("w1:9090"))
}

func TestLeaderOnlyReadStrategy(t *testing.T) {
	cluster := newTestCluster()
	client := connect(t, cluster, tugraph.WithReadStrategy(policy.NewLeaderOnlyRead()))

	_, err := client.Cypher(t.Context(), "", "MATCH (n) RETURN n")
	require.NoError(t, err)

	assert.Equal(t, 1, cluster.QueryCount(leaderAddr))
}

func TestToLeaderSkipsClassification(t *testing.T) {
	cluster := newTestCluster()
	client := connect(t, cluster)

	_, err := client.CypherToLeader(t.Context(), "", "MATCH (n) RETURN n")
	require.NoError(t, err)
	_, err = client.GQLToLeader(t.Context(), "", "MATCH (n) RETURN n")
	require.NoError(t, err)

	assert.Equal(t, 2, cluster.QueryCount(leaderAddr))
}

func TestOnNodeTargetsNode(t *testing.T) {
	cluster := newTestCluster()
	client := connect(t, cluster)

	_, err := client.CypherOnNode(t.Context(), follower2Addr, "", "MATCH (n) RETURN n")
	require.NoError(t, err)
	_, err = client.GQLOnNode(t.Context(), "rest-"+follower1Addr, "", "MATCH (n) RETURN n")
	require.NoError(t, err)

	assert.Equal(t, 1, cluster.QueryCount(follower2Addr))
	assert.Equal(t, 1, cluster.QueryCount(follower1Addr))

	_, err = client.CypherOnNode(t.Context(), "n9:9090", "", "MATCH (n) RETURN n")
	require.ErrorIs(t, err, types.ErrNodeNotFound)
}

func TestProcedureCallRouting(t *testing.T) {
	cluster := newTestCluster()
	cluster.SetBuiltInProcedures(
		types.BuiltInProcedure{Name: "db.labels", ReadOnly: true},
		types.BuiltInProcedure{Name: "db.createVertexLabel", ReadOnly: false},
	)
	cluster.SetUserProcedures(
		types.UserDefinedProcedure{Graph: "default", Name: "pagerank", ReadOnly: true},
		types.UserDefinedProcedure{Graph: "default", Name: "db.labels", ReadOnly: false},
	)
	client := connect(t, cluster)

	_, err := client.Cypher(t.Context(), "", "CALL db.createVertexLabel('Person', 'id')")
	require.NoError(t, err)
	assert.Equal(t, 1, cluster.QueryCount(leaderAddr))

	reply, err := client.CallProcedure(t.Context(), types.ProcedureCall{Type: types.ProcedureCPP, Name: "pagerank"})
	require.NoError(t, err)
	assert.NotContains(t, reply, leaderAddr)

	// The user-defined entry shadows the read-only built-in of the same name.
	assert.False(t, client.Catalog().IsProcedureReadOnly("db.labels", "default"))
	_, err = client.Cypher(t.Context(), "", "CALL db.labels()")
	require.NoError(t, err)
	assert.Equal(t, 2, cluster.QueryCount(leaderAddr))
}

func TestClassificationIsIdempotent(t *testing.T) {
	cluster := newTestCluster()
	client := connect(t, cluster, tugraph.WithReadStrategy(policy.NewLeaderOnlyRead()))

	catalog := client.Catalog()
	stmt := "MATCH (n:Person) WHERE n.id = 1 RETURN n"
	first := catalog.IsReadOnly(types.Cypher, stmt, "default")
	for range 5 {
		assert.Equal(t, first, catalog.IsReadOnly(types.Cypher, stmt, "default"))
	}
}

func TestProcedureLifecycle(t *testing.T) {
	cluster := newTestCluster()
	client := connect(t, cluster)

	err := client.LoadProcedure(t.Context(), types.ProcedureSource{
		Type:     types.ProcedureCPP,
		Name:     "khop",
		CodeType: types.CodeSO,
		ReadOnly: true,
		Code:     []byte{0x7f, 'E', 'L', 'F'},
	})
	require.NoError(t, err)
	assert.True(t, client.Catalog().IsProcedureReadOnly("khop", "default"))

	reply, err := client.CallProcedure(t.Context(), types.ProcedureCall{Type: types.ProcedureCPP, Name: "khop", Param: []byte("3")})
	require.NoError(t, err)
	assert.True(t, strings.Contains(reply, follower1Addr) || strings.Contains(reply, follower2Addr), reply)

	reply, err = client.CallProcedureToLeader(t.Context(), types.ProcedureCall{Type: types.ProcedureCPP, Name: "khop"})
	require.NoError(t, err)
	assert.Contains(t, reply, leaderAddr)

	reply, err = client.CallProcedureOnNode(t.Context(), follower2Addr, types.ProcedureCall{Type: types.ProcedureCPP, Name: "khop"})
	require.NoError(t, err)
	assert.Contains(t, reply, follower2Addr)

	list, err := client.ListProcedures(t.Context(), types.ProcedureCPP, "", "")
	require.NoError(t, err)
	assert.Contains(t, list, "khop")

	list, err = client.ListProceduresOnNode(t.Context(), follower1Addr, types.ProcedureCPP, "", "")
	require.NoError(t, err)
	assert.Contains(t, list, "khop")

	require.NoError(t, client.DeleteProcedure(t.Context(), types.ProcedureCPP, "khop", ""))
	assert.False(t, client.Catalog().IsProcedureReadOnly("khop", "default"))
}

func TestCloseRejectsCalls(t *testing.T) {
	cluster := newTestCluster()
	client, err := tugraph.NewClient(t.Context(), leaderAddr, testutil.Credentials(),
		tugraph.WithDialer(cluster.Dialer()),
	)
	require.NoError(t, err)

	client.Close()
	client.Close()

	_, err = client.Cypher(t.Context(), "", "MATCH (n) RETURN n")
	require.ErrorIs(t, err, types.ErrClientClosed)
	require.ErrorIs(t, client.Refresh(t.Context()), types.ErrClientClosed)
	require.ErrorIs(t, client.ImportSchema(t.Context(), "", []byte(`{"schema":[]}`)), types.ErrClientClosed)
	assert.Nil(t, client.Topology())

	for _, addr := range []string{leaderAddr, follower1Addr, follower2Addr} {
		assert.Equal(t, 0, cluster.ActiveSessions(addr), addr)
	}
}

func TestRefreshRetiresSessions(t *testing.T) {
	cluster := newTestCluster()
	client := connect(t, cluster)

	require.NoError(t, client.Refresh(t.Context()))

	assert.Equal(t, 1, cluster.Logouts(follower1Addr))
	assert.Equal(t, 1, cluster.ActiveSessions(follower1Addr))
	assert.Equal(t, 2, cluster.Logins(follower1Addr))
}

func TestDefaultGraphOption(t *testing.T) {
	cluster := newTestCluster()
	client := connect(t, cluster, tugraph.WithDefaultGraph("social"))

	_, err := client.CypherToLeader(t.Context(), "", "MATCH (n) RETURN n")
	require.NoError(t, err)
	_, err = client.CypherToLeader(t.Context(), "finance", "MATCH (n) RETURN n")
	require.NoError(t, err)

	var graphs []string
	for _, req := range cluster.Requests(leaderAddr) {
		if req.GraphQuery != nil && req.GraphQuery.Query == "MATCH (n) RETURN n" {
			graphs = append(graphs, req.GraphQuery.Graph)
		}
	}
	assert.Equal(t, []string{"social", "finance"}, graphs)
}

func TestContextDeadlineForwarded(t *testing.T) {
	cluster := newTestCluster()
	client := connect(t, cluster)

	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Second)
	defer cancel()

	_, err := client.CypherToLeader(ctx, "", "MATCH (n) RETURN n")
	require.NoError(t, err)

	reqs := cluster.Requests(leaderAddr)
	last := reqs[len(reqs)-1]
	require.NotNil(t, last.GraphQuery)
	assert.Greater(t, last.GraphQuery.Timeout, 0.0)
	assert.LessOrEqual(t, last.GraphQuery.Timeout, (30 * time.Second).Seconds())
}

func TestNonRetriableErrorIsReturned(t *testing.T) {
	cluster := newTestCluster()
	metrics := testutil.NewTestMetricsCollector()
	client := connect(t, cluster, tugraph.WithMetrics(metrics))

	cluster.FailNext(leaderAddr, types.CodeBadRequest)
	_, err := client.Cypher(t.Context(), "", "CREATE (n:Person {id: 1})")

	var serverErr *types.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, types.CodeBadRequest, serverErr.Code)
	assert.False(t, errors.Is(err, types.ErrClusterUnavailable))
	assert.Equal(t, int64(0), metrics.GetRetryTotal("cypher"))
	assert.Equal(t, int64(1), metrics.GetRefreshTotal())
}
