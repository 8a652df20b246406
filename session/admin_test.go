package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/tugraph/test/testutil"
	"github.com/arloliu/tugraph/types"
)

func TestParseClusterInfo(t *testing.T) {
	result := `[{"cluster_info":[
		{"rest_address":"10.0.0.1:7070","rpc_address":"10.0.0.1:9090","state":"MASTER"},
		{"rest_address":"10.0.0.2:7070","rpc_address":"10.0.0.2:9090","state":"FOLLOW"},
		{"rest_address":"10.0.0.3:7070","rpc_address":"10.0.0.3:9090","state":"WITNESS"},
		{"rest_address":"10.0.0.4:7070","rpc_address":"10.0.0.4:9090","state":"LEARNER"}
	],"is_master":true}]`

	info, err := ParseClusterInfo(result)
	require.NoError(t, err)

	assert.True(t, info.IsMaster)
	require.Len(t, info.Nodes, 3)
	assert.Equal(t, types.RoleLeader, info.Nodes[0].Role)
	assert.Equal(t, "10.0.0.1:7070", info.Nodes[0].RESTAddress)
	assert.Equal(t, types.RoleFollower, info.Nodes[1].Role)
	assert.Equal(t, types.RoleWitness, info.Nodes[2].Role)
}

func TestParseClusterInfoMalformed(t *testing.T) {
	_, err := ParseClusterInfo(`not json`)
	require.Error(t, err)

	_, err = ParseClusterInfo(`[]`)
	require.Error(t, err)
}

func TestParseBuiltInProcedures(t *testing.T) {
	procs, err := ParseBuiltInProcedures(`[
		{"name":"db.vertexLabels","signature":"db.vertexLabels()","read_only":true},
		{"name":"db.createVertexLabel","signature":"db.createVertexLabel(...)","read_only":false}
	]`)
	require.NoError(t, err)
	require.Len(t, procs, 2)
	assert.True(t, procs[0].ReadOnly)
	assert.False(t, procs[1].ReadOnly)
}

func TestParseUserDefinedProcedures(t *testing.T) {
	procs, err := ParseUserDefinedProcedures(`[
		{"graph":"default","plugins":{"name":"khop","version":"v1","description":"k hops","read_only":true}},
		{"graph":"social","plugins":{"name":"import","version":"v2","description":"","read_only":false}}
	]`)
	require.NoError(t, err)
	require.Len(t, procs, 2)
	assert.Equal(t, types.UserDefinedProcedure{
		Graph: "default", Name: "khop", Version: "v1", Description: "k hops", ReadOnly: true,
	}, procs[0])
	assert.Equal(t, "social", procs[1].Graph)
}

func TestSessionClusterInfo(t *testing.T) {
	cluster := testutil.NewFakeCluster().
		AddNode("n1:9090", types.RoleLeader).
		AddNode("n2:9090", types.RoleFollower).
		AddNode("n3:9090", types.RoleWitness)

	s, err := Open(t.Context(), cluster.Dialer(), "n2:9090", testutil.Credentials())
	require.NoError(t, err)

	info, err := s.ClusterInfo(t.Context())
	require.NoError(t, err)
	assert.False(t, info.IsMaster)
	require.Len(t, info.Nodes, 3)

	leader, ok := info.Leader()
	require.True(t, ok)
	assert.Equal(t, "n1:9090", leader.RPCAddress)
}

func TestSessionClusterInfoStandalone(t *testing.T) {
	cluster := testutil.NewFakeCluster().AddNode("n1:9090", types.RoleLeader)
	cluster.SetStandalone(true)

	s, err := Open(t.Context(), cluster.Dialer(), "n1:9090", testutil.Credentials())
	require.NoError(t, err)

	_, err = s.ClusterInfo(t.Context())
	var serverErr *types.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, types.CodeException, serverErr.Code)
}

func TestSessionCatalogCalls(t *testing.T) {
	cluster := testutil.NewFakeCluster().AddNode("n1:9090", types.RoleLeader)
	cluster.SetBuiltInProcedures(types.BuiltInProcedure{Name: "db.vertexLabels", ReadOnly: true})
	cluster.SetUserProcedures(types.UserDefinedProcedure{Graph: "default", Name: "khop", ReadOnly: true})

	s, err := Open(t.Context(), cluster.Dialer(), "n1:9090", testutil.Credentials())
	require.NoError(t, err)

	builtIns, err := s.BuiltInProcedures(t.Context())
	require.NoError(t, err)
	require.Len(t, builtIns, 1)
	assert.Equal(t, "db.vertexLabels", builtIns[0].Name)

	user, err := s.UserDefinedProcedures(t.Context())
	require.NoError(t, err)
	require.Len(t, user, 1)
	assert.Equal(t, "khop", user[0].Name)

	// Admin calls are not counted as user queries.
	assert.Equal(t, 0, cluster.QueryCount("n1:9090"))
}
