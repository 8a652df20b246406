package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/tugraph/protocol"
	"github.com/arloliu/tugraph/test/testutil"
	"github.com/arloliu/tugraph/types"
)

func newCluster() *testutil.FakeCluster {
	return testutil.NewFakeCluster().
		AddNode("n1:9090", types.RoleLeader).
		AddNode("n2:9090", types.RoleFollower)
}

func TestOpenLogsIn(t *testing.T) {
	cluster := newCluster()

	s, err := Open(t.Context(), cluster.Dialer(), "n1:9090", testutil.Credentials())
	require.NoError(t, err)

	assert.Equal(t, "n1:9090", s.Addr())
	assert.False(t, s.Closed())
	assert.Equal(t, 1, cluster.Logins("n1:9090"))
	assert.Equal(t, 1, cluster.ActiveSessions("n1:9090"))
}

func TestOpenNilDialer(t *testing.T) {
	_, err := Open(t.Context(), nil, "n1:9090", testutil.Credentials())
	require.ErrorIs(t, err, types.ErrNilDialer)
}

func TestOpenUnreachable(t *testing.T) {
	cluster := newCluster()
	cluster.SetDown("n1:9090", true)

	_, err := Open(t.Context(), cluster.Dialer(), "n1:9090", testutil.Credentials())
	require.Error(t, err)

	var nodeErr *types.NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "dial", nodeErr.Operation)
	assert.ErrorIs(t, err, testutil.ErrConnectionRefused)
	assert.True(t, types.IsRetriable(err))
}

func TestOpenBadCredentials(t *testing.T) {
	cluster := newCluster()

	_, err := Open(t.Context(), cluster.Dialer(), "n1:9090", types.Credentials{User: "admin", Password: "wrong"})
	require.Error(t, err)

	var serverErr *types.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, types.CodeAuthError, serverErr.Code)
	assert.Equal(t, "login", serverErr.Operation)
	assert.Equal(t, 0, cluster.ActiveSessions("n1:9090"))
}

func TestLogoutIsIdempotent(t *testing.T) {
	cluster := newCluster()

	s, err := Open(t.Context(), cluster.Dialer(), "n1:9090", testutil.Credentials())
	require.NoError(t, err)

	require.NoError(t, s.Logout(t.Context()))
	require.NoError(t, s.Logout(t.Context()))

	assert.True(t, s.Closed())
	assert.Equal(t, 1, cluster.Logouts("n1:9090"))
	assert.Equal(t, 0, cluster.ActiveSessions("n1:9090"))
}

func TestQueryAfterLogout(t *testing.T) {
	cluster := newCluster()

	s, err := Open(t.Context(), cluster.Dialer(), "n1:9090", testutil.Credentials())
	require.NoError(t, err)
	require.NoError(t, s.Logout(t.Context()))

	_, err = s.Query(t.Context(), Query{Text: "MATCH (n) RETURN n"})
	require.ErrorIs(t, err, types.ErrSessionClosed)
	assert.True(t, types.IsRetriable(err))
}

func TestQueryAttachesTokenAndVersion(t *testing.T) {
	cluster := newCluster()

	s, err := Open(t.Context(), cluster.Dialer(), "n1:9090", testutil.Credentials())
	require.NoError(t, err)

	_, err = s.Query(t.Context(), Query{Text: "CREATE (n:Person {id: 1})", Graph: "default", Write: true})
	require.NoError(t, err)
	afterWrite := s.ServerVersion()
	assert.Greater(t, afterWrite, int64(1))

	_, err = s.Query(t.Context(), Query{Text: "MATCH (n) RETURN n", Graph: "default"})
	require.NoError(t, err)

	reqs := cluster.Requests("n1:9090")
	last := reqs[len(reqs)-1]
	assert.NotEmpty(t, last.Token)
	assert.Equal(t, afterWrite, last.ClientVersion)
	assert.False(t, last.IsWriteOp)
	require.NotNil(t, last.GraphQuery)
	assert.Equal(t, "CYPHER", last.GraphQuery.Language)
	assert.True(t, last.GraphQuery.ResultInJSON)
}

func TestServerVersionIsMonotonic(t *testing.T) {
	s := &Session{}

	s.observeVersion(5)
	s.observeVersion(3)
	assert.Equal(t, int64(5), s.ServerVersion())

	s.observeVersion(9)
	assert.Equal(t, int64(9), s.ServerVersion())
}

func TestQueryServerRejection(t *testing.T) {
	cluster := newCluster()

	s, err := Open(t.Context(), cluster.Dialer(), "n2:9090", testutil.Credentials())
	require.NoError(t, err)

	_, err = s.Query(t.Context(), Query{Text: "CREATE (n)", Write: true})
	require.Error(t, err)

	var serverErr *types.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, types.CodeRedirect, serverErr.Code)
	assert.Equal(t, "n2:9090", serverErr.Node)
	assert.True(t, types.IsRetriable(err))

	cluster.FailNext("n2:9090", types.CodeBadRequest)
	_, err = s.Query(t.Context(), Query{Text: "MATC (n)"})
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, types.CodeBadRequest, serverErr.Code)
	assert.Equal(t, "injected failure", serverErr.Message)
	assert.False(t, types.IsRetriable(err))
}

func TestQueryTransportFailure(t *testing.T) {
	cluster := newCluster()

	s, err := Open(t.Context(), cluster.Dialer(), "n1:9090", testutil.Credentials())
	require.NoError(t, err)

	cluster.SetDown("n1:9090", true)

	_, err = s.Query(t.Context(), Query{Text: "MATCH (n) RETURN n"})
	var nodeErr *types.NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "query", nodeErr.Operation)
}

type slowTransport struct{}

func (slowTransport) Send(ctx context.Context, _ *protocol.Request) (*protocol.Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowTransport) Close() error { return nil }

func TestRPCTimeoutApplied(t *testing.T) {
	s := &Session{addr: "slow:9090", transport: slowTransport{}, config: Config{RPCTimeout: 20 * time.Millisecond}}

	start := time.Now()
	_, err := s.Query(t.Context(), Query{Text: "MATCH (n) RETURN n"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestProcedureLifecycle(t *testing.T) {
	cluster := newCluster()

	s, err := Open(t.Context(), cluster.Dialer(), "n1:9090", testutil.Credentials())
	require.NoError(t, err)

	err = s.LoadProcedure(t.Context(), types.ProcedureSource{
		Type:     types.ProcedureCPP,
		Name:     "khop",
		Graph:    "default",
		CodeType: types.CodeSO,
		ReadOnly: true,
		Code:     []byte{0x7f, 'E', 'L', 'F'},
	})
	require.NoError(t, err)

	listing, err := s.ListProcedures(t.Context(), types.ProcedureCPP, "", "default")
	require.NoError(t, err)
	assert.Contains(t, listing, "khop")

	reply, err := s.CallProcedure(t.Context(), types.ProcedureCall{
		Type:  types.ProcedureCPP,
		Name:  "khop",
		Graph: "default",
		Param: []byte(`{"k":2}`),
	}, false)
	require.NoError(t, err)
	assert.Equal(t, `khop@n1:9090:{"k":2}`, reply)

	jsonReply, err := s.CallProcedure(t.Context(), types.ProcedureCall{
		Type:       types.ProcedureCPP,
		Name:       "khop",
		Graph:      "default",
		JSONFormat: true,
	}, false)
	require.NoError(t, err)
	assert.Equal(t, `["khop@n1:9090:"]`, jsonReply)

	require.NoError(t, s.DeleteProcedure(t.Context(), types.ProcedureCPP, "khop", "default"))

	listing, err = s.ListProcedures(t.Context(), types.ProcedureCPP, "", "default")
	require.NoError(t, err)
	assert.NotContains(t, listing, "khop")
}
