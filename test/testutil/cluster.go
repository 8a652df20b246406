package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/arloliu/tugraph/protocol"
	"github.com/arloliu/tugraph/types"
)

// Default credentials accepted by a FakeCluster.
const (
	DefaultUser     = "admin"
	DefaultPassword = "73@TuGraph"
)

// ErrConnectionRefused is returned by the fake transport for nodes that are down.
var ErrConnectionRefused = errors.New("connection refused")

// QueryHandler answers a graph query on behalf of a FakeCluster.
//
// Returning nil falls through to the default behavior.
type QueryHandler func(node string, q protocol.GraphQueryRequest) *protocol.Response

// FakeNode is one member of a FakeCluster.
type FakeNode struct {
	RPCAddress  string
	RESTAddress string
	Role        types.NodeRole

	down     bool
	tokens   map[string]bool
	requests []protocol.Request
	logins   int
	logouts  int
	failures []types.ErrorCode
}

// FakeCluster simulates a replicated graph database in memory.
//
// Writes are accepted only by the leader; followers answer them with
// REDIRECT, mirroring a real node that lost leadership. Every response
// carries the cluster's logical server version, which advances on each
// accepted write.
//
// FakeCluster is safe for concurrent use.
type FakeCluster struct {
	mu sync.Mutex

	nodes      map[string]*FakeNode
	order      []string
	aliases    map[string]string
	standalone bool
	version    int64
	tokenSeq   int

	builtIns  []types.BuiltInProcedure
	userProcs []types.UserDefinedProcedure

	handler QueryHandler
}

// NewFakeCluster creates an empty fake cluster.
func NewFakeCluster() *FakeCluster {
	return &FakeCluster{
		nodes:   make(map[string]*FakeNode),
		aliases: make(map[string]string),
		version: 1,
	}
}

// AddNode adds a member. The REST address is derived from the RPC address.
//
// Parameters:
//   - rpcAddr: The node's RPC address
//   - role: Initial role
//
// Returns:
//   - *FakeCluster: The cluster, for chaining
func (c *FakeCluster) AddNode(rpcAddr string, role types.NodeRole) *FakeCluster {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nodes[rpcAddr] = &FakeNode{
		RPCAddress:  rpcAddr,
		RESTAddress: "rest-" + rpcAddr,
		Role:        role,
		tokens:      make(map[string]bool),
	}
	c.order = append(c.order, rpcAddr)

	return c
}

// Alias makes external dial to the node registered as internal.
//
// It models clients reaching the cluster through a different network path
// than the addresses nodes advertise.
func (c *FakeCluster) Alias(external, internal string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.aliases[external] = internal
}

// SetStandalone makes the cluster-info call fail as it does on a non-HA server.
func (c *FakeCluster) SetStandalone(standalone bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.standalone = standalone
}

// SetDown marks a node unreachable (or reachable again).
func (c *FakeCluster) SetDown(addr string, down bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.nodes[addr]; ok {
		n.down = down
	}
}

// Promote makes addr the leader and demotes every other non-witness node to follower.
func (c *FakeCluster) Promote(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for a, n := range c.nodes {
		switch {
		case a == addr:
			n.Role = types.RoleLeader
		case n.Role == types.RoleLeader:
			n.Role = types.RoleFollower
		}
	}
}

// Demote turns every leader into a follower, leaving the cluster leaderless.
func (c *FakeCluster) Demote() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, n := range c.nodes {
		if n.Role == types.RoleLeader {
			n.Role = types.RoleFollower
		}
	}
}

// FailNext makes the next len(codes) requests to addr fail with the given codes.
func (c *FakeCluster) FailNext(addr string, codes ...types.ErrorCode) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.nodes[addr]; ok {
		n.failures = append(n.failures, codes...)
	}
}

// SetBuiltInProcedures replaces the built-in procedure list.
func (c *FakeCluster) SetBuiltInProcedures(procs ...types.BuiltInProcedure) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.builtIns = slices.Clone(procs)
}

// SetUserProcedures replaces the user-defined procedure list.
func (c *FakeCluster) SetUserProcedures(procs ...types.UserDefinedProcedure) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.userProcs = slices.Clone(procs)
}

// SetQueryHandler installs a handler consulted before the default query behavior.
func (c *FakeCluster) SetQueryHandler(h QueryHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handler = h
}

// Requests returns a copy of every request addr has received.
func (c *FakeCluster) Requests(addr string) []protocol.Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.nodes[addr]
	if !ok {
		return nil
	}

	return slices.Clone(n.requests)
}

// Queries returns the statements addr has executed, excluding admin statements
// issued by topology and catalog refreshes.
func (c *FakeCluster) Queries(addr string) []string {
	var out []string
	for _, req := range c.Requests(addr) {
		if req.GraphQuery == nil || isAdminStatement(req.GraphQuery.Query) {
			continue
		}
		out = append(out, req.GraphQuery.Query)
	}

	return out
}

// QueryCount returns len(Queries(addr)).
func (c *FakeCluster) QueryCount(addr string) int {
	return len(c.Queries(addr))
}

// Logins returns the number of successful logins on addr.
func (c *FakeCluster) Logins(addr string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.nodes[addr]; ok {
		return n.logins
	}

	return 0
}

// Logouts returns the number of logouts received by addr.
func (c *FakeCluster) Logouts(addr string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.nodes[addr]; ok {
		return n.logouts
	}

	return 0
}

// ActiveSessions returns the number of valid tokens on addr.
func (c *FakeCluster) ActiveSessions(addr string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.nodes[addr]; ok {
		return len(n.tokens)
	}

	return 0
}

// ResetRequests forgets recorded requests on every node.
func (c *FakeCluster) ResetRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, n := range c.nodes {
		n.requests = nil
	}
}

// Dialer returns a protocol.Dialer that reaches this cluster's nodes.
func (c *FakeCluster) Dialer() protocol.Dialer {
	return func(_ context.Context, addr string) (protocol.Transport, error) {
		c.mu.Lock()
		defer c.mu.Unlock()

		target := addr
		if internal, ok := c.aliases[addr]; ok {
			target = internal
		}
		n, ok := c.nodes[target]
		if !ok || n.down {
			return nil, fmt.Errorf("dial %s: %w", addr, ErrConnectionRefused)
		}

		return &fakeTransport{cluster: c, addr: target}, nil
	}
}

type fakeTransport struct {
	cluster *FakeCluster
	addr    string
	mu      sync.Mutex
	closed  bool
}

func (t *fakeTransport) Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return nil, errors.New("transport closed")
	}

	return t.cluster.handle(t.addr, req)
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true

	return nil
}

func (c *FakeCluster) handle(addr string, req *protocol.Request) (*protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.nodes[addr]
	if !ok || n.down {
		return nil, ErrConnectionRefused
	}
	n.requests = append(n.requests, *req)

	if len(n.failures) > 0 {
		code := n.failures[0]
		n.failures = n.failures[1:]

		return c.reject(code, "injected failure"), nil
	}

	if req.Auth != nil {
		return c.handleAuth(n, req.Auth), nil
	}
	if !n.tokens[req.Token] {
		return c.reject(types.CodeAuthError, "invalid token"), nil
	}
	if req.IsWriteOp && n.Role != types.RoleLeader {
		return c.reject(types.CodeRedirect, "not the leader"), nil
	}

	switch {
	case req.GraphQuery != nil:
		return c.handleQuery(n, req), nil
	case req.Plugin != nil:
		return c.handlePlugin(n, req.Plugin), nil
	default:
		return c.reject(types.CodeBadRequest, "empty request"), nil
	}
}

func (c *FakeCluster) handleAuth(n *FakeNode, auth *protocol.AuthRequest) *protocol.Response {
	switch {
	case auth.Login != nil:
		if auth.Login.User != DefaultUser || auth.Login.Password != DefaultPassword {
			return c.reject(types.CodeAuthError, "bad user/password")
		}
		c.tokenSeq++
		token := fmt.Sprintf("token-%d", c.tokenSeq)
		n.tokens[token] = true
		n.logins++

		return c.ok(&protocol.Response{Auth: &protocol.AuthResponse{Token: token}})
	case auth.Logout != nil:
		n.logouts++
		if !n.tokens[auth.Logout.Token] {
			return c.reject(types.CodeAuthError, "invalid token")
		}
		delete(n.tokens, auth.Logout.Token)

		return c.ok(&protocol.Response{})
	default:
		return c.reject(types.CodeBadRequest, "empty auth request")
	}
}

func (c *FakeCluster) handleQuery(n *FakeNode, req *protocol.Request) *protocol.Response {
	q := req.GraphQuery

	if c.handler != nil {
		if resp := c.handler(n.RPCAddress, *q); resp != nil {
			if resp.ErrorCode == "" {
				resp.ErrorCode = types.CodeSuccess
			}
			resp.ServerVersion = c.version

			return resp
		}
	}

	switch strings.TrimSpace(q.Query) {
	case "CALL dbms.ha.clusterInfo()":
		if c.standalone {
			return c.reject(types.CodeException, "Procedure dbms.ha.clusterInfo not found")
		}

		return c.result(c.clusterInfoJSON(n))
	case "CALL dbms.procedures()":
		return c.result(mustJSON(c.builtIns))
	case "CALL db.plugin.listUserPlugins()":
		return c.result(c.userProcsJSON())
	}

	if req.IsWriteOp {
		c.version++
	}

	return c.result("[]")
}

func (c *FakeCluster) handlePlugin(n *FakeNode, p *protocol.PluginRequest) *protocol.Response {
	switch {
	case p.Load != nil:
		c.version++
		c.userProcs = append(c.userProcs, types.UserDefinedProcedure{
			Graph:       p.Graph,
			Name:        p.Load.Name,
			Version:     p.Version,
			Description: p.Load.Description,
			ReadOnly:    p.Load.ReadOnly,
		})

		return c.ok(&protocol.Response{Plugin: &protocol.PluginResponse{}})
	case p.Delete != nil:
		c.version++
		c.userProcs = slices.DeleteFunc(c.userProcs, func(u types.UserDefinedProcedure) bool {
			return u.Graph == p.Graph && u.Name == p.Delete.Name
		})

		return c.ok(&protocol.Response{Plugin: &protocol.PluginResponse{}})
	case p.List != nil:
		names := make([]string, 0, len(c.userProcs))
		for _, u := range c.userProcs {
			if u.Graph == p.Graph {
				names = append(names, u.Name)
			}
		}

		return c.ok(&protocol.Response{Plugin: &protocol.PluginResponse{Reply: []byte(mustJSON(names))}})
	case p.Call != nil:
		reply := fmt.Sprintf("%s@%s:%s", p.Call.Name, n.RPCAddress, p.Call.Param)

		return c.ok(&protocol.Response{Plugin: &protocol.PluginResponse{
			Reply:      []byte(reply),
			JSONResult: mustJSON([]string{reply}),
		}})
	default:
		return c.reject(types.CodeBadRequest, "empty plugin request")
	}
}

func (c *FakeCluster) clusterInfoJSON(responder *FakeNode) string {
	type state struct {
		RESTAddress string `json:"rest_address"`
		RPCAddress  string `json:"rpc_address"`
		State       string `json:"state"`
	}

	states := make([]state, 0, len(c.order))
	for _, addr := range c.order {
		n := c.nodes[addr]
		if n.down {
			continue
		}
		states = append(states, state{
			RESTAddress: n.RESTAddress,
			RPCAddress:  n.RPCAddress,
			State:       raftStateName(n.Role),
		})
	}

	return mustJSON([]map[string]any{{
		"cluster_info": states,
		"is_master":    responder.Role == types.RoleLeader,
	}})
}

func (c *FakeCluster) userProcsJSON() string {
	rows := make([]map[string]any, 0, len(c.userProcs))
	for _, u := range c.userProcs {
		rows = append(rows, map[string]any{
			"graph": u.Graph,
			"plugins": map[string]any{
				"name":        u.Name,
				"version":     u.Version,
				"description": u.Description,
				"read_only":   u.ReadOnly,
			},
		})
	}

	return mustJSON(rows)
}

func (c *FakeCluster) ok(resp *protocol.Response) *protocol.Response {
	resp.ErrorCode = types.CodeSuccess
	resp.ServerVersion = c.version

	return resp
}

func (c *FakeCluster) result(jsonResult string) *protocol.Response {
	return c.ok(&protocol.Response{GraphQuery: &protocol.GraphQueryResponse{JSONResult: jsonResult}})
}

func (c *FakeCluster) reject(code types.ErrorCode, msg string) *protocol.Response {
	return &protocol.Response{ErrorCode: code, Error: msg, ServerVersion: c.version}
}

func raftStateName(role types.NodeRole) string {
	switch role {
	case types.RoleLeader:
		return "MASTER"
	case types.RoleWitness:
		return "WITNESS"
	default:
		return "FOLLOW"
	}
}

func isAdminStatement(stmt string) bool {
	switch strings.TrimSpace(stmt) {
	case "CALL dbms.ha.clusterInfo()", "CALL dbms.procedures()", "CALL db.plugin.listUserPlugins()":
		return true
	}

	return false
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}

	return string(b)
}

// Credentials returns the credentials every FakeCluster accepts.
func Credentials() types.Credentials {
	return types.Credentials{User: DefaultUser, Password: DefaultPassword}
}
