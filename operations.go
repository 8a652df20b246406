package tugraph

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arloliu/tugraph/session"
	"github.com/arloliu/tugraph/types"
)

// Cypher executes a Cypher statement.
//
// The statement is classified against the procedure catalog: read-only
// statements go to a follower chosen by the ReadStrategy, everything else to
// the leader. A context deadline is forwarded to the server as the query
// timeout.
//
// Parameters:
//   - ctx: Context for the call
//   - graph: Target graph; empty selects the default graph
//   - query: The statement
//
// Returns:
//   - string: The JSON-encoded result
//   - error: NodeError, ServerError, RefreshError or ErrClientClosed
//
// Example:
//
//	result, err := client.Cypher(ctx, "default", "MATCH (n:Person) RETURN n.name LIMIT 10")
func (c *Client) Cypher(ctx context.Context, graph, query string) (string, error) {
	return c.query(ctx, types.Cypher, graph, query, nil)
}

// CypherToLeader executes a Cypher statement on the leader without classification.
func (c *Client) CypherToLeader(ctx context.Context, graph, query string) (string, error) {
	r := writeRoute

	return c.query(ctx, types.Cypher, graph, query, &r)
}

// CypherOnNode executes a Cypher statement on one specific node.
//
// Parameters:
//   - ctx: Context for the call
//   - addr: The node's RPC or REST address
//   - graph: Target graph; empty selects the default graph
//   - query: The statement
//
// Returns:
//   - string: The JSON-encoded result
//   - error: ErrNodeNotFound if addr is not part of the topology, or a call error
func (c *Client) CypherOnNode(ctx context.Context, addr, graph, query string) (string, error) {
	r := nodeRoute(addr)

	return c.query(ctx, types.Cypher, graph, query, &r)
}

// GQL executes a GQL statement, classified like Cypher.
func (c *Client) GQL(ctx context.Context, graph, query string) (string, error) {
	return c.query(ctx, types.GQL, graph, query, nil)
}

// GQLToLeader executes a GQL statement on the leader without classification.
func (c *Client) GQLToLeader(ctx context.Context, graph, query string) (string, error) {
	r := writeRoute

	return c.query(ctx, types.GQL, graph, query, &r)
}

// GQLOnNode executes a GQL statement on one specific node.
func (c *Client) GQLOnNode(ctx context.Context, addr, graph, query string) (string, error) {
	r := nodeRoute(addr)

	return c.query(ctx, types.GQL, graph, query, &r)
}

// query runs a statement. A nil route means classify.
func (c *Client) query(ctx context.Context, lang types.QueryLanguage, graph, text string, r *route) (string, error) {
	graph = c.graph(graph)

	var target route
	if r != nil {
		target = *r
	} else {
		target = routeFor(c.classifier.IsReadOnly(lang, text, graph))
	}

	q := session.Query{
		Language: lang,
		Text:     text,
		Graph:    graph,
		Timeout:  serverTimeout(ctx),
		Write:    target.kind == types.KindWrite,
	}

	return c.dispatch(ctx, strings.ToLower(lang.String()), target, func(ctx context.Context, sess *session.Session) (string, error) {
		return sess.Query(ctx, q)
	})
}

// CallProcedure invokes a stored procedure.
//
// The call is routed by the catalog's read-only flag for (call.Graph,
// call.Name); unknown procedures are treated as writes.
//
// Parameters:
//   - ctx: Context for the call
//   - call: The invocation; an empty Graph selects the default graph
//
// Returns:
//   - string: The procedure's result
//   - error: NodeError, ServerError, RefreshError or ErrClientClosed
func (c *Client) CallProcedure(ctx context.Context, call types.ProcedureCall) (string, error) {
	call.Graph = c.graph(call.Graph)

	return c.callProcedure(ctx, call, routeFor(c.classifier.IsProcedureReadOnly(call.Name, call.Graph)))
}

// CallProcedureToLeader invokes a stored procedure on the leader.
func (c *Client) CallProcedureToLeader(ctx context.Context, call types.ProcedureCall) (string, error) {
	call.Graph = c.graph(call.Graph)

	return c.callProcedure(ctx, call, writeRoute)
}

// CallProcedureOnNode invokes a stored procedure on one specific node.
func (c *Client) CallProcedureOnNode(ctx context.Context, addr string, call types.ProcedureCall) (string, error) {
	call.Graph = c.graph(call.Graph)

	return c.callProcedure(ctx, call, nodeRoute(addr))
}

func (c *Client) callProcedure(ctx context.Context, call types.ProcedureCall, r route) (string, error) {
	write := r.kind == types.KindWrite
	if r.kind == types.KindNode {
		write = !c.classifier.IsProcedureReadOnly(call.Name, call.Graph)
	}

	return c.dispatch(ctx, "call_procedure", r, func(ctx context.Context, sess *session.Session) (string, error) {
		return sess.CallProcedure(ctx, call, write)
	})
}

// LoadProcedure uploads a stored procedure to the leader and refreshes the
// procedure catalog.
//
// Parameters:
//   - ctx: Context for the call
//   - src: Procedure code and metadata; an empty Graph selects the default graph
//
// Returns:
//   - error: NodeError, ServerError, RefreshError or ErrClientClosed
func (c *Client) LoadProcedure(ctx context.Context, src types.ProcedureSource) error {
	src.Graph = c.graph(src.Graph)

	_, err := c.dispatch(ctx, "load_procedure", writeRoute, func(ctx context.Context, sess *session.Session) (string, error) {
		return "", sess.LoadProcedure(ctx, src)
	})
	if err != nil {
		return err
	}

	c.catalogChanged(ctx)

	return nil
}

// LoadProcedureFromFile reads procedure code from path and loads it.
//
// When src.CodeType is empty it is derived from the file extension
// (.so, .py, .cpp or .zip). When src.Name is empty the file's base name
// without extension is used.
//
// Parameters:
//   - ctx: Context for the call
//   - path: Path to the procedure code
//   - src: Procedure metadata; Code is ignored
//
// Returns:
//   - error: InputError if the file cannot be read or its type is unknown, or a call error
func (c *Client) LoadProcedureFromFile(ctx context.Context, path string, src types.ProcedureSource) error {
	code, err := os.ReadFile(path)
	if err != nil {
		return &types.InputError{Reason: "cannot read procedure file " + path, Cause: err}
	}

	ext := strings.ToLower(filepath.Ext(path))
	if src.CodeType == "" {
		codeType, ok := codeTypeForExt(ext)
		if !ok {
			return types.NewInputError("cannot derive code type from " + path)
		}
		src.CodeType = codeType
	}
	if src.Name == "" {
		src.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	src.Code = code

	return c.LoadProcedure(ctx, src)
}

func codeTypeForExt(ext string) (types.CodeType, bool) {
	switch ext {
	case ".so":
		return types.CodeSO, true
	case ".py":
		return types.CodePY, true
	case ".cpp", ".cc":
		return types.CodeCPP, true
	case ".zip":
		return types.CodeZIP, true
	default:
		return "", false
	}
}

// DeleteProcedure removes a stored procedure on the leader and refreshes the
// procedure catalog.
func (c *Client) DeleteProcedure(ctx context.Context, procType types.ProcedureType, name, graph string) error {
	graph = c.graph(graph)

	_, err := c.dispatch(ctx, "delete_procedure", writeRoute, func(ctx context.Context, sess *session.Session) (string, error) {
		return "", sess.DeleteProcedure(ctx, procType, name, graph)
	})
	if err != nil {
		return err
	}

	c.catalogChanged(ctx)

	return nil
}

// ListProcedures lists the stored procedures of one type on the read path.
//
// Parameters:
//   - ctx: Context for the call
//   - procType: Procedure type to list
//   - version: Version filter, empty for any
//   - graph: Target graph; empty selects the default graph
//
// Returns:
//   - string: The server's JSON listing
//   - error: NodeError, ServerError, RefreshError or ErrClientClosed
func (c *Client) ListProcedures(ctx context.Context, procType types.ProcedureType, version, graph string) (string, error) {
	return c.listProcedures(ctx, readRoute, procType, version, graph)
}

// ListProceduresOnNode lists the stored procedures of one type on one specific node.
func (c *Client) ListProceduresOnNode(ctx context.Context, addr string, procType types.ProcedureType, version, graph string) (string, error) {
	return c.listProcedures(ctx, nodeRoute(addr), procType, version, graph)
}

func (c *Client) listProcedures(ctx context.Context, r route, procType types.ProcedureType, version, graph string) (string, error) {
	graph = c.graph(graph)

	return c.dispatch(ctx, "list_procedures", r, func(ctx context.Context, sess *session.Session) (string, error) {
		return sess.ListProcedures(ctx, procType, version, graph)
	})
}

// catalogChanged reloads the procedure catalog after a load or delete.
func (c *Client) catalogChanged(ctx context.Context) {
	if c.mode == types.ModeSingle {
		c.refreshCatalog(ctx, nil)
		return
	}

	snap := c.snapshots.acquire()
	if snap == nil {
		return
	}
	defer snap.release()

	c.refreshCatalog(ctx, snap)
}

func (c *Client) graph(graph string) string {
	if graph == "" {
		return c.config.DefaultGraph
	}

	return graph
}

// serverTimeout forwards the caller's remaining time budget to the server.
func serverTimeout(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}

	return max(time.Until(deadline), time.Millisecond)
}
