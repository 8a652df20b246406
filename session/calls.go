package session

import (
	"context"
	"time"

	"github.com/arloliu/tugraph/protocol"
	"github.com/arloliu/tugraph/types"
)

// Query is one statement to execute.
type Query struct {
	Language types.QueryLanguage
	Text     string
	Graph    string

	// Timeout bounds execution on the server. Zero means the server default.
	Timeout time.Duration

	// Write marks the request as mutating.
	Write bool
}

// Query executes a statement and returns its JSON-encoded result array.
//
// Parameters:
//   - ctx: Context for the call
//   - q: The statement
//
// Returns:
//   - string: JSON result
//   - error: NodeError or ServerError
func (s *Session) Query(ctx context.Context, q Query) (string, error) {
	resp, err := s.send(ctx, &protocol.Request{
		IsWriteOp: q.Write,
		GraphQuery: &protocol.GraphQueryRequest{
			Language:     q.Language.String(),
			Query:        q.Text,
			Graph:        q.Graph,
			Timeout:      q.Timeout.Seconds(),
			ResultInJSON: true,
		},
	})
	if err != nil {
		return "", err
	}
	if resp.GraphQuery == nil {
		return "", nil
	}

	return resp.GraphQuery.JSONResult, nil
}

// CallProcedure invokes a stored procedure.
//
// Parameters:
//   - ctx: Context for the call
//   - call: The invocation
//   - write: Whether the call mutates data
//
// Returns:
//   - string: The JSON result when call.JSONFormat is set, otherwise the raw reply
//   - error: NodeError or ServerError
func (s *Session) CallProcedure(ctx context.Context, call types.ProcedureCall, write bool) (string, error) {
	resp, err := s.send(ctx, &protocol.Request{
		IsWriteOp: write,
		Plugin: &protocol.PluginRequest{
			Type:  call.Type,
			Graph: call.Graph,
			Call: &protocol.CallPluginRequest{
				Name:         call.Name,
				Param:        call.Param,
				Timeout:      call.Timeout.Seconds(),
				InProcess:    call.InProcess,
				ResultInJSON: call.JSONFormat,
			},
		},
	})
	if err != nil {
		return "", err
	}
	if resp.Plugin == nil {
		return "", nil
	}
	if call.JSONFormat {
		return resp.Plugin.JSONResult, nil
	}

	return string(resp.Plugin.Reply), nil
}

// LoadProcedure uploads procedure code. It is always a write.
//
// Parameters:
//   - ctx: Context for the call
//   - src: Procedure code and metadata
//
// Returns:
//   - error: NodeError or ServerError
func (s *Session) LoadProcedure(ctx context.Context, src types.ProcedureSource) error {
	_, err := s.send(ctx, &protocol.Request{
		IsWriteOp: true,
		Plugin: &protocol.PluginRequest{
			Type:    src.Type,
			Graph:   src.Graph,
			Version: src.Version,
			Load: &protocol.LoadPluginRequest{
				Name:        src.Name,
				Description: src.Description,
				ReadOnly:    src.ReadOnly,
				Code:        src.Code,
				CodeType:    src.CodeType,
			},
		},
	})

	return err
}

// ListProcedures lists the procedures of one type loaded into graph.
//
// Parameters:
//   - ctx: Context for the call
//   - procType: Procedure type to list
//   - version: Procedure version filter, empty for any
//   - graph: Target graph
//
// Returns:
//   - string: The server's JSON listing
//   - error: NodeError or ServerError
func (s *Session) ListProcedures(ctx context.Context, procType types.ProcedureType, version, graph string) (string, error) {
	resp, err := s.send(ctx, &protocol.Request{
		Plugin: &protocol.PluginRequest{
			Type:    procType,
			Graph:   graph,
			Version: version,
			List:    &protocol.ListPluginRequest{},
		},
	})
	if err != nil {
		return "", err
	}
	if resp.Plugin == nil {
		return "", nil
	}

	return string(resp.Plugin.Reply), nil
}

// DeleteProcedure removes a procedure. It is always a write.
//
// Parameters:
//   - ctx: Context for the call
//   - procType: Procedure type
//   - name: Procedure name
//   - graph: Target graph
//
// Returns:
//   - error: NodeError or ServerError
func (s *Session) DeleteProcedure(ctx context.Context, procType types.ProcedureType, name, graph string) error {
	_, err := s.send(ctx, &protocol.Request{
		IsWriteOp: true,
		Plugin: &protocol.PluginRequest{
			Type:   procType,
			Graph:  graph,
			Delete: &protocol.DeletePluginRequest{Name: name},
		},
	})

	return err
}
