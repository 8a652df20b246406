// Package protocol defines the request/response envelope exchanged with a
// graph database node and the transport abstraction that carries it.
//
// The envelope is encoding-agnostic: adapter/rpc carries it over gRPC with a
// JSON codec, and test/testutil answers it in memory.
package protocol

import (
	"context"

	"github.com/arloliu/tugraph/types"
)

// Transport sends requests to exactly one node.
//
// Implementations MUST be safe for concurrent use from multiple goroutines.
type Transport interface {
	// Send performs one request/response exchange.
	//
	// A non-nil error means the exchange itself failed (connection refused,
	// timeout, broken stream). A server-side rejection is reported through
	// Response.ErrorCode with a nil error.
	Send(ctx context.Context, req *Request) (*Response, error)

	// Close releases the underlying connection.
	Close() error
}

// Dialer opens a Transport to the node at addr ("host:port").
type Dialer func(ctx context.Context, addr string) (Transport, error)

// Request is the envelope of every call.
type Request struct {
	Token         string `json:"token,omitempty"`
	ClientVersion int64  `json:"client_version,omitempty"`
	IsWriteOp     bool   `json:"is_write_op"`

	Auth       *AuthRequest       `json:"auth,omitempty"`
	GraphQuery *GraphQueryRequest `json:"graph_query,omitempty"`
	Plugin     *PluginRequest     `json:"plugin,omitempty"`
}

// Operation names the request kind for logs and errors.
func (r *Request) Operation() string {
	switch {
	case r.Auth != nil && r.Auth.Login != nil:
		return "login"
	case r.Auth != nil && r.Auth.Logout != nil:
		return "logout"
	case r.GraphQuery != nil:
		return "query"
	case r.Plugin != nil && r.Plugin.Load != nil:
		return "load_procedure"
	case r.Plugin != nil && r.Plugin.Call != nil:
		return "call_procedure"
	case r.Plugin != nil && r.Plugin.List != nil:
		return "list_procedures"
	case r.Plugin != nil && r.Plugin.Delete != nil:
		return "delete_procedure"
	default:
		return "unknown"
	}
}

// AuthRequest carries either a login or a logout.
type AuthRequest struct {
	Login  *LoginRequest  `json:"login,omitempty"`
	Logout *LogoutRequest `json:"logout,omitempty"`
}

// LoginRequest exchanges credentials for a token.
type LoginRequest struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

// LogoutRequest invalidates a token.
type LogoutRequest struct {
	Token string `json:"token"`
}

// GraphQueryRequest executes one statement.
type GraphQueryRequest struct {
	// Language is "CYPHER" or "GQL".
	Language     string  `json:"type"`
	Query        string  `json:"query"`
	Graph        string  `json:"graph"`
	Timeout      float64 `json:"timeout"`
	ResultInJSON bool    `json:"result_in_json_format"`
}

// PluginRequest manages or invokes a stored procedure.
type PluginRequest struct {
	Type    types.ProcedureType `json:"type"`
	Graph   string              `json:"graph"`
	Version string              `json:"version,omitempty"`

	Load   *LoadPluginRequest   `json:"load_plugin_request,omitempty"`
	Call   *CallPluginRequest   `json:"call_plugin_request,omitempty"`
	List   *ListPluginRequest   `json:"list_plugin_request,omitempty"`
	Delete *DeletePluginRequest `json:"del_plugin_request,omitempty"`
}

// LoadPluginRequest uploads procedure code.
type LoadPluginRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"desc"`
	ReadOnly    bool           `json:"read_only"`
	Code        []byte         `json:"code"`
	CodeType    types.CodeType `json:"code_type"`
}

// CallPluginRequest invokes a procedure.
type CallPluginRequest struct {
	Name         string  `json:"name"`
	Param        []byte  `json:"param"`
	Timeout      float64 `json:"timeout"`
	InProcess    bool    `json:"in_process"`
	ResultInJSON bool    `json:"result_in_json_format"`
}

// ListPluginRequest lists the procedures of one type.
type ListPluginRequest struct{}

// DeletePluginRequest removes a procedure.
type DeletePluginRequest struct {
	Name string `json:"name"`
}

// Response is the envelope of every answer.
type Response struct {
	ErrorCode     types.ErrorCode `json:"error_code"`
	Error         string          `json:"error,omitempty"`
	ServerVersion int64           `json:"server_version,omitempty"`

	Auth       *AuthResponse       `json:"auth,omitempty"`
	GraphQuery *GraphQueryResponse `json:"graph_query,omitempty"`
	Plugin     *PluginResponse     `json:"plugin,omitempty"`
}

// OK reports whether the server accepted the request.
func (r *Response) OK() bool {
	return r.ErrorCode == "" || r.ErrorCode == types.CodeSuccess
}

// AuthResponse carries the token issued by a login.
type AuthResponse struct {
	Token string `json:"token"`
}

// GraphQueryResponse carries a statement result as a JSON array.
type GraphQueryResponse struct {
	JSONResult string `json:"json_result"`
}

// PluginResponse carries the result of a procedure call or list.
type PluginResponse struct {
	Reply      []byte `json:"reply,omitempty"`
	JSONResult string `json:"json_result,omitempty"`
}
