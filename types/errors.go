package types

import (
	"errors"
	"strconv"
)

// ErrorCode is the status code a server attaches to every response.
type ErrorCode string

// Server status codes.
const (
	CodeSuccess    ErrorCode = "SUCCESS"
	CodeBadRequest ErrorCode = "BAD_REQUEST"
	CodeAuthError  ErrorCode = "AUTH_ERROR"
	CodeKilled     ErrorCode = "KILLED"
	CodeTimeout    ErrorCode = "TIMEOUT"
	CodeException  ErrorCode = "EXCEPTION"

	// CodeRedirect is returned by a node that is no longer the leader.
	CodeRedirect ErrorCode = "REDIRECT"

	// CodeOutdatedClient is returned when the attached client version is
	// behind the version the node expects, typically right after a failover.
	CodeOutdatedClient ErrorCode = "OUTDATED_CLIENT"
)

// Sentinel errors for common failure scenarios.
var (
	// ErrClientClosed indicates an operation was attempted on a closed client.
	ErrClientClosed = errors.New("tugraph: client is closed")

	// ErrSessionClosed indicates an operation was attempted on a logged-out session.
	ErrSessionClosed = errors.New("tugraph: session is closed")

	// ErrClusterUnavailable indicates no node could be reached during a refresh
	// or no leader could be identified. It is never retried.
	ErrClusterUnavailable = errors.New("tugraph: cluster unavailable")

	// ErrNoLeader indicates the current topology has no leader.
	ErrNoLeader = errors.New("tugraph: no leader")

	// ErrNodeNotFound indicates a node-targeted call named an address that is
	// not part of the current topology.
	ErrNodeNotFound = errors.New("tugraph: node not found")

	// ErrInvalidInput is matched by every InputError.
	ErrInvalidInput = errors.New("tugraph: invalid input")

	// ErrNilDialer indicates that a nil dialer was configured.
	ErrNilDialer = errors.New("tugraph: dialer cannot be nil")
)

// NodeError wraps a transport failure talking to a specific node.
type NodeError struct {
	// Node is the address of the node.
	Node string

	// Operation describes what operation failed.
	Operation string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return "tugraph: node " + e.Node + " " + e.Operation + " failed: " + e.Cause.Error()
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *NodeError) Unwrap() error {
	return e.Cause
}

// ServerError is a request the server received and rejected.
//
// The server's code and message are preserved verbatim.
type ServerError struct {
	// Node is the address of the node that answered.
	Node string

	// Operation describes what operation was rejected.
	Operation string

	// Code is the server status code.
	Code ErrorCode

	// Message is the server-provided error text.
	Message string
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	return "tugraph: " + e.Operation + " rejected by " + e.Node + " (" + string(e.Code) + "): " + e.Message
}

// IsStale reports whether the rejection means the client's routing state is out of date.
func (e *ServerError) IsStale() bool {
	return e.Code == CodeRedirect || e.Code == CodeOutdatedClient
}

// RefreshError reports a failed topology refresh.
type RefreshError struct {
	// Reason summarizes why the refresh failed.
	Reason string

	// Cause is the last underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *RefreshError) Error() string {
	msg := "tugraph: cluster unavailable: " + e.Reason
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}

	return msg
}

// Unwrap returns ErrClusterUnavailable and the cause for errors.Is/As compatibility.
func (e *RefreshError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrClusterUnavailable}
	}

	return []error{ErrClusterUnavailable, e.Cause}
}

// InputError reports malformed client-side input.
type InputError struct {
	// Reason describes the problem.
	Reason string

	// Cause is an optional underlying error (e.g. a file read failure).
	Cause error
}

// NewInputError creates an InputError with the given reason.
func NewInputError(reason string) *InputError {
	return &InputError{Reason: reason}
}

// Error implements the error interface.
func (e *InputError) Error() string {
	if e.Cause != nil {
		return "tugraph: invalid input: " + e.Reason + ": " + e.Cause.Error()
	}

	return "tugraph: invalid input: " + e.Reason
}

// Unwrap returns ErrInvalidInput and the cause for errors.Is/As compatibility.
func (e *InputError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrInvalidInput}
	}

	return []error{ErrInvalidInput, e.Cause}
}

// ImportError reports an import call that the server executed but whose
// result listed failures.
type ImportError struct {
	// Package is the zero-based index of the failing package, or -1 for schema imports.
	Package int

	// Result is the raw JSON result returned by the server.
	Result string
}

// Error implements the error interface.
func (e *ImportError) Error() string {
	if e.Package < 0 {
		return "tugraph: schema import failed: " + e.Result
	}

	return "tugraph: import of package " + strconv.Itoa(e.Package) + " failed: " + e.Result
}

// IsRetriable reports whether err is worth a topology refresh and one retry.
//
// Unreachable nodes, stale-client rejections, a missing leader and an unknown
// target node are retriable. Everything else, including cluster-unavailable,
// application and input errors, is surfaced immediately. Callers must check
// their own context separately: a per-call RPC timeout is a node failure, an
// expired caller context is not.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrClusterUnavailable) || errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrClientClosed) {
		return false
	}
	// Refresh never publishes a leaderless snapshot, so ErrNoLeader only comes
	// from a snapshot that went stale.
	if errors.Is(err, ErrNoLeader) || errors.Is(err, ErrNodeNotFound) || errors.Is(err, ErrSessionClosed) {
		return true
	}

	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return serverErr.IsStale()
	}

	var nodeErr *NodeError

	return errors.As(err, &nodeErr)
}
