// Package session implements an authenticated connection to one graph database node.
package session

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/arloliu/tugraph/internal/logging"
	"github.com/arloliu/tugraph/protocol"
	"github.com/arloliu/tugraph/types"
)

// Config holds per-session settings.
type Config struct {
	// RPCTimeout bounds each call whose context carries no deadline.
	// Zero disables the default bound.
	RPCTimeout time.Duration

	// Logger receives debug output about logins and logouts.
	Logger types.Logger
}

// Option configures a Session.
type Option func(*Config)

// WithRPCTimeout sets the per-call timeout applied when the caller's context has no deadline.
//
// Parameters:
//   - d: Timeout duration
//
// Returns:
//   - Option: Configuration option
func WithRPCTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.RPCTimeout = d
	}
}

// WithLogger sets the session logger.
//
// Parameters:
//   - logger: The logger implementation
//
// Returns:
//   - Option: Configuration option
func WithLogger(logger types.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// Session is one authenticated connection to exactly one node.
//
// It owns the token issued at login and tracks the highest server version
// seen in any response, attaching it to every subsequent request so the
// server can reject requests from a client that missed a failover.
//
// Session is safe for concurrent use.
type Session struct {
	addr      string
	transport protocol.Transport
	token     string
	config    Config

	serverVersion atomic.Int64
	closed        atomic.Bool
}

// Open dials addr and performs the login handshake.
//
// Parameters:
//   - ctx: Context for the dial and login
//   - dial: Dialer used to reach the node
//   - addr: The node's RPC address
//   - creds: Login credentials
//   - opts: Optional configuration options
//
// Returns:
//   - *Session: An authenticated session
//   - error: NodeError if the node is unreachable, ServerError if the login is rejected
func Open(ctx context.Context, dial protocol.Dialer, addr string, creds types.Credentials, opts ...Option) (*Session, error) {
	if dial == nil {
		return nil, types.ErrNilDialer
	}

	config := Config{}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Logger == nil {
		config.Logger = logging.NewNopLogger()
	}

	transport, err := dial(ctx, addr)
	if err != nil {
		return nil, &types.NodeError{Node: addr, Operation: "dial", Cause: err}
	}

	s := &Session{
		addr:      addr,
		transport: transport,
		config:    config,
	}

	resp, err := s.send(ctx, &protocol.Request{
		Auth: &protocol.AuthRequest{
			Login: &protocol.LoginRequest{User: creds.User, Password: creds.Password},
		},
	})
	if err != nil {
		_ = transport.Close()
		return nil, err
	}
	if resp.Auth == nil || resp.Auth.Token == "" {
		_ = transport.Close()
		return nil, &types.NodeError{Node: addr, Operation: "login", Cause: errors.New("response carries no token")}
	}

	s.token = resp.Auth.Token
	config.Logger.Debug("session opened", "node", addr, "server_version", s.ServerVersion())

	return s, nil
}

// Addr returns the node address this session is bound to.
func (s *Session) Addr() string {
	return s.addr
}

// ServerVersion returns the highest server version observed so far.
func (s *Session) ServerVersion() int64 {
	return s.serverVersion.Load()
}

// Closed reports whether Logout has been called.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Logout invalidates the token server-side and closes the transport.
//
// Logout is idempotent; only the first call talks to the server. The
// transport is closed even if the server rejects the logout.
//
// Parameters:
//   - ctx: Context for the logout call
//
// Returns:
//   - error: Joined logout and close errors, nil on success or repeat calls
func (s *Session) Logout(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	_, sendErr := s.send(ctx, &protocol.Request{
		Auth: &protocol.AuthRequest{Logout: &protocol.LogoutRequest{Token: s.token}},
	})
	closeErr := s.transport.Close()

	return errors.Join(sendErr, closeErr)
}

// send attaches the token and client version, applies the default timeout
// and maps transport and server failures to the error taxonomy.
func (s *Session) send(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	op := req.Operation()
	if s.closed.Load() && op != "logout" {
		return nil, &types.NodeError{Node: s.addr, Operation: op, Cause: types.ErrSessionClosed}
	}

	req.Token = s.token
	req.ClientVersion = s.serverVersion.Load()

	if _, ok := ctx.Deadline(); !ok && s.config.RPCTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RPCTimeout)
		defer cancel()
	}

	resp, err := s.transport.Send(ctx, req)
	if err != nil {
		return nil, &types.NodeError{Node: s.addr, Operation: op, Cause: err}
	}
	if resp == nil {
		return nil, &types.NodeError{Node: s.addr, Operation: op, Cause: errors.New("empty response")}
	}

	s.observeVersion(resp.ServerVersion)

	if !resp.OK() {
		return nil, &types.ServerError{
			Node:      s.addr,
			Operation: op,
			Code:      resp.ErrorCode,
			Message:   resp.Error,
		}
	}

	return resp, nil
}

// observeVersion raises the tracked server version to v if it is larger.
func (s *Session) observeVersion(v int64) {
	for {
		current := s.serverVersion.Load()
		if v <= current {
			return
		}
		if s.serverVersion.CompareAndSwap(current, v) {
			return
		}
	}
}
