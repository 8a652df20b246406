package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/arloliu/tugraph/protocol"
)

// HandleRequestMethod is the full gRPC method name of the request handler.
const HandleRequestMethod = "/lgraph.LGraphRPCService/HandleRequest"

// Transport carries protocol envelopes to one node over a gRPC connection.
type Transport struct {
	addr string
	conn *grpc.ClientConn
}

var _ protocol.Transport = (*Transport)(nil)

// DialerOption configures a gRPC dialer.
type DialerOption func(*dialerConfig)

type dialerConfig struct {
	creds       credentials.TransportCredentials
	dialOptions []grpc.DialOption
}

// WithTransportCredentials sets the transport security. Default: insecure.
//
// Parameters:
//   - creds: Transport credentials, e.g. credentials.NewTLS(cfg)
//
// Returns:
//   - DialerOption: Configuration option
func WithTransportCredentials(creds credentials.TransportCredentials) DialerOption {
	return func(c *dialerConfig) {
		c.creds = creds
	}
}

// WithDialOptions appends raw gRPC dial options, e.g. keepalive parameters
// or interceptors.
func WithDialOptions(opts ...grpc.DialOption) DialerOption {
	return func(c *dialerConfig) {
		c.dialOptions = append(c.dialOptions, opts...)
	}
}

// NewDialer returns a protocol.Dialer that opens gRPC transports.
//
// Parameters:
//   - opts: Optional configuration options
//
// Returns:
//   - protocol.Dialer: A dialer for tugraph.WithDialer
//
// Example:
//
//	client, _ := tugraph.NewClient(ctx, "10.0.0.1:9090", creds,
//	    tugraph.WithDialer(rpc.NewDialer(
//	        rpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)),
//	    )),
//	)
func NewDialer(opts ...DialerOption) protocol.Dialer {
	config := dialerConfig{creds: insecure.NewCredentials()}
	for _, opt := range opts {
		opt(&config)
	}

	return func(ctx context.Context, addr string) (protocol.Transport, error) {
		return dial(ctx, addr, config)
	}
}

// Dial opens an insecure gRPC transport to addr.
//
// The connection is established lazily; an unreachable node surfaces as an
// error on the first Send.
func Dial(ctx context.Context, addr string) (protocol.Transport, error) {
	return dial(ctx, addr, dialerConfig{creds: insecure.NewCredentials()})
}

func dial(ctx context.Context, addr string, config dialerConfig) (protocol.Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := make([]grpc.DialOption, 0, len(config.dialOptions)+2)
	opts = append(opts,
		grpc.WithTransportCredentials(config.creds),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
	)
	opts = append(opts, config.dialOptions...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("tugraph/rpc: dial %s: %w", addr, err)
	}

	return &Transport{addr: addr, conn: conn}, nil
}

// Send implements protocol.Transport.
func (t *Transport) Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	resp := new(protocol.Response)
	if err := t.conn.Invoke(ctx, HandleRequestMethod, req, resp); err != nil {
		return nil, err
	}

	return resp, nil
}

// Close implements protocol.Transport.
func (t *Transport) Close() error {
	return t.conn.Close()
}

// Addr returns the address this transport dials.
func (t *Transport) Addr() string {
	return t.addr
}
