package rpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/arloliu/tugraph/protocol"
)

// Handler answers protocol requests on the server side.
type Handler interface {
	HandleRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req *protocol.Request) (*protocol.Response, error)

// HandleRequest implements Handler.
func (f HandlerFunc) HandleRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	return f(ctx, req)
}

// serviceDesc mirrors the server's request handler service.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: "lgraph.LGraphRPCService",
	HandlerType: (*Handler)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "HandleRequest",
			Handler:    handleRequest,
		},
	},
	Streams: []grpc.StreamDesc{},
}

func handleRequest(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(protocol.Request)
	if err := dec(req); err != nil {
		return nil, err
	}

	h, _ := srv.(Handler)
	if interceptor == nil {
		return h.HandleRequest(ctx, req)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: HandleRequestMethod}

	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		r, _ := req.(*protocol.Request)
		return h.HandleRequest(ctx, r)
	})
}

// RegisterServer registers h as the request handler on s.
//
// It is used by proxies and test servers that speak the same envelope.
//
// Parameters:
//   - s: The gRPC server
//   - h: The request handler
func RegisterServer(s *grpc.Server, h Handler) {
	s.RegisterService(&serviceDesc, h)
}
