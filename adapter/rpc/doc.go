// Package rpc carries protocol envelopes to TuGraph nodes over gRPC.
//
// Requests are sent to the /lgraph.LGraphRPCService/HandleRequest method
// using a JSON codec registered under the "json" content subtype.
//
// # Usage
//
// The default tugraph client dialer is [Dial], which connects without TLS.
// Use [NewDialer] to configure transport security or extra dial options:
//
//	import (
//	    "github.com/arloliu/tugraph"
//	    "github.com/arloliu/tugraph/adapter/rpc"
//	)
//
//	client, err := tugraph.NewClient(ctx, "10.0.0.1:9090", creds,
//	    tugraph.WithDialer(rpc.NewDialer(
//	        rpc.WithDialOptions(grpc.WithUserAgent("billing-service")),
//	    )),
//	)
//
// [RegisterServer] exposes a [Handler] on a gRPC server, which is useful for
// protocol-level proxies and tests.
package rpc
