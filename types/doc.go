// Package types provides shared types and error definitions for the tugraph client.
//
// This is a leaf package with zero tugraph imports to prevent import cycles.
// All packages in the module can safely import this package.
//
// # Types
//
// NodeDescriptor describes a cluster member and its replication role:
//
//	type NodeDescriptor struct {
//	    RESTAddress string
//	    RPCAddress  string
//	    Role        NodeRole // LEADER, FOLLOWER or WITNESS
//	}
//
// ClientMode records how a client was constructed (SINGLE, DIRECT_CLUSTER or
// INDIRECT_CLUSTER). BuiltInProcedure and UserDefinedProcedure carry the
// read-only flags that drive statement classification.
//
// # Errors
//
// The error taxonomy separates conditions callers handle differently:
//
//   - NodeError: transport failure talking to one node (retried once after a refresh)
//   - ServerError: the server rejected the request; IsStale() rejections are retried
//   - RefreshError / ErrClusterUnavailable: no node reachable or no leader; never retried
//   - InputError / ErrInvalidInput: malformed client-side input; never retried
//   - ImportError: an import call reported failures in its result
//
// IsRetriable encodes this policy.
package types
