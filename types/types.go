// Package types provides shared types and errors for the tugraph client.
//
// This is a "leaf" package with no imports from other tugraph packages,
// allowing it to be imported by any package without causing import cycles.
package types

import (
	"strings"
	"time"
)

// NodeRole is the replication role a cluster node currently holds.
type NodeRole string

const (
	// RoleLeader is the node authorized to accept writes.
	RoleLeader NodeRole = "LEADER"
	// RoleFollower replicates the leader and may serve reads.
	RoleFollower NodeRole = "FOLLOWER"
	// RoleWitness takes part in elections but holds no queryable data.
	RoleWitness NodeRole = "WITNESS"
)

// String returns the string representation of the NodeRole.
func (r NodeRole) String() string {
	return string(r)
}

// ParseNodeRole converts a raft state reported by the cluster-info call into a NodeRole.
//
// Both the server vocabulary ("MASTER", "FOLLOW", "WITNESS") and the client
// vocabulary ("LEADER", "FOLLOWER") are accepted, case-insensitively.
//
// Parameters:
//   - state: The reported state
//
// Returns:
//   - NodeRole: The parsed role
//   - bool: false if the state is unknown
func ParseNodeRole(state string) (NodeRole, bool) {
	switch strings.ToUpper(strings.TrimSpace(state)) {
	case "MASTER", "LEADER":
		return RoleLeader, true
	case "FOLLOW", "FOLLOWER":
		return RoleFollower, true
	case "WITNESS":
		return RoleWitness, true
	default:
		return "", false
	}
}

// NodeDescriptor describes one cluster node as reported by the cluster-info call.
//
// Descriptors are immutable and are replaced wholesale on every topology refresh.
type NodeDescriptor struct {
	// RESTAddress is the node's HTTP endpoint ("host:port").
	RESTAddress string

	// RPCAddress is the node's RPC endpoint ("host:port"); sessions dial this address.
	RPCAddress string

	// Role is the node's replication role at discovery time.
	Role NodeRole
}

// Matches reports whether addr names this node by its RPC or REST address.
func (d NodeDescriptor) Matches(addr string) bool {
	return addr != "" && (addr == d.RPCAddress || addr == d.RESTAddress)
}

// ClusterInfo is the decoded result of the cluster-info admin call.
type ClusterInfo struct {
	// Nodes lists every cluster member known to the responding node.
	Nodes []NodeDescriptor

	// IsMaster reports whether the responding node is the leader.
	IsMaster bool
}

// Leader returns the descriptor whose role is LEADER.
func (c ClusterInfo) Leader() (NodeDescriptor, bool) {
	for _, n := range c.Nodes {
		if n.Role == RoleLeader {
			return n, true
		}
	}

	return NodeDescriptor{}, false
}

// ClientMode describes how a client was constructed. It never changes afterwards.
type ClientMode int

const (
	// ModeSingle talks to one fixed node with no discovery or failover.
	ModeSingle ClientMode = iota
	// ModeDirectCluster discovers the topology through one bootstrap address.
	ModeDirectCluster
	// ModeIndirectCluster discovers the topology by asking every address in an explicit list.
	ModeIndirectCluster
)

// String returns the string representation of the ClientMode.
func (m ClientMode) String() string {
	switch m {
	case ModeSingle:
		return "SINGLE"
	case ModeDirectCluster:
		return "DIRECT_CLUSTER"
	case ModeIndirectCluster:
		return "INDIRECT_CLUSTER"
	default:
		return "UNKNOWN"
	}
}

// QueryLanguage selects the statement language understood by the server.
type QueryLanguage int

const (
	// Cypher is the openCypher dialect.
	Cypher QueryLanguage = iota
	// GQL is the ISO GQL dialect.
	GQL
)

// String returns the string representation of the QueryLanguage.
func (l QueryLanguage) String() string {
	if l == GQL {
		return "GQL"
	}

	return "CYPHER"
}

// ProcedureType is the implementation language of a stored procedure.
type ProcedureType string

const (
	// ProcedureCPP is a native procedure.
	ProcedureCPP ProcedureType = "CPP"
	// ProcedurePython is a Python procedure.
	ProcedurePython ProcedureType = "PYTHON"
)

// CodeType describes the payload format of a procedure being loaded.
type CodeType string

const (
	CodeSO  CodeType = "SO"
	CodePY  CodeType = "PY"
	CodeCPP CodeType = "CPP"
	CodeZIP CodeType = "ZIP"
)

// BuiltInProcedure describes a procedure shipped with the server.
type BuiltInProcedure struct {
	Name      string `json:"name"`
	Signature string `json:"signature"`
	ReadOnly  bool   `json:"read_only"`
}

// UserDefinedProcedure describes a procedure loaded into a specific graph.
type UserDefinedProcedure struct {
	Graph       string
	Name        string
	Version     string
	Description string
	ReadOnly    bool
}

// Credentials authenticate a session.
type Credentials struct {
	User     string
	Password string
}

// ProcedureCall describes one stored-procedure invocation.
type ProcedureCall struct {
	Type  ProcedureType
	Name  string
	Graph string

	// Param is passed to the procedure verbatim.
	Param []byte

	// Timeout bounds the procedure's execution on the server. Zero means no limit.
	Timeout time.Duration

	// InProcess runs the procedure inside the server process.
	InProcess bool

	// JSONFormat asks the server for a JSON-encoded result instead of the raw reply.
	JSONFormat bool
}

// ProcedureSource describes procedure code being loaded.
type ProcedureSource struct {
	Type        ProcedureType
	Name        string
	Graph       string
	CodeType    CodeType
	Description string
	ReadOnly    bool
	Version     string
	Code        []byte
}
