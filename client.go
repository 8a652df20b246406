package tugraph

import "github.com/arloliu/tugraph/types"

// Type aliases for convenience - re-export from types package.
type (
	NodeRole             = types.NodeRole
	NodeDescriptor       = types.NodeDescriptor
	ClusterInfo          = types.ClusterInfo
	ClientMode           = types.ClientMode
	QueryLanguage        = types.QueryLanguage
	ProcedureType        = types.ProcedureType
	CodeType             = types.CodeType
	BuiltInProcedure     = types.BuiltInProcedure
	UserDefinedProcedure = types.UserDefinedProcedure
	Credentials          = types.Credentials
	ProcedureCall        = types.ProcedureCall
	ProcedureSource      = types.ProcedureSource
	Logger               = types.Logger
	MetricsCollector     = types.MetricsCollector
)

// Re-export role constants for convenience.
const (
	RoleLeader   = types.RoleLeader
	RoleFollower = types.RoleFollower
	RoleWitness  = types.RoleWitness
)

// Re-export client mode constants for convenience.
const (
	ModeSingle          = types.ModeSingle
	ModeDirectCluster   = types.ModeDirectCluster
	ModeIndirectCluster = types.ModeIndirectCluster
)

// Re-export query language constants for convenience.
const (
	Cypher = types.Cypher
	GQL    = types.GQL
)

// Re-export procedure type constants for convenience.
const (
	ProcedureCPP    = types.ProcedureCPP
	ProcedurePython = types.ProcedurePython
)
