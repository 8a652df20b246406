package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arloliu/tugraph/types"
)

// Admin statements understood by every node.
const (
	ClusterInfoStatement       = "CALL dbms.ha.clusterInfo()"
	BuiltInProceduresStatement = "CALL dbms.procedures()"
	UserProceduresStatement    = "CALL db.plugin.listUserPlugins()"

	// AdminGraph is the graph admin statements run against.
	AdminGraph = "default"

	adminTimeout = 10 * time.Second
)

// ClusterInfo asks the node for cluster membership.
//
// A node that is not part of an HA deployment rejects the call with a
// ServerError; a malformed answer yields a plain decoding error.
//
// Parameters:
//   - ctx: Context for the call
//
// Returns:
//   - types.ClusterInfo: Membership and the responder's leader flag
//   - error: NodeError, ServerError or decoding error
func (s *Session) ClusterInfo(ctx context.Context) (types.ClusterInfo, error) {
	res, err := s.adminQuery(ctx, ClusterInfoStatement)
	if err != nil {
		return types.ClusterInfo{}, err
	}

	return ParseClusterInfo(res)
}

// BuiltInProcedures fetches the server's built-in procedure list.
func (s *Session) BuiltInProcedures(ctx context.Context) ([]types.BuiltInProcedure, error) {
	res, err := s.adminQuery(ctx, BuiltInProceduresStatement)
	if err != nil {
		return nil, err
	}

	return ParseBuiltInProcedures(res)
}

// UserDefinedProcedures fetches the procedures loaded into every graph.
func (s *Session) UserDefinedProcedures(ctx context.Context) ([]types.UserDefinedProcedure, error) {
	res, err := s.adminQuery(ctx, UserProceduresStatement)
	if err != nil {
		return nil, err
	}

	return ParseUserDefinedProcedures(res)
}

func (s *Session) adminQuery(ctx context.Context, stmt string) (string, error) {
	return s.Query(ctx, Query{
		Language: types.Cypher,
		Text:     stmt,
		Graph:    AdminGraph,
		Timeout:  adminTimeout,
	})
}

type raftState struct {
	RESTAddress string `json:"rest_address"`
	RPCAddress  string `json:"rpc_address"`
	State       string `json:"state"`
}

type clusterInfoRow struct {
	ClusterInfo []raftState `json:"cluster_info"`
	IsMaster    bool        `json:"is_master"`
}

// ParseClusterInfo decodes the JSON result of the cluster-info call.
//
// Nodes whose state is unknown are dropped.
func ParseClusterInfo(result string) (types.ClusterInfo, error) {
	var rows []clusterInfoRow
	if err := json.Unmarshal([]byte(result), &rows); err != nil {
		return types.ClusterInfo{}, fmt.Errorf("tugraph: malformed cluster info: %w", err)
	}
	if len(rows) == 0 {
		return types.ClusterInfo{}, fmt.Errorf("tugraph: malformed cluster info: empty result")
	}

	info := types.ClusterInfo{IsMaster: rows[0].IsMaster}
	for _, st := range rows[0].ClusterInfo {
		role, ok := types.ParseNodeRole(st.State)
		if !ok {
			continue
		}
		info.Nodes = append(info.Nodes, types.NodeDescriptor{
			RESTAddress: st.RESTAddress,
			RPCAddress:  st.RPCAddress,
			Role:        role,
		})
	}

	return info, nil
}

// ParseBuiltInProcedures decodes the JSON result of the built-in procedure listing.
func ParseBuiltInProcedures(result string) ([]types.BuiltInProcedure, error) {
	var procs []types.BuiltInProcedure
	if err := json.Unmarshal([]byte(result), &procs); err != nil {
		return nil, fmt.Errorf("tugraph: malformed procedure list: %w", err)
	}

	return procs, nil
}

type userPluginRow struct {
	Graph   string `json:"graph"`
	Plugins struct {
		Name        string `json:"name"`
		Version     string `json:"version"`
		Description string `json:"description"`
		ReadOnly    bool   `json:"read_only"`
	} `json:"plugins"`
}

// ParseUserDefinedProcedures decodes the JSON result of the user procedure listing.
func ParseUserDefinedProcedures(result string) ([]types.UserDefinedProcedure, error) {
	var rows []userPluginRow
	if err := json.Unmarshal([]byte(result), &rows); err != nil {
		return nil, fmt.Errorf("tugraph: malformed user procedure list: %w", err)
	}

	procs := make([]types.UserDefinedProcedure, 0, len(rows))
	for _, r := range rows {
		procs = append(procs, types.UserDefinedProcedure{
			Graph:       r.Graph,
			Name:        r.Plugins.Name,
			Version:     r.Plugins.Version,
			Description: r.Plugins.Description,
			ReadOnly:    r.Plugins.ReadOnly,
		})
	}

	return procs, nil
}
