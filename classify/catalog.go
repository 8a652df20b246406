package classify

import (
	"slices"
	"strings"

	"github.com/arloliu/tugraph/types"
)

// Catalog is an immutable view of the procedure metadata a server reported.
//
// A Catalog is never modified after construction; refreshes build a new one.
type Catalog struct {
	builtIns    []types.BuiltInProcedure
	userDefined []types.UserDefinedProcedure
	builtInRO   map[string]bool
}

// NewCatalog builds a Catalog from the server's procedure listings.
//
// The slices are copied; later changes by the caller are not observed.
//
// Parameters:
//   - builtIns: Built-in procedures
//   - userDefined: User-defined procedures across all graphs
//
// Returns:
//   - *Catalog: The catalog
func NewCatalog(builtIns []types.BuiltInProcedure, userDefined []types.UserDefinedProcedure) *Catalog {
	c := &Catalog{
		builtIns:    slices.Clone(builtIns),
		userDefined: slices.Clone(userDefined),
		builtInRO:   make(map[string]bool, len(builtIns)),
	}
	for _, p := range builtIns {
		c.builtInRO[p.Name] = p.ReadOnly
	}

	return c
}

// BuiltIns returns a copy of the built-in procedure list.
func (c *Catalog) BuiltIns() []types.BuiltInProcedure {
	if c == nil {
		return nil
	}

	return slices.Clone(c.builtIns)
}

// UserDefined returns a copy of the user-defined procedure list.
func (c *Catalog) UserDefined() []types.UserDefinedProcedure {
	if c == nil {
		return nil
	}

	return slices.Clone(c.userDefined)
}

// IsProcedureReadOnly reports whether invoking name against graph is known to be read-only.
//
// A user-defined procedure of graph matches when name equals its name or ends
// with "."+its name (as in "plugin.cpp.khop"), and takes precedence over a
// built-in of the same name. Unknown procedures are reported as writes.
//
// Parameters:
//   - name: Invoked procedure name
//   - graph: Graph the invocation runs against
//
// Returns:
//   - bool: true only for a known read-only procedure
func (c *Catalog) IsProcedureReadOnly(name, graph string) bool {
	if c == nil || name == "" {
		return false
	}

	for _, u := range c.userDefined {
		if u.Graph != graph || u.Name == "" {
			continue
		}
		if name == u.Name || strings.HasSuffix(name, "."+u.Name) {
			return u.ReadOnly
		}
	}

	return c.builtInRO[name]
}
