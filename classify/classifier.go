package classify

import (
	"regexp"
	"sync/atomic"

	"github.com/arloliu/tugraph/types"
)

var (
	callPattern = regexp.MustCompile(`(?i)\bcall\s+([A-Za-z_][A-Za-z0-9_.]*)`)

	cypherWritePattern = regexp.MustCompile(`(?i)\b(create|set|delete|remove|merge)\b`)
	gqlWritePattern    = regexp.MustCompile(`(?i)\b(create|insert|drop|set|remove|delete)\b`)
)

// InvokedProcedures returns the procedure names a statement CALLs, in order.
func InvokedProcedures(stmt string) []string {
	matches := callPattern.FindAllStringSubmatch(stmt, -1)
	if len(matches) == 0 {
		return nil
	}

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}

	return names
}

// IsReadOnly reports whether stmt can be served by a follower.
//
// A statement is read-only when it contains none of the language's mutating
// keywords and every procedure it CALLs is known read-only in graph.
// Procedure names are left out of the keyword scan.
//
// The check is a heuristic: a keyword inside a string literal or comment
// still counts.
//
// Parameters:
//   - lang: Statement language
//   - stmt: The statement
//   - graph: Graph the statement runs against
//
// Returns:
//   - bool: true if the statement may be routed to a follower
func (c *Catalog) IsReadOnly(lang types.QueryLanguage, stmt, graph string) bool {
	for _, name := range InvokedProcedures(stmt) {
		if !c.IsProcedureReadOnly(name, graph) {
			return false
		}
	}

	return !writePattern(lang).MatchString(callPattern.ReplaceAllString(stmt, "CALL"))
}

func writePattern(lang types.QueryLanguage) *regexp.Regexp {
	if lang == types.GQL {
		return gqlWritePattern
	}

	return cypherWritePattern
}

// Classifier holds the current Catalog and classifies statements against it.
//
// The catalog is swapped atomically; classification never blocks a refresh.
//
// Classifier is safe for concurrent use.
type Classifier struct {
	catalog atomic.Pointer[Catalog]
}

// New creates a Classifier with an empty catalog.
func New() *Classifier {
	c := &Classifier{}
	c.catalog.Store(NewCatalog(nil, nil))

	return c
}

// Catalog returns the current catalog.
func (c *Classifier) Catalog() *Catalog {
	return c.catalog.Load()
}

// Update replaces the current catalog. A nil catalog is ignored.
func (c *Classifier) Update(catalog *Catalog) {
	if catalog == nil {
		return
	}
	c.catalog.Store(catalog)
}

// IsReadOnly classifies stmt against the current catalog.
func (c *Classifier) IsReadOnly(lang types.QueryLanguage, stmt, graph string) bool {
	return c.catalog.Load().IsReadOnly(lang, stmt, graph)
}

// IsProcedureReadOnly looks a procedure up in the current catalog.
func (c *Classifier) IsProcedureReadOnly(name, graph string) bool {
	return c.catalog.Load().IsProcedureReadOnly(name, graph)
}
