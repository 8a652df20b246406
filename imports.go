package tugraph

import (
	"context"

	"github.com/arloliu/tugraph/importer"
	"github.com/arloliu/tugraph/session"
	"github.com/arloliu/tugraph/types"
)

// importExecutor runs import statements as leader writes on graph. Each
// statement is dispatched on its own, so a failover in the middle of a data
// import only retries the package that was in flight.
func (c *Client) importExecutor(graph string) importer.Executor {
	graph = c.graph(graph)

	return func(ctx context.Context, stmt string) (string, error) {
		q := session.Query{
			Language: types.Cypher,
			Text:     stmt,
			Graph:    graph,
			Timeout:  serverTimeout(ctx),
			Write:    true,
		}

		return c.dispatch(ctx, "import", writeRoute, func(ctx context.Context, sess *session.Session) (string, error) {
			return sess.Query(ctx, q)
		})
	}
}

func (c *Client) newImporter(graph string) *importer.Importer {
	opts := []importer.Option{
		importer.WithLogger(c.config.Logger),
		importer.WithMetrics(c.config.Metrics),
	}
	if c.config.Checkpointer != nil {
		opts = append(opts, importer.WithCheckpointer(c.config.Checkpointer))
	}

	return importer.New(c.importExecutor(graph), opts...)
}

// ImportSchema creates labels from a schema document.
//
// Parameters:
//   - ctx: Context for the call
//   - graph: Target graph; empty selects the default graph
//   - schema: JSON document with a "schema" key
//
// Returns:
//   - error: InputError, ImportError{Package: -1} or a call error
func (c *Client) ImportSchema(ctx context.Context, graph string, schema []byte) error {
	if c.closed.Load() {
		return types.ErrClientClosed
	}

	return c.newImporter(graph).ImportSchema(ctx, schema)
}

// ImportSchemaFromFile creates labels from a schema file.
func (c *Client) ImportSchemaFromFile(ctx context.Context, graph, path string) error {
	if c.closed.Load() {
		return types.ErrClientClosed
	}

	return c.newImporter(graph).ImportSchemaFile(ctx, path)
}

// ImportData imports in-memory records described by desc as one package.
//
// Parameters:
//   - ctx: Context for the call
//   - graph: Target graph; empty selects the default graph
//   - desc: JSON descriptor ({"files":[{format,label,columns,...}]})
//   - data: The records
//   - opts: Delimiter, ContinueOnError and Threads are used
//
// Returns:
//   - error: InputError, ImportError or a call error
func (c *Client) ImportData(ctx context.Context, graph string, desc, data []byte, opts importer.DataOptions) error {
	if c.closed.Load() {
		return types.ErrClientClosed
	}

	return c.newImporter(graph).ImportContent(ctx, desc, data, opts)
}

// ImportDataFromFile imports every file named by an import configuration.
//
// Files are cut into packages of at most opts.MaxPackageSize bytes and sent
// in order, vertex files first. With a Checkpointer configured and
// opts.JobID set, progress is recorded after every package so that a failed
// import can be resumed by calling again with the same job id.
//
// Parameters:
//   - ctx: Context for the call
//   - graph: Target graph; empty selects the default graph
//   - confPath: Path to the import configuration
//   - opts: Import options
//
// Returns:
//   - importer.Result: Package counts, valid even on error
//   - error: InputError, ImportError or a call error
//
// Example:
//
//	res, err := client.ImportDataFromFile(ctx, "default", "import.conf", importer.DataOptions{
//	    Delimiter: ",",
//	    JobID:     "nightly-2024-06-01",
//	})
func (c *Client) ImportDataFromFile(ctx context.Context, graph, confPath string, opts importer.DataOptions) (importer.Result, error) {
	if c.closed.Load() {
		return importer.Result{}, types.ErrClientClosed
	}

	return c.newImporter(graph).ImportConfigFile(ctx, confPath, opts)
}
