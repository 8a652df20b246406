package importer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/arloliu/tugraph/internal/logging"
	"github.com/arloliu/tugraph/internal/metrics"
	"github.com/arloliu/tugraph/types"
)

// DefaultThreads is the server-side parallelism used when DataOptions.Threads is not set.
const DefaultThreads = 8

// Executor runs one import statement as a leader write and returns the
// server's JSON result.
type Executor func(ctx context.Context, stmt string) (string, error)

// DataOptions controls a data import.
type DataOptions struct {
	// Delimiter is the column delimiter in escaped form, e.g. "," or `\t`.
	Delimiter string

	// ContinueOnError asks the server to skip bad records instead of failing the package.
	ContinueOnError bool

	// Threads is the server-side import parallelism. Default: DefaultThreads.
	Threads int

	// Skip discards this many leading packages across all files.
	Skip int

	// MaxPackageSize bounds the size of one package. Default: DefaultMaxPackageSize.
	MaxPackageSize int

	// JobID names the import for checkpointing. Checkpoints are only kept
	// when both JobID and a Checkpointer are set.
	JobID string
}

// Result summarizes a data import.
type Result struct {
	// Packages is the number of packages produced from the input.
	Packages int

	// Sent is the number of packages dispatched to the server.
	Sent int

	// Skipped is the number of packages discarded by Skip or a checkpoint.
	Skipped int
}

// Importer turns schema files and data files into server import calls.
//
// An Importer holds no per-import state and is safe for concurrent use.
type Importer struct {
	exec         Executor
	logger       types.Logger
	metrics      types.MetricsCollector
	checkpointer Checkpointer
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogger sets the logger.
func WithLogger(logger types.Logger) Option {
	return func(i *Importer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m types.MetricsCollector) Option {
	return func(i *Importer) {
		if m != nil {
			i.metrics = m
		}
	}
}

// WithCheckpointer enables resumable data imports.
func WithCheckpointer(cp Checkpointer) Option {
	return func(i *Importer) {
		i.checkpointer = cp
	}
}

// New creates an Importer that sends statements through exec.
//
// Parameters:
//   - exec: Runs one statement against the leader
//   - opts: Optional configuration options
//
// Returns:
//   - *Importer: A new importer
func New(exec Executor, opts ...Option) *Importer {
	i := &Importer{
		exec:    exec,
		logger:  logging.NewNopLogger(),
		metrics: metrics.NewNopMetrics(),
	}
	for _, opt := range opts {
		opt(i)
	}

	return i
}

// SchemaStatement builds the schema import call for normalized schema JSON.
func SchemaStatement(schema []byte) string {
	return "CALL db.importor.schemaImportor('" + base64.StdEncoding.EncodeToString(schema) + "')"
}

// DataStatement builds the data import call for one package.
//
// Parameters:
//   - desc: The JSON descriptor of the package
//   - data: The package content
//   - continueOnError: Whether the server should skip bad records
//   - threads: Server-side parallelism
//   - delimiter: The decoded delimiter
//
// Returns:
//   - string: The Cypher statement
func DataStatement(desc, data []byte, continueOnError bool, threads int, delimiter string) string {
	var sb strings.Builder
	sb.Grow(base64.StdEncoding.EncodedLen(len(desc)) + base64.StdEncoding.EncodedLen(len(data)) + 64)
	sb.WriteString("CALL db.importor.dataImportor('")
	sb.WriteString(base64.StdEncoding.EncodeToString(desc))
	sb.WriteString("','")
	sb.WriteString(base64.StdEncoding.EncodeToString(data))
	sb.WriteString("',")
	sb.WriteString(strconv.FormatBool(continueOnError))
	sb.WriteString(",")
	sb.WriteString(strconv.Itoa(threads))
	sb.WriteString(",'")
	sb.WriteString(delimiter)
	sb.WriteString("')")

	return sb.String()
}

// ImportSchema sends schema content to the server.
//
// Parameters:
//   - ctx: Context for cancellation
//   - schema: JSON document with a "schema" key
//
// Returns:
//   - error: InputError for invalid content, ImportError{Package: -1} if the
//     server reports failures, or the executor's error
func (i *Importer) ImportSchema(ctx context.Context, schema []byte) error {
	normalized, err := NormalizeSchema(schema)
	if err != nil {
		return err
	}

	result, err := i.exec(ctx, SchemaStatement(normalized))
	if err != nil {
		return err
	}
	if err := checkResult(result, -1); err != nil {
		return err
	}

	i.logger.Info("schema imported", "bytes", len(normalized))

	return nil
}

// ImportSchemaFile reads a schema file and sends it to the server.
func (i *Importer) ImportSchemaFile(ctx context.Context, path string) error {
	schema, err := LoadSchema(path)
	if err != nil {
		return err
	}

	return i.ImportSchema(ctx, schema)
}

// ImportContent sends one in-memory package with its descriptor.
//
// Parameters:
//   - ctx: Context for cancellation
//   - desc: JSON descriptor ({"files":[...]}, paths not required)
//   - data: The records to import
//   - opts: Delimiter, ContinueOnError and Threads are used
//
// Returns:
//   - error: InputError, ImportError{Package: 0} or the executor's error
func (i *Importer) ImportContent(ctx context.Context, desc, data []byte, opts DataOptions) error {
	if err := ValidateDescriptor(desc); err != nil {
		return err
	}

	delimiter, err := statementDelimiter(opts.Delimiter)
	if err != nil {
		return err
	}

	result, err := i.exec(ctx, DataStatement(desc, data, opts.ContinueOnError, threadsOrDefault(opts.Threads), delimiter))
	if err != nil {
		return err
	}
	i.metrics.IncImportPackageSent()

	return checkResult(result, 0)
}

// ImportConfigFile loads an import configuration and imports every file it names.
func (i *Importer) ImportConfigFile(ctx context.Context, path string, opts DataOptions) (Result, error) {
	specs, err := LoadConfig(path)
	if err != nil {
		return Result{}, err
	}

	return i.ImportData(ctx, specs, opts)
}

// ImportData cuts each file into packages and sends them in order.
//
// Packages are numbered globally across files. The first opts.Skip packages
// (or more, if a checkpoint for opts.JobID records more) are discarded
// without being sent. Only the first package of each file carries the file's
// header line count, whether or not it was sent.
//
// Parameters:
//   - ctx: Context for cancellation
//   - specs: The files to import, typically from ParseConfig
//   - opts: Import options
//
// Returns:
//   - Result: Package counts, valid even on error
//   - error: InputError, ImportError naming the failing package, or the executor's error
func (i *Importer) ImportData(ctx context.Context, specs []FileSpec, opts DataOptions) (Result, error) {
	var res Result

	delimiter, err := statementDelimiter(opts.Delimiter)
	if err != nil {
		return res, err
	}

	skip := max(opts.Skip, 0)
	checkpointing := i.checkpointer != nil && opts.JobID != ""
	if checkpointing {
		done, err := i.checkpointer.Load(ctx, opts.JobID)
		if err != nil {
			return res, err
		}
		if done > skip {
			i.logger.Info("resuming import from checkpoint", "job", opts.JobID, "packages", done)
			skip = done
		}
	}

	run := &dataRun{
		importer:  i,
		opts:      opts,
		delimiter: delimiter,
		threads:   threadsOrDefault(opts.Threads),
		skip:      skip,
		res:       &res,
		job:       opts.JobID,
		save:      checkpointing,
	}

	for _, spec := range specs {
		if err := run.importFile(ctx, spec); err != nil {
			return res, err
		}
	}

	if checkpointing {
		if err := i.checkpointer.Delete(ctx, opts.JobID); err != nil {
			i.logger.Warn("failed to delete import checkpoint", "job", opts.JobID, "error", err)
		}
	}

	i.logger.Info("data import finished", "packages", res.Packages, "sent", res.Sent, "skipped", res.Skipped)

	return res, nil
}

// dataRun carries the state of one ImportData call.
type dataRun struct {
	importer  *Importer
	opts      DataOptions
	delimiter string
	threads   int
	skip      int
	res       *Result
	job       string
	save      bool
}

func (r *dataRun) importFile(ctx context.Context, spec FileSpec) error {
	f, err := os.Open(spec.Path)
	if err != nil {
		return &types.InputError{Reason: "cannot open " + spec.Path, Cause: err}
	}
	defer f.Close()

	r.importer.logger.Debug("importing file", "path", spec.Path, "label", spec.Label, "vertex", spec.IsVertex())

	cutter := NewCutter(f, r.opts.MaxPackageSize)
	for first := true; ; first = false {
		if err := ctx.Err(); err != nil {
			return err
		}

		pkg, err := cutter.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &types.InputError{Reason: "cannot read " + spec.Path, Cause: err}
		}

		index := r.res.Packages
		r.res.Packages++

		if r.skip > 0 {
			r.skip--
			r.res.Skipped++
			r.importer.metrics.IncImportPackageSkipped()

			continue
		}

		header := 0
		if first {
			header = spec.Header
			if LineCount(pkg) < header {
				return types.NewInputError("HEADER too large")
			}
		}

		if err := r.send(ctx, spec.Descriptor(header), pkg, index); err != nil {
			return err
		}
	}
}

func (r *dataRun) send(ctx context.Context, desc, pkg []byte, index int) error {
	stmt := DataStatement(desc, pkg, r.opts.ContinueOnError, r.threads, r.delimiter)

	result, err := r.importer.exec(ctx, stmt)
	if err != nil {
		return fmt.Errorf("tugraph/importer: package %d: %w", index, err)
	}
	if err := checkResult(result, index); err != nil {
		return err
	}

	r.res.Sent++
	r.importer.metrics.IncImportPackageSent()
	r.importer.logger.Debug("import package sent", "package", index, "bytes", len(pkg))

	if r.save {
		if err := r.importer.checkpointer.Save(ctx, r.job, index+1); err != nil {
			r.importer.logger.Warn("failed to save import checkpoint", "job", r.job, "package", index, "error", err)
		}
	}

	return nil
}

// checkResult interprets the JSON array returned by an import procedure.
// An empty array means success.
func checkResult(result string, pkg int) error {
	trimmed := strings.TrimSpace(result)
	if trimmed == "" {
		return nil
	}

	var failures []json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &failures); err != nil || len(failures) > 0 {
		return &types.ImportError{Package: pkg, Result: result}
	}

	return nil
}

func threadsOrDefault(threads int) int {
	if threads <= 0 {
		return DefaultThreads
	}

	return threads
}
