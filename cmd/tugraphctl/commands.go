package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/arloliu/tugraph"
	"github.com/arloliu/tugraph/importer"
	"github.com/arloliu/tugraph/types"
)

// withClient connects, runs fn and closes the client.
func (a *app) withClient(cmd *cobra.Command, fn func(ctx context.Context, client *tugraph.Client) error, opts ...tugraph.Option) error {
	ctx := cmd.Context()

	client, err := a.connect(ctx, opts...)
	if err != nil {
		return err
	}
	defer client.Close()

	return fn(ctx, client)
}

func parseProcedureType(s string) (types.ProcedureType, error) {
	switch strings.ToUpper(s) {
	case "CPP":
		return types.ProcedureCPP, nil
	case "PY", "PYTHON":
		return types.ProcedurePython, nil
	default:
		return "", fmt.Errorf("unknown procedure type %q (want CPP or PYTHON)", s)
	}
}

// ----------------------
// cluster
// ----------------------

func newClusterCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cluster",
		Short: "Show the discovered topology",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withClient(cmd, func(_ context.Context, client *tugraph.Client) error {
				fmt.Fprintf(a.out, "mode: %s\n", client.Mode())

				tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ROLE\tRPC\tREST\tDRAINING")
				for _, n := range client.Topology() {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", n.Role, n.RPCAddress, n.RESTAddress,
						client.IsDraining(n.RPCAddress) || client.IsDraining(n.RESTAddress))
				}

				return tw.Flush()
			})
		},
	}
}

// ----------------------
// query
// ----------------------

func newQueryCmd(a *app) *cobra.Command {
	var (
		lang     string
		toLeader bool
		node     string
	)

	cmd := &cobra.Command{
		Use:   "query STATEMENT",
		Short: "Run a Cypher or GQL statement",
		Long:  "Run a statement. Reads go to a follower and writes to the leader unless --leader or --node pins the target.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if toLeader && node != "" {
				return errors.New("--leader and --node are mutually exclusive")
			}

			var (
				run       func(context.Context, string, string) (string, error)
				runOnNode func(context.Context, string, string, string) (string, error)
			)

			return a.withClient(cmd, func(ctx context.Context, client *tugraph.Client) error {
				switch strings.ToLower(lang) {
				case "cypher":
					run, runOnNode = client.Cypher, client.CypherOnNode
					if toLeader {
						run = client.CypherToLeader
					}
				case "gql":
					run, runOnNode = client.GQL, client.GQLOnNode
					if toLeader {
						run = client.GQLToLeader
					}
				default:
					return fmt.Errorf("unknown query language %q (want cypher or gql)", lang)
				}

				var (
					result string
					err    error
				)
				if node != "" {
					result, err = runOnNode(ctx, node, "", args[0])
				} else {
					result, err = run(ctx, "", args[0])
				}
				if err != nil {
					return err
				}

				fmt.Fprintln(a.out, result)

				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&lang, "lang", "l", "cypher", "statement language (cypher or gql)")
	cmd.Flags().BoolVar(&toLeader, "leader", false, "send to the leader regardless of classification")
	cmd.Flags().StringVar(&node, "node", "", "send to this node (RPC or REST address)")

	return cmd
}

// ----------------------
// procedures
// ----------------------

func newProceduresCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "procedures",
		Aliases: []string{"proc"},
		Short:   "Manage stored procedures",
	}

	cmd.AddCommand(
		newProceduresListCmd(a),
		newProceduresCallCmd(a),
		newProceduresLoadCmd(a),
		newProceduresDeleteCmd(a),
	)

	return cmd
}

func newProceduresListCmd(a *app) *cobra.Command {
	var procType, version, node string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored procedures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pt, err := parseProcedureType(procType)
			if err != nil {
				return err
			}

			return a.withClient(cmd, func(ctx context.Context, client *tugraph.Client) error {
				var listing string
				if node != "" {
					listing, err = client.ListProceduresOnNode(ctx, node, pt, version, "")
				} else {
					listing, err = client.ListProcedures(ctx, pt, version, "")
				}
				if err != nil {
					return err
				}

				fmt.Fprintln(a.out, listing)

				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&procType, "type", "t", "CPP", "procedure type (CPP or PYTHON)")
	cmd.Flags().StringVar(&version, "version", "", "only list this version")
	cmd.Flags().StringVar(&node, "node", "", "list on this node")

	return cmd
}

func newProceduresCallCmd(a *app) *cobra.Command {
	var (
		procType  string
		toLeader  bool
		node      string
		timeout   time.Duration
		inProcess bool
		jsonOut   bool
	)

	cmd := &cobra.Command{
		Use:   "call NAME [PARAM]",
		Short: "Call a stored procedure",
		Long:  "Call a stored procedure. Read-only procedures go to a follower and the rest to the leader unless --leader or --node pins the target.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pt, err := parseProcedureType(procType)
			if err != nil {
				return err
			}

			call := types.ProcedureCall{
				Type:       pt,
				Name:       args[0],
				Timeout:    timeout,
				InProcess:  inProcess,
				JSONFormat: jsonOut,
			}
			if len(args) == 2 {
				call.Param = []byte(args[1])
			}

			return a.withClient(cmd, func(ctx context.Context, client *tugraph.Client) error {
				var result string
				switch {
				case node != "":
					result, err = client.CallProcedureOnNode(ctx, node, call)
				case toLeader:
					result, err = client.CallProcedureToLeader(ctx, call)
				default:
					result, err = client.CallProcedure(ctx, call)
				}
				if err != nil {
					return err
				}

				fmt.Fprintln(a.out, result)

				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&procType, "type", "t", "CPP", "procedure type (CPP or PYTHON)")
	cmd.Flags().BoolVar(&toLeader, "leader", false, "call on the leader")
	cmd.Flags().StringVar(&node, "node", "", "call on this node")
	cmd.Flags().DurationVar(&timeout, "proc-timeout", 0, "server-side execution limit")
	cmd.Flags().BoolVar(&inProcess, "in-process", false, "run inside the server process")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "ask for a JSON-encoded result")
	cmd.MarkFlagsMutuallyExclusive("leader", "node")

	return cmd
}

func newProceduresLoadCmd(a *app) *cobra.Command {
	var (
		src      types.ProcedureSource
		procType string
	)

	cmd := &cobra.Command{
		Use:   "load FILE",
		Short: "Load a stored procedure from a file",
		Long:  "Load procedure code on the leader. The code type follows the file extension (.so, .py, .cpp, .zip) and the name defaults to the file's base name.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if procType == "" {
				procType = "CPP"
				if strings.EqualFold(filepath.Ext(args[0]), ".py") {
					procType = "PYTHON"
				}
			}

			pt, err := parseProcedureType(procType)
			if err != nil {
				return err
			}
			src.Type = pt

			return a.withClient(cmd, func(ctx context.Context, client *tugraph.Client) error {
				if err := client.LoadProcedureFromFile(ctx, args[0], src); err != nil {
					return err
				}

				fmt.Fprintf(a.out, "loaded %s\n", args[0])

				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&procType, "type", "t", "", "procedure type (CPP or PYTHON); derived from the extension when empty")
	cmd.Flags().StringVar(&src.Name, "name", "", "procedure name")
	cmd.Flags().StringVar(&src.Description, "description", "", "procedure description")
	cmd.Flags().BoolVar(&src.ReadOnly, "read-only", false, "mark the procedure read-only")
	cmd.Flags().StringVar(&src.Version, "version", "v1", "procedure version")

	return cmd
}

func newProceduresDeleteCmd(a *app) *cobra.Command {
	var procType string

	cmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a stored procedure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pt, err := parseProcedureType(procType)
			if err != nil {
				return err
			}

			return a.withClient(cmd, func(ctx context.Context, client *tugraph.Client) error {
				if err := client.DeleteProcedure(ctx, pt, args[0], ""); err != nil {
					return err
				}

				fmt.Fprintf(a.out, "deleted %s\n", args[0])

				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&procType, "type", "t", "CPP", "procedure type (CPP or PYTHON)")

	return cmd
}

// ----------------------
// import
// ----------------------

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import schema or data",
	}

	cmd.AddCommand(newImportSchemaCmd(a), newImportDataCmd(a))

	return cmd
}

func newImportSchemaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schema FILE",
		Short: "Import a JSON schema description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(ctx context.Context, client *tugraph.Client) error {
				if err := client.ImportSchemaFromFile(ctx, "", args[0]); err != nil {
					return err
				}

				fmt.Fprintf(a.out, "schema imported from %s\n", args[0])

				return nil
			})
		},
	}
}

func newImportDataCmd(a *app) *cobra.Command {
	var (
		opts   importer.DataOptions
		bucket string
	)

	cmd := &cobra.Command{
		Use:   "data CONF",
		Short: "Import data files listed in an import configuration",
		Long: "Import the data files listed in an import configuration. With a NATS server configured, " +
			"progress is checkpointed under --job and an interrupted import resumes where it stopped.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var clientOpts []tugraph.Option
			if a.cfg.NATS.URL != "" {
				if bucket != "" {
					a.cfg.NATS.CheckpointBucket = bucket
				}
				kv, err := a.keyValue(cmd.Context(), a.cfg.NATS.CheckpointBucket)
				if err != nil {
					return err
				}
				checkpoints, err := importer.NewNATSCheckpointer(kv)
				if err != nil {
					return err
				}
				clientOpts = append(clientOpts, tugraph.WithCheckpointer(checkpoints))

				if opts.JobID == "" {
					opts.JobID = uuid.NewString()
				}
			}

			return a.withClient(cmd, func(ctx context.Context, client *tugraph.Client) error {
				if opts.JobID != "" {
					fmt.Fprintf(a.out, "job: %s\n", opts.JobID)
				}

				res, err := client.ImportDataFromFile(ctx, "", args[0], opts)
				if err != nil {
					return err
				}

				fmt.Fprintf(a.out, "packages: %d sent: %d skipped: %d\n", res.Packages, res.Sent, res.Skipped)

				return nil
			}, clientOpts...)
		},
	}

	cmd.Flags().StringVarP(&opts.Delimiter, "delimiter", "d", ",", `column delimiter, escapes like \t allowed`)
	cmd.Flags().IntVar(&opts.Skip, "skip", 0, "skip this many leading packages")
	cmd.Flags().IntVar(&opts.Threads, "threads", 0, "server-side import parallelism")
	cmd.Flags().IntVar(&opts.MaxPackageSize, "package-size", 0, "maximum package size in bytes")
	cmd.Flags().BoolVar(&opts.ContinueOnError, "continue-on-error", false, "skip bad records instead of failing")
	cmd.Flags().StringVar(&opts.JobID, "job", "", "checkpoint job id; generated when NATS is configured and none is given")
	cmd.Flags().StringVar(&bucket, "nats-bucket", "", "KV bucket holding import checkpoints")

	return cmd
}

// ----------------------
// drain
// ----------------------

func newDrainCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Take followers out of read rotation through NATS",
	}

	var reason string
	set := &cobra.Command{
		Use:   "set NODE...",
		Short: "Drain nodes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := a.drainOperator(cmd.Context())
			if err != nil {
				return err
			}
			for _, node := range args {
				if err := op.SetDrain(cmd.Context(), node, true, reason); err != nil {
					return err
				}
			}

			return nil
		},
	}
	set.Flags().StringVar(&reason, "reason", "", "reason shown to operators")

	unset := &cobra.Command{
		Use:   "unset NODE...",
		Short: "Return nodes to read rotation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := a.drainOperator(cmd.Context())
			if err != nil {
				return err
			}
			for _, node := range args {
				if err := op.SetDrain(cmd.Context(), node, false, ""); err != nil {
					return err
				}
			}

			return nil
		},
	}

	clearAll := &cobra.Command{
		Use:   "clear",
		Short: "Return every node to read rotation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			op, err := a.drainOperator(cmd.Context())
			if err != nil {
				return err
			}

			return op.Clear(cmd.Context())
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show drained nodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			op, err := a.drainOperator(cmd.Context())
			if err != nil {
				return err
			}

			config, err := op.Drained(cmd.Context())
			if err != nil {
				return err
			}
			for _, node := range config.Drain {
				fmt.Fprintln(a.out, node)
			}
			if config.Reason != "" {
				fmt.Fprintf(a.out, "reason: %s\n", config.Reason)
			}

			return nil
		},
	}

	cmd.AddCommand(set, unset, clearAll, show)

	return cmd
}
