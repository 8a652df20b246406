package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/arloliu/tugraph"
	"github.com/arloliu/tugraph/internal/logging"
	"github.com/arloliu/tugraph/protocol"
	"github.com/arloliu/tugraph/topology"
)

// globalFlags are the flags shared by every subcommand.
type globalFlags struct {
	config   string
	addrs    []string
	user     string
	password string
	graph    string
	timeout  time.Duration
	logLevel string
	natsURL  string
}

func (f *globalFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.config, "config", "c", "", "path to a YAML configuration file")
	fs.StringArrayVarP(&f.addrs, "addr", "a", nil, "RPC address of a node (repeat for an address list)")
	fs.StringVarP(&f.user, "user", "u", "", "login user")
	fs.StringVarP(&f.password, "password", "p", "", "login password")
	fs.StringVarP(&f.graph, "graph", "g", "", "graph used when a command names none")
	fs.DurationVar(&f.timeout, "timeout", 0, "per-request RPC timeout")
	fs.StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.StringVar(&f.natsURL, "nats-url", "", "NATS server used for drain state and import checkpoints")
}

// apply overrides cfg with every flag set on the command line.
func (f *globalFlags) apply(fs *pflag.FlagSet, cfg *Config) {
	if fs.Changed("addr") {
		cfg.Addrs = f.addrs
	}
	if fs.Changed("user") {
		cfg.User = f.user
	}
	if fs.Changed("password") {
		cfg.Password = f.password
	}
	if fs.Changed("graph") {
		cfg.Graph = f.graph
	}
	if fs.Changed("timeout") {
		cfg.Timeout = f.timeout
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if fs.Changed("nats-url") {
		cfg.NATS.URL = f.natsURL
	}
}

// app holds the state of one tugraphctl invocation.
type app struct {
	flags globalFlags
	cfg   Config
	out   io.Writer

	// dialer overrides the gRPC dialer; tests inject an in-memory cluster.
	dialer protocol.Dialer

	zl *zap.Logger
	nc *nats.Conn
}

func newApp(out io.Writer) *app {
	return &app{out: out, cfg: DefaultCLIConfig()}
}

// newRootCmd builds the command tree bound to a.
func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "tugraphctl",
		Short:         "Operate a TuGraph HA cluster",
		Long:          "tugraphctl runs queries, manages stored procedures and imports data against a TuGraph deployment, routing each call the way the cluster-aware client does.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Flags())
		},
	}
	a.flags.register(root.PersistentFlags())

	root.AddCommand(
		newClusterCmd(a),
		newQueryCmd(a),
		newProceduresCmd(a),
		newImportCmd(a),
		newDrainCmd(a),
	)

	return root
}

// setup loads configuration and builds the logger.
func (a *app) setup(fs *pflag.FlagSet) error {
	if a.flags.config != "" {
		cfg, err := LoadConfig(a.flags.config)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	a.flags.apply(fs, &a.cfg)

	level, err := zapcore.ParseLevel(a.cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", a.cfg.LogLevel, err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.Encoding = "console"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	a.zl, err = zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	return nil
}

// connect builds a client for the configured addresses.
//
// One address probes the node and may yield a standalone client; several
// addresses build a cluster client from the list.
func (a *app) connect(ctx context.Context, extra ...tugraph.Option) (*tugraph.Client, error) {
	if len(a.cfg.Addrs) == 0 {
		return nil, errors.New("no address given: use --addr or the addrs config key")
	}

	logger := logging.NewZapLogger(a.zl)

	strategy, err := a.cfg.readStrategy()
	if err != nil {
		return nil, err
	}
	refresh, err := a.cfg.refreshPolicy(logger)
	if err != nil {
		return nil, err
	}

	opts := []tugraph.Option{
		tugraph.WithLogger(logger),
		tugraph.WithRPCTimeout(a.cfg.Timeout),
		tugraph.WithDefaultGraph(a.cfg.Graph),
		tugraph.WithReadStrategy(strategy),
		tugraph.WithRefreshPolicy(refresh),
	}
	if a.dialer != nil {
		opts = append(opts, tugraph.WithDialer(a.dialer))
	}
	if a.cfg.NATS.URL != "" {
		watcher, err := a.drainWatcher(ctx)
		if err != nil {
			return nil, err
		}
		opts = append(opts, tugraph.WithTopologyWatcher(watcher))
	}
	opts = append(opts, extra...)

	if len(a.cfg.Addrs) == 1 {
		return tugraph.NewClient(ctx, a.cfg.Addrs[0], a.cfg.Credentials(), opts...)
	}

	return tugraph.NewClusterClient(ctx, a.cfg.Addrs, a.cfg.Credentials(), opts...)
}

// keyValue opens (creating if needed) a KV bucket on the configured NATS server.
func (a *app) keyValue(ctx context.Context, bucket string) (jetstream.KeyValue, error) {
	if a.cfg.NATS.URL == "" {
		return nil, errors.New("no NATS server given: use --nats-url or the nats.url config key")
	}

	if a.nc == nil {
		nc, err := nats.Connect(a.cfg.NATS.URL, nats.Name("tugraphctl"))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		a.nc = nc
	}

	js, err := jetstream.New(a.nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: bucket})
	if err != nil {
		return nil, fmt.Errorf("failed to open KV bucket %s: %w", bucket, err)
	}

	return kv, nil
}

func (a *app) drainWatcher(ctx context.Context) (*topology.NATS, error) {
	kv, err := a.keyValue(ctx, a.cfg.NATS.DrainBucket)
	if err != nil {
		return nil, err
	}

	return topology.NewNATS(kv, topology.WithKey(a.cfg.NATS.DrainKey))
}

func (a *app) drainOperator(ctx context.Context) (*topology.NATSOperator, error) {
	kv, err := a.keyValue(ctx, a.cfg.NATS.DrainBucket)
	if err != nil {
		return nil, err
	}

	return topology.NewNATSOperator(kv, topology.WithKey(a.cfg.NATS.DrainKey))
}

// close releases the NATS connection and flushes the logger.
func (a *app) close() {
	if a.nc != nil {
		a.nc.Close()
	}
	if a.zl != nil {
		_ = a.zl.Sync()
	}
}
