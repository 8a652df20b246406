package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/tugraph"
	"github.com/arloliu/tugraph/policy"
	"github.com/arloliu/tugraph/types"
)

// Config is the tugraphctl configuration file.
type Config struct {
	Addrs    []string      `yaml:"addrs"`
	User     string        `yaml:"user"`
	Password string        `yaml:"password"`
	Graph    string        `yaml:"graph"`
	Timeout  time.Duration `yaml:"timeout"`
	LogLevel string        `yaml:"log_level"`

	ReadStrategy  ReadStrategyConfig  `yaml:"read_strategy"`
	RefreshPolicy RefreshPolicyConfig `yaml:"refresh_policy"`
	NATS          NATSConfig          `yaml:"nats"`
}

type ReadStrategyConfig struct {
	Type      string        `yaml:"type"` // rotation | round_robin | sticky | leader_only
	Cooldown  time.Duration `yaml:"cooldown"`
	Preferred string        `yaml:"preferred"`
}

type RefreshPolicyConfig struct {
	Type         string        `yaml:"type"` // active | circuit
	Threshold    int           `yaml:"threshold"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

type NATSConfig struct {
	URL              string `yaml:"url"`
	DrainBucket      string `yaml:"drain_bucket"`
	DrainKey         string `yaml:"drain_key"`
	CheckpointBucket string `yaml:"checkpoint_bucket"`
}

// DefaultCLIConfig returns the configuration used when no file is given.
func DefaultCLIConfig() Config {
	return Config{
		User:     "admin",
		Graph:    tugraph.DefaultGraph,
		Timeout:  tugraph.DefaultRPCTimeout,
		LogLevel: "warn",
		ReadStrategy: ReadStrategyConfig{
			Type: "rotation",
		},
		RefreshPolicy: RefreshPolicyConfig{
			Type: "active",
		},
		NATS: NATSConfig{
			DrainBucket:      "tugraph-config",
			DrainKey:         "tugraph.topology.drain",
			CheckpointBucket: "tugraph-import",
		},
	}
}

// LoadConfig reads a YAML configuration file on top of the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultCLIConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = tugraph.DefaultRPCTimeout
	}

	return cfg, nil
}

// Credentials returns the login credentials.
func (c Config) Credentials() types.Credentials {
	return types.Credentials{User: c.User, Password: c.Password}
}

// readStrategy builds the configured read strategy.
func (c Config) readStrategy() (tugraph.ReadStrategy, error) {
	switch c.ReadStrategy.Type {
	case "", "rotation":
		return policy.NewFollowerRotation(), nil
	case "round_robin":
		return policy.NewRoundRobinRead(), nil
	case "leader_only":
		return policy.NewLeaderOnlyRead(), nil
	case "sticky":
		var opts []policy.StickyReadOption
		if c.ReadStrategy.Cooldown > 0 {
			opts = append(opts, policy.WithStickyReadCooldown(c.ReadStrategy.Cooldown))
		}
		if c.ReadStrategy.Preferred != "" {
			opts = append(opts, policy.WithPreferredNode(c.ReadStrategy.Preferred))
		}

		return policy.NewStickyRead(opts...), nil
	default:
		return nil, fmt.Errorf("unknown read strategy %q", c.ReadStrategy.Type)
	}
}

// refreshPolicy builds the configured refresh policy.
func (c Config) refreshPolicy(logger types.Logger) (tugraph.RefreshPolicy, error) {
	switch c.RefreshPolicy.Type {
	case "", "active":
		return policy.NewActiveRefresh(), nil
	case "circuit":
		opts := []policy.CircuitBreakerOption{policy.WithCircuitBreakerLogger(logger)}
		if c.RefreshPolicy.Threshold > 0 {
			opts = append(opts, policy.WithThreshold(c.RefreshPolicy.Threshold))
		}
		if c.RefreshPolicy.ResetTimeout > 0 {
			opts = append(opts, policy.WithResetTimeout(c.RefreshPolicy.ResetTimeout))
		}

		return policy.NewCircuitBreaker(opts...), nil
	default:
		return nil, fmt.Errorf("unknown refresh policy %q", c.RefreshPolicy.Type)
	}
}
