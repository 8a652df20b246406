package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/tugraph"
	"github.com/arloliu/tugraph/internal/logging"
	"github.com/arloliu/tugraph/policy"
)

func TestLoadConfig(t *testing.T) {
	path := writeFile(t, "tugraph.yaml", `
addrs: ["10.0.0.1:9090", "10.0.0.2:9090"]
user: ops
password: secret
read_strategy:
  type: sticky
  cooldown: 30s
  preferred: 10.0.0.2:9090
nats:
  url: nats://localhost:4222
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"10.0.0.1:9090", "10.0.0.2:9090"}, cfg.Addrs)
	assert.Equal(t, "ops", cfg.Credentials().User)
	assert.Equal(t, "secret", cfg.Credentials().Password)
	assert.Equal(t, 30*time.Second, cfg.ReadStrategy.Cooldown)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)

	// Unset keys keep their defaults.
	assert.Equal(t, tugraph.DefaultGraph, cfg.Graph)
	assert.Equal(t, tugraph.DefaultRPCTimeout, cfg.Timeout)
	assert.Equal(t, "tugraph.topology.drain", cfg.NATS.DrainKey)

	strategy, err := cfg.readStrategy()
	require.NoError(t, err)
	assert.IsType(t, &policy.StickyRead{}, strategy)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(writeFile(t, "bad.yaml", "addrs: [unterminated"))
	require.Error(t, err)

	_, err = LoadConfig("/nonexistent/tugraph.yaml")
	require.Error(t, err)
}

func TestPolicySelection(t *testing.T) {
	cfg := DefaultCLIConfig()

	for name, want := range map[string]any{
		"rotation":    &policy.FollowerRotation{},
		"round_robin": &policy.RoundRobinRead{},
		"leader_only": &policy.LeaderOnlyRead{},
	} {
		cfg.ReadStrategy.Type = name
		strategy, err := cfg.readStrategy()
		require.NoError(t, err, name)
		assert.IsType(t, want, strategy, name)
	}

	cfg.ReadStrategy.Type = "random"
	_, err := cfg.readStrategy()
	require.Error(t, err)

	logger := logging.NewNopLogger()

	refresh, err := cfg.refreshPolicy(logger)
	require.NoError(t, err)
	assert.IsType(t, &policy.ActiveRefresh{}, refresh)

	cfg.RefreshPolicy = RefreshPolicyConfig{Type: "circuit", Threshold: 5, ResetTimeout: time.Minute}
	refresh, err = cfg.refreshPolicy(logger)
	require.NoError(t, err)
	assert.IsType(t, &policy.CircuitBreaker{}, refresh)

	cfg.RefreshPolicy.Type = "never"
	_, err = cfg.refreshPolicy(logger)
	require.Error(t, err)
}
