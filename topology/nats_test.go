package topology_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/tugraph"
	"github.com/arloliu/tugraph/test/testutil"
	"github.com/arloliu/tugraph/topology"
)

const drainKey = "tugraph.topology.drain"

// drainUpdates drains a topology update channel in the background.
func drainUpdates(ch <-chan tugraph.TopologyUpdate) {
	go func() {
		for range ch {
			_ = struct{}{} // consume item
		}
	}()
}

func putDrain(t *testing.T, ctx context.Context, kv jetstream.KeyValue, nodes []string, reason string) {
	t.Helper()

	data, err := json.Marshal(topology.DrainConfig{Drain: nodes, Reason: reason})
	require.NoError(t, err)

	_, err = kv.Put(ctx, drainKey, data)
	require.NoError(t, err)
}

func nextUpdate(t *testing.T, updates <-chan tugraph.TopologyUpdate) tugraph.TopologyUpdate {
	t.Helper()

	select {
	case update := <-updates:
		return update
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for topology update")
	}

	return tugraph.TopologyUpdate{}
}

func TestNewNATSNilKV(t *testing.T) {
	_, err := topology.NewNATS(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KeyValue store is nil")
}

func TestNewNATSDefaults(t *testing.T) {
	kv := testutil.CreateKV(t, "test-defaults")

	watcher, err := topology.NewNATS(kv)
	require.NoError(t, err)
	defer watcher.Close()

	assert.Equal(t, drainKey, watcher.Config().Key)
	assert.Equal(t, 5*time.Second, watcher.Config().PollInterval)
	assert.Equal(t, 10*time.Second, watcher.Config().InitialFetchTimeout)
}

func TestNewNATSOptions(t *testing.T) {
	kv := testutil.CreateKV(t, "test-options")

	watcher, err := topology.NewNATS(kv,
		topology.WithKey("custom.drain.key"),
		topology.WithPollInterval(10*time.Second),
		topology.WithInitialFetchTimeout(30*time.Second),
	)
	require.NoError(t, err)
	defer watcher.Close()

	assert.Equal(t, "custom.drain.key", watcher.Config().Key)
	assert.Equal(t, 10*time.Second, watcher.Config().PollInterval)
	assert.Equal(t, 30*time.Second, watcher.Config().InitialFetchTimeout)
}

func TestNATSDrainNode(t *testing.T) {
	kv := testutil.CreateKV(t, "test-drain-node")

	watcher, err := topology.NewNATS(kv)
	require.NoError(t, err)
	defer watcher.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	updates := watcher.Watch(ctx)

	assert.False(t, watcher.IsDraining("n2:9090"))

	putDrain(t, ctx, kv, []string{"n2:9090"}, "OS Patching")

	update := nextUpdate(t, updates)
	assert.Equal(t, "n2:9090", update.Node)
	assert.True(t, update.Draining)
	assert.Equal(t, "OS Patching", update.Reason)

	assert.True(t, watcher.IsDraining("n2:9090"))
	assert.False(t, watcher.IsDraining("n3:9090"))
	assert.Equal(t, "OS Patching", watcher.GetDrainReason())
}

func TestNATSDrainSetChanges(t *testing.T) {
	kv := testutil.CreateKV(t, "test-drain-set")

	watcher, err := topology.NewNATS(kv)
	require.NoError(t, err)
	defer watcher.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	updates := watcher.Watch(ctx)

	putDrain(t, ctx, kv, []string{"n2:9090", "n3:9090"}, "rack move")

	received := make(map[string]tugraph.TopologyUpdate)
	for range 2 {
		update := nextUpdate(t, updates)
		received[update.Node] = update
	}
	assert.True(t, received["n2:9090"].Draining)
	assert.True(t, received["n3:9090"].Draining)

	// n2 returns, n3 stays drained: only n2 changes.
	putDrain(t, ctx, kv, []string{"n3:9090"}, "rack move")

	update := nextUpdate(t, updates)
	assert.Equal(t, "n2:9090", update.Node)
	assert.False(t, update.Draining)

	assert.False(t, watcher.IsDraining("n2:9090"))
	assert.True(t, watcher.IsDraining("n3:9090"))
}

func TestNATSClearDrainOnDelete(t *testing.T) {
	kv := testutil.CreateKV(t, "test-clear-drain")

	watcher, err := topology.NewNATS(kv)
	require.NoError(t, err)
	defer watcher.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	// Pre-set drain before watching
	putDrain(t, ctx, kv, []string{"n3:9090"}, "Upgrade")

	updates := watcher.Watch(ctx)

	update := nextUpdate(t, updates)
	assert.Equal(t, "n3:9090", update.Node)
	assert.True(t, update.Draining)

	require.NoError(t, kv.Delete(ctx, drainKey))

	update = nextUpdate(t, updates)
	assert.Equal(t, "n3:9090", update.Node)
	assert.False(t, update.Draining)

	assert.False(t, watcher.IsDraining("n3:9090"))
}

func TestNATSEmptyDrainList(t *testing.T) {
	kv := testutil.CreateKV(t, "test-empty-drain")

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	putDrain(t, ctx, kv, []string{"n2:9090"}, "Test")

	watcher, err := topology.NewNATS(kv)
	require.NoError(t, err)
	defer watcher.Close()

	updates := watcher.Watch(ctx)
	nextUpdate(t, updates)
	assert.True(t, watcher.IsDraining("n2:9090"))

	putDrain(t, ctx, kv, []string{}, "")

	update := nextUpdate(t, updates)
	assert.Equal(t, "n2:9090", update.Node)
	assert.False(t, update.Draining)
	assert.False(t, watcher.IsDraining("n2:9090"))
}

func TestNATSInvalidJSON(t *testing.T) {
	kv := testutil.CreateKV(t, "test-invalid-json")

	watcher, err := topology.NewNATS(kv)
	require.NoError(t, err)
	defer watcher.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	updates := watcher.Watch(ctx)

	putDrain(t, ctx, kv, []string{"n2:9090"}, "")
	nextUpdate(t, updates)

	// Invalid JSON is treated as no drain
	_, err = kv.Put(ctx, drainKey, []byte("not valid json"))
	require.NoError(t, err)

	update := nextUpdate(t, updates)
	assert.Equal(t, "n2:9090", update.Node)
	assert.False(t, update.Draining)
}

func TestNATSClose(t *testing.T) {
	kv := testutil.CreateKV(t, "test-close")

	watcher, err := topology.NewNATS(kv)
	require.NoError(t, err)

	updates := watcher.Watch(t.Context())

	require.NoError(t, watcher.Close())
	require.NoError(t, watcher.Close())

	select {
	case _, ok := <-updates:
		if ok {
			drainUpdates(updates)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after Close()")
	}
}

func TestNATSContextCancellation(t *testing.T) {
	kv := testutil.CreateKV(t, "test-ctx-cancel")

	watcher, err := topology.NewNATS(kv)
	require.NoError(t, err)
	defer watcher.Close()

	ctx, cancel := context.WithCancel(t.Context())
	updates := watcher.Watch(ctx)

	cancel()

	select {
	case _, ok := <-updates:
		if ok {
			drainUpdates(updates)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after context cancellation")
	}
}

func TestNATSMultipleWatchCalls(t *testing.T) {
	kv := testutil.CreateKV(t, "test-multi-watch")

	watcher, err := topology.NewNATS(kv)
	require.NoError(t, err)
	defer watcher.Close()

	ctx := t.Context()

	updates1 := watcher.Watch(ctx)
	updates2 := watcher.Watch(ctx)
	assert.Equal(t, updates1, updates2)

	putDrain(t, ctx, kv, []string{"n2:9090"}, "test")

	update := nextUpdate(t, updates1)
	assert.Equal(t, "n2:9090", update.Node)
	assert.True(t, update.Draining)
}

func TestDrainConfigContainsNode(t *testing.T) {
	tests := []struct {
		name     string
		drain    []string
		node     string
		expected bool
	}{
		{"empty drain list", []string{}, "n2:9090", false},
		{"node in list", []string{"n2:9090"}, "n2:9090", true},
		{"node not in list", []string{"n3:9090"}, "n2:9090", false},
		{"several nodes", []string{"n2:9090", "n3:9090"}, "n3:9090", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := topology.DrainConfig{Drain: tt.drain}
			assert.Equal(t, tt.expected, config.ContainsNode(tt.node))
		})
	}
}
