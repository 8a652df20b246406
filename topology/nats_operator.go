package topology

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/tugraph"
)

// maxUpdateAttempts bounds the compare-and-set loop in SetDrain.
const maxUpdateAttempts = 5

// NATSOperator edits the drain configuration watched by NATS.
//
// Updates are compare-and-set on the key revision, so concurrent operators
// never lose each other's changes.
type NATSOperator struct {
	kv  jetstream.KeyValue
	key string
}

var _ tugraph.TopologyOperator = (*NATSOperator)(nil)

// NewNATSOperator creates an operator for the key a NATS watcher observes.
//
// Only WithKey is meaningful among the options.
//
// Parameters:
//   - kv: A NATS JetStream KeyValue store
//   - opts: Optional configuration options
//
// Returns:
//   - *NATSOperator: A new operator
//   - error: Error if kv is nil
func NewNATSOperator(kv jetstream.KeyValue, opts ...WatcherOption) (*NATSOperator, error) {
	if kv == nil {
		return nil, errors.New("tugraph/topology: KeyValue store is nil")
	}

	config := DefaultWatcherConfig()
	for _, opt := range opts {
		opt(&config)
	}

	return &NATSOperator{kv: kv, key: config.Key}, nil
}

// Drained returns the current drain configuration.
//
// A missing key is an empty configuration.
func (o *NATSOperator) Drained(ctx context.Context) (DrainConfig, error) {
	config, _, err := o.load(ctx)
	return config, err
}

// SetDrain adds node to or removes it from the drain list.
//
// The reason replaces the stored reason when draining. Removing the last
// node clears the reason.
func (o *NATSOperator) SetDrain(ctx context.Context, node string, draining bool, reason string) error {
	if node == "" {
		return errors.New("tugraph/topology: empty node address")
	}

	for range maxUpdateAttempts {
		config, revision, err := o.load(ctx)
		if err != nil {
			return err
		}

		if draining {
			if !config.ContainsNode(node) {
				config.Drain = append(config.Drain, node)
			}
			config.Reason = reason
		} else {
			config.Drain = slices.DeleteFunc(config.Drain, func(addr string) bool { return addr == node })
			if len(config.Drain) == 0 {
				config.Reason = ""
			}
		}

		err = o.store(ctx, config, revision)
		if errors.Is(err, jetstream.ErrKeyExists) {
			continue
		}

		return err
	}

	return fmt.Errorf("tugraph/topology: drain key %s changed concurrently %d times", o.key, maxUpdateAttempts)
}

// Clear removes every node from the drain list.
func (o *NATSOperator) Clear(ctx context.Context) error {
	err := o.kv.Delete(ctx, o.key)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("tugraph/topology: clear drain key: %w", err)
	}

	return nil
}

func (o *NATSOperator) load(ctx context.Context) (DrainConfig, uint64, error) {
	entry, err := o.kv.Get(ctx, o.key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return DrainConfig{}, 0, nil
	}
	if err != nil {
		return DrainConfig{}, 0, fmt.Errorf("tugraph/topology: read drain key: %w", err)
	}

	var config DrainConfig
	if err := json.Unmarshal(entry.Value(), &config); err != nil {
		// Unparseable values are overwritten, matching the watcher treating them as empty.
		return DrainConfig{}, entry.Revision(), nil //nolint:nilerr
	}

	return config, entry.Revision(), nil
}

func (o *NATSOperator) store(ctx context.Context, config DrainConfig, revision uint64) error {
	data, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("tugraph/topology: encode drain config: %w", err)
	}

	if revision == 0 {
		_, err = o.kv.Create(ctx, o.key, data)
	} else {
		_, err = o.kv.Update(ctx, o.key, data, revision)
	}

	return err
}
