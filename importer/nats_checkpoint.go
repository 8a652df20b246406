package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/tinylib/msgp/msgp"
)

// DefaultCheckpointPrefix is the key prefix used for checkpoints in the bucket.
const DefaultCheckpointPrefix = "tugraph.import."

// NATSCheckpointer stores import checkpoints in a NATS JetStream KV bucket.
//
// Each job is stored under prefix+job as a MessagePack-encoded record, so a
// data import interrupted on one host can be resumed from another.
type NATSCheckpointer struct {
	kv     jetstream.KeyValue
	prefix string
}

var _ Checkpointer = (*NATSCheckpointer)(nil)

// NATSCheckpointerOption configures a NATSCheckpointer.
type NATSCheckpointerOption func(*NATSCheckpointer)

// WithCheckpointPrefix sets the key prefix for checkpoint entries.
func WithCheckpointPrefix(prefix string) NATSCheckpointerOption {
	return func(n *NATSCheckpointer) {
		n.prefix = prefix
	}
}

// NewNATSCheckpointer creates a checkpointer backed by kv.
//
// Parameters:
//   - kv: A NATS JetStream KeyValue store
//   - opts: Optional configuration options
//
// Returns:
//   - *NATSCheckpointer: A new checkpointer
//   - error: Error if kv is nil
//
// Example:
//
//	js, _ := jetstream.New(nc)
//	kv, _ := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: "tugraph-import"})
//	cp, _ := importer.NewNATSCheckpointer(kv)
func NewNATSCheckpointer(kv jetstream.KeyValue, opts ...NATSCheckpointerOption) (*NATSCheckpointer, error) {
	if kv == nil {
		return nil, errors.New("tugraph/importer: KeyValue store is nil")
	}

	n := &NATSCheckpointer{kv: kv, prefix: DefaultCheckpointPrefix}
	for _, opt := range opts {
		opt(n)
	}

	return n, nil
}

// Load implements Checkpointer.
func (n *NATSCheckpointer) Load(ctx context.Context, job string) (int, error) {
	entry, err := n.kv.Get(ctx, n.prefix+job)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return 0, nil
		}

		return 0, fmt.Errorf("tugraph/importer: load checkpoint %s: %w", job, err)
	}

	var rec checkpointRecord
	if _, err := rec.UnmarshalMsg(entry.Value()); err != nil {
		return 0, fmt.Errorf("tugraph/importer: decode checkpoint %s: %w", job, err)
	}

	return rec.Done, nil
}

// Save implements Checkpointer.
func (n *NATSCheckpointer) Save(ctx context.Context, job string, done int) error {
	rec := checkpointRecord{
		Job:       job,
		Done:      done,
		UpdatedAt: time.Now().UnixMilli(),
	}

	data, err := rec.MarshalMsg(nil)
	if err != nil {
		return fmt.Errorf("tugraph/importer: encode checkpoint %s: %w", job, err)
	}

	if _, err := n.kv.Put(ctx, n.prefix+job, data); err != nil {
		return fmt.Errorf("tugraph/importer: save checkpoint %s: %w", job, err)
	}

	return nil
}

// Delete implements Checkpointer.
func (n *NATSCheckpointer) Delete(ctx context.Context, job string) error {
	err := n.kv.Delete(ctx, n.prefix+job)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("tugraph/importer: delete checkpoint %s: %w", job, err)
	}

	return nil
}

// checkpointRecord is the MessagePack value stored per job.
type checkpointRecord struct {
	Job       string `msg:"job"`
	Done      int    `msg:"done"`
	UpdatedAt int64  `msg:"updated_at"`
}

// MarshalMsg appends the MessagePack encoding of r to b.
func (r *checkpointRecord) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.Require(b, r.Msgsize())
	o = msgp.AppendMapHeader(o, 3)
	o = msgp.AppendString(o, "job")
	o = msgp.AppendString(o, r.Job)
	o = msgp.AppendString(o, "done")
	o = msgp.AppendInt(o, r.Done)
	o = msgp.AppendString(o, "updated_at")
	o = msgp.AppendInt64(o, r.UpdatedAt)

	return o, nil
}

// UnmarshalMsg decodes r from bts and returns the remaining bytes.
// Unknown keys are skipped.
func (r *checkpointRecord) UnmarshalMsg(bts []byte) ([]byte, error) {
	var (
		fields uint32
		field  []byte
		err    error
	)

	fields, bts, err = msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, msgp.WrapError(err)
	}

	for fields > 0 {
		fields--
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			return bts, msgp.WrapError(err)
		}

		switch msgp.UnsafeString(field) {
		case "job":
			r.Job, bts, err = msgp.ReadStringBytes(bts)
			if err != nil {
				return bts, msgp.WrapError(err, "Job")
			}
		case "done":
			r.Done, bts, err = msgp.ReadIntBytes(bts)
			if err != nil {
				return bts, msgp.WrapError(err, "Done")
			}
		case "updated_at":
			r.UpdatedAt, bts, err = msgp.ReadInt64Bytes(bts)
			if err != nil {
				return bts, msgp.WrapError(err, "UpdatedAt")
			}
		default:
			bts, err = msgp.Skip(bts)
			if err != nil {
				return bts, msgp.WrapError(err)
			}
		}
	}

	return bts, nil
}

// Msgsize returns an upper bound estimate of the encoded size of r.
func (r *checkpointRecord) Msgsize() int {
	return 1 + 4 + msgp.StringPrefixSize + len(r.Job) + 5 + msgp.IntSize + 11 + msgp.Int64Size
}
