package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content subtype used for envelope messages.
const CodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec encodes protocol envelopes as JSON on the gRPC wire.
type jsonCodec struct{}

var _ encoding.Codec = jsonCodec{}

// Marshal implements encoding.Codec.
func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal implements encoding.Codec.
func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Name implements encoding.Codec.
func (jsonCodec) Name() string {
	return CodecName
}
