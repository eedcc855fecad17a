package connect

import (
	"bytes"
	"encoding/json"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
)

// codecName replaces connect's default protojson codec, so both
// application/json and application/connect+json requests decode into plain
// structs.
const codecName = "json"

type jsonCodec struct{}

var _ connect.Codec = jsonCodec{}

// WithJSONCodec is the codec option every handler and client must use.
func WithJSONCodec() connect.Option {
	return connect.WithCodec(jsonCodec{})
}

func (jsonCodec) Name() string {
	return codecName
}

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

// Unmarshal accepts an empty body as the zero message.
func (jsonCodec) Unmarshal(data []byte, msg any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return errors.Wrap(err, "failed to decode message")
	}
	return nil
}
