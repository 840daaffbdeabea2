package grpc

import (
    "encoding/json"

    "google.golang.org/grpc/encoding"
)

const codecName = "json"

// jsonCodec carries management messages as JSON so the hand-written service
// descriptors need no protobuf types.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error)   { return json.Marshal(v) }
func (jsonCodec) Unmarshal(b []byte, v interface{}) error { return json.Unmarshal(b, v) }
func (jsonCodec) Name() string                            { return codecName }

func init() { encoding.RegisterCodec(jsonCodec{}) }
