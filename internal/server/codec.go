package server

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// jsonCodec encodes plain Go structs as JSON for connect handlers, so the
// RPC surface needs no generated protobuf types.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

var _ connect.Codec = jsonCodec{}

// Codec returns the JSON codec option shared by handlers and clients.
func Codec() connect.Option { return connect.WithCodec(jsonCodec{}) }
