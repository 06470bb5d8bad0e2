// Package protobuf implements serialize.Serializer over protobuf-generated
// messages.
package protobuf

import (
	"github.com/golang/protobuf/proto"
	jsoniter "github.com/json-iterator/go"
)

var fallback = jsoniter.ConfigCompatibleWithStandardLibrary

// Serializer marshals application payloads that implement proto.Message.
// Framework-internal values that never got a .proto definition (error
// envelopes, debug maps) fall back to JSON rather than failing outright,
// since not every value flowing through Serializer is a generated message.
type Serializer struct{}

// New returns a Protobuf Serializer.
func New() *Serializer { return &Serializer{} }

// Marshal implements serialize.Serializer.
func (s *Serializer) Marshal(v interface{}) ([]byte, error) {
	if pm, ok := v.(proto.Message); ok {
		return proto.Marshal(pm)
	}
	return fallback.Marshal(v)
}

// Unmarshal implements serialize.Serializer.
func (s *Serializer) Unmarshal(data []byte, v interface{}) error {
	if pm, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, pm)
	}
	return fallback.Unmarshal(data, v)
}

// GetName implements serialize.Serializer.
func (s *Serializer) GetName() string { return "protobuf" }
