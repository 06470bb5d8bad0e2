// Package json implements serialize.Serializer over json-iterator/go, a
// drop-in faster replacement for encoding/json.
package json

import jsoniter "github.com/json-iterator/go"

var api = jsoniter.ConfigCompatibleWithStandardLibrary

// Serializer marshals application payloads as JSON.
type Serializer struct{}

// New returns a JSON Serializer.
func New() *Serializer { return &Serializer{} }

// Marshal implements serialize.Serializer.
func (s *Serializer) Marshal(v interface{}) ([]byte, error) {
	return api.Marshal(v)
}

// Unmarshal implements serialize.Serializer.
func (s *Serializer) Unmarshal(data []byte, v interface{}) error {
	return api.Unmarshal(data, v)
}

// GetName implements serialize.Serializer.
func (s *Serializer) GetName() string { return "json" }
