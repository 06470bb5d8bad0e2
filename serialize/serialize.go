// Package serialize defines the Serializer contract user payloads are
// marshaled through, with JSON and Protobuf implementations.
package serialize

// Serializer marshals/unmarshals application payloads. GetName is embedded
// in the handshake data sent to clients so SDKs know which codec to use
// locally.
type Serializer interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
	GetName() string
}
