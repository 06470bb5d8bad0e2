// Package util holds small cross-cutting helpers shared by the agent,
// dispatchers, and mesh: the serialize-or-pass-through rule for outbound
// payloads, the error-envelope codec used when a handler fails, and a
// stack-trace formatter for panic recovery logging.
package util

import (
	"runtime/debug"

	"github.com/ulala-x/playhouse/errors"
	"github.com/ulala-x/playhouse/serialize"
)

// SerializeOrRaw returns v unchanged if it is already a []byte, otherwise
// marshals it with s.
func SerializeOrRaw(s serialize.Serializer, v interface{}) ([]byte, error) {
	if raw, ok := v.([]byte); ok {
		return raw, nil
	}
	return s.Marshal(v)
}

// errorPayload is the wire shape for a failed handler's reply body.
type errorPayload struct {
	Code uint16 `json:"code"`
	Msg  string `json:"msg"`
}

// GetErrorPayload serializes err into the standard error envelope so it can
// be sent as packet payload bytes on an error reply.
func GetErrorPayload(s serialize.Serializer, err error) ([]byte, error) {
	ep := errorPayload{Code: uint16(errors.CodeOf(err)), Msg: err.Error()}
	return s.Marshal(ep)
}

// GetErrorFromPayload reverses GetErrorPayload, reconstructing a framework
// *errors.Error from reply bytes.
func GetErrorFromPayload(s serialize.Serializer, data []byte) error {
	var ep errorPayload
	if err := s.Unmarshal(data, &ep); err != nil {
		return errors.NewError(errors.CodeInternalError, err)
	}
	return errors.NewErrorf(errors.Code(ep.Code), "%s", ep.Msg)
}

// Stack returns the caller's goroutine stack trace, used when logging a
// recovered panic.
func Stack() string {
	return string(debug.Stack())
}
