// Package packet implements the client-facing message envelope: the
// {msgId, payload, msgSeq, stageId, errorCode} tuple carried between a
// session, a Stage, and an API handler.
package packet

import (
	"fmt"
	"unicode/utf8"

	"github.com/ulala-x/playhouse/errors"
	"github.com/ulala-x/playhouse/payload"
)

// MaxMsgIDBytes is the maximum UTF-8 byte length of a msgId.
const MaxMsgIDBytes = 255

// marshaler is a narrow structural interface satisfied by
// serialize.Serializer without importing it, avoiding a packet<->serialize
// import cycle (serialize types wrap payloads built here).
type marshaler interface {
	Marshal(v interface{}) ([]byte, error)
}

// Packet is the message-level envelope: a msgId, a payload, a sequence
// number distinguishing notifications from requests, the destination
// Stage, and an error code for replies.
type Packet struct {
	MsgID     string
	Payload   *payload.Payload
	MsgSeq    uint16
	StageID   int64
	ErrorCode uint16
}

// IsNotification reports whether this packet expects no reply (msgSeq==0).
func (p *Packet) IsNotification() bool { return p.MsgSeq == 0 }

// IsRequest reports whether this packet expects a reply (msgSeq>0).
func (p *Packet) IsRequest() bool { return p.MsgSeq > 0 }

// View returns the packet's payload bytes.
func (p *Packet) View() ([]byte, error) { return p.Payload.View() }

// Dispose releases the packet's exclusive reference on its payload. A
// packet must be disposed exactly once by whichever code path stops
// forwarding it.
func (p *Packet) Dispose() error {
	if p.Payload == nil {
		return nil
	}
	return p.Payload.Release()
}

func validateMsgID(msgID string) error {
	if utf8.RuneCountInString(msgID) == 0 {
		return nil
	}
	if len(msgID) > MaxMsgIDBytes {
		return errors.NewErrorf(errors.CodeInvalidMessage, "msgId exceeds %d UTF-8 bytes", MaxMsgIDBytes)
	}
	if !utf8.ValidString(msgID) {
		return errors.NewErrorf(errors.CodeInvalidMessage, "msgId is not valid UTF-8")
	}
	return nil
}

// New builds a Packet by copying raw bytes into a pooled Payload. Returns
// errors.CodeInvalidMessage if msgId is too long, or a payload-size error
// if bytes exceeds maxPayloadBytes.
func New(msgID string, bytes []byte, msgSeq uint16, stageID int64, maxPayloadBytes int) (*Packet, error) {
	if err := validateMsgID(msgID); err != nil {
		return nil, err
	}
	if maxPayloadBytes > 0 && len(bytes) > maxPayloadBytes {
		return nil, errors.NewErrorf(errors.CodeInvalidMessage, "payload of %d bytes exceeds max %d", len(bytes), maxPayloadBytes)
	}
	return &Packet{
		MsgID:   msgID,
		Payload: payload.New(bytes),
		MsgSeq:  msgSeq,
		StageID: stageID,
	}, nil
}

// NewFromProto eagerly serializes v via m and builds a Packet from the
// result. Bytes must be final at router ingress, so there is no
// lazy/deferred-encode path.
func NewFromProto(msgID string, v interface{}, m marshaler, msgSeq uint16, stageID int64, maxPayloadBytes int) (*Packet, error) {
	bytes, err := m.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("packet: marshal %s: %w", msgID, err)
	}
	return New(msgID, bytes, msgSeq, stageID, maxPayloadBytes)
}

// Reply builds a reply Packet that echoes this packet's MsgSeq.
func (p *Packet) Reply(msgID string, bytes []byte, errorCode uint16, maxPayloadBytes int) (*Packet, error) {
	reply, err := New(msgID, bytes, p.MsgSeq, p.StageID, maxPayloadBytes)
	if err != nil {
		return nil, err
	}
	reply.ErrorCode = errorCode
	return reply, nil
}
