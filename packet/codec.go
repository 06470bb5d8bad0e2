package packet

import (
	"encoding/binary"
	"io"

	"github.com/ulala-x/playhouse/errors"
)

// Client wire framing, little-endian:
//
//	[4 body-len]
//	[1 msg-id-len][n msg-id UTF-8]
//	[2 msg-seq]
//	[8 stage-id]
//	[2 error-code]
//	[var payload]
//
// body-len counts everything after itself; payload length is body-len minus
// the fixed header portion.

const clientHeaderFixed = 1 + 2 + 8 + 2

// MaxBodyBytes bounds one encoded client frame's body.
const MaxBodyBytes = 2 * 1024 * 1024

// Encode serializes p into one client wire frame.
func Encode(p *Packet) ([]byte, error) {
	payload, err := p.View()
	if err != nil {
		return nil, err
	}
	bodyLen := clientHeaderFixed + len(p.MsgID) + len(payload)
	if bodyLen > MaxBodyBytes {
		return nil, errors.NewErrorf(errors.CodeInvalidMessage, "packet: encoded body %d exceeds max %d", bodyLen, MaxBodyBytes)
	}

	buf := make([]byte, 0, 4+bodyLen)
	var scratch [8]byte

	binary.LittleEndian.PutUint32(scratch[:4], uint32(bodyLen))
	buf = append(buf, scratch[:4]...)

	buf = append(buf, byte(len(p.MsgID)))
	buf = append(buf, p.MsgID...)

	binary.LittleEndian.PutUint16(scratch[:2], p.MsgSeq)
	buf = append(buf, scratch[:2]...)

	binary.LittleEndian.PutUint64(scratch[:8], uint64(p.StageID))
	buf = append(buf, scratch[:8]...)

	binary.LittleEndian.PutUint16(scratch[:2], p.ErrorCode)
	buf = append(buf, scratch[:2]...)

	buf = append(buf, payload...)
	return buf, nil
}

// EncodeFields is Encode for callers that hold the fields loose instead of
// a constructed Packet (the session edge's reply path).
func EncodeFields(msgID string, msgSeq uint16, stageID int64, errorCode uint16, payload []byte) ([]byte, error) {
	p, err := New(msgID, payload, msgSeq, stageID, 0)
	if err != nil {
		return nil, err
	}
	defer p.Dispose()
	p.ErrorCode = errorCode
	return Encode(p)
}

// Decode reads one client frame from r and constructs a Packet owning one
// payload reference. io.EOF is returned unwrapped on a clean close between
// frames.
func Decode(r io.Reader) (*Packet, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	bodyLen := binary.LittleEndian.Uint32(lenBuf[:])
	if bodyLen > MaxBodyBytes {
		return nil, errors.NewErrorf(errors.CodeInvalidMessage, "packet: frame body %d exceeds max %d", bodyLen, MaxBodyBytes)
	}
	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return DecodeBody(body)
}

// DecodeBody parses one frame body (everything after the length prefix),
// for transports like websocket that already deliver message-sized chunks.
func DecodeBody(body []byte) (*Packet, error) {
	if len(body) < 1 {
		return nil, errors.NewErrorf(errors.CodeInvalidMessage, "packet: truncated frame")
	}
	idLen := int(body[0])
	if len(body) < 1+idLen+2+8+2 {
		return nil, errors.NewErrorf(errors.CodeInvalidMessage, "packet: truncated frame")
	}
	msgID := string(body[1 : 1+idLen])
	rest := body[1+idLen:]

	msgSeq := binary.LittleEndian.Uint16(rest[:2])
	stageID := int64(binary.LittleEndian.Uint64(rest[2:10]))
	errorCode := binary.LittleEndian.Uint16(rest[10:12])
	payload := rest[12:]

	p, err := New(msgID, payload, msgSeq, stageID, 0)
	if err != nil {
		return nil, err
	}
	p.ErrorCode = errorCode
	return p, nil
}
