package route

import (
	"encoding/binary"
	"fmt"
)

// MaxBodyBytes bounds the total encoded body (header + payload).
const MaxBodyBytes = 2 * 1024 * 1024

const (
	flagIsBase       = 1 << 0
	flagIsReply      = 1 << 1
	flagIsForwarded  = 1 << 2
)

// lengthPrefixWidth is the width of the from/to/account-id length prefixes.
const lengthPrefixWidth = 2

func putString(buf []byte, s string) []byte {
	var lenBuf [lengthPrefixWidth]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(s)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, s...)
	return buf
}

func readString(buf []byte) (string, []byte, error) {
	if len(buf) < lengthPrefixWidth {
		return "", nil, fmt.Errorf("route: truncated length prefix")
	}
	n := binary.LittleEndian.Uint16(buf)
	buf = buf[lengthPrefixWidth:]
	if len(buf) < int(n) {
		return "", nil, fmt.Errorf("route: truncated string field")
	}
	return string(buf[:n]), buf[n:], nil
}

// Encode serializes header and payload into the wire envelope:
// [4 body-len][1 msgid-len][msgid][2 msgseq][8 stageid][2 serviceid]
// [2 errorcode][from][to][accountid][1 flags][8 sid][payload].
func Encode(h Header, payloadBytes []byte) ([]byte, error) {
	if len(h.MsgID) > 255 {
		return nil, fmt.Errorf("route: msgId exceeds 255 bytes")
	}
	body := make([]byte, 0, 32+len(h.MsgID)+len(h.From)+len(h.To)+len(h.AccountID)+len(payloadBytes))
	body = append(body, byte(len(h.MsgID)))
	body = append(body, h.MsgID...)

	var u16 [2]byte
	binary.LittleEndian.PutUint16(u16[:], h.MsgSeq)
	body = append(body, u16[:]...)

	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], uint64(h.StageID))
	body = append(body, u64[:]...)

	binary.LittleEndian.PutUint16(u16[:], h.ServiceID)
	body = append(body, u16[:]...)

	binary.LittleEndian.PutUint16(u16[:], h.ErrorCode)
	body = append(body, u16[:]...)

	body = putString(body, h.From)
	body = putString(body, h.To)
	body = putString(body, h.AccountID)

	var flags byte
	if h.IsBase {
		flags |= flagIsBase
	}
	if h.IsReply {
		flags |= flagIsReply
	}
	if h.IsForwarded {
		flags |= flagIsForwarded
	}
	body = append(body, flags)

	binary.LittleEndian.PutUint64(u64[:], uint64(h.SID))
	body = append(body, u64[:]...)

	body = append(body, payloadBytes...)

	if 4+len(body) > MaxBodyBytes {
		return nil, fmt.Errorf("route: encoded body of %d bytes exceeds max %d", 4+len(body), MaxBodyBytes)
	}

	out := make([]byte, 4, 4+len(body))
	binary.LittleEndian.PutUint32(out, uint32(len(body)))
	out = append(out, body...)
	return out, nil
}

// Decode parses a full frame (including its 4-byte length prefix, as
// produced by Encode) back into a Header and the raw payload bytes.
func Decode(frame []byte) (Header, []byte, error) {
	var h Header
	if len(frame) < 4 {
		return h, nil, fmt.Errorf("route: frame shorter than length prefix")
	}
	bodyLen := binary.LittleEndian.Uint32(frame)
	buf := frame[4:]
	if uint32(len(buf)) < bodyLen {
		return h, nil, fmt.Errorf("route: frame shorter than declared body length")
	}
	buf = buf[:bodyLen]

	if len(buf) < 1 {
		return h, nil, fmt.Errorf("route: truncated msgid length")
	}
	msgIDLen := int(buf[0])
	buf = buf[1:]
	if len(buf) < msgIDLen {
		return h, nil, fmt.Errorf("route: truncated msgid")
	}
	h.MsgID = string(buf[:msgIDLen])
	buf = buf[msgIDLen:]

	if len(buf) < 2 {
		return h, nil, fmt.Errorf("route: truncated msgseq")
	}
	h.MsgSeq = binary.LittleEndian.Uint16(buf)
	buf = buf[2:]

	if len(buf) < 8 {
		return h, nil, fmt.Errorf("route: truncated stageid")
	}
	h.StageID = int64(binary.LittleEndian.Uint64(buf))
	buf = buf[8:]

	if len(buf) < 2 {
		return h, nil, fmt.Errorf("route: truncated serviceid")
	}
	h.ServiceID = binary.LittleEndian.Uint16(buf)
	buf = buf[2:]

	if len(buf) < 2 {
		return h, nil, fmt.Errorf("route: truncated errorcode")
	}
	h.ErrorCode = binary.LittleEndian.Uint16(buf)
	buf = buf[2:]

	var err error
	h.From, buf, err = readString(buf)
	if err != nil {
		return h, nil, err
	}
	h.To, buf, err = readString(buf)
	if err != nil {
		return h, nil, err
	}
	h.AccountID, buf, err = readString(buf)
	if err != nil {
		return h, nil, err
	}

	if len(buf) < 1 {
		return h, nil, fmt.Errorf("route: truncated flags")
	}
	flags := buf[0]
	h.IsBase = flags&flagIsBase != 0
	h.IsReply = flags&flagIsReply != 0
	h.IsForwarded = flags&flagIsForwarded != 0
	buf = buf[1:]

	if len(buf) < 8 {
		return h, nil, fmt.Errorf("route: truncated sid")
	}
	h.SID = int64(binary.LittleEndian.Uint64(buf))
	buf = buf[8:]

	return h, buf, nil
}
