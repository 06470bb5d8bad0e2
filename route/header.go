// Package route implements the inter-server addressing envelope: the
// Header, the Packet that pairs it with a payload, and their wire codec.
package route

// Header is the addressing envelope carried with every inter-server
// message. isBase distinguishes framework control traffic from user
// traffic; isReply marks a completion of an earlier request; isForwarded
// is set the first time the header leaves its originating server, used to
// short-circuit routing loops.
type Header struct {
	ServiceID   uint16
	MsgID       string
	MsgSeq      uint16
	StageID     int64
	SID         int64
	From        string
	To          string
	AccountID   string
	ErrorCode   uint16
	IsBase      bool
	IsReply     bool
	IsForwarded bool
}

// Forwarded returns a copy of h with IsForwarded set, used when a header
// leaves its originating server for the first time.
func (h Header) Forwarded() Header {
	h.IsForwarded = true
	return h
}

// Reply builds a reply header: same correlation fields (msgSeq, from/to
// swapped, stage/sid preserved), IsReply set, and the given error code.
func (h Header) Reply(errorCode uint16) Header {
	return Header{
		ServiceID: h.ServiceID,
		MsgID:     h.MsgID,
		MsgSeq:    h.MsgSeq,
		StageID:   h.StageID,
		SID:       h.SID,
		From:      h.To,
		To:        h.From,
		AccountID: h.AccountID,
		ErrorCode: errorCode,
		IsBase:    h.IsBase,
		IsReply:   true,
	}
}
