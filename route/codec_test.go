package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		ServiceID:   3,
		MsgID:       "Room.Move",
		MsgSeq:      4711,
		StageID:     -9000000000,
		SID:         12345,
		From:        "play-1",
		To:          "api-2",
		AccountID:   "acct-77",
		ErrorCode:   15,
		IsBase:      true,
		IsReply:     true,
		IsForwarded: true,
	}
	payload := []byte("the payload")

	frame, err := Encode(h, payload)
	require.NoError(t, err)

	got, gotPayload, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, h, got)
	assert.Equal(t, payload, gotPayload)
}

func TestEmptyFieldsRoundTrip(t *testing.T) {
	h := Header{MsgID: "x", From: "a"}

	frame, err := Encode(h, nil)
	require.NoError(t, err)

	got, gotPayload, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, h, got)
	assert.Empty(t, gotPayload)
}

func TestDecodeRejectsTruncatedFrame(t *testing.T) {
	h := Header{MsgID: "Echo", From: "a", To: "b"}
	frame, err := Encode(h, []byte("hi"))
	require.NoError(t, err)

	for _, cut := range []int{5, len(frame) / 2, len(frame) - 1} {
		_, _, err := Decode(frame[:cut])
		assert.Error(t, err, "cut at %d", cut)
	}
}

func TestEncodeRejectsOversizedBody(t *testing.T) {
	_, err := Encode(Header{MsgID: "big"}, make([]byte, MaxBodyBytes+1))
	assert.Error(t, err)
}

func TestReplySwapsDirection(t *testing.T) {
	h := Header{MsgID: "Echo", MsgSeq: 9, From: "a", To: "b", StageID: 4, SID: 8}
	r := h.Reply(0)
	assert.Equal(t, "b", r.From)
	assert.Equal(t, "a", r.To)
	assert.Equal(t, uint16(9), r.MsgSeq)
	assert.True(t, r.IsReply)
}
