package packet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientFrameRoundTrip(t *testing.T) {
	p, err := New("Echo", []byte("hi there"), 7, 42, 0)
	require.NoError(t, err)
	p.ErrorCode = 3

	frame, err := Encode(p)
	require.NoError(t, err)
	require.NoError(t, p.Dispose())

	got, err := Decode(bytes.NewReader(frame))
	require.NoError(t, err)
	defer got.Dispose()

	assert.Equal(t, "Echo", got.MsgID)
	assert.Equal(t, uint16(7), got.MsgSeq)
	assert.Equal(t, int64(42), got.StageID)
	assert.Equal(t, uint16(3), got.ErrorCode)
	view, err := got.View()
	require.NoError(t, err)
	assert.Equal(t, []byte("hi there"), view)
}

func TestDecodeManyFramesFromOneStream(t *testing.T) {
	var buf bytes.Buffer
	for i := 0; i < 5; i++ {
		frame, err := EncodeFields("Seq", uint16(i), 0, 0, []byte{byte(i)})
		require.NoError(t, err)
		buf.Write(frame)
	}

	for i := 0; i < 5; i++ {
		p, err := Decode(&buf)
		require.NoError(t, err)
		assert.Equal(t, uint16(i), p.MsgSeq)
		view, _ := p.View()
		assert.Equal(t, []byte{byte(i)}, view)
		p.Dispose()
	}
}

func TestDecodeBodyRejectsTruncation(t *testing.T) {
	frame, err := EncodeFields("Echo", 1, 2, 0, []byte("payload"))
	require.NoError(t, err)
	body := frame[4:]

	for _, cut := range []int{0, 3, len(body) - len("payload") - 1} {
		_, err := DecodeBody(body[:cut])
		assert.Error(t, err, "cut at %d", cut)
	}
}

func TestNotificationVsRequest(t *testing.T) {
	notif, err := New("Push", nil, 0, 0, 0)
	require.NoError(t, err)
	defer notif.Dispose()
	assert.True(t, notif.IsNotification())
	assert.False(t, notif.IsRequest())

	req, err := New("Get", nil, 9, 0, 0)
	require.NoError(t, err)
	defer req.Dispose()
	assert.True(t, req.IsRequest())
}

func TestMsgIDLimit(t *testing.T) {
	long := make([]byte, MaxMsgIDBytes+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err := New(string(long), nil, 0, 0, 0)
	assert.Error(t, err)
}
