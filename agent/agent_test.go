package agent

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulala-x/playhouse/packet"
	serializejson "github.com/ulala-x/playhouse/serialize/json"
	"github.com/ulala-x/playhouse/session"
	"github.com/ulala-x/playhouse/util/compression"
)

type recordingCore struct {
	mu           sync.Mutex
	packets      []*packet.Packet
	disconnected []int64
}

func (c *recordingCore) HandlePacket(ctx context.Context, sid int64, pkt *packet.Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.packets = append(c.packets, pkt)
	return nil
}

func (c *recordingCore) HandleDisconnect(sid int64, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = append(c.disconnected, sid)
}

func startAgent(t *testing.T) (*Agent, net.Conn, *recordingCore) {
	t.Helper()
	serverSide, clientSide := net.Pipe()
	core := &recordingCore{}
	a := New(serverSide, session.NewSessionPool(), core, serializejson.New(), Config{
		HeartbeatInterval: time.Minute,
	}, nil)
	go a.Handle()
	t.Cleanup(func() {
		a.Close()
		clientSide.Close()
	})
	return a, clientSide, core
}

func readFrame(t *testing.T, conn net.Conn) *packet.Packet {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	p, err := packet.Decode(conn)
	require.NoError(t, err)
	return p
}

func TestHandshakeIsPushedFirst(t *testing.T) {
	_, client, _ := startAgent(t)

	hs := readFrame(t, client)
	defer hs.Dispose()
	require.Equal(t, MsgHandshake, hs.MsgID)
	assert.True(t, hs.IsNotification())

	body, err := hs.View()
	require.NoError(t, err)
	require.NotEmpty(t, body)
	raw := body[1:]
	if body[0] == 1 {
		raw, err = compression.InflateData(raw)
		require.NoError(t, err)
	}

	var data handshakeData
	require.NoError(t, serializejson.New().Unmarshal(raw, &data))
	assert.Equal(t, "json", data.Serializer)
	assert.Equal(t, int64(60), data.Heartbeat)
}

func TestInboundPacketReachesCore(t *testing.T) {
	_, client, core := startAgent(t)

	hs := readFrame(t, client)
	hs.Dispose()

	frame, err := packet.EncodeFields("Echo", 3, 9, 0, []byte("hello"))
	require.NoError(t, err)
	_, err = client.Write(frame)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		core.mu.Lock()
		defer core.mu.Unlock()
		return len(core.packets) == 1
	}, 2*time.Second, 10*time.Millisecond)

	core.mu.Lock()
	got := core.packets[0]
	core.mu.Unlock()
	assert.Equal(t, "Echo", got.MsgID)
	assert.Equal(t, uint16(3), got.MsgSeq)
	assert.Equal(t, int64(9), got.StageID)
	view, err := got.View()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), view)
	got.Dispose()
}

func TestSendWritesClientFrame(t *testing.T) {
	a, client, _ := startAgent(t)

	hs := readFrame(t, client)
	hs.Dispose()

	require.NoError(t, a.Send(context.Background(), "Push", 0, 4, 0, []byte("data")))

	p := readFrame(t, client)
	defer p.Dispose()
	assert.Equal(t, "Push", p.MsgID)
	assert.Equal(t, int64(4), p.StageID)
	view, _ := p.View()
	assert.Equal(t, []byte("data"), view)
}

func TestDisconnectPropagatesOnce(t *testing.T) {
	a, client, core := startAgent(t)

	hs := readFrame(t, client)
	hs.Dispose()

	client.Close()
	require.Eventually(t, func() bool {
		core.mu.Lock()
		defer core.mu.Unlock()
		return len(core.disconnected) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// A second close must not re-notify.
	a.Close()
	core.mu.Lock()
	n := len(core.disconnected)
	core.mu.Unlock()
	assert.Equal(t, 1, n)

	// Sends after close fail fast.
	assert.Error(t, a.Send(context.Background(), "Push", 0, 0, 0, nil))
}
