package acceptor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulala-x/playhouse/agent"
	"github.com/ulala-x/playhouse/packet"
	serializejson "github.com/ulala-x/playhouse/serialize/json"
	"github.com/ulala-x/playhouse/session"
)

type recordingCore struct {
	mu      sync.Mutex
	packets []*packet.Packet
	gone    []int64
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
	c.gone = append(c.gone, sid)
}

func startWS(t *testing.T) (*WSAcceptor, *recordingCore) {
	t.Helper()
	core := &recordingCore{}
	ws := NewWS(session.NewSessionPool(), core, serializejson.New(), agent.Config{
		HeartbeatInterval: time.Minute,
	}, nil)
	go func() {
		if err := ws.ListenAndServe("127.0.0.1:0"); err != nil {
			t.Errorf("ws acceptor: %s", err)
		}
	}()
	require.Eventually(t, func() bool { return ws.Addr() != nil }, 2*time.Second, 10*time.Millisecond)
	t.Cleanup(ws.Stop)
	return ws, core
}

func TestWebSocketClientRoundTrip(t *testing.T) {
	ws, core := startWS(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ws.Addr().String(), nil)
	require.NoError(t, err)
	defer conn.Close()

	// First push is the handshake.
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	hs, err := packet.DecodeBody(data[4:])
	require.NoError(t, err)
	assert.Equal(t, agent.MsgHandshake, hs.MsgID)
	hs.Dispose()

	frame, err := packet.EncodeFields("Echo", 5, 1, 0, []byte("over ws"))
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, frame))

	require.Eventually(t, func() bool {
		core.mu.Lock()
		defer core.mu.Unlock()
		return len(core.packets) == 1
	}, 2*time.Second, 10*time.Millisecond)

	core.mu.Lock()
	got := core.packets[0]
	core.mu.Unlock()
	assert.Equal(t, "Echo", got.MsgID)
	view, _ := got.View()
	assert.Equal(t, []byte("over ws"), view)
	got.Dispose()
}

func TestWebSocketDisconnectReachesCore(t *testing.T) {
	ws, core := startWS(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ws.Addr().String(), nil)
	require.NoError(t, err)

	_, _, err = conn.ReadMessage() // handshake
	require.NoError(t, err)
	conn.Close()

	require.Eventually(t, func() bool {
		core.mu.Lock()
		defer core.mu.Unlock()
		return len(core.gone) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
