package mesh

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulala-x/playhouse/requestcache"
	"github.com/ulala-x/playhouse/route"
)

type recordingHandler struct {
	mu     sync.Mutex
	system []route.Header
	stage  []route.Header
	api    []route.Header
}

func (h *recordingHandler) HandleSystem(hdr route.Header, pkt *route.Packet) {
	h.mu.Lock()
	h.system = append(h.system, hdr)
	h.mu.Unlock()
}
func (h *recordingHandler) HandleStage(hdr route.Header, pkt *route.Packet) {
	h.mu.Lock()
	h.stage = append(h.stage, hdr)
	h.mu.Unlock()
}
func (h *recordingHandler) HandleAPI(hdr route.Header, pkt *route.Packet) {
	h.mu.Lock()
	h.api = append(h.api, hdr)
	h.mu.Unlock()
}
func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.system) + len(h.stage) + len(h.api)
}

type noSystemMsgs struct{}

func (noSystemMsgs) IsSystemMsg(string) bool { return false }

func newTestCommunicator(t *testing.T, selfID string) (*Communicator, *recordingHandler) {
	t.Helper()
	h := &recordingHandler{}
	cache := requestcache.New()
	c := New(selfID, h, noSystemMsgs{}, cache, DefaultConfig(), nil)
	require.NoError(t, c.Listen("127.0.0.1:0"))
	t.Cleanup(c.Shutdown)
	return c, h
}

func TestSendRoutesToStageHandler(t *testing.T) {
	a, ha := newTestCommunicator(t, "A")
	b, _ := newTestCommunicator(t, "B")

	b.Connect("A", a.Addr().String())

	pkt := route.NewOwned(route.Header{MsgID: "Ping", StageID: 7, From: "B", To: "A"}, []byte("hello"))
	require.NoError(t, b.Send(context.Background(), "A", pkt))

	require.Eventually(t, func() bool { return ha.count() == 1 }, time.Second, 5*time.Millisecond)
	require.Len(t, ha.stage, 1)
	assert.Equal(t, "Ping", ha.stage[0].MsgID)
	assert.Equal(t, int64(7), ha.stage[0].StageID)
}

func TestSendRoutesToAPIHandlerWhenNoStageID(t *testing.T) {
	a, ha := newTestCommunicator(t, "A")
	b, _ := newTestCommunicator(t, "B")
	b.Connect("A", a.Addr().String())

	pkt := route.NewOwned(route.Header{MsgID: "GetProfile", From: "B", To: "A"}, nil)
	require.NoError(t, b.Send(context.Background(), "A", pkt))

	require.Eventually(t, func() bool { return ha.count() == 1 }, time.Second, 5*time.Millisecond)
	require.Len(t, ha.api, 1)
}

func TestSendToSelfIsRejected(t *testing.T) {
	a, _ := newTestCommunicator(t, "A")
	pkt := route.NewOwned(route.Header{MsgID: "Ping"}, nil)
	err := a.Send(context.Background(), "A", pkt)
	assert.Error(t, err)
}

func TestReplyIsConsumedByRequestCacheNotHandler(t *testing.T) {
	a, ha := newTestCommunicator(t, "A")
	b, _ := newTestCommunicator(t, "B")
	b.Connect("A", a.Addr().String())

	seq, handle := b.cache.Register(time.Second)
	reply := route.Header{MsgID: "Ping", MsgSeq: seq, From: "A", To: "B", IsReply: true}
	pkt := route.NewOwned(reply, []byte("pong"))
	require.NoError(t, a.Send(context.Background(), "B", pkt))

	res := handle.Wait()
	require.NoError(t, res.Err)
	body, _ := res.Packet.View()
	assert.Equal(t, "pong", string(body))
	assert.Equal(t, 0, ha.count())
}

func TestShutdownIsIdempotent(t *testing.T) {
	a, _ := newTestCommunicator(t, "A")
	a.Shutdown()
	a.Shutdown()
}
