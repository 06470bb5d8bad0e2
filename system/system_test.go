package system

import (
	stdctx "context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulala-x/playhouse/discovery"
	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/session/mocks"
)

type recordingReplier struct {
	headers  []route.Header
	codes    []uint16
	payloads [][]byte
}

func (r *recordingReplier) ReplyRoute(ctx stdctx.Context, h route.Header, errorCode uint16, payload []byte) error {
	r.headers = append(r.headers, h)
	r.codes = append(r.codes, errorCode)
	r.payloads = append(r.payloads, payload)
	return nil
}

func TestHeartbeatTouchesPeer(t *testing.T) {
	table := discovery.NewTable("self")
	table.Upsert(discovery.ServerInfo{ServerID: "peer-1", BindEndpoint: "127.0.0.1:9001"})

	h := New("self", table, nil, nil, nil)
	h.Dispatch(stdctx.Background(), route.Header{MsgID: MsgHeartbeat, From: "peer-1", IsBase: true}, nil)

	_, ok := table.Get("peer-1")
	assert.True(t, ok)
}

func TestServerInfoUpdatesTable(t *testing.T) {
	table := discovery.NewTable("self")
	h := New("self", table, nil, nil, nil)

	payload, err := EncodeServerInfo(discovery.ServerInfo{ServerID: "play-9", ServiceType: "play", BindEndpoint: "127.0.0.1:9009"})
	require.NoError(t, err)
	h.Dispatch(stdctx.Background(), route.Header{MsgID: MsgServerInfo, From: "play-9", IsBase: true}, payload)

	info, ok := table.Get("play-9")
	require.True(t, ok)
	assert.Equal(t, "127.0.0.1:9009", info.BindEndpoint)
}

func TestDebugRepliesWithStats(t *testing.T) {
	replier := &recordingReplier{}
	h := New("self", nil, nil, replier, func() map[string]interface{} {
		return map[string]interface{}{"stages": 3}
	})

	h.Dispatch(stdctx.Background(), route.Header{MsgID: MsgDebug, MsgSeq: 8, From: "ops", IsBase: true}, nil)

	require.Len(t, replier.payloads, 1)
	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(replier.payloads[0], &stats))
	assert.Equal(t, "self", stats["serverId"])
	assert.EqualValues(t, 3, stats["stages"])
}

func TestDebugNotificationGetsNoReply(t *testing.T) {
	replier := &recordingReplier{}
	h := New("self", nil, nil, replier, nil)

	h.Dispatch(stdctx.Background(), route.Header{MsgID: MsgDebug, MsgSeq: 0, From: "ops", IsBase: true}, nil)
	assert.Empty(t, replier.payloads)
}

func TestBindKicksLocalSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pool := mocks.NewMockSessionPool(ctrl)
	sess := mocks.NewMockSession(ctrl)
	pool.EXPECT().GetSessionByUID("acct-5").Return(sess, true)
	sess.EXPECT().ID().Return(int64(3)).AnyTimes()
	sess.EXPECT().Kick(gomock.Any(), gomock.Any()).Return(nil)

	h := New("self", nil, pool, nil, nil)
	payload, err := EncodeBind("acct-5", "session-2")
	require.NoError(t, err)
	h.Dispatch(stdctx.Background(), route.Header{MsgID: MsgBind, From: "session-2", IsBase: true}, payload)
}

func TestBindUnknownAccountIsNoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pool := mocks.NewMockSessionPool(ctrl)
	pool.EXPECT().GetSessionByUID("ghost").Return(nil, false)

	h := New("self", nil, pool, nil, nil)
	payload, err := EncodeBind("ghost", "session-2")
	require.NoError(t, err)
	h.Dispatch(stdctx.Background(), route.Header{MsgID: MsgBind, From: "session-2", IsBase: true}, payload)
}

func TestIsSystemMsg(t *testing.T) {
	h := New("self", nil, nil, nil, nil)
	assert.True(t, h.IsSystemMsg(MsgHeartbeat))
	assert.True(t, h.IsSystemMsg(MsgBind))
	assert.False(t, h.IsSystemMsg("Echo"))
}
