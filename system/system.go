// Package system handles server-to-server control messages: mesh
// keepalives, server info updates, debug probes, and duplicate-login
// eviction. The mesh demultiplexer routes any registered system msgId here
// before Stage/API dispatch is considered.
package system

import (
	stdctx "context"

	jsoniter "github.com/json-iterator/go"
	"google.golang.org/protobuf/proto"

	"github.com/ulala-x/playhouse/discovery"
	"github.com/ulala-x/playhouse/errors"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/protos"
	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/session"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Control message ids handled here.
const (
	MsgHeartbeat  = "@Heart@Beat@"
	MsgDebug      = "@Debug@"
	MsgServerInfo = "@Server@Info@"
	MsgBind       = "@Bind@"
)

// Replier routes a reply for an inbound request header; package play's
// outbound adapter satisfies it.
type Replier interface {
	ReplyRoute(ctx stdctx.Context, h route.Header, errorCode uint16, payload []byte) error
}

// StatsFunc supplies the live numbers a @Debug@ probe reports.
type StatsFunc func() map[string]interface{}

// Handler is the per-process system message dispatcher.
type Handler struct {
	selfID   string
	table    *discovery.Table
	sessions session.SessionPool
	replier  Replier
	stats    StatsFunc
}

// New builds a Handler. sessions may be nil on servers with no client
// edge; stats may be nil to disable @Debug@ payloads.
func New(selfID string, table *discovery.Table, sessions session.SessionPool, replier Replier, stats StatsFunc) *Handler {
	return &Handler{selfID: selfID, table: table, sessions: sessions, replier: replier, stats: stats}
}

// IsSystemMsg reports whether msgID is a control message this handler owns.
func (h *Handler) IsSystemMsg(msgID string) bool {
	switch msgID {
	case MsgHeartbeat, MsgDebug, MsgServerInfo, MsgBind:
		return true
	}
	return false
}

// Dispatch handles one control message.
func (h *Handler) Dispatch(ctx stdctx.Context, header route.Header, payload []byte) {
	switch header.MsgID {
	case MsgHeartbeat:
		// Keepalive; refresh the peer's liveness stamp, no reply expected.
		if h.table != nil && header.From != "" {
			h.table.Touch(header.From)
		}

	case MsgServerInfo:
		h.handleServerInfo(header, payload)

	case MsgDebug:
		h.handleDebug(ctx, header)

	case MsgBind:
		h.handleBind(ctx, header, payload)

	default:
		logger.Log.Warnf("system: unhandled control msgId=%s from=%s", header.MsgID, header.From)
	}
}

func (h *Handler) handleServerInfo(header route.Header, payload []byte) {
	if h.table == nil {
		return
	}
	var info discovery.ServerInfo
	if err := json.Unmarshal(payload, &info); err != nil {
		logger.Log.Warnf("system: malformed server info from %s: %s", header.From, err.Error())
		return
	}
	h.table.Upsert(info)
}

func (h *Handler) handleDebug(ctx stdctx.Context, header route.Header) {
	if header.MsgSeq == 0 || h.replier == nil {
		return
	}
	stats := map[string]interface{}{"serverId": h.selfID}
	if h.stats != nil {
		for k, v := range h.stats() {
			stats[k] = v
		}
	}
	body, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := h.replier.ReplyRoute(ctx, header, uint16(errors.CodeSuccess), body); err != nil {
		logger.Log.Debugf("system: debug reply to %s failed: %s", header.From, err.Error())
	}
}

// handleBind evicts the previous connection when an account authenticates
// somewhere else: the new owner notifies the server holding the old
// session, and that edge kicks it.
func (h *Handler) handleBind(ctx stdctx.Context, header route.Header, payload []byte) {
	if h.sessions == nil {
		return
	}
	var bind protos.BindMsg
	if err := proto.Unmarshal(payload, &bind); err != nil {
		logger.Log.Warnf("system: malformed bind from %s: %s", header.From, err.Error())
		return
	}
	sess, ok := h.sessions.GetSessionByUID(bind.Uid)
	if !ok {
		return
	}
	logger.Log.Infof("system: account %s re-bound on %s, kicking local session %d", bind.Uid, bind.Fid, sess.ID())
	if err := sess.Kick(ctx, "bound elsewhere"); err != nil {
		logger.Log.Debugf("system: kick session %d: %s", sess.ID(), err.Error())
	}
}

// EncodeBind builds the payload a server sends to the old session's owner
// when accountID re-authenticates on newServerID.
func EncodeBind(accountID, newServerID string) ([]byte, error) {
	return proto.Marshal(&protos.BindMsg{Uid: accountID, Fid: newServerID})
}

// EncodeServerInfo builds a @Server@Info@ payload.
func EncodeServerInfo(info discovery.ServerInfo) ([]byte, error) {
	return json.Marshal(info)
}
