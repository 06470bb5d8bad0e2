package play

import (
	"context"

	"github.com/ulala-x/playhouse/errors"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/stage"
)

// outboundAdapter is the Dispatcher's implementation of stage.Outbound: the
// one seam through which every Stage's Context reaches the mesh, the
// session layer, and the async-block worker. A send whose destination
// server is empty or equal to this server's own id is short-circuited into
// a local call instead of round-tripping through the mesh.
type outboundAdapter struct {
	d *Dispatcher
}

func (o *outboundAdapter) SendToClient(ctx context.Context, sid int64, msgID string, msgSeq uint16, stageID int64, errorCode uint16, payload []byte) error {
	if o.d.sessions == nil {
		return errors.NewErrorf(errors.CodeServerNotFound, "play: no session layer configured")
	}
	sess, ok := o.d.sessions.GetSessionByID(sid)
	if !ok {
		return errors.NewErrorf(errors.CodeServerNotFound, "play: sid %d not locally connected", sid)
	}
	return sess.Send(ctx, msgID, msgSeq, stageID, errorCode, payload)
}

// BindSession assigns accountID to sid's Session and kicks any other local
// session already bound to the same account (a duplicate login landing on
// this edge). Duplicates on other edges are evicted by the application
// sending a bind control message to the owning server.
func (o *outboundAdapter) BindSession(ctx context.Context, sid int64, accountID string) error {
	if o.d.sessions == nil {
		return nil
	}
	if prev, ok := o.d.sessions.GetSessionByUID(accountID); ok && prev.ID() != sid {
		logger.Log.Infof("play: account %s re-bound to sid=%d, kicking sid=%d", accountID, sid, prev.ID())
		_ = prev.Kick(ctx, "bound elsewhere")
	}
	sess, ok := o.d.sessions.GetSessionByID(sid)
	if !ok {
		return errors.NewErrorf(errors.CodeServerNotFound, "play: sid %d not locally connected", sid)
	}
	return sess.Bind(ctx, accountID)
}

func (o *outboundAdapter) CloseClient(ctx context.Context, sid int64, reason string) error {
	if o.d.sessions == nil {
		return errors.NewErrorf(errors.CodeServerNotFound, "play: no session layer configured")
	}
	sess, ok := o.d.sessions.GetSessionByID(sid)
	if !ok {
		return nil
	}
	return sess.Close(reason)
}

func (o *outboundAdapter) SendToStage(ctx context.Context, serverID string, stageID int64, msgID string, payload []byte) error {
	h := route.Header{MsgID: msgID, StageID: stageID, From: o.d.cfg.SelfServerID, To: serverID}
	if serverID == "" || serverID == o.d.cfg.SelfServerID {
		return o.d.DispatchRoute(ctx, h, payload)
	}
	if o.d.mesh == nil {
		return errors.NewErrorf(errors.CodeServerNotFound, "play: no mesh configured to reach %q", serverID)
	}
	return o.d.mesh.Send(ctx, serverID, route.NewOwned(h, payload))
}

func (o *outboundAdapter) RequestToStage(ctx context.Context, serverID string, stageID int64, msgID string, payload []byte) (*route.Packet, error) {
	if o.d.reqCache == nil {
		return nil, errors.NewErrorf(errors.CodeSystemError, "play: request cache not configured")
	}
	seq, handle := o.d.reqCache.Register(o.d.cfg.RequestTimeout)
	h := route.Header{MsgID: msgID, MsgSeq: seq, StageID: stageID, From: o.d.cfg.SelfServerID, To: serverID}

	var err error
	switch {
	case serverID == "" || serverID == o.d.cfg.SelfServerID:
		err = o.d.DispatchRoute(ctx, h, payload)
	case o.d.mesh != nil:
		err = o.d.mesh.Send(ctx, serverID, route.NewOwned(h, payload))
	default:
		err = errors.NewErrorf(errors.CodeServerNotFound, "play: no mesh configured to reach %q", serverID)
	}
	if err != nil {
		return nil, err
	}
	res := handle.Wait()
	return res.Packet, res.Err
}

func (o *outboundAdapter) SendToApi(ctx context.Context, serverID string, msgID string, payload []byte) error {
	if serverID == "" || serverID == o.d.cfg.SelfServerID {
		if o.d.api == nil {
			return errors.NewError(errors.CodeHandlerNotFound, nil)
		}
		_, _ = o.d.api.Dispatch(ctx, route.Header{MsgID: msgID, From: o.d.cfg.SelfServerID, To: o.d.cfg.SelfServerID}, payload)
		return nil
	}
	if o.d.mesh == nil {
		return errors.NewErrorf(errors.CodeServerNotFound, "play: no mesh configured to reach %q", serverID)
	}
	h := route.Header{MsgID: msgID, From: o.d.cfg.SelfServerID, To: serverID}
	return o.d.mesh.Send(ctx, serverID, route.NewOwned(h, payload))
}

func (o *outboundAdapter) RequestToApi(ctx context.Context, serverID string, msgID string, payload []byte) (*route.Packet, error) {
	if serverID == "" || serverID == o.d.cfg.SelfServerID {
		if o.d.api == nil {
			return nil, errors.NewError(errors.CodeHandlerNotFound, nil)
		}
		reply, code := o.d.api.Dispatch(ctx, route.Header{MsgID: msgID, From: o.d.cfg.SelfServerID, To: o.d.cfg.SelfServerID, MsgSeq: 1}, payload)
		if code != uint16(errors.CodeSuccess) {
			return nil, errors.NewErrorf(errors.Code(code), "play: local api call to %q failed", msgID)
		}
		return route.NewOwned(route.Header{MsgID: msgID, ErrorCode: code}, reply), nil
	}
	if o.d.reqCache == nil {
		return nil, errors.NewErrorf(errors.CodeSystemError, "play: request cache not configured")
	}
	if o.d.mesh == nil {
		return nil, errors.NewErrorf(errors.CodeServerNotFound, "play: no mesh configured to reach %q", serverID)
	}
	seq, handle := o.d.reqCache.Register(o.d.cfg.RequestTimeout)
	h := route.Header{MsgID: msgID, MsgSeq: seq, From: o.d.cfg.SelfServerID, To: serverID}
	if err := o.d.mesh.Send(ctx, serverID, route.NewOwned(h, payload)); err != nil {
		return nil, err
	}
	res := handle.Wait()
	return res.Packet, res.Err
}

func (o *outboundAdapter) SendToSystem(ctx context.Context, serverID string, msgID string, payload []byte) error {
	h := route.Header{MsgID: msgID, IsBase: true, From: o.d.cfg.SelfServerID, To: serverID}
	if serverID == "" || serverID == o.d.cfg.SelfServerID {
		if o.d.system != nil {
			o.d.system.Dispatch(ctx, h, payload)
		}
		return nil
	}
	if o.d.mesh == nil {
		return errors.NewErrorf(errors.CodeServerNotFound, "play: no mesh configured to reach %q", serverID)
	}
	return o.d.mesh.Send(ctx, serverID, route.NewOwned(h, payload))
}

func (o *outboundAdapter) ReplyRoute(ctx context.Context, h route.Header, errorCode uint16, payload []byte) error {
	return o.d.replyRoute(ctx, h, errorCode, payload)
}

// SubmitAsync runs pre on the shared worker pool and re-enters stageID's
// queue with the outcome, so post always runs under that Stage's pump. The
// captured header rides along so the post Context can reply.
func (o *outboundAdapter) SubmitAsync(stageID int64, h route.Header, pre func() (interface{}, error), post func(ctx stage.Context, result interface{}, err error)) {
	o.d.pool.Submit(func() {
		v, err := pre()
		o.d.deliverAsyncResult(stageID, h, v, err, post)
	})
}
