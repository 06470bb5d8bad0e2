// Package play implements the Play dispatcher: it owns the
// table of live Stages, schedules each Stage's pump on the shared worker
// pool, drives the shared timer wheel, and is the stage.Outbound every
// Stage's Context ultimately calls into to reach the mesh and the session
// layer.
package play

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ulala-x/playhouse/errors"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/mesh"
	"github.com/ulala-x/playhouse/metrics"
	"github.com/ulala-x/playhouse/packet"
	"github.com/ulala-x/playhouse/requestcache"
	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/session"
	"github.com/ulala-x/playhouse/stage"
	"github.com/ulala-x/playhouse/timer"
	"github.com/ulala-x/playhouse/workerpool"
)

// Reserved msgIds that identify framework-level Stage lifecycle requests
// arriving as ordinary client packets, rather than application dispatch.
const (
	MsgCreateStage = "@CreateStage@"
	MsgJoinStage   = "@JoinStage@"
)

// APIHandler is the stateless API dispatcher play hands off non-Stage
// traffic to. Defined here, not imported from package api, so
// neither package depends on the other; package api's dispatcher satisfies
// this interface structurally.
type APIHandler interface {
	Dispatch(ctx context.Context, h route.Header, payload []byte) (replyPayload []byte, errorCode uint16)
}

// SystemHandler handles registered system messages.
type SystemHandler interface {
	Dispatch(ctx context.Context, h route.Header, payload []byte)
	IsSystemMsg(msgID string) bool
}

// Config bounds the Dispatcher's shared worker pool.
type Config struct {
	SelfServerID string
	MinWorkers   int
	MaxWorkers   int
	// RequestTimeout bounds every outbound request from this server's
	// Stages; zero means requestcache.DefaultTTL.
	RequestTimeout time.Duration
	Reporters      []metrics.Reporter
}

// Dispatcher is the process-wide Play dispatcher.
type Dispatcher struct {
	cfg       Config
	table     *stageTable
	factories map[string]stage.Factory

	pool     *workerpool.Pool
	timerSvc *timer.Service
	reqCache *requestcache.Cache

	sessions session.SessionPool
	mesh     *mesh.Communicator
	api      APIHandler
	system   SystemHandler

	nextStageID int64
	out         *outboundAdapter

	sidMu     sync.Mutex
	sidStages map[int64]map[int64]struct{}
}

// New wires a Dispatcher. mesh/sessions/api/system may be nil in tests that
// only exercise local Stage behavior; a nil mesh makes every cross-server
// Send/Request fail with CodeServerNotFound instead of panicking.
func New(cfg Config, sessions session.SessionPool, comm *mesh.Communicator, reqCache *requestcache.Cache, api APIHandler, system SystemHandler) *Dispatcher {
	if cfg.MinWorkers < 1 {
		cfg.MinWorkers = 1
	}
	if cfg.MaxWorkers < cfg.MinWorkers {
		cfg.MaxWorkers = cfg.MinWorkers
	}
	d := &Dispatcher{
		cfg:       cfg,
		table:     newStageTable(),
		factories: make(map[string]stage.Factory),
		pool:      workerpool.New(cfg.MinWorkers, cfg.MaxWorkers, cfg.Reporters),
		sessions:  sessions,
		mesh:      comm,
		reqCache:  reqCache,
		api:       api,
		system:    system,
		sidStages: make(map[int64]map[int64]struct{}),
	}
	if d.cfg.RequestTimeout <= 0 {
		d.cfg.RequestTimeout = requestcache.DefaultTTL
	}
	d.timerSvc = timer.New(d.onTimerFire)
	d.out = &outboundAdapter{d: d}
	return d
}

// Outbound exposes the dispatcher's sender seam so the API dispatcher and
// system handler can route through the same short-circuit rules Stages use.
func (d *Dispatcher) Outbound() stage.Outbound { return d.out }

// SetAPIHandler installs the API dispatcher after construction (the API
// dispatcher itself sends through this Dispatcher's Outbound, so the two
// are built in sequence).
func (d *Dispatcher) SetAPIHandler(api APIHandler) { d.api = api }

// SetSystemHandler installs the system-message handler after construction.
func (d *Dispatcher) SetSystemHandler(system SystemHandler) { d.system = system }

// RegisterStageType registers factory for stageType. Registration is
// explicit; stage types are never discovered via reflection.
func (d *Dispatcher) RegisterStageType(stageType string, factory stage.Factory) {
	d.factories[stageType] = factory
}

// IsSystemMsg lets this Dispatcher double as a mesh.SystemMsgRegistry.
func (d *Dispatcher) IsSystemMsg(msgID string) bool {
	return d.system != nil && d.system.IsSystemMsg(msgID)
}

func (d *Dispatcher) lookup(stageID int64) (*stage.Stage, bool) {
	return d.table.lookup(stageID)
}

// StageCount reports the number of live Stages, for metrics.StageCount.
func (d *Dispatcher) StageCount() int { return d.table.count() }

func (d *Dispatcher) submit(s *stage.Stage, msg stage.Message) {
	if s.Enqueue(msg) {
		d.pool.Submit(func() { s.Drain(context.Background()) })
	}
	metrics.ReportGaugeAll(d.cfg.Reporters, metrics.StagePumpQueueDepth, map[string]string{"stageType": s.StageType()}, float64(s.QueueLen()))
}

// CreateStage allocates a new stageId, constructs its Stage, and enqueues
// its OnCreate as the very first message the pump runs.
func (d *Dispatcher) CreateStage(stdCtx context.Context, stageType string, replyHeader route.Header, payload []byte) (int64, error) {
	factory, ok := d.factories[stageType]
	if !ok {
		d.replyRoute(stdCtx, replyHeader, uint16(errors.CodeInvalidStageType), nil)
		return 0, errors.NewErrorf(errors.CodeInvalidStageType, "play: unregistered stage type %q", stageType)
	}

	id := atomic.AddInt64(&d.nextStageID, 1)
	s := stage.New(id, stageType, factory, d.out, d.timerSvc, d.removeStage)
	d.table.store(s)
	metrics.ReportGaugeAll(d.cfg.Reporters, metrics.StageCount, nil, float64(d.table.count()))

	replyHeader.StageID = id
	d.submit(s, stage.Message{Kind: stage.KindCreate, Create: &stage.CreateRequest{ReplyHeader: replyHeader, Payload: payload}})
	return id, nil
}

// JoinStage enqueues a JoinStage request against an existing Stage.
func (d *Dispatcher) JoinStage(stdCtx context.Context, stageID, sid int64, replyHeader route.Header, payload []byte) error {
	s, ok := d.lookup(stageID)
	if !ok {
		d.replyRoute(stdCtx, replyHeader, uint16(errors.CodeStageNotFound), nil)
		return errors.NewError(errors.CodeStageNotFound, nil)
	}
	replyHeader.StageID = stageID
	if sid > 0 {
		d.sidMu.Lock()
		if d.sidStages[sid] == nil {
			d.sidStages[sid] = make(map[int64]struct{})
		}
		d.sidStages[sid][stageID] = struct{}{}
		d.sidMu.Unlock()
	}
	d.submit(s, stage.Message{Kind: stage.KindJoin, Join: &stage.JoinRequest{ReplyHeader: replyHeader, SID: sid, Payload: payload}})
	return nil
}

// DispatchRoute enqueues an ordinary Dispatch message against h.StageID,
// in either the actor form (h.AccountID set) or the server-to-server form.
func (d *Dispatcher) DispatchRoute(stdCtx context.Context, h route.Header, payload []byte) error {
	s, ok := d.lookup(h.StageID)
	if !ok {
		d.replyRouteIfRequest(stdCtx, h, uint16(errors.CodeStageNotFound))
		return errors.NewError(errors.CodeStageNotFound, nil)
	}
	d.submit(s, stage.Message{Kind: stage.KindDispatch, Dispatch: &stage.DispatchRequest{Header: h, Payload: payload}})
	return nil
}

// LeaveStage notifies stageID that sid disconnected, typically
// called from a Session's OnClose callback.
func (d *Dispatcher) LeaveStage(stageID, sid int64) {
	d.sidMu.Lock()
	if stages, ok := d.sidStages[sid]; ok {
		delete(stages, stageID)
		if len(stages) == 0 {
			delete(d.sidStages, sid)
		}
	}
	d.sidMu.Unlock()

	s, ok := d.lookup(stageID)
	if !ok {
		return
	}
	d.submit(s, stage.Message{Kind: stage.KindLeave, Leave: &stage.LeaveRequest{SID: sid}})
}

// HandleDisconnect is the edge-facing counterpart of HandlePacket: a
// dropped connection leaves every Stage its session had joined.
func (d *Dispatcher) HandleDisconnect(sid int64, reason string) {
	d.sidMu.Lock()
	stageIDs := make([]int64, 0, len(d.sidStages[sid]))
	for id := range d.sidStages[sid] {
		stageIDs = append(stageIDs, id)
	}
	d.sidMu.Unlock()

	for _, id := range stageIDs {
		d.LeaveStage(id, sid)
	}
}

// DestroyStage enqueues a Destroy message; the Stage removes itself from
// this table once OnDestroy returns.
func (d *Dispatcher) DestroyStage(stageID int64) error {
	s, ok := d.lookup(stageID)
	if !ok {
		return errors.NewError(errors.CodeStageNotFound, nil)
	}
	d.submit(s, stage.Message{Kind: stage.KindDestroy})
	return nil
}

// HandlePacket is the acceptor-facing entrypoint: it
// translates one client packet plus the originating session id into the
// appropriate Stage table operation.
func (d *Dispatcher) HandlePacket(stdCtx context.Context, sid int64, pkt *packet.Packet) error {
	defer pkt.Dispose()
	h := route.Header{
		MsgID:   pkt.MsgID,
		MsgSeq:  pkt.MsgSeq,
		StageID: pkt.StageID,
		SID:     sid,
		From:    d.cfg.SelfServerID,
		To:      d.cfg.SelfServerID,
	}
	// The Stage queue outlives this packet's pooled buffer, so the payload
	// is copied out before the dispose above runs.
	view, _ := pkt.Payload.View()
	payload := cloneBytes(view)

	switch pkt.MsgID {
	case MsgCreateStage:
		stageType := string(payload)
		_, err := d.CreateStage(stdCtx, stageType, h, nil)
		return err
	case MsgJoinStage:
		return d.JoinStage(stdCtx, pkt.StageID, sid, h, payload)
	default:
		// The actor is resolved inside the Stage from its own SID index.
		return d.DispatchRoute(stdCtx, h, payload)
	}
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (d *Dispatcher) removeStage(stageID int64) {
	d.table.remove(stageID)
	metrics.ReportGaugeAll(d.cfg.Reporters, metrics.StageCount, nil, float64(d.table.count()))
}

func (d *Dispatcher) onTimerFire(f timer.Fire) {
	s, ok := d.lookup(f.StageID)
	if !ok {
		return
	}
	d.submit(s, stage.Message{Kind: stage.KindTimerTick, Timer: f})
}

// deliverAsyncResult re-enters stageID's queue with the outcome of an
// AsyncBlock pre-callback. If the Stage has already been
// removed from the table entirely, the result is simply dropped: nothing
// is waiting to run post against a Stage that no longer exists anywhere.
func (d *Dispatcher) deliverAsyncResult(stageID int64, h route.Header, v interface{}, err error, post func(stage.Context, interface{}, error)) {
	s, ok := d.lookup(stageID)
	if !ok {
		return
	}
	d.submit(s, stage.Message{Kind: stage.KindAsyncResult, Async: &stage.AsyncResult{Header: h, SID: h.SID, Post: post, Value: v, Err: err}})
}

// replyRoute sends a reply for h, routing to a local session or over the
// mesh depending on where the original sender lives.
func (d *Dispatcher) replyRoute(stdCtx context.Context, h route.Header, errorCode uint16, payload []byte) error {
	if h.MsgSeq == 0 {
		return nil
	}
	if h.SID > 0 && d.sessions != nil {
		if sess, ok := d.sessions.GetSessionByID(h.SID); ok {
			return sess.Send(stdCtx, h.MsgID, h.MsgSeq, h.StageID, errorCode, payload)
		}
	}
	reply := h.Reply(errorCode)
	if reply.To == "" || reply.To == d.cfg.SelfServerID {
		// Loopback: the original request was itself a local self-send,
		// so the waiter is a request-cache entry on this same process
		// rather than a session or a peer link.
		if d.reqCache != nil && d.reqCache.TryComplete(h.MsgSeq, route.NewOwned(reply, payload)) {
			return nil
		}
		return errors.NewErrorf(errors.CodeServerNotFound, "play: no local waiter for msgSeq=%d", h.MsgSeq)
	}
	if d.mesh == nil {
		return errors.NewErrorf(errors.CodeServerNotFound, "play: no mesh configured to reach %q", reply.To)
	}
	pkt := route.NewOwned(reply, payload)
	return d.mesh.Send(stdCtx, reply.To, pkt)
}

func (d *Dispatcher) replyRouteIfRequest(stdCtx context.Context, h route.Header, errorCode uint16) {
	if h.MsgSeq == 0 {
		return
	}
	if err := d.replyRoute(stdCtx, h, errorCode, nil); err != nil {
		logger.Log.Debugf("play: replyRoute failed: %s", err.Error())
	}
}

// HandleStage implements mesh.Handler: an inbound envelope addressed to a
// Stage on this server.
func (d *Dispatcher) HandleStage(h route.Header, pkt *route.Packet) {
	defer pkt.Dispose()
	view, _ := pkt.View()
	payload := cloneBytes(view)

	switch h.MsgID {
	case MsgCreateStage:
		if _, err := d.CreateStage(context.Background(), string(payload), h, nil); err != nil {
			logger.Log.Debugf("play: inbound stage create failed: %s", err.Error())
		}
	case MsgJoinStage:
		if err := d.JoinStage(context.Background(), h.StageID, h.SID, h, payload); err != nil {
			logger.Log.Debugf("play: inbound stage join failed: %s", err.Error())
		}
	default:
		if err := d.DispatchRoute(context.Background(), h, payload); err != nil {
			logger.Log.Debugf("play: inbound stage dispatch failed: %s", err.Error())
		}
	}
}

// HandleAPI implements mesh.Handler for stageless traffic,
// including the self-connection short-circuit's mesh-arrival counterpart
// for API servers that aren't also the caller.
func (d *Dispatcher) HandleAPI(h route.Header, pkt *route.Packet) {
	if d.api == nil {
		pkt.Dispose()
		d.replyRouteIfRequest(context.Background(), h, uint16(errors.CodeHandlerNotFound))
		return
	}
	// API handlers run with unbounded concurrency; only Stages serialize.
	// The packet stays alive until the handler goroutine is done with it.
	go func() {
		defer pkt.Dispose()
		payload, _ := pkt.View()
		reply, code := d.api.Dispatch(context.Background(), h, payload)
		if h.MsgSeq != 0 {
			_ = d.replyRoute(context.Background(), h, code, reply)
		}
	}()
}

// HandleSystem implements mesh.Handler for registered system messages.
func (d *Dispatcher) HandleSystem(h route.Header, pkt *route.Packet) {
	defer pkt.Dispose()
	if d.system == nil {
		return
	}
	payload, _ := pkt.View()
	d.system.Dispatch(context.Background(), h, payload)
}

// Shutdown destroys every live Stage, then drains and retires the shared
// worker pool and timer wheel. Not idempotent-safe to call twice
// concurrently with new traffic; callers stop accepting new work first.
func (d *Dispatcher) Shutdown() {
	for _, s := range d.table.all() {
		d.submit(s, stage.Message{Kind: stage.KindDestroy})
	}
	deadline := time.Now().Add(5 * time.Second)
	for d.table.count() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	d.pool.Shutdown()
	d.timerSvc.Shutdown()
}
