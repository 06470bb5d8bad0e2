package stage

import (
	"context"
	"time"

	"github.com/ulala-x/playhouse/actor"
	"github.com/ulala-x/playhouse/errors"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/util"
)

// handle dispatches one queued message by kind.
// It runs on whichever worker is currently pumping this Stage, so it never
// needs its own locking around s.state/s.bySID/s.byAccount beyond what
// guards concurrent reads from outside the pump (ActorCount, State).
func (s *Stage) handle(stdCtx context.Context, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("stage %d: handler panic: %v\n%s", s.stageID, r, util.Stack())
		}
	}()

	switch msg.Kind {
	case KindCreate:
		s.handleCreate(stdCtx, msg.Create)
	case KindJoin:
		s.handleJoin(stdCtx, msg.Join)
	case KindDispatch:
		s.handleDispatch(stdCtx, msg.Dispatch)
	case KindTimerTick:
		s.handleTimerTick(stdCtx, msg.Timer.TimerID)
	case KindAsyncResult:
		s.handleAsyncResult(stdCtx, msg.Async)
	case KindLeave:
		s.handleLeave(stdCtx, msg.Leave)
	case KindDestroy:
		s.handleDestroy(stdCtx)
	}
}

func (s *Stage) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Stage) handleCreate(stdCtx context.Context, req *CreateRequest) {
	s.setState(StateCreating)
	ctx := s.ctxFor(stdCtx, req.ReplyHeader)

	ok, err := s.handler.OnCreate(ctx, req.Payload)
	if err != nil || !ok {
		if err != nil {
			logger.Log.Warnf("stage %d: OnCreate failed: %s", s.stageID, err.Error())
		}
		_ = s.out.ReplyRoute(stdCtx, req.ReplyHeader, uint16(errors.CodeStageCreationFailed), nil)
		s.setState(StateDead)
		if s.onDestroyed != nil {
			s.onDestroyed(s.stageID)
		}
		return
	}

	s.setState(StateActive)
	_ = s.out.ReplyRoute(stdCtx, req.ReplyHeader, uint16(errors.CodeSuccess), nil)
	s.handler.OnPostCreate(ctx)
}

func (s *Stage) handleJoin(stdCtx context.Context, req *JoinRequest) {
	if s.State() != StateActive {
		_ = s.out.ReplyRoute(stdCtx, req.ReplyHeader, uint16(errors.CodeStageNotFound), nil)
		return
	}

	s.mu.Lock()
	a, existed := s.bySID[req.SID]
	if !existed {
		a = actor.New(s.stageID, req.SID, s.factory.NewActor(s.stageType))
		s.bySID[req.SID] = a
	}
	s.mu.Unlock()

	switch a.State() {
	case actor.StateGone:
		_ = s.out.ReplyRoute(stdCtx, req.ReplyHeader, uint16(errors.CodeActorNotFound), nil)
		return
	case actor.StateNew:
		s.authenticateActor(stdCtx, a, req)
	default:
		// Already authenticating/authenticated: treat a repeated join as
		// an idempotent success rather than re-running OnAuthenticate.
		_ = s.out.ReplyRoute(stdCtx, req.ReplyHeader, uint16(errors.CodeSuccess), nil)
	}
}

func (s *Stage) authenticateActor(stdCtx context.Context, a *actor.Actor, req *JoinRequest) {
	if err := a.BeginAuthenticate(); err != nil {
		_ = s.out.ReplyRoute(stdCtx, req.ReplyHeader, uint16(errors.CodeSystemError), nil)
		return
	}

	ctx := s.ctxFor(stdCtx, req.ReplyHeader)
	accountID, err := a.Handler().OnAuthenticate(ctx, req.Payload)
	if err != nil {
		logger.Log.Infof("stage %d: OnAuthenticate rejected sid=%d: %s", s.stageID, req.SID, err.Error())
		a.Finish()
		s.removeActorBySID(req.SID)
		_ = s.out.ReplyRoute(stdCtx, req.ReplyHeader, uint16(errors.CodeAuthenticationFailed), nil)
		_ = s.out.CloseClient(stdCtx, req.SID, "AuthenticationFailed")
		return
	}

	if cerr := a.CompleteAuthenticate(accountID); cerr != nil {
		// OnAuthenticate returned ok but left accountId empty:
		// disconnect, do not silently continue.
		s.removeActorBySID(req.SID)
		_ = s.out.ReplyRoute(stdCtx, req.ReplyHeader, uint16(errors.CodeInvalidAccountId), nil)
		_ = s.out.CloseClient(stdCtx, req.SID, "InvalidAccountId")
		return
	}

	s.mu.Lock()
	s.byAccount[accountID] = a
	s.mu.Unlock()

	if req.SID > 0 {
		if berr := s.out.BindSession(stdCtx, req.SID, accountID); berr != nil {
			logger.Log.Warnf("stage %d: bind sid=%d to account %s: %s", s.stageID, req.SID, accountID, berr.Error())
		}
	}

	_ = s.out.ReplyRoute(stdCtx, req.ReplyHeader, uint16(errors.CodeSuccess), nil)

	joinCtx := s.ctxFor(stdCtx, req.ReplyHeader)
	s.handler.OnJoinStage(joinCtx, a)
	a.Handler().OnPostAuthenticate(joinCtx)
}

func (s *Stage) handleDispatch(stdCtx context.Context, req *DispatchRequest) {
	if s.State() != StateActive {
		s.replyIfRequest(stdCtx, req.Header, errors.CodeStageNotFound)
		return
	}

	if a := s.resolveActor(req.Header); a != nil {
		if !a.AcceptsDispatch() {
			s.replyIfRequest(stdCtx, req.Header, errors.CodeActorNotFound)
			return
		}
		h := req.Header
		h.AccountID = a.AccountID()
		ctx := s.ctxFor(stdCtx, h)
		if err := a.Handler().OnDispatch(ctx, h.MsgID, req.Payload); err != nil {
			s.replyUserError(stdCtx, h, err)
		}
		return
	}
	if req.Header.AccountID != "" {
		// Addressed to a specific account that has no actor here.
		s.replyIfRequest(stdCtx, req.Header, errors.CodeActorNotFound)
		return
	}

	ctx := s.ctxFor(stdCtx, req.Header)
	if err := s.handler.OnDispatch(ctx, req.Header.MsgID, req.Payload); err != nil {
		s.replyUserError(stdCtx, req.Header, err)
	}
}

// resolveActor picks the target actor for an inbound dispatch: by account
// id when the route carries one, else by the originating session id (the
// client form, where the edge does not know the account).
func (s *Stage) resolveActor(h route.Header) *actor.Actor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.AccountID != "" {
		return s.byAccount[h.AccountID]
	}
	if h.SID > 0 {
		return s.bySID[h.SID]
	}
	return nil
}

func (s *Stage) replyIfRequest(stdCtx context.Context, h route.Header, code errors.Code) {
	if h.MsgSeq == 0 {
		return
	}
	_ = s.out.ReplyRoute(stdCtx, h, uint16(code), nil)
}

func (s *Stage) replyUserError(stdCtx context.Context, h route.Header, err error) {
	logger.Log.Warnf("stage %d: handler error for msgId=%s: %s", s.stageID, h.MsgID, err.Error())
	if h.MsgSeq == 0 {
		return
	}
	_ = s.out.ReplyRoute(stdCtx, h, uint16(errors.CodeUncheckedContentsError), nil)
}

func (s *Stage) handleLeave(stdCtx context.Context, req *LeaveRequest) {
	s.mu.Lock()
	a, ok := s.bySID[req.SID]
	if ok {
		delete(s.bySID, req.SID)
		if acc := a.AccountID(); acc != "" {
			if cur, ok2 := s.byAccount[acc]; ok2 && cur == a {
				delete(s.byAccount, acc)
			}
		}
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	a.BeginLeave()
	if a.Handler() != nil {
		a.Handler().OnLeave(s.ctxFor(stdCtx, route.Header{StageID: s.stageID, SID: req.SID, AccountID: a.AccountID()}))
	}
	a.Finish()
}

func (s *Stage) handleDestroy(stdCtx context.Context) {
	s.setState(StateDestroying)
	s.timerSvc.CancelStage(s.stageID)

	s.mu.Lock()
	sids := make([]int64, 0, len(s.bySID))
	for sid := range s.bySID {
		sids = append(sids, sid)
	}
	s.mu.Unlock()
	for _, sid := range sids {
		s.handleLeave(stdCtx, &LeaveRequest{SID: sid})
	}

	s.handler.OnDestroy(s.ctxFor(stdCtx, route.Header{StageID: s.stageID}))

	s.setState(StateDead)
	if s.onDestroyed != nil {
		s.onDestroyed(s.stageID)
	}
}

func (s *Stage) handleAsyncResult(stdCtx context.Context, res *AsyncResult) {
	ctx := s.ctxFor(stdCtx, res.Header)
	if s.State() == StateDestroying || s.State() == StateDead {
		res.Post(ctx, nil, ErrStageClosed)
		return
	}
	res.Post(ctx, res.Value, res.Err)
}

// --- Timer API. These are called directly by
// user handler code running inside the pump, so no extra locking against
// the pump itself is required; s.mu still guards the map against
// concurrent ActorCount-style reads from outside the pump.

// NewRepeatTimer schedules callback to run every period, indefinitely,
// starting after the first period elapses.
func (s *Stage) NewRepeatTimer(period time.Duration, callback func(ctx Context)) int64 {
	return s.newTimer(TimerRepeat, 0, period, callback)
}

// NewCountTimer schedules callback to run every period, exactly count
// times, then retire itself.
func (s *Stage) NewCountTimer(period time.Duration, count int, callback func(ctx Context)) int64 {
	return s.newTimer(TimerCount, count, period, callback)
}

func (s *Stage) newTimer(kind timerKind, count int, period time.Duration, callback func(ctx Context)) int64 {
	s.mu.Lock()
	s.nextTimerID++
	id := s.nextTimerID
	s.timers[id] = &timerEntry{id: id, kind: kind, period: int64(period), remaining: count, callback: callback}
	s.mu.Unlock()

	s.timerSvc.Schedule(s.stageID, id, time.Now().Add(period))
	return id
}

// CancelTimer removes a timer by id; a no-op if it already fired its last
// tick or was never created.
func (s *Stage) CancelTimer(timerID int64) {
	s.mu.Lock()
	delete(s.timers, timerID)
	s.mu.Unlock()
	s.timerSvc.Cancel(s.stageID, timerID)
}

func (s *Stage) handleTimerTick(stdCtx context.Context, timerID int64) {
	s.mu.Lock()
	e, ok := s.timers[timerID]
	s.mu.Unlock()
	if !ok {
		return // cancelled between schedule and fire
	}

	ctx := s.ctxFor(stdCtx, route.Header{StageID: s.stageID})
	e.callback(ctx)

	switch e.kind {
	case TimerRepeat:
		s.timerSvc.Schedule(s.stageID, timerID, time.Now().Add(time.Duration(e.period)))
	case TimerCount:
		s.mu.Lock()
		e.remaining--
		done := e.remaining <= 0
		if done {
			delete(s.timers, timerID)
		}
		s.mu.Unlock()
		if !done {
			s.timerSvc.Schedule(s.stageID, timerID, time.Now().Add(time.Duration(e.period)))
		}
	}
}

func (s *Stage) removeActorBySID(sid int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bySID, sid)
}
