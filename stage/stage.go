// Package stage implements the Stage entity and its message pump: a
// process-local room-like entity that owns a set of Actors, a timer table,
// and a FIFO inbound queue drained by exactly one worker at a time.
// Package play owns the table of Stages and the shared worker pool/timer
// wheel these pumps run on; package stage owns everything inside one
// Stage's boundary.
package stage

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ulala-x/playhouse/actor"
	"github.com/ulala-x/playhouse/errors"
	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/timer"
)

// State is one step of the Stage lifecycle state machine.
type State int32

const (
	StateEmpty State = iota
	StateCreating
	StateActive
	StateDestroying
	StateDead
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "Empty"
	case StateCreating:
		return "Creating"
	case StateActive:
		return "Active"
	case StateDestroying:
		return "Destroying"
	case StateDead:
		return "Dead"
	default:
		return "Unknown"
	}
}

// Handler is the user-provided Stage type's contract. Application code
// registers a Factory (below) at startup; the framework never discovers
// handlers via reflection.
type Handler interface {
	// OnCreate runs once, right after the Stage is registered in the Play
	// dispatcher's table. A false return (or error) fails creation.
	OnCreate(ctx Context, payload []byte) (ok bool, err error)
	// OnPostCreate runs once, immediately after a successful OnCreate.
	OnPostCreate(ctx Context)
	// OnJoinStage runs once an Actor has successfully authenticated and
	// been registered in this Stage's account-id index.
	OnJoinStage(ctx Context, joined *actor.Actor)
	// OnDispatch handles the server-to-server form of Dispatch, used when
	// the inbound route carries no accountId.
	OnDispatch(ctx Context, msgID string, payload []byte) error
	// OnDestroy runs once, when the Stage transitions to Destroying, before
	// it is removed from the Play dispatcher's table.
	OnDestroy(ctx Context)
}

// Factory builds a fresh Handler instance for a CreateStage request, and a
// fresh actor.Handler instance for each newly joining Actor. Both are
// registered per stageType at startup.
type Factory interface {
	NewStage(stageType string) Handler
	NewActor(stageType string) actor.Handler
}

// Outbound is everything a Context needs to reach outside this Stage: the
// mesh, the session layer, and the async-block worker (the timer service
// is passed to New separately).
// Implemented by package play so stage never imports mesh/session/api and
// no import cycle results.
type Outbound interface {
	SendToClient(ctx context.Context, sid int64, msgID string, msgSeq uint16, stageID int64, errorCode uint16, payload []byte) error
	CloseClient(ctx context.Context, sid int64, reason string) error
	// BindSession ties sid to accountID in the session layer once
	// authentication succeeds, evicting any local session already bound to
	// the same account.
	BindSession(ctx context.Context, sid int64, accountID string) error
	SendToStage(ctx context.Context, serverID string, stageID int64, msgID string, payload []byte) error
	RequestToStage(ctx context.Context, serverID string, stageID int64, msgID string, payload []byte) (*route.Packet, error)
	SendToApi(ctx context.Context, serverID string, msgID string, payload []byte) error
	RequestToApi(ctx context.Context, serverID string, msgID string, payload []byte) (*route.Packet, error)
	SendToSystem(ctx context.Context, serverID string, msgID string, payload []byte) error
	ReplyRoute(ctx context.Context, h route.Header, errorCode uint16, payload []byte) error
	// SubmitAsync runs pre on the shared worker pool; when it completes, its
	// result is delivered back into this Stage's queue as an
	// AsyncBlockResult message, so post runs under this Stage's
	// serialization guarantee. h is the route header current at the call
	// site, preserved so post's Context can still reply to the original
	// request.
	SubmitAsync(stageID int64, h route.Header, pre func() (interface{}, error), post func(ctx Context, result interface{}, err error))
}

// Kind enumerates the message kinds the pump handles.
type Kind int

const (
	KindCreate Kind = iota
	KindJoin
	KindDispatch
	KindTimerTick
	KindAsyncResult
	KindLeave
	KindDestroy
)

// CreateRequest carries the payload for a CreateStage message.
type CreateRequest struct {
	ReplyHeader route.Header
	Payload     []byte
}

// JoinRequest carries the payload for a JoinStage message.
type JoinRequest struct {
	ReplyHeader route.Header
	SID         int64
	Payload     []byte
}

// DispatchRequest carries an inbound route for a Dispatch message.
type DispatchRequest struct {
	Header  route.Header
	Payload []byte
}

// AsyncResult carries the outcome of an AsyncBlock's pre-callback.
type AsyncResult struct {
	Header route.Header
	SID    int64
	Post   func(ctx Context, result interface{}, err error)
	Value  interface{}
	Err    error
}

// LeaveRequest asks the Stage to remove one Actor (client disconnect).
type LeaveRequest struct {
	SID int64
}

// Message is one entry in a Stage's inbound queue.
type Message struct {
	Kind    Kind
	Create  *CreateRequest
	Join    *JoinRequest
	Dispatch *DispatchRequest
	Timer   timer.Fire
	Async   *AsyncResult
	Leave   *LeaveRequest
}

// Context is what a Stage/Actor handler receives as its explicit first
// parameter; there is no thread-local current-header state anywhere in the
// framework. It bundles a stdlib context.Context (for cancellation and
// deadlines on outbound calls) with the currently-processed route header
// and the sender façade.
type Context struct {
	Std    context.Context
	Header route.Header

	stageID   int64
	sid       int64
	accountID string
	out       Outbound
}

func (c Context) Context() context.Context { return c.Std }

// StageID, SID and AccountID satisfy the actor.Context interface so a
// Context built by a Stage can be passed straight to an Actor's Handler.
func (c Context) StageID() int64    { return c.stageID }
func (c Context) SID() int64        { return c.sid }
func (c Context) AccountID() string { return c.accountID }

// Reply sends payload back to whoever originated the message this Context
// was built for: the client directly if SID>0 and this server owns it,
// otherwise via the mesh, correlated by (From, MsgSeq).
func (c Context) Reply(msgID string, errorCode uint16, payload []byte) error {
	if c.Header.MsgSeq == 0 {
		return nil // notification: no reply expected
	}
	h := c.Header
	if msgID != "" {
		h.MsgID = msgID
	}
	return c.out.ReplyRoute(c.Std, h, errorCode, payload)
}

func (c Context) SendToClient(sid int64, msgID string, payload []byte) error {
	return c.out.SendToClient(c.Std, sid, msgID, 0, c.stageID, 0, payload)
}

func (c Context) SendToStage(serverID string, stageID int64, msgID string, payload []byte) error {
	return c.out.SendToStage(c.Std, serverID, stageID, msgID, payload)
}

func (c Context) RequestToStage(serverID string, stageID int64, msgID string, payload []byte) (*route.Packet, error) {
	return c.out.RequestToStage(c.Std, serverID, stageID, msgID, payload)
}

func (c Context) SendToApi(serverID string, msgID string, payload []byte) error {
	return c.out.SendToApi(c.Std, serverID, msgID, payload)
}

func (c Context) RequestToApi(serverID string, msgID string, payload []byte) (*route.Packet, error) {
	return c.out.RequestToApi(c.Std, serverID, msgID, payload)
}

func (c Context) SendToSystem(serverID string, msgID string, payload []byte) error {
	return c.out.SendToSystem(c.Std, serverID, msgID, payload)
}

// AsyncBlock is the sanctioned way to do blocking work from inside a
// handler without stalling this Stage's pump: pre runs on the
// shared worker pool, and post runs back under this Stage's serialization
// once pre completes.
func (c Context) AsyncBlock(pre func() (interface{}, error), post func(ctx Context, result interface{}, err error)) {
	// The header is captured here, before this handler returns and the
	// pump moves on; post's Context is rebuilt from it so Reply still
	// reaches the original requester.
	c.out.SubmitAsync(c.stageID, c.Header, pre, post)
}

// ErrStageClosed is delivered to AsyncBlock post-callbacks whose result
// arrives after the Stage has entered Destroying or Dead. Other pending
// replies are not failed with it when the Stage is torn down.
var ErrStageClosed = errors.NewErrorf(errors.CodeSystemError, "stage: closed")

// Stage is one room-like entity: its lifecycle state, actor indices,
// timer table, and inbound queue.
type Stage struct {
	stageID   int64
	stageType string
	handler   Handler
	factory   Factory
	out       Outbound
	timerSvc  *timer.Service

	mu          sync.Mutex
	state       State
	bySID       map[int64]*actor.Actor
	byAccount   map[string]*actor.Actor
	timers      map[int64]*timerEntry
	nextTimerID int64

	queue     []Message
	qmu       sync.Mutex
	inFlight  int32

	onDestroyed func(stageID int64)
}

type timerKind int

const (
	TimerRepeat timerKind = iota
	TimerCount
)

type timerEntry struct {
	id        int64
	kind      timerKind
	period    int64 // nanoseconds, stored as int64 to avoid importing time in the struct tag comments
	remaining int
	callback  func(ctx Context)
}

// New constructs a brand-new Stage in StateEmpty. onDestroyed is invoked
// once, from inside the pump, when the Stage transitions to Dead: right
// after OnDestroy returns, or right after a failed OnCreate — the caller (package play) uses it to remove
// the Stage from its table without stage needing to know about that table.
func New(stageID int64, stageType string, factory Factory, out Outbound, timerSvc *timer.Service, onDestroyed func(int64)) *Stage {
	return &Stage{
		stageID:     stageID,
		stageType:   stageType,
		handler:     factory.NewStage(stageType),
		factory:     factory,
		out:         out,
		timerSvc:    timerSvc,
		state:       StateEmpty,
		bySID:       make(map[int64]*actor.Actor),
		byAccount:   make(map[string]*actor.Actor),
		timers:      make(map[int64]*timerEntry),
		onDestroyed: onDestroyed,
	}
}

func (s *Stage) StageID() int64    { return s.stageID }
func (s *Stage) StageType() string { return s.stageType }

func (s *Stage) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ActorCount reports the number of authenticated actors, for metrics/tests.
func (s *Stage) ActorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byAccount)
}

// Enqueue appends msg to the queue and reports whether the caller must
// schedule a pump run: true iff this call transitioned inFlight
// false→true.
func (s *Stage) Enqueue(msg Message) bool {
	s.qmu.Lock()
	s.queue = append(s.queue, msg)
	s.qmu.Unlock()
	return atomic.CompareAndSwapInt32(&s.inFlight, 0, 1)
}

// Drain processes every currently queued message, one at a time, clearing
// inFlight when the queue empties — but re-claims it (and keeps draining)
// if a producer raced in a new message after the queue looked empty, so no
// message is ever left stranded in the queue with no scheduled pump.
func (s *Stage) Drain(stdCtx context.Context) {
	for {
		for {
			s.qmu.Lock()
			if len(s.queue) == 0 {
				s.qmu.Unlock()
				break
			}
			msg := s.queue[0]
			s.queue = s.queue[1:]
			s.qmu.Unlock()

			s.handle(stdCtx, msg)
		}

		atomic.StoreInt32(&s.inFlight, 0)

		s.qmu.Lock()
		empty := len(s.queue) == 0
		s.qmu.Unlock()
		if empty {
			return
		}
		if !atomic.CompareAndSwapInt32(&s.inFlight, 0, 1) {
			return // another producer already rescheduled a pump
		}
	}
}

// QueueLen reports the number of messages currently waiting to be drained,
// for metrics (metrics.StagePumpQueueDepth).
func (s *Stage) QueueLen() int {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	return len(s.queue)
}

func (s *Stage) ctxFor(stdCtx context.Context, h route.Header) Context {
	return Context{Std: stdCtx, Header: h, stageID: s.stageID, sid: h.SID, accountID: h.AccountID, out: s.out}
}
