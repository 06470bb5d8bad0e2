// Package actor implements the per-session proxy: an Actor is bound to exactly one Stage and one session, moves through the
// New → Authenticating → Authenticated → Leaving → Gone state machine, and
// exposes an ActorSender façade to user handlers once authenticated.
package actor

import (
	"sync"

	"github.com/ulala-x/playhouse/errors"
)

// State is one step of the Actor lifecycle state machine.
type State int32

const (
	StateNew State = iota
	StateAuthenticating
	StateAuthenticated
	StateLeaving
	StateGone
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "New"
	case StateAuthenticating:
		return "Authenticating"
	case StateAuthenticated:
		return "Authenticated"
	case StateLeaving:
		return "Leaving"
	case StateGone:
		return "Gone"
	default:
		return "Unknown"
	}
}

// Handler is the minimal user-facing contract an application's actor type
// implements; the framework never calls back into more than this, and
// never discovers callbacks via reflection.
type Handler interface {
	// OnAuthenticate runs exactly once, the first message received for a
	// brand new actor. Returning an accountId authenticates the actor;
	// returning an empty string is fatal (disconnect with InvalidAccountId).
	OnAuthenticate(ctx Context, firstPacketPayload []byte) (accountID string, err error)
	// OnPostAuthenticate runs once, immediately after an actor enters
	// StateAuthenticated.
	OnPostAuthenticate(ctx Context)
	// OnDispatch handles every subsequent message addressed to this actor.
	OnDispatch(ctx Context, msgID string, payload []byte) error
	// OnLeave runs once, when the actor transitions to Leaving.
	OnLeave(ctx Context)
}

// Context is the narrow view of the owning Stage/session an actor's
// handlers need; stage.Context implements it. Kept here
// as an interface, not a concrete struct import, to avoid an actor<->stage
// import cycle.
type Context interface {
	StageID() int64
	SID() int64
	AccountID() string
}

// Actor is bound to one Stage and one session, carrying the user Handler
// and its lifecycle state.
type Actor struct {
	mu sync.RWMutex

	stageID int64
	sid     int64
	state   State

	accountID string
	handler   Handler
}

// New constructs a brand-new Actor in StateNew, keyed by (stageId, sid)
// until authentication assigns it an accountId.
func New(stageID, sid int64, handler Handler) *Actor {
	return &Actor{stageID: stageID, sid: sid, state: StateNew, handler: handler}
}

func (a *Actor) StageID() int64 { return a.stageID }
func (a *Actor) SID() int64     { return a.sid }

func (a *Actor) AccountID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.accountID
}

func (a *Actor) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *Actor) Handler() Handler { return a.handler }

// BeginAuthenticate transitions New → Authenticating. Only legal from New.
// While authenticating no other handler runs for the actor, which the
// Stage pump enforces by never scheduling a second message for this actor
// until the transition completes (single-threaded per Stage).
func (a *Actor) BeginAuthenticate() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateNew {
		return errors.NewErrorf(errors.CodeAlreadyAuthenticated, "actor: BeginAuthenticate called from state %s", a.state)
	}
	a.state = StateAuthenticating
	return nil
}

// CompleteAuthenticate transitions Authenticating → Authenticated iff
// accountID is non-empty. An OnAuthenticate that succeeded but left the
// accountId empty is treated as fatal, never silently continued.
func (a *Actor) CompleteAuthenticate(accountID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateAuthenticating {
		return errors.NewErrorf(errors.CodeSystemError, "actor: CompleteAuthenticate called from state %s", a.state)
	}
	if accountID == "" {
		a.state = StateGone
		return errors.NewError(errors.CodeInvalidAccountId, nil)
	}
	a.accountID = accountID
	a.state = StateAuthenticated
	return nil
}

// IsAuthenticated reports whether OnDispatch may legally run for this actor.
func (a *Actor) IsAuthenticated() bool {
	return a.State() == StateAuthenticated
}

// BeginLeave transitions to Leaving; further inbound messages must be
// rejected by the caller with errors.CodeActorNotFound.
func (a *Actor) BeginLeave() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateGone {
		a.state = StateLeaving
	}
}

// Finish transitions to the terminal Gone state.
func (a *Actor) Finish() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = StateGone
}

// AcceptsDispatch reports whether OnDispatch may run for this actor right
// now.
func (a *Actor) AcceptsDispatch() bool {
	return a.State() == StateAuthenticated
}
