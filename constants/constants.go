// Package constants holds small cross-cutting values — connection status
// codes, context keys, and sentinel errors — shared by the agent, context,
// and session packages.
package constants

import "github.com/ulala-x/playhouse/errors"

// Connection status, tracked on the raw network agent (distinct from the
// higher-level Actor lifecycle state machine in package actor).
const (
	StatusStart int32 = iota
	StatusHandshake
	StatusWorking
	StatusClosed
)

// IP version labels returned by Agent.IPVersion.
const (
	IPv4 = "ipv4"
	IPv6 = "ipv6"
)

type ctxKey string

// Context keys used by the context package to stash propagated RPC values
// and per-session message-relation data.
const (
	PropagateCtxKey ctxKey = "propagate"
	MsgRelationKey  ctxKey = "msgRelation"
	RouteKey        ctxKey = "route"
)

// Sentinel errors surfaced by the agent/session layer.
var (
	ErrBrokenPipe         = errors.NewErrorf(errors.CodeSystemError, "broken low-level pipe")
	ErrBufferExceed       = errors.NewErrorf(errors.CodeSystemError, "session send buffer exceeded")
	ErrCloseClosedSession = errors.NewErrorf(errors.CodeSystemError, "close closed session")
	ErrSessionOnNotify    = errors.NewErrorf(errors.CodeInvalidMessage, "response sent for a notification (msgSeq<=0)")
	ErrAlreadyBound       = errors.NewErrorf(errors.CodeAlreadyAuthenticated, "session already bound to a different account")
)
