package api

import (
	stdctx "context"

	"github.com/ulala-x/playhouse/route"
)

// Outbound is everything an API handler's Context needs to reach the rest
// of the cluster. Package play's outbound adapter satisfies it; api never
// imports play.
type Outbound interface {
	SendToStage(ctx stdctx.Context, serverID string, stageID int64, msgID string, payload []byte) error
	RequestToStage(ctx stdctx.Context, serverID string, stageID int64, msgID string, payload []byte) (*route.Packet, error)
	SendToApi(ctx stdctx.Context, serverID string, msgID string, payload []byte) error
	RequestToApi(ctx stdctx.Context, serverID string, msgID string, payload []byte) (*route.Packet, error)
	SendToSystem(ctx stdctx.Context, serverID string, msgID string, payload []byte) error
}

// Context is the explicit first parameter every API handler receives: the
// stdlib context (carrying propagated values, tracing span, and timing
// scope), the inbound route header, and the outbound sender façade.
type Context struct {
	Std    stdctx.Context
	Header route.Header

	out Outbound
}

// Context returns the stdlib context for cancellation and deadlines.
func (c Context) Context() stdctx.Context { return c.Std }

// AccountID returns the account the inbound route was stamped with, empty
// for pure server-to-server calls.
func (c Context) AccountID() string { return c.Header.AccountID }

// SID returns the originating session id, 0 when no client is involved.
func (c Context) SID() int64 { return c.Header.SID }

// SendToStage fires a notification at a Stage on serverID.
func (c Context) SendToStage(serverID string, stageID int64, msgID string, payload []byte) error {
	return c.out.SendToStage(c.Std, serverID, stageID, msgID, payload)
}

// RequestToPlay sends a correlated request to a Stage and waits for its
// reply or timeout.
func (c Context) RequestToPlay(serverID string, stageID int64, msgID string, payload []byte) (*route.Packet, error) {
	return c.out.RequestToStage(c.Std, serverID, stageID, msgID, payload)
}

// SendToApi fires a notification at another API server (or this one).
func (c Context) SendToApi(serverID string, msgID string, payload []byte) error {
	return c.out.SendToApi(c.Std, serverID, msgID, payload)
}

// RequestToApi sends a correlated request to another API server.
func (c Context) RequestToApi(serverID string, msgID string, payload []byte) (*route.Packet, error) {
	return c.out.RequestToApi(c.Std, serverID, msgID, payload)
}

// SendToSystem fires a framework control message at serverID.
func (c Context) SendToSystem(serverID string, msgID string, payload []byte) error {
	return c.out.SendToSystem(c.Std, serverID, msgID, payload)
}
