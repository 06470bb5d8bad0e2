// Package networkentity defines the boundary between a Session and its
// concrete wire connection (an Agent). A Session never
// knows whether it is backed by a raw TCP socket or a websocket; it only
// calls through this interface.
package networkentity

import (
	"context"
	"net"
)

// NetworkEntity is the low-level connection a Session writes through. Send
// mirrors the client-facing packet.Packet fields directly rather than a route-string/interface{} payload
// shape, since PlayHouse's wire model is msgId/msgSeq/stageId/errorCode plus
// raw bytes, not a named-route RPC.
type NetworkEntity interface {
	// Send writes one client packet: msgSeq=0 for a push/notification, or the
	// original request's msgSeq for a reply.
	Send(ctx context.Context, msgID string, msgSeq uint16, stageID int64, errorCode uint16, payload []byte) error
	// Kick asks the client to disconnect gracefully, delivering reason first
	// if the transport supports an out-of-band close frame.
	Kick(ctx context.Context, reason string) error
	// Close tears down the underlying connection immediately.
	Close() error
	RemoteAddr() net.Addr
}
