// Package mesh implements the inter-server overlay: one outbound link per
// known peer, an inbound routing demultiplexer, bounded exponential-backoff
// reconnect, and queue-depth backpressure. It carries both user route
// traffic and request-cache-correlated replies over the binary envelope in
// package route.
package mesh

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/ulala-x/playhouse/errors"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/metrics"
	"github.com/ulala-x/playhouse/requestcache"
	"github.com/ulala-x/playhouse/route"
)

// Handler is the routing demultiplexer's target set. Implemented by the top-level server wiring so mesh never imports
// play/api/system directly.
type Handler interface {
	HandleSystem(h route.Header, pkt *route.Packet)
	HandleStage(h route.Header, pkt *route.Packet)
	HandleAPI(h route.Header, pkt *route.Packet)
}

// SystemMsgRegistry reports whether msgId names a registered system
// message.
type SystemMsgRegistry interface {
	IsSystemMsg(msgID string) bool
}

// handshakeMsgID is sent as the first frame on every outbound-dialed link
// so the accepting side can learn which peer just connected.
const handshakeMsgID = "@Hello@"

// Config bounds the communicator's backpressure and backoff behavior.
type Config struct {
	HighWater   int           // queue length past which Send logs a warning; Send never blocks
	HardCap     int           // queue length at which messages are dropped
	BackoffMin  time.Duration // default 100ms
	BackoffMax  time.Duration // default 5s
}

// DefaultConfig is the stock backpressure/backoff tuning.
func DefaultConfig() Config {
	return Config{HighWater: 1024, HardCap: 8192, BackoffMin: 100 * time.Millisecond, BackoffMax: 5 * time.Second}
}

// Communicator is one server's view of the mesh.
type Communicator struct {
	selfID   string
	listener net.Listener
	handler  Handler
	sysReg   SystemMsgRegistry
	cache    *requestcache.Cache
	cfg      Config
	reporters []metrics.Reporter

	mu    sync.Mutex
	links map[string]*link
	closed bool
}

// New builds a Communicator. cache is consulted on every inbound reply
// envelope.
func New(selfID string, handler Handler, sysReg SystemMsgRegistry, cache *requestcache.Cache, cfg Config, reporters []metrics.Reporter) *Communicator {
	return &Communicator{
		selfID:    selfID,
		handler:   handler,
		sysReg:    sysReg,
		cache:     cache,
		cfg:       cfg,
		reporters: reporters,
		links:     make(map[string]*link),
	}
}

// Listen binds bindEndpoint and accepts inbound peer connections in the
// background. Each accepted connection expects a handshake frame naming the
// dialing peer before any routed traffic.
func (c *Communicator) Listen(bindEndpoint string) error {
	ln, err := net.Listen("tcp", bindEndpoint)
	if err != nil {
		return err
	}
	c.listener = ln
	go c.acceptLoop(ln)
	return nil
}

// Addr returns the bound listen address, once Listen has succeeded. Used by
// tests and by discovery to advertise this server's own endpoint.
func (c *Communicator) Addr() net.Addr {
	if c.listener == nil {
		return nil
	}
	return c.listener.Addr()
}

func (c *Communicator) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return // listener closed during Shutdown
		}
		go c.handleAccepted(conn)
	}
}

func (c *Communicator) handleAccepted(conn net.Conn) {
	h, payload, err := readFrame(conn)
	if err != nil || h.MsgID != handshakeMsgID {
		logger.Log.Warnf("mesh: rejecting connection from %s: bad handshake", conn.RemoteAddr())
		conn.Close()
		return
	}
	peerID := string(payload)
	l, lerr := c.ensureLink(peerID)
	if lerr != nil {
		conn.Close()
		return
	}
	l.adopt(conn)
}

// Connect eagerly opens (or re-arms) the outbound link to a peer at
// endpoint. Calling it for an already-open link is a no-op.
func (c *Communicator) Connect(peerID, endpoint string) {
	l, err := c.ensureLink(peerID)
	if err != nil {
		return
	}
	l.setEndpoint(endpoint)
	l.dialAsync()
}

// Disconnect tears the link to peerID down, used when discovery drops a
// peer that stopped heartbeating.
func (c *Communicator) Disconnect(peerID string) {
	c.mu.Lock()
	l, ok := c.links[peerID]
	delete(c.links, peerID)
	c.mu.Unlock()
	if ok {
		l.close()
	}
}

func (c *Communicator) ensureLink(peerID string) (*link, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.NewErrorf(errors.CodeServerNotFound, "mesh: communicator is shut down")
	}
	if l, ok := c.links[peerID]; ok {
		return l, nil
	}
	l := newLink(peerID, c)
	c.links[peerID] = l
	return l, nil
}

// Send serializes and queues pkt for delivery to targetServerID, opening
// the link lazily if needed.
func (c *Communicator) Send(ctx context.Context, targetServerID string, pkt *route.Packet) error {
	if targetServerID == "" || targetServerID == c.selfID {
		return errors.NewErrorf(errors.CodeServerNotFound, "mesh: refusing to mesh-send to self/empty target")
	}
	header := pkt.Header
	if !header.IsForwarded {
		// First hop off the originating server; receivers use the flag to
		// short-circuit routing loops.
		header = header.Forwarded()
	}
	payload, _ := pkt.View()
	frame, err := route.Encode(header, payload)
	if err != nil {
		return errors.NewError(errors.CodeInvalidMessage, err)
	}
	l, err := c.ensureLink(targetServerID)
	if err != nil {
		return err
	}
	return l.enqueue(frame)
}

// deliverInbound runs the routing demultiplexer for one decoded frame
// arriving on any link (inbound-accepted or outbound-dialed).
func (c *Communicator) deliverInbound(h route.Header, payload []byte) {
	pkt := route.NewOwned(h, payload)

	if h.IsReply {
		// On a match the waiter takes ownership of pkt and disposes it
		// once done; an unmatched (late) reply is still owned here and
		// must be released or its pooled buffer leaks.
		if c.cache.TryComplete(h.MsgSeq, pkt) {
			return
		}
		logger.Log.Debugf("mesh: dropping late reply msgSeq=%d from=%s", h.MsgSeq, h.From)
		pkt.Dispose()
		return
	}
	if c.sysReg != nil && c.sysReg.IsSystemMsg(h.MsgID) {
		c.handler.HandleSystem(h, pkt)
		return
	}
	if h.StageID != 0 {
		c.handler.HandleStage(h, pkt)
		return
	}
	c.handler.HandleAPI(h, pkt)
}

// Shutdown tears down every link and stops accepting new connections.
// Idempotent.
func (c *Communicator) Shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	links := make([]*link, 0, len(c.links))
	for _, l := range c.links {
		links = append(links, l)
	}
	c.links = nil
	c.mu.Unlock()

	if c.listener != nil {
		c.listener.Close()
	}
	for _, l := range links {
		l.close()
	}
}
