// Package agent implements the per-connection network agent the session
// edge runs for every connected client: a read loop decoding client frames,
// a buffered write loop, and a heartbeat watchdog. An Agent is the concrete
// networkentity.NetworkEntity behind every session.Session.
package agent

import (
	"context"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ulala-x/playhouse/constants"
	"github.com/ulala-x/playhouse/errors"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/metrics"
	"github.com/ulala-x/playhouse/packet"
	"github.com/ulala-x/playhouse/serialize"
	"github.com/ulala-x/playhouse/session"
	"github.com/ulala-x/playhouse/util"
	"github.com/ulala-x/playhouse/util/compression"
)

// Control message ids the agent itself produces or consumes; never routed
// to Stages or API handlers.
const (
	MsgHeartbeat = "@Heart@Beat@"
	MsgHandshake = "@Handshake@"
	MsgKick      = "@Kick@"
)

// CoreHandler is the routing core as the session edge sees it: every
// decoded client packet is handed in (ownership included, the core must
// dispose it), and every disconnect is propagated.
type CoreHandler interface {
	HandlePacket(ctx context.Context, sid int64, pkt *packet.Packet) error
	HandleDisconnect(sid int64, reason string)
}

// handshakeData is pushed to the client right after the connection is
// accepted, so SDKs learn the heartbeat cadence and payload codec without
// hardcoding them.
type handshakeData struct {
	Heartbeat  int64  `json:"heartbeat"`
	Serializer string `json:"serializer"`
}

type pendingWrite struct {
	data []byte
}

// Agent is one client connection's server-side driver.
type Agent struct {
	sess        session.Session
	sessionPool session.SessionPool
	core        CoreHandler

	conn       net.Conn
	serializer serialize.Serializer
	reporters  []metrics.Reporter

	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	maxPacketBytes    int

	chSend          chan pendingWrite
	chDie           chan struct{}
	chStopWrite     chan struct{}
	chStopHeartbeat chan struct{}

	state  int32
	lastAt int64

	closeMutex sync.Mutex
	closeOnce  bool
}

// Config carries the per-edge tuning an acceptor hands to every new Agent.
type Config struct {
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	SendBufferSize    int
	// MaxPacketBytes caps outbound payloads; zero falls back to the codec's
	// global frame bound.
	MaxPacketBytes int
}

// New builds an Agent around an accepted connection and registers its
// Session in pool. Handle must be called to start the loops.
func New(conn net.Conn, pool session.SessionPool, core CoreHandler, serializer serialize.Serializer, cfg Config, reporters []metrics.Reporter) *Agent {
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = 256
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 5 * time.Second
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = 3 * cfg.HeartbeatInterval
	}
	a := &Agent{
		sessionPool:       pool,
		core:              core,
		conn:              conn,
		serializer:        serializer,
		reporters:         reporters,
		heartbeatInterval: cfg.HeartbeatInterval,
		heartbeatTimeout:  cfg.HeartbeatTimeout,
		maxPacketBytes:    cfg.MaxPacketBytes,
		chSend:            make(chan pendingWrite, cfg.SendBufferSize),
		chDie:             make(chan struct{}),
		chStopWrite:       make(chan struct{}),
		chStopHeartbeat:   make(chan struct{}),
		state:             constants.StatusStart,
		lastAt:            time.Now().Unix(),
	}
	a.sess = pool.NewSession(a, true)
	metrics.ReportNumberOfConnectedClients(reporters, pool.GetSessionCount())
	return a
}

// GetSession returns the Session bound to this connection.
func (a *Agent) GetSession() session.Session { return a.sess }

// GetStatus returns the agent's current connection status.
func (a *Agent) GetStatus() int32 { return atomic.LoadInt32(&a.state) }

// SetStatus sets the agent's connection status.
func (a *Agent) SetStatus(s int32) { atomic.StoreInt32(&a.state, s) }

// SetLastAt stamps the last client activity, deferring the heartbeat
// watchdog.
func (a *Agent) SetLastAt() { atomic.StoreInt64(&a.lastAt, time.Now().Unix()) }

// RemoteAddr implements networkentity.NetworkEntity.
func (a *Agent) RemoteAddr() net.Addr { return a.conn.RemoteAddr() }

// IPVersion reports "ipv4" or "ipv6" for the remote address.
func (a *Agent) IPVersion() string {
	version := constants.IPv4
	ipPort := a.RemoteAddr().String()
	if strings.Count(ipPort, ":") > 1 {
		version = constants.IPv6
	}
	return version
}

// Send implements networkentity.NetworkEntity: it frames one client packet
// and queues it on the write loop. It never blocks the caller; a full
// buffer surfaces ErrBufferExceed instead.
func (a *Agent) Send(ctx context.Context, msgID string, msgSeq uint16, stageID int64, errorCode uint16, payload []byte) error {
	if a.GetStatus() == constants.StatusClosed {
		return constants.ErrBrokenPipe
	}
	if a.maxPacketBytes > 0 && len(payload) > a.maxPacketBytes {
		return errors.NewErrorf(errors.CodeInvalidMessage, "agent: payload of %d bytes exceeds max %d", len(payload), a.maxPacketBytes)
	}
	frame, err := packet.EncodeFields(msgID, msgSeq, stageID, errorCode, payload)
	if err != nil {
		return err
	}
	return a.queue(frame)
}

func (a *Agent) queue(frame []byte) error {
	select {
	case <-a.chDie:
		return constants.ErrBrokenPipe
	case a.chSend <- pendingWrite{data: frame}:
		return nil
	default:
		return constants.ErrBufferExceed
	}
}

// Kick pushes a kick control packet so well-behaved clients disconnect
// themselves, then closes the connection.
func (a *Agent) Kick(ctx context.Context, reason string) error {
	frame, err := packet.EncodeFields(MsgKick, 0, 0, uint16(errors.CodeSuccess), []byte(reason))
	if err == nil {
		// Written directly, not queued: the close below races the write
		// loop's drain.
		if _, werr := a.conn.Write(frame); werr != nil {
			logger.Log.Debugf("agent: failed to write kick to %s: %s", a.conn.RemoteAddr(), werr.Error())
		}
	}
	return a.Close()
}

// Close tears the connection down once, runs the session close callbacks,
// and tells the core the session is gone. Safe to call from any goroutine
// and more than once.
func (a *Agent) Close() error {
	a.closeMutex.Lock()
	defer a.closeMutex.Unlock()
	if a.closeOnce {
		return nil
	}
	a.closeOnce = true
	a.SetStatus(constants.StatusClosed)

	close(a.chDie)
	close(a.chStopWrite)
	close(a.chStopHeartbeat)
	err := a.conn.Close()

	for _, fn := range a.sess.GetOnCloseCallbacks() {
		fn()
	}
	for _, fn := range a.sessionPool.GetSessionCloseCallbacks() {
		fn(a.sess)
	}
	a.core.HandleDisconnect(a.sess.ID(), "connection closed")
	metrics.ReportNumberOfConnectedClients(a.reporters, a.sessionPool.GetSessionCount())
	return err
}

// Handle runs the agent until the connection dies: handshake push, then
// the write, heartbeat, and read loops. The read loop runs on the calling
// goroutine; Handle returns when it ends.
func (a *Agent) Handle() {
	defer func() {
		if err := a.Close(); err != nil {
			logger.Log.Debugf("agent: close after handle: %s", err.Error())
		}
	}()

	go a.writeLoop()
	go a.heartbeatLoop()

	a.SetStatus(constants.StatusHandshake)
	if err := a.sendHandshake(); err != nil {
		logger.Log.Warnf("agent: handshake push to %s failed: %s", a.conn.RemoteAddr(), err.Error())
		return
	}
	a.SetStatus(constants.StatusWorking)

	a.readLoop()
}

// sendHandshake pushes the serializer/heartbeat parameters. The body is
// deflated when compression actually shrinks it; one leading flag byte
// tells the client which form follows.
func (a *Agent) sendHandshake() error {
	raw, err := util.SerializeOrRaw(a.serializer, handshakeData{
		Heartbeat:  int64(a.heartbeatInterval / time.Second),
		Serializer: a.serializer.GetName(),
	})
	if err != nil {
		return err
	}
	body := append([]byte{0}, raw...)
	if compressed, cerr := compression.DeflateData(raw); cerr == nil && len(compressed) < len(raw) {
		body = append([]byte{1}, compressed...)
	}
	frame, err := packet.EncodeFields(MsgHandshake, 0, 0, 0, body)
	if err != nil {
		return err
	}
	return a.queue(frame)
}

func (a *Agent) writeLoop() {
	for {
		select {
		case <-a.chStopWrite:
			return
		case pw := <-a.chSend:
			if _, err := a.conn.Write(pw.data); err != nil {
				logger.Log.Debugf("agent: write to %s failed: %s", a.conn.RemoteAddr(), err.Error())
				a.Close()
				return
			}
		}
	}
}

func (a *Agent) heartbeatLoop() {
	ticker := time.NewTicker(a.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.chStopHeartbeat:
			return
		case <-ticker.C:
			deadline := time.Now().Add(-a.heartbeatTimeout).Unix()
			if atomic.LoadInt64(&a.lastAt) < deadline {
				logger.Log.Debugf("agent: session %d heartbeat timeout", a.sess.ID())
				a.Close()
				return
			}
			frame, err := packet.EncodeFields(MsgHeartbeat, 0, 0, 0, nil)
			if err == nil {
				if qerr := a.queue(frame); qerr != nil {
					a.Close()
					return
				}
			}
		}
	}
}

func (a *Agent) readLoop() {
	for {
		pkt, err := packet.Decode(a.conn)
		if err != nil {
			return
		}
		a.SetLastAt()

		if pkt.MsgID == MsgHeartbeat {
			// Keepalive only; no reply expected.
			pkt.Dispose()
			continue
		}
		if constants.Debug && constants.LogCanPrint(pkt.MsgID) {
			logger.Log.Debugf("agent: sid=%d recv msgId=%s seq=%d stage=%d", a.sess.ID(), pkt.MsgID, pkt.MsgSeq, pkt.StageID)
		}
		if err := a.core.HandlePacket(context.Background(), a.sess.ID(), pkt); err != nil {
			logger.Log.Warnf("agent: core rejected packet msgId=%s from sid=%d: %s", pkt.MsgID, a.sess.ID(), err.Error())
		}
	}
}
