package mesh

import (
	"encoding/binary"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ulala-x/playhouse/errors"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/route"
)

// link is one peer connection: a lazily-dialed outbound socket (or an
// adopted inbound one), an outbound frame queue, and a reader goroutine
// feeding the communicator's routing demultiplexer. Reconnection uses
// bounded exponential backoff.
type link struct {
	peerID string
	comm   *Communicator

	mu       sync.Mutex
	endpoint string
	conn     net.Conn
	dialing  bool
	closed   bool
	backoff  time.Duration

	queue chan []byte
	done  chan struct{}
}

func newLink(peerID string, comm *Communicator) *link {
	l := &link{
		peerID:  peerID,
		comm:    comm,
		backoff: comm.cfg.BackoffMin,
		queue:   make(chan []byte, comm.cfg.HardCap),
		done:    make(chan struct{}),
	}
	return l
}

func (l *link) setEndpoint(endpoint string) {
	l.mu.Lock()
	l.endpoint = endpoint
	l.mu.Unlock()
}

// enqueue queues frame for delivery. Past HighWater this only logs (a
// Stage's pump may be the caller, and blocking there would deadlock that
// Stage's serialization guarantee); past HardCap the frame is dropped.
func (l *link) enqueue(frame []byte) error {
	select {
	case l.queue <- frame:
		if len(l.queue) > l.comm.cfg.HighWater {
			logger.Log.Warnf("mesh: link %s queue depth %d exceeds high water %d", l.peerID, len(l.queue), l.comm.cfg.HighWater)
		}
		return nil
	default:
		return errors.NewErrorf(errors.CodeServerNotFound, "mesh: link %s queue at hard cap %d, dropping frame", l.peerID, l.comm.cfg.HardCap)
	}
}

// dialAsync starts (if not already running) a goroutine that dials the
// link's endpoint with exponential backoff until it connects or the link is
// closed.
func (l *link) dialAsync() {
	l.mu.Lock()
	if l.dialing || l.conn != nil || l.closed {
		l.mu.Unlock()
		return
	}
	l.dialing = true
	endpoint := l.endpoint
	l.mu.Unlock()

	go l.dialLoop(endpoint)
}

func (l *link) dialLoop(endpoint string) {
	backoff := l.comm.cfg.BackoffMin
	for {
		l.mu.Lock()
		closed := l.closed
		l.mu.Unlock()
		if closed || endpoint == "" {
			return
		}

		conn, err := net.DialTimeout("tcp", endpoint, 5*time.Second)
		if err != nil {
			logger.Log.Warnf("mesh: dial %s (%s) failed: %s, retrying in %s", l.peerID, endpoint, err, backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > l.comm.cfg.BackoffMax {
				backoff = l.comm.cfg.BackoffMax
			}
			continue
		}

		hello, herr := route.Encode(route.Header{MsgID: handshakeMsgID, IsBase: true}, []byte(l.comm.selfID))
		if herr == nil {
			conn.Write(hello)
		}

		l.adopt(conn)
		return
	}
}

// adopt installs conn as this link's active connection (used both after a
// successful outbound dial and when the peer dials us first) and starts its
// writer/reader goroutines.
func (l *link) adopt(conn net.Conn) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		conn.Close()
		return
	}
	if l.conn != nil {
		l.conn.Close()
	}
	l.conn = conn
	l.dialing = false
	l.mu.Unlock()

	go l.writeLoop(conn)
	go l.readLoop(conn)
}

func (l *link) writeLoop(conn net.Conn) {
	for frame := range l.queue {
		if _, err := conn.Write(frame); err != nil {
			l.handleConnError(conn, err)
			return
		}
		l.mu.Lock()
		stillCurrent := l.conn == conn
		l.mu.Unlock()
		if !stillCurrent {
			return
		}
	}
}

func (l *link) readLoop(conn net.Conn) {
	for {
		h, payload, err := readFrame(conn)
		if err != nil {
			l.handleConnError(conn, err)
			return
		}
		l.comm.deliverInbound(h, payload)
	}
}

func (l *link) handleConnError(conn net.Conn, err error) {
	if err != io.EOF {
		logger.Log.Warnf("mesh: link %s connection error: %s", l.peerID, err)
	}
	conn.Close()

	l.mu.Lock()
	if l.conn != conn || l.closed {
		l.mu.Unlock()
		return
	}
	l.conn = nil
	endpoint := l.endpoint
	l.mu.Unlock()

	if endpoint != "" {
		l.dialAsync()
	}
}

func (l *link) close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()

	close(l.queue)
	if conn != nil {
		conn.Close()
	}
}

// readFrame reads one length-prefixed route.Header + payload frame from r.
func readFrame(r io.Reader) (route.Header, []byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return route.Header{}, nil, err
	}
	bodyLen := binary.LittleEndian.Uint32(lenBuf[:])
	if int64(bodyLen) > route.MaxBodyBytes {
		return route.Header{}, nil, errors.NewErrorf(errors.CodeInvalidMessage, "mesh: frame body %d exceeds max %d", bodyLen, route.MaxBodyBytes)
	}
	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return route.Header{}, nil, err
	}
	frame := append(lenBuf[:], body...)
	return route.Decode(frame)
}
