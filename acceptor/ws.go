package acceptor

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ulala-x/playhouse/agent"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/metrics"
	"github.com/ulala-x/playhouse/serialize"
	"github.com/ulala-x/playhouse/session"
)

// WSAcceptor accepts WebSocket client connections, presenting each one to
// the agent as a plain net.Conn carrying the same binary framing as TCP.
type WSAcceptor struct {
	deps

	upgrader websocket.Upgrader

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	running  bool
}

// NewWS builds a WSAcceptor. Origin checking is left permissive; deploy
// behind an edge proxy if origins must be enforced.
func NewWS(pool session.SessionPool, core agent.CoreHandler, serializer serialize.Serializer, agentCfg agent.Config, reporters []metrics.Reporter) *WSAcceptor {
	return &WSAcceptor{
		deps: deps{pool: pool, core: core, serializer: serializer, agentCfg: agentCfg, reporters: reporters},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ListenAndServe implements Acceptor.
func (w *WSAcceptor) ListenAndServe(endpoint string) error {
	ln, err := net.Listen("tcp", endpoint)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: w}

	w.mu.Lock()
	w.listener = ln
	w.server = srv
	w.running = true
	w.mu.Unlock()

	logger.Log.Infof("acceptor: websocket listening on %s", ln.Addr())
	serveErr := srv.Serve(ln)

	w.mu.Lock()
	running := w.running
	w.mu.Unlock()
	if !running {
		return nil
	}
	return serveErr
}

// ServeHTTP upgrades one request and runs its agent.
func (w *WSAcceptor) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		logger.Log.Debugf("acceptor: websocket upgrade from %s failed: %s", r.RemoteAddr, err.Error())
		return
	}
	w.serve(newWSConn(conn))
}

// Addr implements Acceptor.
func (w *WSAcceptor) Addr() net.Addr {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.listener == nil {
		return nil
	}
	return w.listener.Addr()
}

// Stop implements Acceptor.
func (w *WSAcceptor) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.running = false
	w.server.Close()
}

// wsConn adapts a websocket connection to net.Conn: reads drain binary
// messages as a byte stream, writes emit one binary message per call (each
// Write is exactly one encoded frame, so message boundaries line up).
type wsConn struct {
	conn   *websocket.Conn
	buffer []byte
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

func (c *wsConn) Read(b []byte) (int, error) {
	if len(c.buffer) == 0 {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		c.buffer = data
	}
	n := copy(b, c.buffer)
	c.buffer = c.buffer[n:]
	return n, nil
}

func (c *wsConn) Write(b []byte) (int, error) {
	if err := c.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (c *wsConn) Close() error                       { return c.conn.Close() }
func (c *wsConn) LocalAddr() net.Addr                { return c.conn.LocalAddr() }
func (c *wsConn) RemoteAddr() net.Addr               { return c.conn.RemoteAddr() }
func (c *wsConn) SetDeadline(t time.Time) error      { return c.conn.SetReadDeadline(t) }
func (c *wsConn) SetReadDeadline(t time.Time) error  { return c.conn.SetReadDeadline(t) }
func (c *wsConn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }

var _ net.Conn = (*wsConn)(nil)
