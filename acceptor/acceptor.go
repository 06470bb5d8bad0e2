// Package acceptor implements the client-facing edge: TCP and WebSocket
// listeners that wrap each accepted connection in an agent.Agent and hand
// its packets to the routing core.
package acceptor

import (
	"net"
	"sync"

	"github.com/ulala-x/playhouse/agent"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/metrics"
	"github.com/ulala-x/playhouse/serialize"
	"github.com/ulala-x/playhouse/session"
)

// Acceptor is one client listener.
type Acceptor interface {
	// ListenAndServe blocks until Stop; it accepts connections and runs an
	// Agent per connection.
	ListenAndServe(endpoint string) error
	// Addr returns the bound address once listening, nil before.
	Addr() net.Addr
	// Stop closes the listener; in-flight agents die with their conns.
	Stop()
}

// deps bundles what every acceptor needs to build agents.
type deps struct {
	pool       session.SessionPool
	core       agent.CoreHandler
	serializer serialize.Serializer
	agentCfg   agent.Config
	reporters  []metrics.Reporter
}

func (d *deps) serve(conn net.Conn) {
	a := agent.New(conn, d.pool, d.core, d.serializer, d.agentCfg, d.reporters)
	a.Handle()
}

// TCPAcceptor accepts raw TCP client connections.
type TCPAcceptor struct {
	deps

	mu       sync.Mutex
	listener net.Listener
	running  bool
}

// NewTCP builds a TCPAcceptor.
func NewTCP(pool session.SessionPool, core agent.CoreHandler, serializer serialize.Serializer, agentCfg agent.Config, reporters []metrics.Reporter) *TCPAcceptor {
	return &TCPAcceptor{deps: deps{pool: pool, core: core, serializer: serializer, agentCfg: agentCfg, reporters: reporters}}
}

// ListenAndServe implements Acceptor.
func (t *TCPAcceptor) ListenAndServe(endpoint string) error {
	ln, err := net.Listen("tcp", endpoint)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.listener = ln
	t.running = true
	t.mu.Unlock()

	logger.Log.Infof("acceptor: tcp listening on %s", ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			t.mu.Lock()
			running := t.running
			t.mu.Unlock()
			if !running {
				return nil
			}
			return err
		}
		go t.serve(conn)
	}
}

// Addr implements Acceptor.
func (t *TCPAcceptor) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Stop implements Acceptor.
func (t *TCPAcceptor) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.running = false
	t.listener.Close()
}
