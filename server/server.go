// Package server assembles one PlayHouse process from its parts: session
// pool, request cache, mesh communicator, Play and API dispatchers, system
// handler, discovery, and the client-facing acceptors. It owns startup
// order and the graceful-shutdown sequence.
package server

import (
	"context"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/ulala-x/playhouse/acceptor"
	"github.com/ulala-x/playhouse/agent"
	"github.com/ulala-x/playhouse/api"
	"github.com/ulala-x/playhouse/config"
	"github.com/ulala-x/playhouse/discovery"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/mesh"
	"github.com/ulala-x/playhouse/metrics"
	"github.com/ulala-x/playhouse/play"
	"github.com/ulala-x/playhouse/requestcache"
	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/serialize"
	serializejson "github.com/ulala-x/playhouse/serialize/json"
	serializepb "github.com/ulala-x/playhouse/serialize/protobuf"
	"github.com/ulala-x/playhouse/session"
	"github.com/ulala-x/playhouse/stage"
	"github.com/ulala-x/playhouse/system"
	"github.com/ulala-x/playhouse/tracing"
)

// Server is one running PlayHouse process.
type Server struct {
	cfg       *config.Server
	reporters []metrics.Reporter

	sessions session.SessionPool
	reqCache *requestcache.Cache
	table    *discovery.Table
	comm     *mesh.Communicator
	play     *play.Dispatcher
	api      *api.Dispatcher
	system   *system.Handler

	registry *discovery.Registry
	gossip   *discovery.Gossip

	serializer serialize.Serializer
	acceptors  []acceptor.Acceptor

	tracingCloser io.Closer

	mu       sync.Mutex
	started  bool
	shutdown bool
}

// New builds a Server from cfg. Nothing listens until Start.
func New(cfg *config.Server) (*Server, error) {
	if cfg.ServerID == "" {
		cfg.ServerID = string(cfg.ServiceType) + "-" + uuid.New().String()
	}
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		sessions: session.NewSessionPool(),
		reqCache: requestcache.New(),
		table:    discovery.NewTable(cfg.ServerID),
	}
	switch cfg.Serializer {
	case "protobuf":
		s.serializer = serializepb.New()
	default:
		s.serializer = serializejson.New()
	}
	for _, name := range cfg.MetricsReporters {
		switch name {
		case "prometheus":
			s.reporters = append(s.reporters, metrics.NewPrometheusReporter("playhouse", string(cfg.ServiceType)))
		case "statsd":
			r, err := metrics.NewDatadogReporter("127.0.0.1:8125", "playhouse")
			if err != nil {
				return nil, err
			}
			s.reporters = append(s.reporters, r)
		}
	}

	// The mesh hands inbound frames to the Play dispatcher, which in turn
	// sends through the mesh; the Server itself is the mesh's handler so
	// both can be built without a circular constructor.
	s.comm = mesh.New(cfg.ServerID, s, s, s.reqCache, mesh.DefaultConfig(), s.reporters)
	s.play = play.New(play.Config{
		SelfServerID:   cfg.ServerID,
		MinWorkers:     cfg.WorkerMin,
		MaxWorkers:     cfg.WorkerMax,
		RequestTimeout: cfg.RequestTimeout(),
		Reporters:      s.reporters,
	}, s.sessions, s.comm, s.reqCache, nil, nil)

	s.api = api.New(cfg.ServerID, s.play.Outbound(), s.serializer, s.reporters)
	s.system = system.New(cfg.ServerID, s.table, s.sessions, s.play.Outbound(), s.stats)
	s.play.SetAPIHandler(s.api)
	s.play.SetSystemHandler(s.system)

	s.table.AddListener(meshListener{comm: s.comm})

	if cfg.JaegerAgent != "" {
		closer, err := tracing.Configure("playhouse-"+string(cfg.ServiceType), cfg.JaegerAgent)
		if err != nil {
			return nil, err
		}
		s.tracingCloser = closer
	}
	return s, nil
}

// meshListener opens and tears down peer links as discovery reports them.
type meshListener struct {
	comm *mesh.Communicator
}

func (l meshListener) AddServer(info discovery.ServerInfo) {
	l.comm.Connect(info.ServerID, info.BindEndpoint)
}

func (l meshListener) RemoveServer(info discovery.ServerInfo) {
	l.comm.Disconnect(info.ServerID)
}

// ServerID returns this process's cluster-unique id.
func (s *Server) ServerID() string { return s.cfg.ServerID }

// Info returns this server's current discovery record, including the
// actual mesh listen address once Start has bound it.
func (s *Server) Info() discovery.ServerInfo { return s.selfInfo() }

// Outbound exposes the sender seam for application code running outside a
// handler context (startup jobs, admin tooling).
func (s *Server) Outbound() stage.Outbound { return s.play.Outbound() }

// ClientAddr returns the client acceptor's bound address, nil when no
// client endpoint is configured or it is not yet listening.
func (s *Server) ClientAddr() net.Addr {
	for _, a := range s.acceptors {
		if addr := a.Addr(); addr != nil {
			return addr
		}
	}
	return nil
}

// Cluster returns the discovery read view, for application code that needs
// to locate counterpart servers by service type.
func (s *Server) Cluster() *discovery.Table { return s.table }

// Sessions returns the session pool backing this server's client edge.
func (s *Server) Sessions() session.SessionPool { return s.sessions }

// RegisterStageType registers a Stage factory; Play servers only.
func (s *Server) RegisterStageType(stageType string, factory stage.Factory) {
	s.play.RegisterStageType(stageType, factory)
}

// RegisterController registers an API controller's handlers.
func (s *Server) RegisterController(c api.Controller) {
	s.api.RegisterController(c)
}

// UseMiddleware appends mw to the API middleware chain.
func (s *Server) UseMiddleware(mw api.Middleware) {
	s.api.Use(mw)
}

// selfInfo snapshots this server's discovery record.
func (s *Server) selfInfo() discovery.ServerInfo {
	endpoint := s.cfg.BindEndpoint
	if addr := s.comm.Addr(); addr != nil {
		endpoint = addr.String()
	}
	return discovery.ServerInfo{
		ServerID:     s.cfg.ServerID,
		ServiceID:    s.cfg.ServiceID,
		ServiceType:  string(s.cfg.ServiceType),
		BindEndpoint: endpoint,
		State:        discovery.StateRunning,
	}
}

func (s *Server) stats() map[string]interface{} {
	return map[string]interface{}{
		"stages":   s.play.StageCount(),
		"sessions": s.sessions.GetSessionCount(),
		"requests": s.reqCache.Len(),
		"peers":    s.table.Count(),
	}
}

// Start binds the mesh endpoint, joins discovery, and (when a client
// endpoint is configured) starts the client acceptors. It returns once
// everything is listening; serving happens on background goroutines.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	if err := s.comm.Listen(s.cfg.BindEndpoint); err != nil {
		return err
	}

	if len(s.cfg.EtcdEndpoints) > 0 {
		registry, err := discovery.NewRegistry(discovery.EtcdConfig{
			Endpoints:   s.cfg.EtcdEndpoints,
			DialTimeout: s.cfg.EtcdDialTimeout(),
			LeaseTTLSec: s.cfg.EtcdLeaseTTLSec,
		}, s.selfInfo(), s.table)
		if err != nil {
			return err
		}
		if err := registry.Start(ctx); err != nil {
			return err
		}
		s.registry = registry
	}

	if s.cfg.NatsURL != "" {
		gossip, err := discovery.NewGossip(s.cfg.NatsURL, s.selfInfo, s.table, s.cfg.HeartbeatInterval(), s.cfg.HeartbeatTimeout())
		if err != nil {
			return err
		}
		if err := gossip.Start(); err != nil {
			return err
		}
		s.gossip = gossip
	}

	if s.cfg.ClientEndpoint != "" {
		agentCfg := agent.Config{
			HeartbeatInterval: s.cfg.HeartbeatInterval(),
			HeartbeatTimeout:  s.cfg.HeartbeatTimeout(),
			MaxPacketBytes:    s.cfg.MaxPacketBytes,
		}
		tcp := acceptor.NewTCP(s.sessions, s.play, s.serializer, agentCfg, s.reporters)
		s.acceptors = append(s.acceptors, tcp)
		go func() {
			if err := tcp.ListenAndServe(s.cfg.ClientEndpoint); err != nil {
				logger.Log.Errorf("server: client acceptor: %s", err.Error())
			}
		}()
	}

	logger.Log.Infof("server: %s (%s) up, mesh on %s", s.cfg.ServerID, s.cfg.ServiceType, s.cfg.BindEndpoint)
	return nil
}

// Shutdown runs the graceful teardown: stop accepting clients, leave
// discovery, stop the mesh, destroy Stages, cancel outstanding requests,
// close sessions. Idempotent.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return
	}
	s.shutdown = true
	s.mu.Unlock()

	for _, a := range s.acceptors {
		a.Stop()
	}
	if s.gossip != nil {
		s.gossip.Stop()
	}
	if s.registry != nil {
		s.registry.Stop()
	}
	s.comm.Shutdown()
	s.play.Shutdown()
	s.reqCache.CancelAll()
	s.sessions.CloseAll("server shutting down")
	if s.tracingCloser != nil {
		s.tracingCloser.Close()
	}
	logger.Log.Infof("server: %s stopped", s.cfg.ServerID)
}

// HandleSystem implements mesh.Handler.
func (s *Server) HandleSystem(h route.Header, pkt *route.Packet) { s.play.HandleSystem(h, pkt) }

// HandleStage implements mesh.Handler.
func (s *Server) HandleStage(h route.Header, pkt *route.Packet) { s.play.HandleStage(h, pkt) }

// HandleAPI implements mesh.Handler.
func (s *Server) HandleAPI(h route.Header, pkt *route.Packet) { s.play.HandleAPI(h, pkt) }

// IsSystemMsg implements mesh.SystemMsgRegistry.
func (s *Server) IsSystemMsg(msgID string) bool { return s.play.IsSystemMsg(msgID) }
