package discovery

import (
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nuid"

	"github.com/ulala-x/playhouse/logger"
)

const heartbeatSubject = "playhouse.heartbeat"

// heartbeatMsg is one gossip frame: the full self record, plus a unique
// per-message id. Receivers recognise their own publishes echoed back by
// the broker by the ServerID in Info, not by this id.
type heartbeatMsg struct {
	ID   string     `json:"id"`
	Info ServerInfo `json:"info"`
}

// Gossip publishes this server's info over NATS every interval and folds
// received peer heartbeats into the Table. Peers missing heartbeats for
// ttl (3× the interval by convention) are expired and their links dropped.
type Gossip struct {
	nc       *nats.Conn
	ownsConn bool
	table    *Table
	self     func() ServerInfo
	interval time.Duration
	ttl      time.Duration

	sub  *nats.Subscription
	stop chan struct{}
	done chan struct{}
}

// NewGossip dials natsURL and builds a Gossip publisher for the record
// self returns (a func so the publisher always sends current state).
func NewGossip(natsURL string, self func() ServerInfo, table *Table, interval, ttl time.Duration) (*Gossip, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, err
	}
	g := NewGossipWithConn(nc, self, table, interval, ttl)
	g.ownsConn = true
	return g, nil
}

// NewGossipWithConn wraps an existing NATS connection (tests run an
// embedded broker and hand its connection in).
func NewGossipWithConn(nc *nats.Conn, self func() ServerInfo, table *Table, interval, ttl time.Duration) *Gossip {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if ttl <= 0 {
		ttl = 3 * interval
	}
	return &Gossip{
		nc:       nc,
		table:    table,
		self:     self,
		interval: interval,
		ttl:      ttl,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start subscribes to the heartbeat subject and begins publishing.
func (g *Gossip) Start() error {
	selfID := g.self().ServerID
	sub, err := g.nc.Subscribe(heartbeatSubject, func(m *nats.Msg) {
		var hb heartbeatMsg
		if err := json.Unmarshal(m.Data, &hb); err != nil {
			logger.Log.Debugf("discovery: dropping malformed heartbeat: %s", err.Error())
			return
		}
		if hb.Info.ServerID == selfID {
			return
		}
		if !g.table.Touch(hb.Info.ServerID) {
			g.table.Upsert(hb.Info)
		}
	})
	if err != nil {
		return err
	}
	g.sub = sub

	go g.run()
	return nil
}

func (g *Gossip) run() {
	defer close(g.done)
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	g.publish()
	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			g.publish()
			for _, info := range g.table.Expire(g.ttl) {
				logger.Log.Infof("discovery: server %s missed heartbeats, marking Disabled", info.ServerID)
			}
		}
	}
}

func (g *Gossip) publish() {
	data, err := json.Marshal(heartbeatMsg{ID: nuid.Next(), Info: g.self()})
	if err != nil {
		return
	}
	if err := g.nc.Publish(heartbeatSubject, data); err != nil {
		logger.Log.Debugf("discovery: heartbeat publish: %s", err.Error())
	}
}

// Stop halts publishing and unsubscribes. Idempotent.
func (g *Gossip) Stop() {
	select {
	case <-g.stop:
		return
	default:
	}
	close(g.stop)
	<-g.done
	if g.sub != nil {
		g.sub.Unsubscribe()
	}
	if g.ownsConn {
		g.nc.Close()
	}
}
