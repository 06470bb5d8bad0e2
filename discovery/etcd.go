package discovery

import (
	"context"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ulala-x/playhouse/logger"
)

const keyPrefix = "playhouse/servers/"

// EtcdConfig tunes the registry's etcd usage.
type EtcdConfig struct {
	Endpoints   []string
	DialTimeout time.Duration
	LeaseTTLSec int64
}

// Registry keeps this server registered in etcd under a kept-alive lease
// and mirrors the full server prefix into a Table via a watch. etcd is the
// authoritative store; the heartbeat gossip only refreshes liveness in
// between lease expirations.
type Registry struct {
	cli     *clientv3.Client
	ownsCli bool
	table   *Table
	self    ServerInfo
	cfg     EtcdConfig

	leaseID clientv3.LeaseID
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRegistry dials etcd and builds a Registry for self.
func NewRegistry(cfg EtcdConfig, self ServerInfo, table *Table) (*Registry, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, err
	}
	r := NewRegistryWithClient(cli, cfg, self, table)
	r.ownsCli = true
	return r, nil
}

// NewRegistryWithClient wraps an existing etcd client (tests hand in an
// embedded cluster's client; the Registry then does not close it).
func NewRegistryWithClient(cli *clientv3.Client, cfg EtcdConfig, self ServerInfo, table *Table) *Registry {
	if cfg.LeaseTTLSec <= 0 {
		cfg.LeaseTTLSec = 20
	}
	return &Registry{
		cli:   cli,
		table: table,
		self:  self,
		cfg:   cfg,
		done:  make(chan struct{}),
	}
}

func (r *Registry) key(serverID string) string { return keyPrefix + serverID }

// Start grants the lease, writes this server's record, loads the current
// prefix, and begins watching for peer changes.
func (r *Registry) Start(ctx context.Context) error {
	lease, err := r.cli.Grant(ctx, r.cfg.LeaseTTLSec)
	if err != nil {
		return err
	}
	r.leaseID = lease.ID

	val, err := json.Marshal(r.self)
	if err != nil {
		return err
	}
	if _, err := r.cli.Put(ctx, r.key(r.self.ServerID), string(val), clientv3.WithLease(lease.ID)); err != nil {
		return err
	}

	keepAlive, err := r.cli.KeepAlive(context.Background(), lease.ID)
	if err != nil {
		return err
	}

	resp, err := r.cli.Get(ctx, keyPrefix, clientv3.WithPrefix())
	if err != nil {
		return err
	}
	for _, kv := range resp.Kvs {
		r.apply(kv.Value)
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	watchCh := r.cli.Watch(watchCtx, keyPrefix, clientv3.WithPrefix())

	go r.run(keepAlive, watchCh)
	return nil
}

func (r *Registry) run(keepAlive <-chan *clientv3.LeaseKeepAliveResponse, watchCh clientv3.WatchChan) {
	defer close(r.done)
	for {
		select {
		case _, ok := <-keepAlive:
			if !ok {
				logger.Log.Warnf("discovery: etcd lease keepalive channel closed, registration may lapse")
				keepAlive = nil
				if watchCh == nil {
					return
				}
			}
		case wresp, ok := <-watchCh:
			if !ok {
				watchCh = nil
				if keepAlive == nil {
					return
				}
				continue
			}
			for _, ev := range wresp.Events {
				switch ev.Type {
				case clientv3.EventTypePut:
					r.apply(ev.Kv.Value)
				case clientv3.EventTypeDelete:
					serverID := string(ev.Kv.Key[len(keyPrefix):])
					r.table.Remove(serverID)
				}
			}
		}
	}
}

func (r *Registry) apply(value []byte) {
	var info ServerInfo
	if err := json.Unmarshal(value, &info); err != nil {
		logger.Log.Warnf("discovery: dropping malformed server record: %s", err.Error())
		return
	}
	r.table.Upsert(info)
}

// Stop revokes the lease (removing this server's record immediately rather
// than waiting out the TTL) and stops the watch. Idempotent.
func (r *Registry) Stop() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if _, err := r.cli.Revoke(ctx, r.leaseID); err != nil {
			logger.Log.Debugf("discovery: lease revoke: %s", err.Error())
		}
		cancel()
		<-r.done
		if r.ownsCli {
			r.cli.Close()
		}
	}
}
