// Package discovery maintains the authoritative map from server id to
// endpoint: an etcd-backed registry every server writes itself into, plus a
// NATS heartbeat fanout that keeps liveness fresher than etcd's lease
// granularity. The mesh communicator subscribes as a Listener to open and
// tear down peer links as servers come and go.
package discovery

import (
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// State is a server's liveness as this process sees it.
type State int32

const (
	StateRunning State = iota
	StatePaused
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "Running"
	case StatePaused:
		return "Paused"
	case StateDisabled:
		return "Disabled"
	default:
		return "Unknown"
	}
}

// ServerInfo describes one server in the cluster. It round-trips through
// etcd values and heartbeat payloads as JSON.
type ServerInfo struct {
	ServerID        string `json:"serverId"`
	ServiceID       uint16 `json:"serviceId"`
	ServiceType     string `json:"serviceType"`
	BindEndpoint    string `json:"bindEndpoint"`
	LastHeartbeatAt int64  `json:"lastHeartbeatAt"`
	State           State  `json:"state"`
}

// Listener is notified when a peer appears, refreshes, or disappears.
// AddServer also fires when a known server's endpoint changes.
type Listener interface {
	AddServer(info ServerInfo)
	RemoveServer(info ServerInfo)
}

// Table is the process-local, best-effort-consistent view of the cluster.
type Table struct {
	selfID string

	mu        sync.RWMutex
	servers   map[string]*ServerInfo
	listeners []Listener

	now func() time.Time
}

// NewTable builds an empty Table for the server selfID (the local server is
// tracked but never handed to listeners — no link to self).
func NewTable(selfID string) *Table {
	return &Table{
		selfID:  selfID,
		servers: make(map[string]*ServerInfo),
		now:     time.Now,
	}
}

// AddListener registers l for subsequent add/remove events and immediately
// replays every live server into it.
func (t *Table) AddListener(l Listener) {
	t.mu.Lock()
	t.listeners = append(t.listeners, l)
	replay := t.liveLocked()
	t.mu.Unlock()
	for _, info := range replay {
		l.AddServer(info)
	}
}

// Upsert merges info into the table, stamping the heartbeat time, and
// notifies listeners when the server is new or changed endpoint.
func (t *Table) Upsert(info ServerInfo) {
	info.LastHeartbeatAt = t.now().Unix()
	if info.State == StateDisabled {
		t.Remove(info.ServerID)
		return
	}

	t.mu.Lock()
	prev, existed := t.servers[info.ServerID]
	changed := !existed || prev.BindEndpoint != info.BindEndpoint
	t.servers[info.ServerID] = &info
	listeners := t.listeners
	t.mu.Unlock()

	if changed && info.ServerID != t.selfID {
		for _, l := range listeners {
			l.AddServer(info)
		}
	}
}

// Touch refreshes serverID's heartbeat stamp without changing its record;
// false means the server is unknown (caller should re-publish full info).
func (t *Table) Touch(serverID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	info, ok := t.servers[serverID]
	if !ok {
		return false
	}
	info.LastHeartbeatAt = t.now().Unix()
	return true
}

// Remove drops serverID and notifies listeners.
func (t *Table) Remove(serverID string) {
	t.mu.Lock()
	info, ok := t.servers[serverID]
	if ok {
		delete(t.servers, serverID)
	}
	listeners := t.listeners
	t.mu.Unlock()

	if ok && serverID != t.selfID {
		for _, l := range listeners {
			l.RemoveServer(*info)
		}
	}
}

// Expire removes every server whose last heartbeat is older than ttl,
// returning the expired records.
func (t *Table) Expire(ttl time.Duration) []ServerInfo {
	deadline := t.now().Add(-ttl).Unix()

	t.mu.Lock()
	var expired []ServerInfo
	for id, info := range t.servers {
		if id == t.selfID {
			continue
		}
		if info.LastHeartbeatAt < deadline {
			expired = append(expired, *info)
			delete(t.servers, id)
		}
	}
	listeners := t.listeners
	t.mu.Unlock()

	for _, info := range expired {
		for _, l := range listeners {
			l.RemoveServer(info)
		}
	}
	return expired
}

// Get returns the record for serverID.
func (t *Table) Get(serverID string) (ServerInfo, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	info, ok := t.servers[serverID]
	if !ok {
		return ServerInfo{}, false
	}
	return *info, true
}

// GetByType lists every live server hosting serviceType, for Stages that
// need to locate a counterpart server.
func (t *Table) GetByType(serviceType string) []ServerInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []ServerInfo
	for _, info := range t.servers {
		if info.ServiceType == serviceType {
			out = append(out, *info)
		}
	}
	return out
}

// Count reports the number of known servers.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.servers)
}

func (t *Table) liveLocked() []ServerInfo {
	out := make([]ServerInfo, 0, len(t.servers))
	for id, info := range t.servers {
		if id == t.selfID {
			continue
		}
		out = append(out, *info)
	}
	return out
}
