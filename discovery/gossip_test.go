package discovery

import (
	"testing"
	"time"

	natstest "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

func connectEmbedded(t *testing.T) (*nats.Conn, func()) {
	t.Helper()
	srv := natstest.RunRandClientPortServer()
	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	return nc, func() {
		nc.Close()
		srv.Shutdown()
	}
}

func TestGossipSpreadsServerInfo(t *testing.T) {
	nc, stop := connectEmbedded(t)
	defer stop()

	tableA := NewTable("a")
	tableB := NewTable("b")

	selfA := func() ServerInfo {
		return ServerInfo{ServerID: "a", ServiceType: "play", BindEndpoint: "127.0.0.1:9001"}
	}
	selfB := func() ServerInfo {
		return ServerInfo{ServerID: "b", ServiceType: "api", BindEndpoint: "127.0.0.1:9002"}
	}

	ga := NewGossipWithConn(nc, selfA, tableA, 50*time.Millisecond, time.Second)
	gb := NewGossipWithConn(nc, selfB, tableB, 50*time.Millisecond, time.Second)
	require.NoError(t, ga.Start())
	require.NoError(t, gb.Start())
	defer ga.Stop()
	defer gb.Stop()

	require.Eventually(t, func() bool {
		_, okA := tableA.Get("b")
		_, okB := tableB.Get("a")
		return okA && okB
	}, 2*time.Second, 20*time.Millisecond)

	info, _ := tableA.Get("b")
	require.Equal(t, "api", info.ServiceType)
	require.Equal(t, "127.0.0.1:9002", info.BindEndpoint)
}

func TestGossipIgnoresOwnHeartbeat(t *testing.T) {
	nc, stop := connectEmbedded(t)
	defer stop()

	table := NewTable("solo")
	self := func() ServerInfo {
		return ServerInfo{ServerID: "solo", ServiceType: "play", BindEndpoint: "127.0.0.1:9001"}
	}
	g := NewGossipWithConn(nc, self, table, 30*time.Millisecond, time.Second)
	require.NoError(t, g.Start())
	defer g.Stop()

	time.Sleep(150 * time.Millisecond)
	_, ok := table.Get("solo")
	require.False(t, ok)
}

func TestGossipExpiresSilentPeer(t *testing.T) {
	nc, stop := connectEmbedded(t)
	defer stop()

	table := NewTable("a")
	self := func() ServerInfo {
		return ServerInfo{ServerID: "a", ServiceType: "play", BindEndpoint: "127.0.0.1:9001"}
	}
	g := NewGossipWithConn(nc, self, table, 40*time.Millisecond, 120*time.Millisecond)
	require.NoError(t, g.Start())
	defer g.Stop()

	// A peer that announced once and then went silent.
	table.Upsert(ServerInfo{ServerID: "dead", ServiceType: "api", BindEndpoint: "127.0.0.1:9009"})

	require.Eventually(t, func() bool {
		_, ok := table.Get("dead")
		return !ok
	}, 2*time.Second, 20*time.Millisecond)
}
