package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/tests/v3/integration"
)

func startCluster(t *testing.T) *integration.ClusterV3 {
	t.Helper()
	integration.BeforeTestExternal(t)
	return integration.NewClusterV3(t, &integration.ClusterConfig{Size: 1})
}

func TestRegistryPublishesAndWatches(t *testing.T) {
	clus := startCluster(t)
	defer clus.Terminate(t)

	tableA := NewTable("a")
	regA := NewRegistryWithClient(clus.Client(0), EtcdConfig{LeaseTTLSec: 5}, ServerInfo{
		ServerID: "a", ServiceType: "play", BindEndpoint: "127.0.0.1:9001",
	}, tableA)
	require.NoError(t, regA.Start(context.Background()))
	defer regA.Stop()

	tableB := NewTable("b")
	regB := NewRegistryWithClient(clus.Client(0), EtcdConfig{LeaseTTLSec: 5}, ServerInfo{
		ServerID: "b", ServiceType: "api", BindEndpoint: "127.0.0.1:9002",
	}, tableB)
	require.NoError(t, regB.Start(context.Background()))
	defer regB.Stop()

	require.Eventually(t, func() bool {
		_, okA := tableA.Get("b")
		_, okB := tableB.Get("a")
		return okA && okB
	}, 5*time.Second, 50*time.Millisecond)

	info, _ := tableA.Get("b")
	assert.Equal(t, "api", info.ServiceType)
}

func TestRegistryStopRemovesRecord(t *testing.T) {
	clus := startCluster(t)
	defer clus.Terminate(t)

	tableA := NewTable("a")
	regA := NewRegistryWithClient(clus.Client(0), EtcdConfig{LeaseTTLSec: 5}, ServerInfo{
		ServerID: "a", ServiceType: "play", BindEndpoint: "127.0.0.1:9001",
	}, tableA)
	require.NoError(t, regA.Start(context.Background()))

	tableB := NewTable("b")
	regB := NewRegistryWithClient(clus.Client(0), EtcdConfig{LeaseTTLSec: 5}, ServerInfo{
		ServerID: "b", ServiceType: "api", BindEndpoint: "127.0.0.1:9002",
	}, tableB)
	require.NoError(t, regB.Start(context.Background()))
	defer regB.Stop()

	require.Eventually(t, func() bool {
		_, ok := tableB.Get("a")
		return ok
	}, 5*time.Second, 50*time.Millisecond)

	regA.Stop()

	require.Eventually(t, func() bool {
		_, ok := tableB.Get("a")
		return !ok
	}, 5*time.Second, 50*time.Millisecond)
}
