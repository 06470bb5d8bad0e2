package workerpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRunsTask(t *testing.T) {
	p := New(1, 4, nil)
	defer p.Shutdown()

	done := make(chan struct{})
	p.Submit(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}

func TestPoolGrowsUnderLoad(t *testing.T) {
	p := New(1, 8, nil)
	defer p.Shutdown()

	const n = 8
	var wg sync.WaitGroup
	release := make(chan struct{})
	wg.Add(n)
	for i := 0; i < n; i++ {
		p.Submit(func() {
			defer wg.Done()
			<-release
		})
	}

	require.Eventually(t, func() bool {
		return p.Size() > 1
	}, time.Second, 5*time.Millisecond)

	close(release)
	wg.Wait()
}

func TestPoolMultiplexesManySubmitters(t *testing.T) {
	p := New(2, 4, nil)
	defer p.Shutdown()

	var count int64
	var wg sync.WaitGroup
	const n = 500
	wg.Add(n)
	for i := 0; i < n; i++ {
		p.Submit(func() {
			atomic.AddInt64(&count, 1)
			wg.Done()
		})
	}
	wg.Wait()
	assert.Equal(t, int64(n), atomic.LoadInt64(&count))
}

func TestShutdownIsIdempotent(t *testing.T) {
	p := New(1, 2, nil)
	p.Shutdown()
	assert.NotPanics(t, func() { p.Shutdown() })
}

func TestSubmitAfterShutdownIsDropped(t *testing.T) {
	p := New(1, 2, nil)
	p.Shutdown()
	assert.NotPanics(t, func() { p.Submit(func() {}) })
}
