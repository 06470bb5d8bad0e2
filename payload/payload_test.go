package payload

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCopiesData(t *testing.T) {
	src := []byte("hello")
	p := New(src)
	defer p.Release()

	src[0] = 'X'
	view, err := p.View()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), view)
}

func TestReleaseReachesZeroExactlyOnce(t *testing.T) {
	p := New([]byte("data"))
	assert.Equal(t, int32(1), p.RefCount())

	require.NoError(t, p.Release())
	assert.Equal(t, int32(0), p.RefCount())

	_, err := p.View()
	assert.Equal(t, ErrDisposed, err)
	assert.Equal(t, ErrDisposed, p.Release())
}

func TestEmptySingletonIgnoresRelease(t *testing.T) {
	p := Empty()
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Release())
	}
	view, err := p.View()
	require.NoError(t, err)
	assert.Empty(t, view)
	assert.Equal(t, 0, p.Len())
}

func TestNewEmptyBytesIsSingleton(t *testing.T) {
	assert.Same(t, Empty(), New(nil))
	assert.Same(t, Empty(), New([]byte{}))
}

// TestNoLeakAcrossWorkload: every constructed payload must reach ref-count
// zero once its one owner releases it, across many goroutines and sizes.
func TestNoLeakAcrossWorkload(t *testing.T) {
	var tracked sync.Map
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				p := New(make([]byte, (g*37+i*91)%5000+1))
				tracked.Store(p, struct{}{})
				if _, err := p.View(); err != nil {
					t.Error(err)
					return
				}
				if err := p.Release(); err != nil {
					t.Error(err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	tracked.Range(func(key, _ interface{}) bool {
		p := key.(*Payload)
		assert.Equal(t, int32(0), p.RefCount())
		return true
	})
}
