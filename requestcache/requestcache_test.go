package requestcache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulala-x/playhouse/errors"
	"github.com/ulala-x/playhouse/route"
)

func TestRegisterTryComplete(t *testing.T) {
	c := New()
	seq, h := c.Register(time.Second)
	require.NotZero(t, seq)

	pkt := route.NewOwned(route.Header{MsgID: "Reply"}, []byte("hi"))
	ok := c.TryComplete(seq, pkt)
	require.True(t, ok)

	res := h.Wait()
	require.NoError(t, res.Err)
	require.Equal(t, pkt, res.Packet)
}

func TestTryCompleteUnknownSeqReturnsFalse(t *testing.T) {
	c := New()
	ok := c.TryComplete(999, route.NewOwned(route.Header{}, nil))
	assert.False(t, ok)
}

func TestRegisterTimeout(t *testing.T) {
	c := New()
	_, h := c.Register(20 * time.Millisecond)
	res := h.Wait()
	require.Error(t, res.Err)
	fe, ok := errors.As(res.Err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeRequestTimeout, fe.Code)
}

func TestCancelAllIsIdempotent(t *testing.T) {
	c := New()
	_, h1 := c.Register(time.Second)
	_, h2 := c.Register(time.Second)

	c.CancelAll()
	c.CancelAll() // second call must be a no-op, not a panic/double-send

	for _, h := range []*Handle{h1, h2} {
		res := h.Wait()
		assert.Equal(t, ErrCancelled, res.Err)
	}
}

func TestRegisterAfterCancelAllResolvesImmediately(t *testing.T) {
	c := New()
	c.CancelAll()
	_, h := c.Register(time.Second)
	res := h.Wait()
	assert.Equal(t, ErrCancelled, res.Err)
}

// TestEveryWaiterGetsExactlyOneOutcome: for every Register, exactly one of
// Completed/Timeout/Cancelled reaches the waiter, never zero, never more
// than one.
func TestEveryWaiterGetsExactlyOneOutcome(t *testing.T) {
	c := New()
	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, h := c.Register(50 * time.Millisecond)
			switch i % 3 {
			case 0:
				c.TryComplete(seq, route.NewOwned(route.Header{}, nil))
			case 1:
				// let it time out
			case 2:
				// race TryComplete against timeout; either outcome is fine,
				// but exactly one must be delivered
				go c.TryComplete(seq, route.NewOwned(route.Header{}, nil))
			}
			res := h.Wait()
			assert.NotNil(t, res)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, c.Len())
}
