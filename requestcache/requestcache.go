// Package requestcache turns fire-and-forget inter-server sends into
// correlated request/reply pairs keyed by a process-monotonic msgSeq, with
// a single timer goroutine driving TTL expiry (reset to the next deadline,
// not polling).
package requestcache

import (
	"container/heap"
	"sync"
	"time"

	"github.com/ulala-x/playhouse/errors"
	"github.com/ulala-x/playhouse/route"
)

// DefaultTTL is the default request timeout.
const DefaultTTL = 30 * time.Second

// Result is delivered to a Wait call exactly once: either a reply packet,
// or an error carrying errors.CodeRequestTimeout / an internal
// errors.CodeSystemError for Cancelled.
type Result struct {
	Packet *route.Packet
	Err    error
}

// ErrCancelled is the error delivered to every outstanding waiter by
// CancelAll on shutdown.
var ErrCancelled = errors.NewErrorf(errors.CodeSystemError, "requestcache: cancelled")

// Handle is the one-shot waitable returned by Register.
type Handle struct {
	ch chan Result
}

// Wait blocks until the entry is completed by a reply, a timeout, or
// CancelAll. It is safe to call exactly once per Handle.
func (h *Handle) Wait() Result {
	return <-h.ch
}

type entry struct {
	msgSeq    uint16
	deadline  time.Time
	result    chan Result
	heapIndex int
	done      bool
}

// Cache correlates outgoing requests to future replies.
type Cache struct {
	mu      sync.Mutex
	seq     uint16
	entries map[uint16]*entry
	pq      deadlineQueue
	timer   *time.Timer
	closed  bool

	// now is overridable by tests to make TTL expiry deterministic.
	now func() time.Time
}

// New constructs an empty Cache.
func New() *Cache {
	c := &Cache{
		entries: make(map[uint16]*entry),
		now:     time.Now,
	}
	heap.Init(&c.pq)
	return c
}

// Register allocates a fresh msgSeq and returns a Handle that resolves when
// a matching reply arrives, the ttl deadline passes, or the cache is
// cancelled. msgSeq is process-monotonic and wraps, skipping 0 and any
// value still held by an outstanding entry, so two live requests never
// share a msgSeq.
func (c *Cache) Register(ttl time.Duration) (uint16, *Handle) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry{result: make(chan Result, 1)}

	if c.closed {
		c.completeLocked(e, Result{Err: ErrCancelled})
		return 0, &Handle{ch: e.result}
	}

	var seq uint16
	for {
		c.seq++
		seq = c.seq
		if seq == 0 {
			continue // 0 means notification; never hand it out as a request seq
		}
		if _, exists := c.entries[seq]; !exists {
			break
		}
	}

	e.msgSeq = seq
	e.deadline = c.now().Add(ttl)
	c.entries[seq] = e
	heap.Push(&c.pq, e)
	c.rearmLocked()

	return seq, &Handle{ch: e.result}
}

// TryComplete resolves the entry for msgSeq with pkt. Returns false if no
// such entry exists (a late reply past its deadline, or an unknown seq),
// which the caller should simply drop.
func (c *Cache) TryComplete(msgSeq uint16, pkt *route.Packet) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[msgSeq]
	if !ok {
		return false
	}
	delete(c.entries, msgSeq)
	c.pq.remove(e)
	c.completeLocked(e, Result{Packet: pkt})
	return true
}

// CancelAll completes every outstanding entry with ErrCancelled. Idempotent:
// calling it twice is a no-op the second time.
func (c *Cache) CancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
	}
	for seq, e := range c.entries {
		delete(c.entries, seq)
		c.completeLocked(e, Result{Err: ErrCancelled})
	}
	c.pq = nil
}

// Len reports the number of outstanding entries, for metrics
// (metrics.RequestCacheSize).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// completeLocked must be called with c.mu held; it is idempotent per entry.
func (c *Cache) completeLocked(e *entry, r Result) {
	if e.done {
		return
	}
	e.done = true
	e.result <- r
}

// rearmLocked resets the single expiry timer to fire at the next deadline.
// Must be called with c.mu held.
func (c *Cache) rearmLocked() {
	if c.closed || c.pq.Len() == 0 {
		return
	}
	next := c.pq[0].deadline
	delay := time.Until(next)
	if delay < 0 {
		delay = 0
	}
	if c.timer == nil {
		c.timer = time.AfterFunc(delay, c.onTimer)
		return
	}
	c.timer.Reset(delay)
}

func (c *Cache) onTimer() {
	c.mu.Lock()
	now := c.now()
	var expired []*entry
	for c.pq.Len() > 0 && !c.pq[0].deadline.After(now) {
		e := heap.Pop(&c.pq).(*entry)
		delete(c.entries, e.msgSeq)
		expired = append(expired, e)
	}
	c.rearmLocked()
	c.mu.Unlock()

	for _, e := range expired {
		c.mu.Lock()
		c.completeLocked(e, Result{Err: errors.NewErrorf(errors.CodeRequestTimeout, "requestcache: msgSeq %d timed out", e.msgSeq)})
		c.mu.Unlock()
	}
}

// deadlineQueue is a container/heap ordering entries by deadline, giving the
// cache a single min-heap timer source instead of one goroutine per entry.
type deadlineQueue []*entry

func (q deadlineQueue) Len() int            { return len(q) }
func (q deadlineQueue) Less(i, j int) bool  { return q[i].deadline.Before(q[j].deadline) }
func (q deadlineQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].heapIndex = i
	q[j].heapIndex = j
}

func (q *deadlineQueue) Push(x interface{}) {
	e := x.(*entry)
	e.heapIndex = len(*q)
	*q = append(*q, e)
}

func (q *deadlineQueue) Pop() interface{} {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.heapIndex = -1
	*q = old[:n-1]
	return e
}

func (q *deadlineQueue) remove(e *entry) {
	if e.heapIndex < 0 || e.heapIndex >= len(*q) {
		return
	}
	heap.Remove(q, e.heapIndex)
}
