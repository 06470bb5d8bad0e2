package payload

import "sync"

// sizeClasses are the pooled buffer sizes, each a free-list backed by its
// own sync.Pool so the pools stay lock-free under contention.
var sizeClasses = []int{64, 256, 1024, 4096, 16384, 65536, 262144, 1048576, 2097152}

type bufferPool struct {
	pools []sync.Pool
}

func newBufferPool() *bufferPool {
	bp := &bufferPool{pools: make([]sync.Pool, len(sizeClasses))}
	for i, sz := range sizeClasses {
		sz := sz
		bp.pools[i].New = func() interface{} {
			b := make([]byte, sz)
			return &b
		}
	}
	return bp
}

// classFor returns the index of the smallest size class that fits n, or -1
// if n exceeds every class (get then allocates a buffer directly, outside
// the pools).
func classFor(n int) int {
	for i, sz := range sizeClasses {
		if n <= sz {
			return i
		}
	}
	return -1
}

// get returns a buffer with capacity >= n and length n.
func (bp *bufferPool) get(n int) []byte {
	idx := classFor(n)
	if idx < 0 {
		return make([]byte, n)
	}
	b := bp.pools[idx].Get().(*[]byte)
	return (*b)[:n]
}

// put returns buf to its size class's pool. Buffers not originally rented
// from a class (oversized) are simply dropped for the GC to collect.
func (bp *bufferPool) put(buf []byte) {
	idx := classFor(cap(buf))
	if idx < 0 || sizeClasses[idx] != cap(buf) {
		return
	}
	full := buf[:cap(buf)]
	bp.pools[idx].Put(&full)
}

// shared is the process-wide pool every locally produced Payload rents
// from.
var shared = newBufferPool()
