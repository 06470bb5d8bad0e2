// Package payload implements the reference-counted byte buffer behind
// every message: a zero-copy, pooled holder for one message's bytes.
package payload

import (
	"errors"
	"sync/atomic"
)

// MaxBytes is the default maximum payload size. Servers may override it
// via configuration; Payload itself does not enforce it — enforcement
// happens at packet construction time, where the limit is known.
const MaxBytes = 2 * 1024 * 1024

// ErrDisposed is returned by View when every reference has already been
// released. This is a fatal condition in production builds; debug builds
// (DebugChecks enabled) panic instead so the bug surfaces immediately in
// tests.
var ErrDisposed = errors.New("payload: use after dispose")

// DebugChecks, when true, makes View/Release panic on misuse instead of
// returning an error. It is off by default, so a stray double-release
// degrades to a returned error rather than crashing the process.
var DebugChecks = false

// Payload is a reference-counted, immutable byte holder. The zero value is
// not valid; use Empty() or New().
type Payload struct {
	buf      []byte
	pool     *bufferPool
	refCount int32
}

var emptySingleton = &Payload{refCount: 1}

// Empty returns the shared zero-length Payload singleton. Its Release is a
// no-op: the singleton never reaches ref-count zero and is never pooled.
func Empty() *Payload { return emptySingleton }

// New copies data into a buffer rented from the shared pool and returns a
// Payload holding exactly one reference over it.
func New(data []byte) *Payload {
	if len(data) == 0 {
		return Empty()
	}
	buf := shared.get(len(data))
	copy(buf, data)
	return &Payload{buf: buf, pool: shared, refCount: 1}
}

// View returns a read-only slice over the payload's bytes. The slice is
// only valid until the next Release call brings the ref count to zero;
// callers that need the bytes past that point must copy them.
func (p *Payload) View() ([]byte, error) {
	if p == emptySingleton {
		return nil, nil
	}
	if atomic.LoadInt32(&p.refCount) <= 0 {
		if DebugChecks {
			panic(ErrDisposed)
		}
		return nil, ErrDisposed
	}
	return p.buf, nil
}

// Len returns the payload's byte length without requiring a View.
func (p *Payload) Len() int {
	if p == emptySingleton {
		return 0
	}
	return len(p.buf)
}

// Release drops one reference. When the count reaches zero the backing
// buffer, if any, is returned to its size-class pool.
func (p *Payload) Release() error {
	if p == emptySingleton || p == nil {
		return nil
	}
	n := atomic.AddInt32(&p.refCount, -1)
	switch {
	case n == 0:
		if p.pool != nil {
			p.pool.put(p.buf)
			p.buf = nil
			p.pool = nil
		}
		return nil
	case n < 0:
		if DebugChecks {
			panic(ErrDisposed)
		}
		return ErrDisposed
	default:
		return nil
	}
}

// RefCount reports the current reference count, for tests asserting the
// no-leak invariant.
func (p *Payload) RefCount() int32 {
	if p == emptySingleton {
		return 1
	}
	return atomic.LoadInt32(&p.refCount)
}
