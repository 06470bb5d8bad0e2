package session

import (
	"sync"
	"sync/atomic"

	"github.com/ulala-x/playhouse/networkentity"
)

// SessionPool owns every live Session on a process; the acceptor's agents
// create their Session through it and consult its close callbacks on
// disconnect.
type SessionPool interface {
	NewSession(entity networkentity.NetworkEntity, isFrontend bool) Session
	GetSessionByID(id int64) (Session, bool)
	GetSessionByUID(uid string) (Session, bool)
	GetSessionCount() int
	OnSessionClose(fn func(Session))
	GetSessionCloseCallbacks() []func(Session)
	CloseAll(reason string)
}

type pool struct {
	nextID int64

	mu           sync.RWMutex
	byID         map[int64]*sessionImpl
	byUID        map[string]*sessionImpl
	closeHandles []func(Session)
}

// NewSessionPool constructs an empty, process-wide SessionPool.
func NewSessionPool() SessionPool {
	return &pool{
		byID:  make(map[int64]*sessionImpl),
		byUID: make(map[string]*sessionImpl),
	}
}

func (p *pool) NewSession(entity networkentity.NetworkEntity, isFrontend bool) Session {
	id := atomic.AddInt64(&p.nextID, 1)
	s := newSession(id, entity, isFrontend, p)
	s.OnClose(func() { p.remove(s) })

	p.mu.Lock()
	p.byID[id] = s
	p.mu.Unlock()
	return s
}

func (p *pool) remove(s *sessionImpl) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.byID, s.ID())
	if uid := s.UID(); uid != "" {
		if cur, ok := p.byUID[uid]; ok && cur == s {
			delete(p.byUID, uid)
		}
	}
}

// bindUID is called by higher layers (the actor authenticate path) once a
// session is successfully bound, so the pool can index it by account id for
// duplicate-login detection.
func (p *pool) bindUID(s *sessionImpl, uid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byUID[uid] = s
}

func (p *pool) GetSessionByID(id int64) (Session, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.byID[id]
	return s, ok
}

func (p *pool) GetSessionByUID(uid string) (Session, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.byUID[uid]
	return s, ok
}

func (p *pool) GetSessionCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byID)
}

func (p *pool) OnSessionClose(fn func(Session)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeHandles = append(p.closeHandles, fn)
}

func (p *pool) GetSessionCloseCallbacks() []func(Session) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]func(Session), len(p.closeHandles))
	copy(out, p.closeHandles)
	return out
}

func (p *pool) CloseAll(reason string) {
	p.mu.RLock()
	sessions := make([]*sessionImpl, 0, len(p.byID))
	for _, s := range p.byID {
		sessions = append(sessions, s)
	}
	p.mu.RUnlock()
	for _, s := range sessions {
		_ = s.Close(reason)
	}
}
