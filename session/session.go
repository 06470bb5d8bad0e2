// Package session implements the session layer contract:
// SessionPool vends Session objects bound 1:1 to a network entity (an
// Agent). A Session's UID is empty until an Actor's OnAuthenticate runs and
// calls Bind.
package session

import (
	"context"
	"sync"

	"github.com/ulala-x/playhouse/constants"
	"github.com/ulala-x/playhouse/networkentity"
)

// Session represents one client connection's server-side handle. It is the
// object package play's Outbound implementation ultimately writes through
// for SendToClient/CloseClient.
type Session interface {
	ID() int64
	UID() string
	// Bind assigns accountId to this session. A session may only be bound
	// once; rebinding to a different value is rejected with
	// constants.ErrAlreadyBound.
	Bind(ctx context.Context, accountID string) error
	Send(ctx context.Context, msgID string, msgSeq uint16, stageID int64, errorCode uint16, payload []byte) error
	Kick(ctx context.Context, reason string) error
	Close(reason string) error
	RemoteAddr() string
	NetworkEntity() networkentity.NetworkEntity
	OnClose(fn func())
	GetOnCloseCallbacks() []func()
}

type sessionImpl struct {
	mu       sync.RWMutex
	id       int64
	uid      string
	entity   networkentity.NetworkEntity
	frontend bool
	onClose  []func()
	closed   bool
	pool     *pool
}

func newSession(id int64, entity networkentity.NetworkEntity, isFrontend bool, p *pool) *sessionImpl {
	return &sessionImpl{id: id, entity: entity, frontend: isFrontend, pool: p}
}

func (s *sessionImpl) ID() int64 { return s.id }

func (s *sessionImpl) UID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uid
}

func (s *sessionImpl) Bind(ctx context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uid != "" && s.uid != accountID {
		return constants.ErrAlreadyBound
	}
	s.uid = accountID
	if s.pool != nil {
		s.pool.bindUID(s, accountID)
	}
	return nil
}

func (s *sessionImpl) Send(ctx context.Context, msgID string, msgSeq uint16, stageID int64, errorCode uint16, payload []byte) error {
	return s.entity.Send(ctx, msgID, msgSeq, stageID, errorCode, payload)
}

func (s *sessionImpl) Kick(ctx context.Context, reason string) error {
	return s.entity.Kick(ctx, reason)
}

func (s *sessionImpl) Close(reason string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.entity.Close()
}

func (s *sessionImpl) RemoteAddr() string {
	if addr := s.entity.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func (s *sessionImpl) NetworkEntity() networkentity.NetworkEntity { return s.entity }

func (s *sessionImpl) OnClose(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClose = append(s.onClose, fn)
}

func (s *sessionImpl) GetOnCloseCallbacks() []func() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]func(), len(s.onClose))
	copy(out, s.onClose)
	return out
}
